package pipeline

// Path selects which transcription strategy processes a recording.
type Path string

const (
	// PathDirect sends the whole file to the transcription service in one call.
	PathDirect Path = "direct"
	// PathChunked partitions the file into segments transcribed concurrently.
	PathChunked Path = "chunked"
)

// Route picks the transcription path by payload size. A payload of exactly
// the threshold still goes direct; one byte over goes chunked.
func Route(sizeBytes, threshold int64) Path {
	if sizeBytes <= threshold {
		return PathDirect
	}
	return PathChunked
}
