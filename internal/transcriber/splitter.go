package transcriber

type SegmentStatus string

const (
	SegmentPending SegmentStatus = "pending"
	SegmentDone    SegmentStatus = "done"
	SegmentFailed  SegmentStatus = "failed"
)

// Segment is one ordered slice of an oversized audio payload. Segments are
// transient: they exist only for the lifetime of a chunked transcription run
// and are never persisted. Order is carried by the explicit index, never by
// completion order of the concurrent workers.
type Segment struct {
	Index    int
	Start    int64
	End      int64 // exclusive
	Status   SegmentStatus
	Attempts int
	Text     string
}

// Split partitions total bytes into segments of at most segmentSize each.
// The last segment carries the remainder. total <= segmentSize yields a
// single segment.
func Split(total, segmentSize int64) []Segment {
	if total <= 0 || segmentSize <= 0 {
		return nil
	}

	n := int((total + segmentSize - 1) / segmentSize)
	segments := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		start := int64(i) * segmentSize
		end := start + segmentSize
		if end > total {
			end = total
		}
		segments = append(segments, Segment{
			Index:  i,
			Start:  start,
			End:    end,
			Status: SegmentPending,
		})
	}
	return segments
}
