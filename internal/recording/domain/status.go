package domain

import "fmt"

type Status string

const (
	Processing  Status = "processing"
	Analyzed    Status = "analyzed"
	Distributed Status = "distributed"
	Failed      Status = "failed"
)

// CanTransition encodes the recording status machine. Progression is strictly
// monotonic: processing -> analyzed -> distributed. Failed is reachable from
// processing and analyzed only and is terminal for automatic progression.
func CanTransition(from, to Status) bool {
	switch from {
	case Processing:
		return to == Analyzed || to == Failed
	case Analyzed:
		return to == Distributed || to == Failed
	case Distributed:
		return false
	case Failed:
		return false
	default:
		return false
	}
}

func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
