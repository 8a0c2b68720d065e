package comparer

import "fmt"

// Stage names the step of a comparison that failed.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageParse    Stage = "parse"
	StageEvaluate Stage = "evaluate"
)

// StageError wraps a failure with the side (1 or 2) and stage it happened
// in. Evaluation concerns both sides and uses Side 0.
type StageError struct {
	Side  int
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e.Side == 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("source %d: %s: %v", e.Side, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
