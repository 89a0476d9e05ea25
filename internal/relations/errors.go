package relations

import (
	"errors"
	"fmt"
)

// ErrSelfRelation is returned when both ends of an edge are the same concept.
var ErrSelfRelation = errors.New("a concept cannot be related to itself")

const (
	SideSource = "source"
	SideTarget = "target"
	// SideBoth marks failures of the paired write that no single row caused.
	SideBoth = "both"
)

const (
	StageFetch = "fetch"
	StageRank  = "rank"
	StageWrite = "write"
)

// SideError reports which end of a connect or disconnect failed.
type SideError struct {
	Side      string
	ConceptID string
	Stage     string
	Err       error
}

func (e *SideError) Error() string {
	return fmt.Sprintf("%s concept %s: %s: %v", e.Side, e.ConceptID, e.Stage, e.Err)
}

func (e *SideError) Unwrap() error {
	return e.Err
}
