package graph

import "errors"

// Sentinel errors returned by graph operations.
var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrDuplicateNode    = errors.New("duplicate node id")
	ErrDuplicateEdge    = errors.New("duplicate edge")
	ErrSlotTaken        = errors.New("anchor slot already occupied")
	ErrNodeLoading      = errors.New("node is still loading")
	ErrAlreadyPopulated = errors.New("node already populated")
	ErrNotExplorable    = errors.New("node cannot be explored")
	ErrNotHighlighted   = errors.New("node is not highlighted")
	ErrQuestionNotFound = errors.New("question not found")
)
