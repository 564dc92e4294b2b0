package synth

import (
	"errors"
	"fmt"
)

var (
	ErrNotReady  = errors.New("synth: model is not ready")
	ErrEmptyText = errors.New("synth: text is required")
	ErrNoAudio   = errors.New("synth: model returned no audio")
)

type Stage string

const (
	StageChunk       Stage = "chunk"
	StageGenerate    Stage = "generate"
	StageConcatenate Stage = "concatenate"
	StageEncode      Stage = "encode"
)

// Error is a synthesis failure after validation passed. Chunk is the
// zero-based index of the failing chunk, or -1 when no single chunk is at
// fault.
type Error struct {
	Stage Stage
	Chunk int
	Err   error
}

func (e *Error) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("synthesis failed at %s of chunk %d: %v", e.Stage, e.Chunk, e.Err)
	}
	return fmt.Sprintf("synthesis failed at %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
