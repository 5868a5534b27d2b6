package agent

import "fmt"

// GenerationStreamError is a failure of the final answer stream. Blocks
// emitted before the failure stay visible.
type GenerationStreamError struct {
	Err error
}

func (e *GenerationStreamError) Error() string {
	return fmt.Sprintf("answer generation failed: %v", e.Err)
}

func (e *GenerationStreamError) Unwrap() error {
	return e.Err
}
