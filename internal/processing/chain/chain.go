// Package chain runs a fixed sequence of mask operations, releasing each
// intermediate as soon as the next step has consumed it.
package chain

import (
	"fmt"

	"leaffliction/internal/debug"
	"leaffliction/internal/raster"
)

type ProcessingStep struct {
	Name  string
	Apply func(input *raster.Mask) (*raster.Mask, error)
}

type ProcessingChain struct {
	steps []ProcessingStep
}

func NewProcessingChain(steps ...ProcessingStep) *ProcessingChain {
	return &ProcessingChain{
		steps: steps,
	}
}

// Execute applies every step in order. The input is never closed; every
// intermediate result is. Each step's output is emitted to sink.
func (pc *ProcessingChain) Execute(input *raster.Mask, sink debug.Sink) (*raster.Mask, error) {
	sink = debug.OrDiscard(sink)
	current := input

	for _, step := range pc.steps {
		result, err := step.Apply(current)
		if current != input {
			current.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("step %s failed: %w", step.Name, err)
		}

		sink.Emit(step.Name, result.Mat())
		current = result
	}

	if current == input {
		return input.Clone(), nil
	}
	return current, nil
}
