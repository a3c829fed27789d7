package pipeline

import (
	"fmt"
	"strings"

	apperrors "leaffliction/internal/errors"
)

// Stage names a node of the graph.
type Stage string

const (
	Original        Stage = "original"
	NoBackground    Stage = "no_bg"
	Mask            Stage = "mask"
	Blur            Stage = "blur"
	ROI             Stage = "roi"
	Analyze         Stage = "analyze"
	Pseudolandmarks Stage = "pseudolandmarks"
	ColorHistogram  Stage = "color_histogram"

	// Internal nodes. They are cached like every stage but never emitted.
	Foreground Stage = "foreground"
	Disease    Stage = "disease"
	Kept       Stage = "kept"
)

type node struct {
	deps     []Stage
	internal bool
	// optional stages are left out of the default set.
	optional bool
}

var table = map[Stage]node{
	Foreground: {internal: true},
	Disease:    {deps: []Stage{Foreground}, internal: true},
	Kept:       {deps: []Stage{Foreground}, internal: true},

	Original:        {},
	NoBackground:    {deps: []Stage{Foreground}},
	Mask:            {deps: []Stage{Disease}},
	Blur:            {deps: []Stage{Foreground}},
	ROI:             {deps: []Stage{Kept}},
	Analyze:         {deps: []Stage{Kept}},
	Pseudolandmarks: {deps: []Stage{Kept}, optional: true},
	ColorHistogram:  {deps: []Stage{Kept}},
}

// order is the canonical output order.
var order = []Stage{Original, NoBackground, Mask, Blur, ROI, Analyze, Pseudolandmarks, ColorHistogram}

// Stages returns every output stage in canonical order.
func Stages() []Stage {
	return append([]Stage(nil), order...)
}

// DefaultStages returns the stages produced when none are requested.
func DefaultStages() []Stage {
	stages := make([]Stage, 0, len(order))
	for _, s := range order {
		if !table[s].optional {
			stages = append(stages, s)
		}
	}
	return stages
}

// Dependencies returns the direct upstream nodes of s.
func Dependencies(s Stage) []Stage {
	return append([]Stage(nil), table[s].deps...)
}

// IsOutput reports whether s can be requested from Get.
func (s Stage) IsOutput() bool {
	n, ok := table[s]
	return ok && !n.internal
}

func (s Stage) String() string { return string(s) }

// ParseStage validates a stage name.
func ParseStage(name string) (Stage, error) {
	s := Stage(strings.TrimSpace(name))
	if !s.IsOutput() {
		return "", apperrors.NewInputError(fmt.Sprintf("unknown stage %q", name), nil)
	}
	return s, nil
}

// ParseStages parses a comma separated list. An empty list yields nil.
func ParseStages(list string) ([]Stage, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	var stages []Stage
	for _, name := range strings.Split(list, ",") {
		s, err := ParseStage(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}
