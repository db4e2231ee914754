package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStepRequirements(t *testing.T) {
	tests := []struct {
		name string
		step ProcessStep
		want Requirements
	}{
		{"chunk without size", ProcessStep{Kind: StepKindChunk}, Requirements{ResourceCPU: 1, ResourceMemoryMB: 1}},
		{
			"chunk sized from content",
			ProcessStep{Kind: StepKindChunk, Params: map[string]any{ChunkMemoryParam: 3 << 20}},
			Requirements{ResourceCPU: 1, ResourceMemoryMB: 6},
		},
		{
			"chunk size after json round trip",
			ProcessStep{Kind: StepKindChunk, Params: map[string]any{ChunkMemoryParam: float64(1<<20 + 1)}},
			Requirements{ResourceCPU: 1, ResourceMemoryMB: 3},
		},
		{"embed", ProcessStep{Kind: StepKindEmbed}, Requirements{ResourceCPU: 1}},
		{"index", ProcessStep{Kind: StepKindIndex}, Requirements{ResourceCPU: 1}},
		{"save_index", ProcessStep{Kind: StepKindSaveIndex}, Requirements{ResourceCPU: 1}},
		{"oracle", ProcessStep{Kind: StepKindOracle}, nil},
		{"custom", ProcessStep{Kind: "summarise"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultStepRequirements(tt.step))
		})
	}
}

func TestRequirements_IsZero(t *testing.T) {
	assert.True(t, Requirements(nil).IsZero())
	assert.True(t, Requirements{ResourceCPU: 0}.IsZero())
	assert.False(t, Requirements{ResourceCPU: 1}.IsZero())
}
