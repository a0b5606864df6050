package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskType(t *testing.T) {
	task, err := ParseTaskType("meta_optimization")
	require.NoError(t, err)
	assert.Equal(t, TaskMetaOptimization, task)

	// case and whitespace tolerant
	task, err = ParseTaskType("  Tag_Optimization ")
	require.NoError(t, err)
	assert.Equal(t, TaskTagOptimization, task)

	_, err = ParseTaskType("teleportation")
	assert.Error(t, err)
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"sneaker", "canvas", "blue"}, SplitTags("sneaker, canvas,blue"))
	assert.Equal(t, []string{"solo"}, SplitTags("solo"))
	assert.Nil(t, SplitTags("   "))
	assert.Equal(t, []string{"a", "b"}, SplitTags("a,,b,"))
}

func TestJoinTagsRoundTrip(t *testing.T) {
	tags := []string{"sneaker", "canvas"}
	assert.Equal(t, tags, SplitTags(JoinTags(tags)))
}

func TestProductTagList(t *testing.T) {
	p := &Product{Tags: "red, large"}
	assert.Equal(t, []string{"red", "large"}, p.TagList())
}

func TestRunPercentage(t *testing.T) {
	run := &PipelineRun{Total: 20, Processed: 8, Failed: 2}
	assert.InDelta(t, 50.0, run.Percentage(), 0.001)

	empty := &PipelineRun{}
	assert.Zero(t, empty.Percentage())
}
