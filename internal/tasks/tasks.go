package tasks

// Defines constants for task types used in Asynq.

const (
	// TypePipelineRun is the task type for executing a batch pipeline run.
	TypePipelineRun = "pipeline:run"
)
