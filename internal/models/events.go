package models

import "time"

// Event types
const (
	EventTypeRunCompleted = "RUN_COMPLETED"
	EventTypeRunFailed    = "RUN_FAILED"
)

// Pipeline names
const (
	PipelineNormalized = "normalized"
	PipelineWarehouse  = "warehouse"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RunCompletedEvent published when a pipeline run commits
type RunCompletedEvent struct {
	BaseEvent
	RunID    string           `json:"run_id"`
	Pipeline string           `json:"pipeline"`
	Metrics  map[string]int64 `json:"metrics"`
}

// RunFailedEvent published when a pipeline run aborts
type RunFailedEvent struct {
	BaseEvent
	RunID    string `json:"run_id"`
	Pipeline string `json:"pipeline"`
	Reason   string `json:"reason"`
}

// MetricValue is one line of a run report
type MetricValue struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// RunReport is the cached outcome of the last successful run of a pipeline
type RunReport struct {
	RunID       string        `json:"run_id"`
	Pipeline    string        `json:"pipeline"`
	CompletedAt time.Time     `json:"completed_at"`
	Metrics     []MetricValue `json:"metrics"`
}
