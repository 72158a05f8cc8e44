// Package ingest turns document mutation messages, whether they arrive on
// the Kafka ingest topic or through the HTTP API, into indexer calls and
// publishes a completion event for each one.
package ingest

import "time"

// Op names the mutation a Message requests.
type Op string

const (
	OpIndex      Op = "index"
	OpRemove     Op = "remove"
	OpProperties Op = "properties"
)

// Message is the payload of the ingest topic and the body of the document
// endpoints. Text is required for OpIndex; a nil Properties with
// OpProperties clears the set.
type Message struct {
	Op         Op             `json:"op"`
	URI        string         `json:"uri"`
	Text       string         `json:"text,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Status is the outcome recorded in a completion event.
type Status string

const (
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
)

// Event is published to the index-complete topic after a message has been
// applied or rejected.
type Event struct {
	Op        Op        `json:"op"`
	URI       string    `json:"uri"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}
