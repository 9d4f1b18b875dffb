// Package pubsub fans extraction progress out to web clients. Topics
// carry versioned JSON events; per-topic retention lets a subscriber
// that connects mid-run catch up on the latest state.
package pubsub

import (
	"context"
	"encoding/json"
)

// Event is one versioned message on a topic. Version increases by one
// per publish within a topic, so clients can detect gaps after drops.
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"`
}

// Subscription is one client's view of a topic.
type Subscription interface {
	Topic() string

	// Events yields published events; the channel closes when the
	// subscription or its publisher closes.
	Events() <-chan Event

	Close() error
}

// Publisher routes events from the extraction loop to subscribers.
type Publisher interface {
	// Subscribe attaches to a topic. Cancelling ctx closes the
	// subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish marshals data and delivers it to every subscriber of
	// the topic.
	Publish(topic string, eventType string, data interface{}) error

	Close() error
}

// ExtractionStatus is the payload on the status topic.
type ExtractionStatus struct {
	State   string `json:"state"`   // loading, stitching, extracting, ready, error
	Message string `json:"message"`
	Input   string `json:"input"` // VFG file being processed
}

// ModelData is the payload on the model topic, a size summary of the
// latest extraction.
type ModelData struct {
	NodeCount int  `json:"node_count"`
	EdgeCount int  `json:"edge_count"`
	Complete  bool `json:"complete"`
}
