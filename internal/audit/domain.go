// Package audit records access denials raised by the edge gate and the
// server route guard.
package audit

import (
	"context"
	"time"
)

// Layers that report denials.
const (
	LayerEdge  = "edge"
	LayerGuard = "guard"
)

// Denial describes one refused access attempt.
type Denial struct {
	Layer      string    `json:"layer"`
	UserID     string    `json:"user_id,omitempty"`
	Role       string    `json:"role,omitempty"`
	Path       string    `json:"path,omitempty"`
	Permission string    `json:"permission,omitempty"`
	Reason     string    `json:"reason"`
	RequestID  string    `json:"request_id,omitempty"`
	At         time.Time `json:"at"`
}

// Sink receives denials. Implementations must not block the request on
// slow storage.
type Sink interface {
	RecordDenial(ctx context.Context, d Denial)
}

// NopSink discards denials.
type NopSink struct{}

// RecordDenial implements Sink.
func (NopSink) RecordDenial(context.Context, Denial) {}
