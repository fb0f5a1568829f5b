// Package skill defines the transport-agnostic invocation envelope shared by
// the normalizer and aggregator. A caller — CLI, RPC, scheduler — builds a
// Request and receives a Response; nothing here knows about HTTP or SQL.
package skill

import (
	"errors"

	"github.com/sofiapulse/pulse/pkg/serrors"
)

// Error is one entry of a failed Response.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Meta identifies the skill invocation that produced a Response.
type Meta struct {
	Skill      string `json:"skill"`
	Version    string `json:"version"`
	TraceID    string `json:"trace_id"`
	DurationMS int64  `json:"duration_ms"`
}

// Response is the uniform result envelope.
type Response struct {
	OK     bool           `json:"ok"`
	Data   map[string]any `json:"data,omitempty"`
	Errors []Error        `json:"errors,omitempty"`
	Meta   Meta           `json:"meta"`
}

// Request is the uniform invocation envelope. Params is the skill-specific
// parameter struct.
type Request struct {
	TraceID string
	Actor   string
	DryRun  bool
	Params  any
}

// FromError converts any engine error into envelope errors. Coded errors pass
// through; anything else is reported under fallbackCode as retryable, since
// uncoded errors are database errors by construction.
func FromError(err error, fallbackCode string) []Error {
	var serr *serrors.BaseError
	if errors.As(err, &serr) {
		return []Error{{
			Code:      serr.Code,
			Message:   serr.Message,
			Field:     serr.Field,
			Retryable: serr.Retryable,
		}}
	}
	return []Error{{
		Code:      fallbackCode,
		Message:   err.Error(),
		Retryable: true,
	}}
}
