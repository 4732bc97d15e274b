package clubgate

import (
	"io"
	"log/slog"

	"github.com/mwestre/clubgate/identity"
	"github.com/mwestre/clubgate/internal/audit"
	"github.com/mwestre/clubgate/role"
	"github.com/mwestre/clubgate/session"
)

// Re-exports so that typical integrations only import the root package.

// Role is a named privilege level compared via a total order.
type Role = role.Role

const (
	RoleNone   = role.None
	RoleViewer = role.Viewer
	RoleEditor = role.Editor
	RoleAdmin  = role.Admin
)

// Identity is the verified caller identity from the session token.
type Identity = identity.Identity

// Session is the server-trusted session record.
type Session = session.Session

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = audit.Event

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink = audit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = audit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = audit.ChannelSink

// JSONWriterSink is an [AuditSink] writing one JSON event per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink is an [AuditSink] forwarding events to a structured logger.
type SlogSink = audit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink] over the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}
