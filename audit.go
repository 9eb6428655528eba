package authcore

import (
	"io"

	"github.com/MrEthical07/authcore/internal/audit"
)

// AuditEvent is one security-relevant outcome recorded by the [Manager].
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// Audit event types.
const (
	AuditLogin           = audit.TypeLogin
	AuditLoginRateLimit  = audit.TypeLoginRateLimit
	AuditLogout          = audit.TypeLogout
	AuditForcedLogin     = audit.TypeForcedLogin
	AuditPasswordChange  = audit.TypePasswordChange
	AuditPasswordRehash  = audit.TypePasswordRehash
	AuditSessionsRevoked = audit.TypeSessionsRevoked
)

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// LogSink writes audit events through go-log.
type LogSink = audit.LogSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLogSink logs audit events under the "authcore/audit" subsystem.
func NewLogSink() *LogSink {
	return audit.NewLogSink("authcore/audit")
}
