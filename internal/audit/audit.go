package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

// Event types emitted by the session manager.
const (
	TypeLogin           = "login"
	TypeLoginRateLimit  = "login_rate_limited"
	TypeLogout          = "logout"
	TypeForcedLogin     = "forced_login"
	TypePasswordChange  = "password_change"
	TypePasswordRehash  = "password_rehash"
	TypeSessionsRevoked = "sessions_revoked"
)

// Event is one security-relevant outcome. It never carries credentials.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(append(data, '\n'))
}

// LogSink writes events to a go-log logger at info level, failures at warn.
type LogSink struct {
	logger *logging.ZapEventLogger
}

// NewLogSink logs under the given subsystem name.
func NewLogSink(subsystem string) *LogSink {
	return &LogSink{logger: logging.Logger(subsystem)}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	kv := []any{
		"type", event.Type,
		"success", event.Success,
	}
	if event.UserID != "" {
		kv = append(kv, "user", event.UserID)
	}
	if event.SessionID != "" {
		kv = append(kv, "session", event.SessionID)
	}
	if event.IP != "" {
		kv = append(kv, "ip", event.IP)
	}
	if event.Reason != "" {
		kv = append(kv, "reason", event.Reason)
	}
	for k, v := range event.Metadata {
		kv = append(kv, k, v)
	}
	if event.Success {
		s.logger.Infow("audit", kv...)
		return
	}
	s.logger.Warnw("audit", kv...)
}
