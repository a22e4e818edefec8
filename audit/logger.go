// Package audit provides pluggable audit logging for the vault core. Events
// record what happened and whether it succeeded, never secret material.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Config defines audit logging configuration.
type Config struct {
	Enabled bool                   `json:"enabled"`
	Type    ConfigType             `json:"type"`
	Options map[string]interface{} `json:"options"` // Provider-specific options
}

type ConfigType string

const (
	FileAuditType ConfigType = "file"
	NoOp          ConfigType = ""
)

// Logger is the interface for pluggable audit implementations.
type Logger interface {
	Log(action string, success bool, metadata map[string]interface{}) error
	Query(options QueryOptions) ([]Event, error)
	Close() error
}

// Event is a single audit log record.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	Success   bool                   `json:"success"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// QueryOptions filters audit events. Zero values mean "no filter".
type QueryOptions struct {
	Since   *time.Time
	Until   *time.Time
	Action  string
	Success *bool // nil = all, true = only success, false = only failures
	Limit   int
}

// Matches reports whether the event passes every set filter.
func (q QueryOptions) Matches(e Event) bool {
	if q.Since != nil && e.Timestamp.Before(*q.Since) {
		return false
	}
	if q.Until != nil && e.Timestamp.After(*q.Until) {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if q.Success != nil && e.Success != *q.Success {
		return false
	}
	return true
}

// NewLogger creates an appropriate logger based on configuration.
func NewLogger(config *Config) (Logger, error) {
	if config == nil || !config.Enabled {
		return &NoOpLogger{}, nil
	}

	switch config.Type {
	case FileAuditType:
		return NewFileLogger(config)
	case NoOp:
		return &NoOpLogger{}, nil
	default:
		return nil, fmt.Errorf("unknown audit provider: %s", config.Type)
	}
}

// parseOptions converts map[string]interface{} to a specific options struct.
func parseOptions(options map[string]interface{}, target interface{}) error {
	if len(options) == 0 {
		return nil
	}

	jsonData, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	if err = json.Unmarshal(jsonData, target); err != nil {
		return fmt.Errorf("failed to unmarshal options: %w", err)
	}
	return nil
}

func generateEventID() string {
	return uuid.NewString()
}
