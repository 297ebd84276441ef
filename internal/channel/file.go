package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"watchtower/pkg/models"
)

// FileConfig configures the JSONL audit channel.
type FileConfig struct {
	Path string
	// RedactFields lists metadata fields masked before writing.
	RedactFields []string
}

// File appends dispatched alerts to a JSON lines file.
type File struct {
	name         string
	file         *os.File
	encoder      *json.Encoder
	redactFields []string
	mu           sync.Mutex
}

// NewFile creates a JSONL alert channel.
func NewFile(name string, cfg FileConfig) (*File, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file %s: path is empty", name)
	}
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &File{
		name:         name,
		file:         f,
		encoder:      json.NewEncoder(f),
		redactFields: cfg.RedactFields,
	}, nil
}

// Name returns the configured channel name.
func (w *File) Name() string {
	return w.name
}

// Send appends one alert line.
func (w *File) Send(ctx context.Context, alert *models.SecurityAlert) error {
	out := alert
	if len(w.redactFields) > 0 {
		out = redactAlert(alert, w.redactFields)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.encoder.Encode(out); err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return nil
}

// Close closes the output file.
func (w *File) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// redactAlert copies the alert with masked event metadata; the stored
// events stay unmodified.
func redactAlert(alert *models.SecurityAlert, fields []string) *models.SecurityAlert {
	out := *alert
	out.TriggeringEvents = make([]*models.SecurityEvent, len(alert.TriggeringEvents))
	for i, ev := range alert.TriggeringEvents {
		masked := *ev
		masked.Metadata = models.RedactMetadata(ev.Metadata, fields)
		out.TriggeringEvents[i] = &masked
	}
	return &out
}
