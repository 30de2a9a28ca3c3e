package conversation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harun/shellagent/internal/observability"
	"github.com/harun/shellagent/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Store persists a conversation as JSON Lines, one entry per line.
type Store struct {
	path   string
	logger zerolog.Logger
}

func NewStore(path string, logger zerolog.Logger) *Store {
	observability.EnsureRegistered()
	return &Store{path: path, logger: logger.With().Str("component", "conversation").Logger()}
}

func (s *Store) Path() string {
	return s.path
}

// Initialize loads the persisted conversation or starts a new one with the
// system entry. A missing file is not an error.
func (s *Store) Initialize(systemPrompt string) (*Conversation, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		s.logger.Info().Int("entries", len(entries)).Str("path", s.path).Msg("Conversation restored")
	}
	return FromEntries(systemPrompt, entries), nil
}

// Load reads all valid entries. Unparseable or incomplete lines are skipped.
func (s *Store) Load() ([]Entry, error) {
	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			s.logger.Warn().Int("line", lineNum).Err(err).Msg("Failed to parse history line, skipping")
			continue
		}
		if e.Role == "" {
			s.logger.Warn().Int("line", lineNum).Msg("History entry without role, skipping")
			continue
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	return entries, nil
}

// Save writes the full conversation to a temp file and renames it over the
// history file.
func (s *Store) Save(ctx context.Context, conv *Conversation) (err error) {
	_, span := tracing.StartSpan(ctx, "conversation.save",
		attribute.String("path", s.path),
		attribute.Int("entries", conv.Len()),
	)
	start := time.Now()
	defer func() {
		observability.RecordConversationSave(time.Since(start), conv.Len(), err)
		tracing.EndSpan(span, err)
	}()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, e := range conv.entries {
		if err := enc.Encode(e); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close history: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("failed to chmod history: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	s.logger.Debug().Int("entries", conv.Len()).Msg("Conversation saved")
	return nil
}

// Clear removes the history file.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete history file: %w", err)
	}
	s.logger.Info().Str("path", s.path).Msg("Conversation cleared")
	return nil
}
