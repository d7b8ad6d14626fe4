package geminidev

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role constants that represent the role of the message sender
const (
	RoleUser      = "user"
	RoleModel     = "model"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session carries the turns of a conversation between invocations. It is
// dumped to a flat JSON file when a history path is configured.
type Session struct {
	ID      string        `json:"id"`
	Model   string        `json:"model,omitempty"`
	Purpose string        `json:"purpose,omitempty"`
	Updated time.Time     `json:"updated"`
	Turns   []ChatMessage `json:"turns"`
}

func NewSession(model string) *Session {
	return &Session{
		ID:    uuid.NewString(),
		Model: model,
		Turns: []ChatMessage{},
	}
}

// LoadSession reads a history dump. A missing file starts a new session.
func LoadSession(path, model string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewSession(model), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", path, err)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Turns == nil {
		s.Turns = []ChatMessage{}
	}
	if model != "" {
		s.Model = model
	}
	return &s, nil
}

func (s *Session) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	s.Updated = time.Now().UTC()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// History returns a copy of the recorded turns.
func (s *Session) History() []ChatMessage {
	return slices.Clone(s.Turns)
}

func (s *Session) Record(role, content string) {
	s.Turns = append(s.Turns, ChatMessage{Role: role, Content: content})
}

// Rollback drops the most recent turn and returns what remains.
func (s *Session) Rollback() []ChatMessage {
	if len(s.Turns) > 0 {
		s.Turns = s.Turns[:len(s.Turns)-1]
	}
	return s.Turns
}
