// Package registry persists the mapping from agent name to system prompt.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ashureev/agentchat/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultPrompt seeds the default agent when the document does not define it.
const DefaultPrompt = "You are a research assistant that will help generate a research paper. " +
	"Answer the user query and use necessary tools."

// Store is the in-memory view of the agent document.
type Store struct {
	mu     sync.RWMutex
	path   string
	agents map[string]string
}

// New returns an empty store bound to path.
func New(path string) *Store {
	return &Store{path: path, agents: make(map[string]string)}
}

// Load reads the agent document at path. A missing or malformed document
// yields an empty store; the reason is logged rather than returned.
func Load(path string) *Store {
	s := New(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Agent registry not found, starting empty", "path", path)
		} else {
			slog.Warn("Agent registry unreadable, starting empty", "path", path, "error", err)
		}
		return s
	}

	agents, err := decode(path, data)
	if err != nil {
		slog.Warn("Agent registry malformed, starting empty", "path", path, "error", err)
		return s
	}
	s.agents = agents
	slog.Info("Agent registry loaded", "path", path, "agents", len(agents))
	return s
}

// Names returns the agent names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.agents))
	for name := range s.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a registered agent.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.agents[name]
	return ok
}

// Get returns the definition for name.
func (s *Store) Get(name string) (domain.AgentDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prompt, ok := s.agents[name]
	if !ok {
		return domain.AgentDefinition{}, false
	}
	return domain.AgentDefinition{Name: name, SystemPrompt: prompt}, true
}

// Len returns the number of registered agents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// Put adds or replaces an agent in memory. Call Save to persist it.
func (s *Store) Put(name, prompt string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	s.mu.Lock()
	s.agents[name] = prompt
	s.mu.Unlock()
	return nil
}

// EnsureDefault registers name with DefaultPrompt when it is missing and
// persists the document. It reports whether the document changed.
func (s *Store) EnsureDefault(name string) (bool, error) {
	if s.Has(name) {
		return false, nil
	}
	if err := s.Put(name, DefaultPrompt); err != nil {
		return false, err
	}
	slog.Warn("Default agent missing from registry, seeding it", "agent", name, "path", s.path)
	if err := s.Save(); err != nil {
		return true, err
	}
	return true, nil
}

// Save overwrites the document with the current agents. The write goes
// through a temporary file in the same directory followed by a rename.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := encode(s.path, s.agents)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode agent registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".agents-*")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp registry: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace agent registry: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func decode(path string, data []byte) (map[string]string, error) {
	agents := make(map[string]string)
	var err error
	if isYAML(path) {
		err = yaml.Unmarshal(data, &agents)
	} else {
		err = json.Unmarshal(data, &agents)
	}
	if err != nil {
		return nil, err
	}
	if agents == nil {
		agents = make(map[string]string)
	}
	return agents, nil
}

func encode(path string, agents map[string]string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(agents)
	}
	return json.MarshalIndent(agents, "", "    ")
}
