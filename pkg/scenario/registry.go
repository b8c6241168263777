package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// Entry is one registry record mapping a scenario id to its definition.
// An empty Path selects the built-in kitchen-morning world.
type Entry struct {
	ScenarioID         string   `yaml:"scenario_id"`
	Path               string   `yaml:"path"`
	Tags               []string `yaml:"tags"`
	RecommendedProfile string   `yaml:"recommended_profile"`
	Description        string   `yaml:"description"`
}

type registryFile struct {
	Scenarios []Entry `yaml:"scenarios"`
}

// Registry is the single source of truth for scenario_id resolution.
type Registry struct {
	path    string
	dir     string
	entries map[string]Entry
}

// LoadRegistry reads and parses a registry.yaml file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(CodeRegistryLoadError, map[string]string{"path": path},
			"failed to read registry file: %v", err)
	}
	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, newError(CodeRegistryLoadError, map[string]string{"path": path},
			"failed to parse registry file: %v", err)
	}
	r := &Registry{
		path:    path,
		dir:     filepath.Dir(path),
		entries: make(map[string]Entry, len(rf.Scenarios)),
	}
	for _, e := range rf.Scenarios {
		if e.ScenarioID != "" {
			r.entries[e.ScenarioID] = e
		}
	}
	return r, nil
}

// Resolve looks up a scenario id. Absence is a distinct error code from
// scenario-file-internal validation failures.
func (r *Registry) Resolve(scenarioID string) (Entry, error) {
	entry, ok := r.entries[scenarioID]
	if !ok {
		return Entry{}, newError(CodeRegistryMissing,
			map[string]string{"scenario_id": scenarioID},
			"scenario_id %q not found in registry (available: %v)", scenarioID, r.IDs())
	}
	return entry, nil
}

// IDs returns all registered scenario ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns all entries sorted by scenario id, optionally filtered by tag.
func (r *Registry) List(tags ...string) []Entry {
	var entries []Entry
	for _, id := range r.IDs() {
		e := r.entries[id]
		if len(tags) == 0 || hasAnyTag(e.Tags, tags) {
			entries = append(entries, e)
		}
	}
	return entries
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// Load resolves a scenario id and builds its initial world state.
// File-backed scenarios are schema-validated, checked for id mismatch
// against the registry, and integrity-validated. The returned hash is
// the scenario's reproducibility hash.
func (r *Registry) Load(scenarioID string) (*world.WorldState, Entry, string, error) {
	entry, err := r.Resolve(scenarioID)
	if err != nil {
		return nil, Entry{}, "", err
	}

	if entry.Path == "" {
		w := KitchenMorning()
		hash, err := w.Hash()
		if err != nil {
			return nil, Entry{}, "", fmt.Errorf("failed to hash built-in scenario: %w", err)
		}
		return w, entry, hash, nil
	}

	resolved := filepath.Join(r.dir, entry.Path)
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, Entry{}, "", newError(CodeScenarioFileNotFound,
			map[string]string{"scenario_id": scenarioID, "path": resolved},
			"scenario file not found: %v", err)
	}

	if err := ValidateDocument(raw); err != nil {
		return nil, Entry{}, "", err
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, Entry{}, "", newError(CodeSchemaInvalid,
			map[string]string{"scenario_id": scenarioID},
			"failed to decode scenario file: %v", err)
	}

	if f.ScenarioID != scenarioID {
		return nil, Entry{}, "", newError(CodeScenarioIDMismatch,
			map[string]string{"registry_id": scenarioID, "file_id": f.ScenarioID},
			"scenario_id mismatch: registry has %q but file contains %q", scenarioID, f.ScenarioID)
	}

	w, err := f.BuildWorld()
	if err != nil {
		return nil, Entry{}, "", err
	}

	hash, err := ComputeScenarioHash(raw)
	if err != nil {
		return nil, Entry{}, "", err
	}
	return w, entry, hash, nil
}
