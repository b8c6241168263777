package scenario

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// ComputeScenarioHash hashes a raw scenario document for reproducibility
// reporting. The document is canonicalized first (keys sorted, lists of
// objects sorted by id/name) so that formatting and key order do not
// change the hash. Returns the first world.HashLength hex characters.
func ComputeScenarioHash(raw []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", newError(CodeSchemaInvalid, nil, "cannot hash invalid JSON: %v", err)
	}
	canonical, err := json.Marshal(canonicalize(doc))
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize scenario: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%x", sum)[:world.HashLength], nil
}

// canonicalize sorts lists of keyed objects by id or name. Map keys are
// already emitted sorted by encoding/json.
func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = canonicalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = canonicalize(val)
		}
		sort.SliceStable(out, func(i, j int) bool {
			return listSortKey(out[i]) < listSortKey(out[j])
		})
		return out
	default:
		return v
	}
}

func listSortKey(v any) string {
	if m, ok := v.(map[string]any); ok {
		if id, ok := m["id"].(string); ok {
			return id
		}
		if name, ok := m["name"].(string); ok {
			return name
		}
		if target, ok := m["target"].(string); ok {
			return target
		}
	}
	return fmt.Sprintf("%v", v)
}
