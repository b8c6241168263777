package gm

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// ResolutionMethod records how a target string was mapped onto a world id.
type ResolutionMethod string

const (
	ResolveExact   ResolutionMethod = "exact"
	ResolveAlias   ResolutionMethod = "alias"
	ResolveDerived ResolutionMethod = "derived"
	ResolveNone    ResolutionMethod = "none"
)

// normalizeName folds width variants (half-width katakana, full-width
// latin) and applies NFKC so that LLM output and scenario names compare
// equal regardless of input method.
func normalizeName(s string) string {
	return strings.TrimSpace(norm.NFKC.String(width.Fold.String(s)))
}

// resolveObject maps a query string onto an existing object id:
// exact name, then registered alias, then unambiguous derived
// (substring) match. It only ever returns ids already present in the
// world; resolution is a normalization layer, never world expansion.
func resolveObject(query string, w *world.WorldState) (string, ResolutionMethod) {
	q := normalizeName(query)
	if q == "" {
		return "", ResolveNone
	}

	ids := sortedKeys(w.Objects)

	for _, id := range ids {
		if normalizeName(w.Objects[id].Name) == q {
			return id, ResolveExact
		}
	}

	for _, id := range ids {
		for _, alias := range w.Objects[id].Aliases {
			if normalizeName(alias) == q {
				return id, ResolveAlias
			}
		}
	}

	var candidates []string
	for _, id := range ids {
		name := normalizeName(w.Objects[id].Name)
		if strings.Contains(name, q) || strings.Contains(q, name) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], ResolveDerived
	}
	return "", ResolveNone
}

// resolveLocation maps a query string onto an existing location id.
// Locations carry no alias tables; id or display name counts as exact,
// followed by the same unambiguous-substring derived match.
func resolveLocation(query string, w *world.WorldState) (string, ResolutionMethod) {
	q := normalizeName(query)
	if q == "" {
		return "", ResolveNone
	}

	ids := sortedKeys(w.Locations)
	for _, id := range ids {
		if normalizeName(id) == q || normalizeName(w.Locations[id].Name) == q {
			return id, ResolveExact
		}
	}

	var candidates []string
	for _, id := range ids {
		name := normalizeName(w.Locations[id].Name)
		if strings.Contains(name, q) || strings.Contains(q, name) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], ResolveDerived
	}
	return "", ResolveNone
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
