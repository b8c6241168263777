package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/duotalk/duo-talk-gm/pkg/scenario"
)

// validate checks a registry file and every scenario it references, or
// a single scenario file when given a .json path.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <registry.yaml | scenario.json>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	var err error
	if strings.HasSuffix(filename, ".json") {
		err = validateScenarioFile(filename)
	} else {
		err = validateRegistry(filename)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Valid!")
}

func validateScenarioFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	if err := scenario.ValidateDocument(data); err != nil {
		return err
	}

	var f scenario.File
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("file %s failed JSON unmarshaling: %w", filename, err)
	}

	if _, err := f.BuildWorld(); err != nil {
		return err
	}

	hash, err := scenario.ComputeScenarioHash(data)
	if err != nil {
		return err
	}
	fmt.Printf("  scenario_id: %s\n  hash: %s\n", f.ScenarioID, hash)
	return nil
}

func validateRegistry(filename string) error {
	fmt.Printf("Validating registry %s...\n", filename)

	registry, err := scenario.LoadRegistry(filename)
	if err != nil {
		return err
	}

	var failed bool
	for _, id := range registry.IDs() {
		w, entry, hash, err := registry.Load(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: FAILED: %v\n", id, err)
			failed = true
			continue
		}
		path := entry.Path
		if path == "" {
			path = "(builtin)"
		} else {
			path = filepath.Clean(path)
		}
		fmt.Printf("  %s: ok (%s, %d locations, %d objects, hash %s)\n",
			id, path, len(w.Locations), len(w.Objects), hash)
	}
	if failed {
		return fmt.Errorf("one or more scenarios failed validation")
	}
	return nil
}
