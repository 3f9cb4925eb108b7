package cli

// This file contains helpers for processing command line arguments.

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/perfgo/subsetter/model"
)

// removeFirstDashDash drops a leading "--" that separates the runner
// arguments from the options.
func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

// parseKeyValues parses repeated key=value options.
func parseKeyValues(option string, in []string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for _, kv := range in {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, model.Usagef("invalid --%s %q: expected key=value", option, kv)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// readMapping loads the JSON object of --prioritized-tests-mapping.
func readMapping(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.Usagef("failed to read --prioritized-tests-mapping: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, model.Usagef("--prioritized-tests-mapping %s is not a JSON object: %v", path, err)
	}
	return m, nil
}
