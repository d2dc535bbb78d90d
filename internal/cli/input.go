package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evcraddock/propdesk/internal/workflow"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// parseTime accepts RFC 3339 or a local date with optional minutes.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use YYYY-MM-DD or YYYY-MM-DD HH:MM)", s)
}

// optionalTime parses s when non-empty.
func optionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// splitItem parses a "Category:Label[:Extra]" flag value.
func splitItem(s string) (category, label, extra string, err error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", "", fmt.Errorf("invalid item %q (use Category:Label)", s)
	}
	if len(parts) == 3 {
		extra = strings.TrimSpace(parts[2])
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), extra, nil
}

// readItems decodes a YAML or JSON list of items into dst. Keys use the API's
// JSON names, e.g. expectedValue.
func readItems(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading items: %w", err)
	}
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	// Round-trip through JSON so the struct tags apply.
	buf, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// parsePriority normalises a --priority value. Empty stays empty.
func parsePriority(s string) (workflow.Priority, error) {
	if s == "" {
		return "", nil
	}
	p := workflow.Priority(strings.ToUpper(s))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority %q (use LOW, MEDIUM, HIGH or URGENT)", s)
	}
	return p, nil
}
