package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/evcraddock/propdesk/internal/apiclient"
)

// executeCommand runs a command with the given args and captures output.
func executeCommand(args ...string) (string, error) {
	return executeCommandWithInput("", args...)
}

// executeCommandWithInput is executeCommand with stdin set to input.
func executeCommandWithInput(input string, args ...string) (string, error) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(input))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, sub := range []string{"handover", "snagging", "request", "serve", "login"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing %q", sub)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	root := NewRootCmd()

	formatFlag := root.PersistentFlags().Lookup("format")
	if formatFlag == nil {
		t.Fatal("expected --format flag to exist")
	}
	if formatFlag.DefValue != "text" {
		t.Errorf("expected --format default 'text', got %q", formatFlag.DefValue)
	}

	yesFlag := root.PersistentFlags().Lookup("yes")
	if yesFlag == nil {
		t.Fatal("expected --yes flag to exist")
	}
	if yesFlag.Shorthand != "y" {
		t.Errorf("expected -y shorthand, got %q", yesFlag.Shorthand)
	}
}

func TestReported(t *testing.T) {
	apiErr := &apiclient.Error{Message: "Unit not found", StatusCode: 404}
	if !Reported(fmt.Errorf("loading unit: %w", apiErr)) {
		t.Error("wrapped API error should count as reported")
	}
	if Reported(errors.New("not logged in")) {
		t.Error("local error should not count as reported")
	}
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"full word", "YES\n", true},
		{"no", "n\n", false},
		{"empty", "\n", false},
		{"eof", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := promptConfirmer(strings.NewReader(tt.input), &out)
			got, err := c.Confirm(context.Background(), "cancel handover h1?")
			if err != nil {
				t.Fatalf("confirm: %v", err)
			}
			if got != tt.want {
				t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if out.String() != "Cancel handover h1? [y/N] " {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}
