package ui

import (
	"errors"
	"strings"
	"testing"
)

func TestModelNotFoundError(t *testing.T) {
	msg := ModelNotFoundError("testapp.Actr", []string{"testapp.Actor"}, true)

	for _, expected := range []string{
		"MODEL NOT FOUND: testapp.Actr",
		"Did you mean: testapp.Actor?",
		"→ See all models: zcapi models",
	} {
		if !strings.Contains(msg, expected) {
			t.Errorf("message missing %q:\n%s", expected, msg)
		}
	}
}

func TestFormatError_NoSuggestions(t *testing.T) {
	msg := FormatError(ErrorOptions{Problem: "boom", NoColor: true})

	if msg != "❌ boom\n" {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestConfigError(t *testing.T) {
	msg := ConfigError(errors.New("server.port must be between 0 and 65535"), true)

	if !strings.Contains(msg, "CONFIGURATION ERROR: server.port") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestFormatSuccess(t *testing.T) {
	if got := FormatSuccess("created 4 tables", true); got != "✓ created 4 tables" {
		t.Errorf("unexpected message %q", got)
	}
}
