package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Context      string
	Problem      string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates an error message with suggestions and help commands
//
//	❌ MODEL NOT FOUND: testapp.Actr
//
//	   Did you mean: testapp.Actor?
//
//	   → See all models: zcapi models
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		red.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if opts.Context != "" {
		red.Fprintf(&b, "❌ %s: %s\n", strings.ToUpper(opts.Context), opts.Problem)
	} else {
		red.Fprintf(&b, "❌ %s\n", opts.Problem)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// ModelNotFoundError reports an unknown "app.Model" reference
func ModelNotFoundError(ref string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "model not found",
		Problem:      ref,
		Suggestions:  suggestions,
		HelpCommands: []string{"See all models: zcapi models"},
		NoColor:      noColor,
	})
}

// ConfigError reports an invalid configuration
func ConfigError(err error, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "configuration error",
		Problem: err.Error(),
		HelpCommands: []string{
			"View config: cat zcapi.yml",
			"Get help: zcapi --help",
		},
		NoColor: noColor,
	})
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}
