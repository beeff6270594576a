package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders a message with suggestions and help commands.
//
// Example output:
//
//	❌ UNKNOWN ENTITY: usr
//	   Entity 'usr' is not declared in the fixture.
//
//	   Did you mean: users?
//
//	   → List entities: memdb inspect
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var head, body *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		head, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "⚠️"
	case ErrorLevelInfo:
		head, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "ℹ️"
	default:
		head, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "❌"
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		for _, c := range []*color.Color{head, body, yellow, cyan} {
			c.DisableColor()
		}
	}

	if opts.Context != "" {
		head.Fprintf(&b, "%s %s\n", symbol, strings.ToUpper(opts.Context))
		body.Fprintf(&b, "   %s\n", opts.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if opts.Consequence != "" {
		b.WriteString("\n")
		body.Fprintf(&b, "   %s\n", opts.Consequence)
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

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
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

// UnknownEntityError reports a name that no registered entity matches,
// suggesting the closest declared names
func UnknownEntityError(name string, known []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "unknown entity",
		Problem:     fmt.Sprintf("Entity '%s' is not declared in the fixture.", name),
		Suggestions: FindSimilar(name, known, nil),
		HelpCommands: []string{
			"List entities: memdb inspect",
		},
		NoColor: noColor,
	})
}

// UnknownRelationError reports an eager-load path naming no relation
func UnknownRelationError(entity, path string, known []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "unknown relation",
		Problem:     fmt.Sprintf("Entity '%s' has no relation '%s'.", entity, path),
		Suggestions: FindSimilar(path, known, nil),
		HelpCommands: []string{
			fmt.Sprintf("Show relations: memdb inspect %s", entity),
		},
		NoColor: noColor,
	})
}

// FixtureError reports a fixture that failed to load or seed
func FixtureError(path string, err error, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "fixture failed",
		Problem:     fmt.Sprintf("Cannot load '%s': %v", path, err),
		Consequence: "No entities were registered.",
		HelpCommands: []string{
			"Pass a fixture: memdb --fixture path/to/fixture.yaml",
			"Get help: memdb --help",
		},
		NoColor: noColor,
	})
}

// ConfigError creates a standardized configuration error
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "configuration error",
		Problem: message,
		HelpCommands: []string{
			"View config: cat memdb.yaml",
			"Get help: memdb --help",
		},
		NoColor: noColor,
	})
}

// Warning creates a standardized warning message
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelWarning, Problem: message, NoColor: noColor})
}

// Info creates a standardized info message
func Info(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelInfo, Problem: message, NoColor: noColor})
}
