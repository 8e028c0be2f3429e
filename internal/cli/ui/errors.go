package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of an error message
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
	Detail       string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates a standardized error message with suggestions and help commands
//
// Example output:
//
//	✗ UNKNOWN PROPERTY: publishAt
//	   NodesSources has no property 'publishAt'.
//
//	   Did you mean: publishedAt?
//
//	   → List resources: criteriac validate
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "!"
	case ErrorLevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "i"
	default:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "✗"
	}

	if opts.NoColor {
		headerColor.DisableColor()
		bodyColor.DisableColor()
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s\n", symbol, strings.ToUpper(opts.Context))
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}
	if opts.Context != "" && opts.Problem != "" {
		bodyColor.Fprintf(&b, "   %s\n", opts.Problem)
	}
	if opts.Detail != "" {
		fmt.Fprintf(&b, "   %s\n", opts.Detail)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
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

// ResourceNotFoundError reports a resource missing from the schema
func ResourceNotFoundError(resource string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "unknown resource",
		Problem:      fmt.Sprintf("Cannot find resource '%s'.", resource),
		Suggestions:  suggestions,
		HelpCommands: []string{"Check the schema: criteriac validate"},
		NoColor:      noColor,
	})
}

// PropertyNotFoundError reports a criteria key that does not resolve
func PropertyNotFoundError(resource, property string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "unknown property",
		Problem:     fmt.Sprintf("%s has no property '%s'.", resource, property),
		Suggestions: suggestions,
		HelpCommands: []string{
			"Check the schema: criteriac validate",
			"List content types: criteriac types",
		},
		NoColor: noColor,
	})
}

// CriteriaError reports criteria that failed to compile for another reason
func CriteriaError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "invalid criteria",
		Problem:      message,
		HelpCommands: []string{"Get help: criteriac compile --help"},
		NoColor:      noColor,
	})
}

// ConfigError creates a standardized configuration error
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "configuration error",
		Problem:      message,
		HelpCommands: []string{"View config: cat criteria.yml"},
		NoColor:      noColor,
	})
}

// Warning creates a standardized warning message
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelWarning, Problem: message, NoColor: noColor})
}
