// Package console formats terminal output with ANSI color escapes for the
// command line tools.
package console

import (
	"fmt"
	"io"
)

// Color escape sequences. Reset terminates any colored span.
const (
	Red     = "\033[91m"
	Green   = "\033[92m"
	Yellow  = "\033[93m"
	Blue    = "\033[94m"
	Magenta = "\033[95m"
	Cyan    = "\033[96m"
	White   = "\033[97m"
	Bold    = "\033[1m"
	Reset   = "\033[0m"
)

// Sprint returns s wrapped in the given color escape.
func Sprint(s, color string) string {
	return color + s + Reset
}

// SprintBold returns s wrapped in bold plus the given color escape.
func SprintBold(s, color string) string {
	return Bold + color + s + Reset
}

// Print writes s to stdout in the given color, followed by a newline.
func Print(s, color string) {
	fmt.Println(Sprint(s, color))
}

// PrintBold writes s to stdout in bold and the given color, followed by a
// newline.
func PrintBold(s, color string) {
	fmt.Println(SprintBold(s, color))
}

// Fprint writes s to w in the given color, followed by a newline.
func Fprint(w io.Writer, s, color string) {
	fmt.Fprintln(w, Sprint(s, color))
}
