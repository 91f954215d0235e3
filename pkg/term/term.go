// Package term sizes progress output for the terminal it runs in, using
// golang.org/x/term to detect TTY width and falling back to a fixed
// default otherwise.
package term

import (
	"os"

	"golang.org/x/term"
)

// MaxWidth is the hard ceiling on progress line width regardless of how
// wide the actual terminal is.
const MaxWidth = 300

// defaultWidth is used when stdout isn't a TTY (redirected to a file/pipe)
// or the size query fails.
const defaultWidth = 80

// Width returns the current stdout width, capped at MaxWidth and floored
// at defaultWidth when the terminal size can't be determined.
func Width() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}

	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	if w > MaxWidth {
		return MaxWidth
	}
	return w
}

// Truncate shortens line to fit within width, appending an ellipsis marker
// when truncation occurs. width is clamped to MaxWidth.
func Truncate(line string, width int) string {
	if width > MaxWidth {
		width = MaxWidth
	}
	if width <= 0 || len(line) <= width {
		return line
	}
	if width <= 1 {
		return line[:width]
	}
	return line[:width-1] + "…"
}

// Frame wraps line between separator bars sized to width, mirroring the
// separator-framed progress block described for Sakura's progress output.
func Frame(line string, width int) string {
	if width > MaxWidth {
		width = MaxWidth
	}
	if width <= 0 {
		width = defaultWidth
	}
	sep := make([]byte, width)
	for i := range sep {
		sep[i] = '-'
	}
	return string(sep) + "\n" + Truncate(line, width) + "\n" + string(sep)
}
