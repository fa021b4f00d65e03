package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Banner printed at the start of a run
const Banner = `
  ┌─┐┌─┐┌┐┌┌─┐┬  ┬ ┬┌┬┐┬
  ├┤ ├─┤│││└─┐│  └┬┘ │││
  └  ┴ ┴┘└┘└─┘┴─┘ ┴ ─┴┘┴─┘
`

const (
	ansiReset   = "\x1b[0m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
	ansiDim     = "\x1b[2m"
)

var (
	mu       sync.Mutex
	out      io.Writer = os.Stdout
	colorize           = isTerminal(os.Stdout)
	quiet    bool
)

// SetOutput redirects console output; colors follow whether w is a terminal
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	f, ok := w.(*os.File)
	colorize = ok && isTerminal(f)
}

// SetColor forces colors on or off
func SetColor(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	colorize = enabled
}

// SetQuiet suppresses everything but errors
func SetQuiet(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// IsQuietMode reports whether console output is suppressed
func IsQuietMode() bool {
	mu.Lock()
	defer mu.Unlock()
	return quiet
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Color functions for terminal output
var (
	Cyan    = paint(ansiCyan)
	Yellow  = paint(ansiYellow)
	Red     = paint(ansiRed)
	Green   = paint(ansiGreen)
	Magenta = paint(ansiMagenta)
	Dim     = paint(ansiDim)
)

// paint returns a function that wraps text in an ANSI color when colors are enabled
func paint(code string) func(string) string {
	return func(text string) string {
		mu.Lock()
		enabled := colorize
		mu.Unlock()
		if !enabled {
			return text
		}
		return code + text + ansiReset
	}
}

func printf(format string, args ...interface{}) {
	mu.Lock()
	w := out
	mu.Unlock()
	fmt.Fprintf(w, format, args...)
}

// PrintBanner prints the banner
func PrintBanner() {
	if IsQuietMode() {
		return
	}
	printf("%s", Cyan(Banner))
}

// PrintError prints an error message in red, even in quiet mode
func PrintError(msg string, detail string) {
	if detail != "" {
		msg += ": " + detail
	}
	printf("%s\n", Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if IsQuietMode() {
		return
	}
	printf("%s\n", Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	if IsQuietMode() {
		return
	}
	printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, detail string) {
	if IsQuietMode() {
		return
	}
	if detail != "" {
		msg += ": " + detail
	}
	printf("%s\n", Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if IsQuietMode() {
		return
	}
	printf("%s\n", Magenta(msg))
}
