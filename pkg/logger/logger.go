package logger

import (
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Logger represents a debug logger for a specific namespace
type Logger struct {
	namespace string
	enabled   bool
	lastLog   time.Time
	mu        sync.Mutex
	color     string
}

var (
	// LOTAR_DEBUG environment variable value, read once at initialization
	debugEnv = os.Getenv("LOTAR_DEBUG")

	// NO_COLOR disables color output entirely (https://no-color.org)
	noColor = os.Getenv("NO_COLOR") != ""

	// Check if stderr is a terminal (for color support)
	isTTY = isatty.IsTerminal(os.Stderr.Fd())

	// Color palette - chosen to be readable on both light and dark backgrounds
	// Using ANSI 256-color codes for better compatibility
	colorPalette = []string{
		"\033[38;5;33m",  // Blue
		"\033[38;5;35m",  // Green
		"\033[38;5;166m", // Orange
		"\033[38;5;125m", // Purple
		"\033[38;5;37m",  // Cyan
		"\033[38;5;161m", // Magenta
		"\033[38;5;136m", // Yellow
		"\033[38;5;124m", // Red
	}

	colorReset = "\033[0m"
)

// New creates a new Logger for the given namespace.
// The enabled state is computed at construction time based on the LOTAR_DEBUG
// environment variable. LOTAR_DEBUG syntax follows the npm debug package:
//
//	LOTAR_DEBUG=*              - enables all loggers
//	LOTAR_DEBUG=task:*         - enables all loggers in a namespace
//	LOTAR_DEBUG=ns1,ns2        - enables specific namespaces
//	LOTAR_DEBUG=ns:*,-ns:skip  - enables namespace but excludes specific patterns
//
// Colors are assigned per namespace unless NO_COLOR is set or stderr is not a TTY.
func New(namespace string) *Logger {
	return &Logger{
		namespace: namespace,
		enabled:   computeEnabled(namespace),
		lastLog:   time.Now(),
		color:     selectColor(namespace),
	}
}

// selectColor selects a color for the namespace based on its hash
func selectColor(namespace string) string {
	if noColor || !isTTY {
		return ""
	}

	h := fnv.New32a()
	h.Write([]byte(namespace))
	return colorPalette[h.Sum32()%uint32(len(colorPalette))]
}

// Enabled returns whether this logger is enabled
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Printf prints a formatted message if the logger is enabled.
// A newline is always added at the end, and the time since the previous
// log line is appended like the debug npm package does.
func (l *Logger) Printf(format string, args ...interface{}) {
	if !l.enabled {
		return
	}
	l.emit(fmt.Sprintf(format, args...))
}

// Print prints a message if the logger is enabled.
func (l *Logger) Print(args ...interface{}) {
	if !l.enabled {
		return
	}
	l.emit(fmt.Sprint(args...))
}

func (l *Logger) emit(message string) {
	l.mu.Lock()
	now := time.Now()
	diff := now.Sub(l.lastLog)
	l.lastLog = now
	l.mu.Unlock()

	if l.color != "" {
		fmt.Fprintf(os.Stderr, "%s%s%s %s +%s\n", l.color, l.namespace, colorReset, message, formatDuration(diff))
	} else {
		fmt.Fprintf(os.Stderr, "%s %s +%s\n", l.namespace, message, formatDuration(diff))
	}
}

// formatDuration formats a duration for display like the debug npm package
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// computeEnabled computes whether a namespace matches the LOTAR_DEBUG patterns
func computeEnabled(namespace string) bool {
	enabled := false

	for _, pattern := range strings.Split(debugEnv, ",") {
		pattern = strings.TrimSpace(pattern)

		// Exclusions take precedence over any match
		if excl, ok := strings.CutPrefix(pattern, "-"); ok {
			if matchPattern(namespace, excl) {
				return false
			}
			continue
		}

		if matchPattern(namespace, pattern) {
			enabled = true
		}
	}

	return enabled
}

// matchPattern checks if a namespace matches a pattern.
// Supports a single wildcard (*) as prefix, suffix, or infix.
func matchPattern(namespace, pattern string) bool {
	if pattern == "*" || pattern == namespace {
		return true
	}

	if strings.Contains(pattern, "*") {
		if strings.HasSuffix(pattern, "*") {
			return strings.HasPrefix(namespace, strings.TrimSuffix(pattern, "*"))
		}
		if strings.HasPrefix(pattern, "*") {
			return strings.HasSuffix(namespace, strings.TrimPrefix(pattern, "*"))
		}
		parts := strings.SplitN(pattern, "*", 2)
		return strings.HasPrefix(namespace, parts[0]) && strings.HasSuffix(namespace, parts[1])
	}

	return false
}
