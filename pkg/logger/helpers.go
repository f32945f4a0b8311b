package logger

import (
	"fmt"
	"io"
	"strings"
)

// Icons used by mission and CLI output
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconRocket  = "🚀"
	IconLanding = "🛬"
	IconTarget  = "🎯"
	IconLock    = "🔒"
	IconLink    = "📡"
	IconClock   = "⏱️"
	IconDot     = "•"
)

// Success logs an info message prefixed with a checkmark
func Success(args ...interface{}) {
	defaultLogger.Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// LogSection prints a visual section header to w
func LogSection(w io.Writer, title string) {
	line := strings.Repeat("=", 50)
	if noColor() {
		_, _ = fmt.Fprintf(w, "%s\n%s\n%s\n", line, title, line)
		return
	}
	_, _ = fmt.Fprintf(w, "%s%s%s\n%s%s%s%s\n%s%s%s\n",
		colorCyan, line, colorReset,
		colorCyan, colorBold, title, colorReset,
		colorCyan, line, colorReset)
}

// LogKeyValue prints an aligned key/value pair to w
func LogKeyValue(w io.Writer, key string, value interface{}) {
	if noColor() {
		_, _ = fmt.Fprintf(w, "%-22s %v\n", key+":", value)
		return
	}
	_, _ = fmt.Fprintf(w, "%s%-22s%s %v\n", colorCyan, key+":", colorReset, value)
}

func noColor() bool {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		defer l.out.mu.Unlock()
		return l.out.noColor
	}
	return true
}

// Table is a simple fixed-width table for CLI output
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Print writes the table to w
func (t *Table) Print(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			b.WriteString(fmt.Sprintf("%-*s  ", widths[i], cell))
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	writeRow(t.headers)
	sep := make([]string, len(widths))
	for i, wd := range widths {
		sep[i] = strings.Repeat("-", wd)
	}
	writeRow(sep)
	for _, row := range t.rows {
		writeRow(row)
	}
}
