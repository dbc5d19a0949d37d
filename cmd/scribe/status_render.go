package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 22
	statusIndent     = "  "
)

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"--", ansiBlue},
	statusOK:    {"ok", ansiGreen},
	statusWarn:  {"warn", ansiYellow},
	statusError: {"fail", ansiRed},
}

// renderStatusLine prints one aligned report row, e.g.
//
//	structuring            ok
//	ffmpeg                 warn  binary "ffmpeg" not found
func renderStatusLine(label string, kind statusKind, detail string, colorize bool) string {
	style := statusStyles[kind]
	var b strings.Builder
	b.WriteString(statusIndent)
	fmt.Fprintf(&b, "%-*s %-4s", statusLabelWidth, label, style.label)
	if detail != "" {
		b.WriteString(" ")
		b.WriteString(detail)
	}
	line := strings.TrimRight(b.String(), " ")
	if colorize && style.color != "" {
		return style.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("=", len(title))
	if colorize {
		title = ansiBlue + title + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{title, rule}
}

// shouldColorize reports whether ANSI colors are safe for the writer.
// NO_COLOR always wins; otherwise only real terminals get color.
func shouldColorize(writer io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
