// Package textnorm cleans raw text before it is typed.
package textnorm

import (
	"strings"
	"unicode"
)

const minIndentSpaces = 4

// Normalize strips trailing whitespace, collapses interior spaces and blank
// line runs, and trims the whole text. Indentation that starts with a tab or
// at least four spaces is kept verbatim. Normalize is idempotent.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = normalizeLine(line)
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func normalizeLine(line string) string {
	line = strings.TrimRightFunc(line, unicode.IsSpace)
	if line == "" {
		return ""
	}
	indent := leadingIndent(line)
	if !keepsIndent(indent) {
		return collapseSpaces(strings.TrimLeftFunc(line, unicode.IsSpace))
	}
	return indent + collapseSpaces(line[len(indent):])
}

// leadingIndent returns the prefix of spaces and tabs.
func leadingIndent(line string) string {
	end := strings.IndexFunc(line, func(r rune) bool {
		return r != ' ' && r != '\t'
	})
	if end < 0 {
		return line
	}
	return line[:end]
}

func keepsIndent(indent string) bool {
	if indent == "" {
		return false
	}
	if indent[0] == '\t' {
		return true
	}
	spaces := len(indent) - len(strings.TrimLeft(indent, " "))
	return spaces >= minIndentSpaces
}

func collapseSpaces(s string) string {
	if !strings.Contains(s, "  ") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
