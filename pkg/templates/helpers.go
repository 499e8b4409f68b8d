package templates

import (
	"strings"
	"text/template"
	"unicode/utf8"
)

// Funcs are available in every template.
var Funcs = template.FuncMap{
	"truncate": Truncate,
	"clean":    Clean,
	"indent":   Indent,
}

// Truncate shortens text to at most n runes, marking the cut with "...".
func Truncate(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	return string(r[:n]) + "..."
}

// Clean drops invalid UTF-8 and surrounding whitespace, which model output sometimes carries.
func Clean(text string) string {
	return strings.TrimSpace(strings.ToValidUTF8(text, ""))
}

// Indent prefixes every line of text with pad.
func Indent(pad, text string) string {
	if text == "" {
		return ""
	}
	return pad + strings.ReplaceAll(text, "\n", "\n"+pad)
}
