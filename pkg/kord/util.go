package kord

import "strings"

var kmarkdownEscaper = strings.NewReplacer(
	`*`, `\*`,
	`~`, `\~`,
	`[`, `\[`,
	`]`, `\]`,
	`(`, `\(`,
	`)`, `\)`,
	`>`, `\>`,
	`-`, `\-`,
	`\`, `\\`,
	`:`, `\:`,
	"`", "\\`",
)

// EscapeKMarkdown escapes user-supplied text so it renders literally in
// KMarkdown replies.
func EscapeKMarkdown(text string) string {
	return kmarkdownEscaper.Replace(text)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
