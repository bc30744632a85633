package session

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/starford/jotpad/internal/models"
)

// CountStats computes the live counters for editor text.
func CountStats(text string) models.Stats {
	chars := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	return models.Stats{
		Characters: chars,
		Words:      words,
		CharLabel:  plural(chars, "character"),
		WordLabel:  plural(words, "word"),
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// preview returns the first n characters of content, or a placeholder.
func preview(content string, n int) string {
	if content == "" {
		return "Empty note"
	}
	r := []rune(content)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
