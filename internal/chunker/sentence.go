package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"aura-rag/internal/models"
)

var sentenceEndRe = regexp.MustCompile(models.SentenceEndingRegex)

// SplitSentences cuts text at runs of . ! or ? followed by whitespace or the
// end of text. The terminators are consumed; fragments of minLength characters
// or fewer are dropped.
func SplitSentences(text string, minLength int) []string {
	var out []string
	for _, s := range sentenceEndRe.Split(text, -1) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) > minLength {
			out = append(out, s)
		}
	}
	return out
}
