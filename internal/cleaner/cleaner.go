package cleaner

import (
	"bufio"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"aura-rag/internal/helper"
	"aura-rag/internal/models"

	"github.com/rs/zerolog/log"
)

var (
	whitespaceRe       = regexp.MustCompile(`\s+`)
	camelJoinRe        = regexp.MustCompile(`([a-z])([A-Z])`)
	wordDigitRe        = regexp.MustCompile(`(\w)(\d)`)
	digitWordRe        = regexp.MustCompile(`(\d)(\w)`)
	spaceBeforePunctRe = regexp.MustCompile(`\s+([.,;:!?])`)
	punctLetterRe      = regexp.MustCompile(`([.,;:!?])([A-Za-z])`)
)

// Normalizer strips layout noise from raw page text.
type Normalizer struct {
	HeaderFooter  RuleSet
	Irrelevant    RuleSet
	MinLineLength int

	MaxPageImages       int
	MinRawPageWords     int
	MinCleanedPageWords int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		HeaderFooter:        DefaultHeaderFooterRules(),
		Irrelevant:          DefaultIrrelevantRules(),
		MinLineLength:       models.MinLineLength,
		MaxPageImages:       models.MaxPageImages,
		MinRawPageWords:     models.MinRawPageWords,
		MinCleanedPageWords: models.MinCleanedPageWords,
	}
}

// Stats counts what happened to a document's pages.
type Stats struct {
	TotalPages   int
	KeptPages    int
	ImageHeavy   int
	TooSparse    int
	EmptyCleaned int
}

// KeepLine reports whether a trimmed line survives the line filters.
func (n *Normalizer) KeepLine(line string) bool {
	if _, ok := n.HeaderFooter.Match(line); ok {
		return false
	}
	if _, ok := n.Irrelevant.Match(line); ok {
		return false
	}
	length := utf8.RuneCountInString(line)
	if length < n.MinLineLength {
		return false
	}
	digits := 0
	for _, r := range line {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits*2 <= length
}

// Normalize filters text line by line and rewrites the survivors into a single
// lowercased line with regular spacing.
func (n *Normalizer) Normalize(text string) string {
	var kept []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !n.KeepLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return rewrite(strings.Join(kept, " "))
}

func rewrite(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = camelJoinRe.ReplaceAllString(s, "${1} ${2}")
	s = wordDigitRe.ReplaceAllString(s, "${1} ${2}")
	s = digitWordRe.ReplaceAllString(s, "${1} ${2}")
	s = spaceBeforePunctRe.ReplaceAllString(s, "${1}")
	s = punctLetterRe.ReplaceAllString(s, "${1} ${2}")
	return strings.TrimSpace(strings.ToLower(s))
}

// CleanDocument applies the page filters and normalizes the surviving pages,
// joining them with a blank line.
func (n *Normalizer) CleanDocument(doc models.Document) (string, Stats) {
	stats := Stats{TotalPages: len(doc.Pages)}
	var pages []string
	for _, page := range doc.Pages {
		if page.ImageCount > n.MaxPageImages {
			stats.ImageHeavy++
			log.Debug().Str("book", doc.Name).Int("page", page.PageNumber).Int("images", page.ImageCount).Msg("skipping image-heavy page")
			continue
		}
		if len(strings.Fields(page.Text)) < n.MinRawPageWords {
			stats.TooSparse++
			continue
		}
		cleaned := n.Normalize(page.Text)
		if len(strings.Fields(cleaned)) < n.MinCleanedPageWords {
			stats.EmptyCleaned++
			continue
		}
		pages = append(pages, cleaned)
	}
	stats.KeptPages = len(pages)
	return strings.Join(pages, "\n\n"), stats
}

// CleanedPath is where the cleaned text of a book is written.
func CleanedPath(dir, bookName string) string {
	return filepath.Join(dir, bookName+models.CleanedSuffix)
}

// WriteCleaned writes the cleaned book text and returns its path.
func WriteCleaned(dir, bookName, text string) (string, error) {
	path := CleanedPath(dir, bookName)
	if err := helper.WriteTextFile(path, text); err != nil {
		return "", err
	}
	return path, nil
}
