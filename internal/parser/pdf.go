package parser

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"aura-rag/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// Runs outside this font size range are footnotes, captions or display headers.
const (
	minFontSize = 8.0
	maxFontSize = 24.0
)

func parsePDF(filePath string) ([]models.Page, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages := make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := pageText(page)
		if err != nil {
			// one unreadable page does not sink the book
			log.Warn().Err(err).Str("file", filePath).Int("page", i).Msg("failed to extract page text")
			continue
		}
		pages = append(pages, models.Page{
			PageNumber: i,
			Text:       content,
			ImageCount: countImages(page),
		})
	}
	return pages, nil
}

// pageText lays out the page's glyphs into lines, falling back to the
// library's plain text when no glyph survives the font filter.
func pageText(page pdf.Page) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf content panic: %v", r)
		}
	}()

	if lines := layoutRows(page.Content().Text); len(lines) > 0 {
		return strings.Join(lines, "\n"), nil
	}
	return page.GetPlainText(nil)
}

// layoutRows groups glyph runs into rows by baseline, top to bottom, and
// orders each row left to right. A gap wider than a fraction of the font
// size becomes a space.
func layoutRows(texts []pdf.Text) []string {
	type row struct {
		y     float64
		texts []pdf.Text
	}
	var rows []*row
	byY := map[float64]*row{}
	for _, t := range texts {
		if t.FontSize < minFontSize || t.FontSize > maxFontSize {
			continue
		}
		y := math.Round(t.Y)
		r, ok := byY[y]
		if !ok {
			r = &row{y: y}
			byY[y] = r
			rows = append(rows, r)
		}
		r.texts = append(r.texts, t)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		sort.SliceStable(r.texts, func(i, j int) bool { return r.texts[i].X < r.texts[j].X })
		var b strings.Builder
		end := math.Inf(-1)
		for _, t := range r.texts {
			if b.Len() > 0 && t.X-end > t.FontSize*0.2 && !strings.HasSuffix(b.String(), " ") {
				b.WriteString(" ")
			}
			b.WriteString(t.S)
			end = t.X + t.W
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// countImages counts the image XObjects referenced by the page resources.
func countImages(page pdf.Page) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()

	xobjects := page.Resources().Key("XObject")
	if xobjects.IsNull() {
		return 0
	}
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			n++
		}
	}
	return n
}
