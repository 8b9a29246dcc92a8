package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractDocumentUnsupported(t *testing.T) {
	_, err := ExtractDocument("book.epub")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, IsSupported("book.epub"))
	assert.True(t, IsSupported("Book.PDF"))
}

func TestExtractTextSplitsOnFormFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("first page\fsecond page\fthird"), 0o644))

	doc, err := ExtractDocument(path)
	require.NoError(t, err)

	assert.Equal(t, "Sample", doc.Name)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, 1, doc.Pages[0].PageNumber)
	assert.Equal(t, "second page", doc.Pages[1].Text)
	assert.Equal(t, 3, doc.Pages[2].PageNumber)
}

func TestExtractMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	src := "# Coping\n\nBreathing **slowly** helps.\n\n---\n\nSecond page text.\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	doc, err := ExtractDocument(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	assert.Contains(t, doc.Pages[0].Text, "Coping")
	assert.Contains(t, doc.Pages[0].Text, "Breathing slowly helps.")
	assert.NotContains(t, doc.Pages[0].Text, "**")
	assert.Contains(t, doc.Pages[1].Text, "Second page text.")
}

func TestExtractDOCXPageBreaks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "essay.docx")
	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Attachment theory</w:t></w:r><w:r><w:t xml:space="preserve"> basics.</w:t></w:r></w:p>
<w:p><w:r><w:br w:type="page"/></w:r></w:p>
<w:p><w:r><w:t>Second page.</w:t></w:r></w:p>
</w:body></w:document>`
	writeZip(t, path, map[string]string{
		"word/document.xml":            body,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships/>`,
	})

	doc, err := ExtractDocument(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "Attachment theory basics.\n", doc.Pages[0].Text)
	assert.Equal(t, "Second page.\n", doc.Pages[1].Text)
}

func TestExtractPPTXOrdersSlides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	slide := func(s string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><a:p><a:r><a:t>` + s + `</a:t></a:r></a:p></p:sld>`
	}
	writeZip(t, path, map[string]string{
		"ppt/slides/slide10.xml":           slide("ten"),
		"ppt/slides/slide2.xml":            slide("two"),
		"ppt/slides/slide1.xml":            slide("one"),
		"ppt/slides/_rels/slide1.xml.rels": "<Relationships/>",
	})

	doc, err := ExtractDocument(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, "one", doc.Pages[0].Text)
	assert.Equal(t, "two", doc.Pages[1].Text)
	assert.Equal(t, "ten", doc.Pages[2].Text)
}

func TestExtractWorkbookSheetsArePages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.xlsm")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "midterm"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "week 8"))
	_, err := f.NewSheet("Sheet2")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Sheet2", "A1", "finals"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	doc, err := ExtractDocument(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "midterm week 8", strings.TrimSpace(doc.Pages[0].Text))
	assert.Equal(t, "finals", strings.TrimSpace(doc.Pages[1].Text))
}

func TestLayoutRowsFiltersFontSizeAndOrders(t *testing.T) {
	glyphs := []pdf.Text{
		{FontSize: 10, X: 60, Y: 700, W: 20, S: "world"},
		{FontSize: 10, X: 10, Y: 700.2, W: 25, S: "hello"},
		{FontSize: 6, X: 10, Y: 50, W: 40, S: "footnote"},
		{FontSize: 30, X: 10, Y: 760, W: 90, S: "CHAPTER"},
		{FontSize: 10, X: 10, Y: 680, W: 10, S: "ne"},
		{FontSize: 10, X: 20, Y: 680, W: 10, S: "xt"},
	}

	lines := layoutRows(glyphs)
	assert.Equal(t, []string{"hello world", "next"}, lines)
}
