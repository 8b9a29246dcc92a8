package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"aura-rag/internal/models"

	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Extractor turns a source file into pages.
type Extractor interface {
	ExtractDocument(filePath string) (models.Document, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(filePath string) (models.Document, error)

func (f ExtractorFunc) ExtractDocument(filePath string) (models.Document, error) {
	return f(filePath)
}

// Default dispatches on the file extension.
var Default Extractor = ExtractorFunc(ExtractDocument)

// SupportedExtensions lists the extensions ExtractDocument understands.
var SupportedExtensions = []string{".pdf", ".docx", ".pptx", ".xlsx", ".xlsm", ".xltx", ".md", ".txt"}

// IsSupported reports whether the file has a known extension.
func IsSupported(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ExtractDocument reads the file at filePath into an ordered list of pages.
// The document name is the file name without its extension.
func ExtractDocument(filePath string) (models.Document, error) {
	doc := models.Document{Name: Stem(filePath)}

	var (
		pages []models.Page
		err   error
	)
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		pages, err = parsePDF(filePath)
	case ".docx":
		pages, err = parseDOCX(filePath)
	case ".pptx":
		pages, err = parsePPTX(filePath)
	case ".xlsx":
		pages, err = parseXLSX(filePath)
	case ".xlsm", ".xltx":
		pages, err = parseExcelize(filePath)
	case ".md":
		pages, err = parseMarkdown(filePath)
	case ".txt":
		pages, err = parseText(filePath)
	default:
		return doc, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return doc, fmt.Errorf("failed to extract %s: %w", filePath, err)
	}
	doc.Pages = pages
	return doc, nil
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func parseDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	texts, err := extractXMLText(strings.NewReader(r.Editable().GetContent()), true)
	if err != nil {
		return nil, err
	}
	return toPages(texts), nil
}

func parsePPTX(filePath string) ([]models.Page, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		name := file.Name
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: num, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var texts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, err
		}
		slideText, err := extractXMLText(rc, false)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.num, err)
		}
		texts = append(texts, strings.Join(slideText, "\n"))
	}
	return toPages(texts), nil
}

func parseXLSX(filePath string) ([]models.Page, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, sheet := range f.Sheets {
		var b strings.Builder
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			b.WriteString(strings.Join(cells, " "))
			b.WriteString("\n")
		}
		texts = append(texts, b.String())
	}
	return toPages(texts), nil
}

func parseExcelize(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var texts []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var b strings.Builder
		for _, row := range rows {
			b.WriteString(strings.Join(row, " "))
			b.WriteString("\n")
		}
		texts = append(texts, b.String())
	}
	return toPages(texts), nil
}

// parseMarkdown walks the goldmark AST and keeps only text content.
// Thematic breaks (---) start a new page.
func parseMarkdown(filePath string) ([]models.Page, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(src))

	var (
		texts []string
		b     strings.Builder
	)
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.ThematicBreak:
			if entering {
				texts = append(texts, b.String())
				b.Reset()
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteString("\n")
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		default:
			if !entering && n.Type() == ast.TypeBlock {
				b.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	texts = append(texts, b.String())
	return toPages(texts), nil
}

// parseText reads pre-extracted text. Form feeds separate pages.
func parseText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return toPages(strings.Split(string(data), "\f")), nil
}

// extractXMLText collects the character data of <t> elements in an Office
// Open XML part, one entry per <p> paragraph. With pageBreaks set, a
// <br type="page"/> closes the current page and the result holds one entry
// per page instead.
func extractXMLText(r io.Reader, pageBreaks bool) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		out       []string
		page      strings.Builder
		paragraph bytes.Buffer
		inText    bool
	)
	flushParagraph := func() {
		if p := strings.TrimSpace(paragraph.String()); p != "" {
			if pageBreaks {
				page.WriteString(p)
				page.WriteString("\n")
			} else {
				out = append(out, p)
			}
		}
		paragraph.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				paragraph.WriteString(" ")
			case "br":
				if pageBreaks && isPageBreak(t) {
					flushParagraph()
					out = append(out, page.String())
					page.Reset()
				} else {
					paragraph.WriteString(" ")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flushParagraph()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	flushParagraph()
	if pageBreaks {
		out = append(out, page.String())
	}
	return out, nil
}

func isPageBreak(el xml.StartElement) bool {
	for _, a := range el.Attr {
		if a.Name.Local == "type" && a.Value == "page" {
			return true
		}
	}
	return false
}

func toPages(texts []string) []models.Page {
	pages := make([]models.Page, 0, len(texts))
	for i, t := range texts {
		pages = append(pages, models.Page{PageNumber: i + 1, Text: t})
	}
	return pages
}
