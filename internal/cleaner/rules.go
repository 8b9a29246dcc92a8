package cleaner

import (
	"regexp"

	"aura-rag/internal/models"
)

// Rule is a named line pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// RuleSet is an ordered list of rules; a line matches the set when any rule matches.
type RuleSet struct {
	Name  string
	Rules []Rule
}

// NewRule compiles expr and panics on a bad pattern, like regexp.MustCompile.
func NewRule(name, expr string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(expr)}
}

// Match returns the name of the first rule matching line.
func (rs RuleSet) Match(line string) (string, bool) {
	for _, r := range rs.Rules {
		if r.Pattern.MatchString(line) {
			return r.Name, true
		}
	}
	return "", false
}

// DefaultHeaderFooterRules strips running heads, page labels and front-matter boilerplate.
func DefaultHeaderFooterRules() RuleSet {
	return RuleSet{
		Name: "header_footer",
		Rules: []Rule{
			NewRule("chapter_title", models.ChapterTitleRegex),
			NewRule("page_number", models.PageNumberRegex),
			NewRule("page_label", models.PageLabelRegex),
			NewRule("copyright", models.CopyrightRegex),
			NewRule("publisher", models.PublisherRegex),
			NewRule("education", models.EducationRegex),
			NewRule("rights_reserved", models.RightsReservedRegex),
			NewRule("uppercase_header", models.UppercaseHeaderRegex),
			NewRule("url", models.URLRegex),
			NewRule("isbn", models.ISBNRegex),
			NewRule("year", models.YearRegex),
		},
	}
}

// DefaultIrrelevantRules strips figure/table references, captions and back-matter markers.
func DefaultIrrelevantRules() RuleSet {
	return RuleSet{
		Name: "irrelevant",
		Rules: []Rule{
			NewRule("figure_ref", models.FigureRefRegex),
			NewRule("chart_ref", models.ChartRefRegex),
			NewRule("table_ref", models.TableRefRegex),
			NewRule("image_ref", models.ImageRefRegex),
			NewRule("figure_caption", models.FigureCaptionRegex),
			NewRule("table_caption", models.TableCaptionRegex),
			NewRule("chart_caption", models.ChartCaptionRegex),
			NewRule("source", models.SourceLineRegex),
			NewRule("references", models.ReferencesRegex),
			NewRule("bibliography", models.BibliographyRegex),
			NewRule("index", models.IndexRegex),
			NewRule("appendix", models.AppendixRegex),
		},
	}
}
