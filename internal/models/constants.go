package models

// Chunking defaults shared by the cleaner, chunker and ingest stages.
const (
	MinLineLength       = 20
	MinSentenceLength   = 20
	SentenceWindowSize  = 3
	SimilarityThreshold = 0.75
	MinChunkSize        = 100
	MaxChunkSize        = 1000
	MinStoredTextLength = 10
	InsertBatchSize     = 10
	MaxDocumentIDLength = 50

	MaxPageImages          = 5
	MinRawPageWords        = 50
	MinCleanedPageWords    = 30
	ChunkingMethodSemantic = "semantic"
)

// File naming used between pipeline stages.
const (
	CleanedSuffix        = "_cleaned.txt"
	SemanticChunksSuffix = "_semantic_chunks.json"
	ChunksTextSuffix     = "_chunks.txt"
)

// Header/footer line patterns. Each one must match from the start of a trimmed line.
const (
	ChapterTitleRegex    = `(?i)^chapter \d+.*$`
	PageNumberRegex      = `^\d+\s*$`
	PageLabelRegex       = `(?i)^page \d+.*$`
	CopyrightRegex       = `(?i)^.*copyright.*$`
	PublisherRegex       = `(?i)^.*mcgraw-hill.*$`
	EducationRegex       = `(?i)^.*education.*$`
	RightsReservedRegex  = `(?i)^.*all rights reserved.*$`
	UppercaseHeaderRegex = `^[A-Z\s]{10,}$`
	URLRegex             = `(?i)^\s*www\..*$`
	ISBNRegex            = `(?i)^\s*isbn.*$`
	YearRegex            = `^\s*\d{4}\s*$`
)

// Irrelevant content patterns, matched anywhere in a line.
const (
	FigureRefRegex     = `(?i)\[figure \d+.*?\]`
	ChartRefRegex      = `(?i)\[chart \d+.*?\]`
	TableRefRegex      = `(?i)\[table \d+.*?\]`
	ImageRefRegex      = `(?i)\[image \d+.*?\]`
	FigureCaptionRegex = `(?i)figure \d+\.\d+.*`
	TableCaptionRegex  = `(?i)table \d+\.\d+.*`
	ChartCaptionRegex  = `(?i)chart \d+\.\d+.*`
	SourceLineRegex    = `(?i)source:.*`
	ReferencesRegex    = `(?i)references\s*$`
	BibliographyRegex  = `(?i)bibliography\s*$`
	IndexRegex         = `(?i)index\s*$`
	AppendixRegex      = `(?i)appendix [a-z]\s*$`
)

const SentenceEndingRegex = `[.!?]+(?:\s|$)`

var (
	ContextPromptTemplate = `<context>
%s
</context>
Use the passages above, taken from counselling and human development textbooks, to answer the question below.
Answer with empathy and cite nothing that is not supported by the passages.
<question>
%s
</question>
`
)
