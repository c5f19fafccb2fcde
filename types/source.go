package types

// SourceTag classifies how a source file entered the working set.
// Files carrying a non-empty tag bypass relevance filtering entirely.
type SourceTag string

const (
	// TagNone marks a regular project file that routes through full filtering.
	TagNone SourceTag = ""

	// TagREST marks content fetched from a REST endpoint.
	TagREST SourceTag = "REST"

	// TagRAG marks content retrieved from a RAG store.
	TagRAG SourceTag = "RAG"

	// TagSearch marks content returned by a search engine.
	TagSearch SourceTag = "SEARCH"
)

// Bypass reports whether files with this tag skip relevance filtering.
func (t SourceTag) Bypass() bool {
	switch t {
	case TagREST, TagRAG, TagSearch:
		return true
	default:
		return false
	}
}

// Valid reports whether the tag is one of the known variants.
func (t SourceTag) Valid() bool {
	switch t {
	case TagNone, TagREST, TagRAG, TagSearch:
		return true
	default:
		return false
	}
}

// SourceFile is a single unit of project content supplied by a collector.
// Path is the unique key; two SourceFiles with the same Path are the same file.
type SourceFile struct {
	Path     string            `json:"path"`
	Content  string            `json:"content"`
	Tag      SourceTag         `json:"tag,omitempty"`
	Tokens   int               `json:"tokens,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IndexEntry is the per-file record kept by the symbol index.
// An entry is refreshed only when SHA256 no longer matches the file content;
// stale entries are replaced whole, never merged.
type IndexEntry struct {
	Path         string  `json:"path"`
	Symbols      string  `json:"symbols"`
	LastModified float64 `json:"last_modified"`
	SHA256       string  `json:"sha256"`
}

// Candidate is a file proposed by a filtering stage, keyed by path in the
// selector's accumulator. A later stage's candidate for the same path
// overwrites an earlier one (last-writer-wins layering).
type Candidate struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Score  *int   `json:"score,omitempty"`
}

// VerdictStatus is the outcome of verifying one candidate file.
type VerdictStatus string

const (
	VerdictPass  VerdictStatus = "PASS"
	VerdictFail  VerdictStatus = "FAIL"
	VerdictError VerdictStatus = "ERROR"
)

// Verdict records the result of a single relevance verification call.
// Score is meaningful only for PASS and FAIL.
type Verdict struct {
	Path   string        `json:"path"`
	Score  int           `json:"score"`
	Status VerdictStatus `json:"status"`
	Reason string        `json:"reason"`
}

// LineRange is an inclusive 1-based line span inside a file, as returned by
// snippet extraction.
type LineRange struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}
