package scrape

import "fmt"

// ExtractErrorKind classifies extraction failures for the run report.
type ExtractErrorKind string

const (
	// SchemaDrift means the page fetched fine but its markup no longer
	// matches the selectors; retrying the parse cannot help.
	SchemaDrift ExtractErrorKind = "schema_drift"
	// PartialContent means a single entry inside an otherwise parseable
	// page could not be extracted.
	PartialContent ExtractErrorKind = "partial_content"
)

// ExtractError is the typed failure of the metadata and review extractors.
type ExtractError struct {
	TitleID  string
	ReviewID string
	Kind     ExtractErrorKind
	Err      error
}

func (e *ExtractError) Error() string {
	if e.ReviewID != "" {
		return fmt.Sprintf("extract %s review %s: %s: %v", e.TitleID, e.ReviewID, e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s: %s: %v", e.TitleID, e.Kind, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }
