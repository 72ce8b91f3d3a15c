package types

// Provenance identifies which collection a search result came from
type Provenance string

const (
	// ProvenanceMaterial marks results drawn from uploaded material chunks
	ProvenanceMaterial Provenance = "material"
	// ProvenanceNote marks results drawn from user notes
	ProvenanceNote Provenance = "note"
)

// ContentType tags the kind of source content an indexed unit was produced from
type ContentType string

const (
	ContentAudio ContentType = "audio"
	ContentText  ContentType = "text"
	ContentPDF   ContentType = "pdf"
	ContentImage ContentType = "image"
	ContentLink  ContentType = "link"
	ContentNote  ContentType = "note"
)

// ValidContentType reports whether t is one of the known content type tags
func ValidContentType(t ContentType) bool {
	switch t {
	case ContentAudio, ContentText, ContentPDF, ContentImage, ContentLink, ContentNote:
		return true
	}
	return false
}

// ResultMetadata carries the descriptive fields of a search result's source unit
type ResultMetadata struct {
	ClassID    string // Empty for user-level content
	MaterialID string
	Source     string // Title of the originating material or note
	Type       ContentType
}

// SearchResult represents a single retrieval hit.
//
// Score is only meaningful relative to other results in the same result set:
// it is not a probability and is not comparable across invocations.
type SearchResult struct {
	ID         string
	Content    string
	Score      float64
	Rank       int // Position in the final result set (1-based)
	Metadata   ResultMetadata
	Provenance Provenance
}

// Validate checks if the search result is well formed
func (sr *SearchResult) Validate() error {
	if sr.ID == "" {
		return ErrInvalidResultID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	if sr.Provenance != ProvenanceMaterial && sr.Provenance != ProvenanceNote {
		return ErrInvalidProvenance
	}

	return nil
}
