package domain

import "fmt"

// Figure is an extracted image anchored to a manual page.
type Figure struct {
	ID                 string   `json:"id"`
	ManualID           string   `json:"manual_id"`
	PageNumber         int      `json:"page_number"`
	StorageURL         string   `json:"storage_url"`
	Kind               string   `json:"kind,omitempty"`
	FigureType         string   `json:"figure_type,omitempty"`
	CaptionText        string   `json:"caption_text,omitempty"`
	OCRText            string   `json:"ocr_text,omitempty"`
	SemanticTags       []string `json:"semantic_tags,omitempty"`
	Keywords           []string `json:"keywords,omitempty"`
	DetectedComponents []string `json:"detected_components,omitempty"`
}

// Thumbnail references a relevant figure co-located with a cited page.
type Thumbnail struct {
	PageID   string `json:"page_id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	ManualID string `json:"manual_id"`
}

// CitationSet is recomputed per answer.
type CitationSet struct {
	Citations  []string    `json:"citations"`
	Thumbnails []Thumbnail `json:"thumbnails"`
}

func EmptyCitationSet() CitationSet {
	return CitationSet{Citations: []string{}, Thumbnails: []Thumbnail{}}
}

// CitationFor renders the manual_id:p<page> pointer.
func CitationFor(manualID string, page int) string {
	return fmt.Sprintf("%s:p%d", manualID, page)
}
