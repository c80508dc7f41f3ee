package types

// Diagnostic records why a best-effort heuristic produced no value.
type Diagnostic struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Metadata describes the content behind an aggregator page.
// Empty strings mean the field could not be resolved.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	DemoURL     string `json:"demo_url,omitempty"`
	// ImageURL is the best remote cover reference, set even when no local copy exists.
	ImageURL string `json:"image_url,omitempty"`
	// ImagePath is a processed cover inside the work directory. Only set when
	// a downloaded image passed validation.
	ImagePath      string          `json:"image_path,omitempty"`
	CandidateLinks []CandidateLink `json:"candidate_links"`
	Diagnostics    []Diagnostic    `json:"diagnostics,omitempty"`
}

// HasTitle reports whether a title was resolved.
func (m *Metadata) HasTitle() bool { return m != nil && m.Title != "" }

// HasDescription reports whether a description was resolved.
func (m *Metadata) HasDescription() bool { return m != nil && m.Description != "" }

// HasDemo reports whether a demo link was resolved.
func (m *Metadata) HasDemo() bool { return m != nil && m.DemoURL != "" }

// HasCover reports whether a processed local cover exists.
func (m *Metadata) HasCover() bool { return m != nil && m.ImagePath != "" }

// Note appends a diagnostic for field.
func (m *Metadata) Note(field, reason string) {
	if reason == "" {
		return
	}
	m.Diagnostics = append(m.Diagnostics, Diagnostic{Field: field, Reason: reason})
}
