package types

// Tool identifies the extraction backend that unpacked an archive.
type Tool string

const (
	// ToolUnrar is the unrar command line tool.
	ToolUnrar Tool = "unrar"
	// ToolSevenZip is the 7-Zip command line tool.
	ToolSevenZip Tool = "7z"
)

// ExtractionOutcome is owned by a single pipeline invocation.
type ExtractionOutcome struct {
	ExtractedDir string `json:"extracted_dir"`
	Tool         Tool   `json:"tool"`
}

// Result is the outcome of a successful pipeline invocation.
type Result struct {
	ArchivePath string `json:"archive_path"`
	// Metadata is nil when the input was a direct file-host link.
	Metadata  *Metadata         `json:"metadata,omitempty"`
	Host      Host              `json:"host"`
	SourceURL string            `json:"source_url"`
	Outcome   ExtractionOutcome `json:"extraction"`
	Removed   []string          `json:"removed,omitempty"`
}
