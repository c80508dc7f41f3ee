// Package observability provides formatted output for the CLI: result
// summaries, tool diagnostics and share captions.
package observability

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/jonathan/repackr/internal/archive"
	"github.com/jonathan/repackr/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5

	// DescriptionPreviewLength is the rune budget for the caption description.
	DescriptionPreviewLength = 300
	// MaxCaptionLength is the caption limit of common chat platforms.
	MaxCaptionLength = 1024
)

// Printer handles formatted output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if utf8.RuneCountInString(line) > boxWidth-4 {
			line = preview(line, boxWidth-7)
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintResult outputs a summary of a finished pipeline run. size is the
// archive size in bytes; pass a negative value when unknown.
func (p *Printer) PrintResult(result *types.Result, size int64) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Archive:  %s\n", filepath.Base(result.ArchivePath)))
	if size >= 0 {
		sb.WriteString(fmt.Sprintf("Size:     %s\n", humanize.Bytes(uint64(size))))
	}
	sb.WriteString(fmt.Sprintf("Host:     %s\n", result.Host))
	sb.WriteString(fmt.Sprintf("Tool:     %s\n", result.Outcome.Tool))

	if len(result.Removed) > 0 {
		sb.WriteString("\nRemoved:\n")
		count := min(len(result.Removed), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", result.Removed[i]))
		}
		if len(result.Removed) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(result.Removed)-maxItemsToShow))
		}
	}

	if meta := result.Metadata; meta != nil {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Title:    %s\n", orDash(meta.Title)))
		sb.WriteString(fmt.Sprintf("Demo:     %s\n", orDash(meta.DemoURL)))
		cover := "-"
		if meta.HasCover() {
			cover = filepath.Base(meta.ImagePath)
		} else if meta.ImageURL != "" {
			cover = "remote only"
		}
		sb.WriteString(fmt.Sprintf("Cover:    %s\n", cover))
	}

	p.printBox("ARCHIVE READY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMetadata outputs resolved metadata and the reasons for any gaps.
func (p *Printer) PrintMetadata(meta *types.Metadata) {
	if meta == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title:    %s\n", orDash(meta.Title)))
	sb.WriteString(fmt.Sprintf("Demo:     %s\n", orDash(meta.DemoURL)))
	sb.WriteString(fmt.Sprintf("Image:    %s\n", orDash(meta.ImageURL)))
	sb.WriteString("\n")

	if len(meta.CandidateLinks) > 0 {
		sb.WriteString("Candidate links:\n")
		for i, link := range meta.CandidateLinks {
			sb.WriteString(fmt.Sprintf("  %d. %s %s\n", i+1, link.Host, link.URL))
		}
	} else {
		sb.WriteString("No supported file-host links\n")
	}

	if len(meta.Diagnostics) > 0 {
		sb.WriteString("\nGaps:\n")
		for _, d := range meta.Diagnostics {
			sb.WriteString(fmt.Sprintf("  ⚠ %s: %s\n", d.Field, d.Reason))
		}
	}

	p.printBox("POST METADATA", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBackends outputs extraction tool availability.
func (p *Printer) PrintBackends(statuses []archive.BackendStatus) {
	var sb strings.Builder
	usable := 0
	for _, s := range statuses {
		mark := "✗"
		if s.Available {
			mark = "✓"
			usable++
		}
		sb.WriteString(fmt.Sprintf("%s %s (%s)\n", mark, s.Name, s.Tool))
	}
	if usable == 0 {
		sb.WriteString("\nNo extraction tool found; install unrar or 7-Zip\n")
	}

	p.printBox("EXTRACTION TOOLS", strings.TrimSuffix(sb.String(), "\n"))
}

// Caption renders the announcement text for a finished archive. channel is
// appended as a join line when set. The result never exceeds MaxCaptionLength runes.
func Caption(meta *types.Metadata, channel string) string {
	var sb strings.Builder

	title := "Untitled"
	if meta.HasTitle() {
		title = meta.Title
	}
	sb.WriteString(fmt.Sprintf("🔥 %s\n\n", title))

	if meta.HasDescription() {
		sb.WriteString("📝 Description:\n")
		sb.WriteString(preview(meta.Description, DescriptionPreviewLength))
		sb.WriteString("\n\n")
	}
	if meta.HasDemo() {
		sb.WriteString(fmt.Sprintf("🌐 Demo: %s\n", meta.DemoURL))
	}
	if channel != "" {
		rule := strings.Repeat("━", 21)
		sb.WriteString("\n" + rule + "\n")
		sb.WriteString(fmt.Sprintf("🚀 Join: %s\n", channel))
		sb.WriteString(rule)
	}

	caption := strings.TrimRight(sb.String(), "\n")
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		caption = preview(caption, MaxCaptionLength-3)
	}
	return caption
}

// FileCaption is the short caption stored alongside a share code.
func FileCaption(meta *types.Metadata) string {
	title := "File"
	if meta.HasTitle() {
		title = meta.Title
	}
	return title + "\n\nUploaded by repackr"
}

// preview keeps the first n runes of s and appends "..." when anything was cut.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
