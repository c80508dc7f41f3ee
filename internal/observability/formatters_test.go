package observability

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jonathan/repackr/internal/archive"
	"github.com/jonathan/repackr/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	result := &types.Result{
		ArchivePath: "/tmp/job_1/theme.zip",
		Host:        types.HostMediafire,
		Outcome:     types.ExtractionOutcome{Tool: types.ToolUnrar},
		Removed:     []string{"codelist.cc.txt"},
		Metadata: &types.Metadata{
			Title:     "Acme Theme",
			DemoURL:   "https://demo.example/acme",
			ImagePath: "/tmp/job_1/cover_1_1.jpg",
		},
	}

	p.PrintResult(result, 2_500_000)
	output := buf.String()

	assert.Contains(t, output, "ARCHIVE READY")
	assert.Contains(t, output, "theme.zip")
	assert.Contains(t, output, "2.5 MB")
	assert.Contains(t, output, "mediafire")
	assert.Contains(t, output, "unrar")
	assert.Contains(t, output, "codelist.cc.txt")
	assert.Contains(t, output, "Acme Theme")
	assert.Contains(t, output, "cover_1_1.jpg")
}

func TestPrintResult_DirectLink(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintResult(&types.Result{ArchivePath: "x.zip", Host: types.HostPixeldrain}, -1)
	output := buf.String()

	assert.Contains(t, output, "x.zip")
	assert.NotContains(t, output, "Size:")
	assert.NotContains(t, output, "Title:")
}

func TestPrintResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintResult(nil, 0)

	assert.Empty(t, buf.String())
}

func TestPrintMetadata(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	meta := &types.Metadata{
		Title: "Acme Theme",
		CandidateLinks: []types.CandidateLink{
			{Host: types.HostUploadEE, URL: "https://www.upload.ee/files/1/a.zip.html"},
		},
	}
	meta.Note("image", "no image found on page")

	p.PrintMetadata(meta)
	output := buf.String()

	assert.Contains(t, output, "POST METADATA")
	assert.Contains(t, output, "upload_ee")
	assert.Contains(t, output, "no image found on page")
}

func TestPrintMetadata_NoLinks(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMetadata(&types.Metadata{})

	assert.Contains(t, buf.String(), "No supported file-host links")
}

func TestPrintBackends(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintBackends([]archive.BackendStatus{
		{Name: "unrar", Tool: types.ToolUnrar, Available: true},
		{Name: "7z", Tool: types.ToolSevenZip, Available: false},
	})
	output := buf.String()

	assert.Contains(t, output, "✓ unrar")
	assert.Contains(t, output, "✗ 7z")
	assert.NotContains(t, output, "No extraction tool found")
}

func TestPrintBackends_NoneAvailable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintBackends([]archive.BackendStatus{{Name: "unrar", Tool: types.ToolUnrar}})

	assert.Contains(t, buf.String(), "No extraction tool found")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("T", strings.Repeat("é", 100))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), "line %q", line)
	}
}

func TestCaption(t *testing.T) {
	meta := &types.Metadata{
		Title:       "Acme Theme",
		Description: "A clean theme.",
		DemoURL:     "https://demo.example/acme",
	}

	caption := Caption(meta, "@freebies")

	assert.True(t, strings.HasPrefix(caption, "🔥 Acme Theme\n\n"))
	assert.Contains(t, caption, "A clean theme.")
	assert.Contains(t, caption, "🌐 Demo: https://demo.example/acme")
	assert.Contains(t, caption, "🚀 Join: @freebies")
}

func TestCaption_PreviewsDescription(t *testing.T) {
	meta := &types.Metadata{Title: "T", Description: strings.Repeat("ü", 400)}

	caption := Caption(meta, "")

	assert.Contains(t, caption, strings.Repeat("ü", DescriptionPreviewLength)+"...")
	assert.NotContains(t, caption, strings.Repeat("ü", DescriptionPreviewLength+1))
	assert.NotContains(t, caption, "Join")
}

func TestCaption_MissingFields(t *testing.T) {
	caption := Caption(&types.Metadata{}, "")

	assert.Equal(t, "🔥 Untitled", caption)
}

func TestCaption_Capped(t *testing.T) {
	meta := &types.Metadata{Title: strings.Repeat("x", 2000)}

	caption := Caption(meta, "@c")

	assert.Equal(t, MaxCaptionLength, utf8.RuneCountInString(caption))
	assert.True(t, strings.HasSuffix(caption, "..."))
}

func TestFileCaption(t *testing.T) {
	assert.Equal(t, "Acme\n\nUploaded by repackr", FileCaption(&types.Metadata{Title: "Acme"}))
	assert.Equal(t, "File\n\nUploaded by repackr", FileCaption(nil))
}
