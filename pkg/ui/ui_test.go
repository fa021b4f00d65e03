package ui

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"fanslydl/pkg/fetcher"
	"fanslydl/pkg/media"
	"fanslydl/pkg/scraper"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetQuiet(false)
	})
	return &buf
}

func TestColorsDisabledForNonTerminal(t *testing.T) {
	captureOutput(t)
	assert.Equal(t, "plain", Red("plain"))

	SetColor(true)
	assert.Equal(t, "\x1b[31mplain\x1b[0m", Red("plain"))
}

func TestPrintHelpers(t *testing.T) {
	buf := captureOutput(t)

	PrintInfo("Mode", "normal")
	PrintWarning("careful", "")
	PrintError("broken", "disk full")
	assert.Equal(t, "Mode: normal\ncareful\nbroken: disk full\n", buf.String())
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := captureOutput(t)
	SetQuiet(true)

	PrintInfo("Mode", "normal")
	PrintSuccess("done")
	PrintError("broken", "")
	assert.Equal(t, "broken\n", buf.String())
}

func TestRenderStats(t *testing.T) {
	run := &scraper.RunStats{
		Creators: []*scraper.CreatorStats{
			{Creator: "somecreator", Pictures: 3, Videos: 2, Duplicates: 4, Bytes: 2048, Elapsed: 90 * time.Second},
			{Creator: "othercreator", Err: errors.New("account not found")},
		},
		Processed: 1,
		Failed:    1,
	}

	out := RenderStats(run)
	assert.Contains(t, out, "somecreator")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "failed: account not found")
	assert.Contains(t, strings.ToLower(out), "1 ok / 1 failed")
}

func TestProgressDisplay(t *testing.T) {
	buf := captureOutput(t)
	p := NewProgressDisplay(false)

	p.CreatorStarted("somecreator")
	p.SourceStarted("somecreator", media.SourceTimeline)
	p.ItemDone("somecreator", media.Descriptor{ID: "1", Kind: media.KindImage}, fetcher.Result{Outcome: fetcher.OutcomeWritten, Size: 1536})
	p.ItemDone("somecreator", media.Descriptor{ID: "2", Kind: media.KindImage}, fetcher.Result{Outcome: fetcher.OutcomeDuplicate})
	p.CreatorFinished(&scraper.CreatorStats{Creator: "somecreator", Pictures: 1, Bytes: 1536})

	out := buf.String()
	assert.Contains(t, out, "@somecreator")
	assert.Contains(t, out, "1 new • 1 dup")
	assert.Contains(t, out, "1 new files from @somecreator")
	assert.Contains(t, out, "1.5 KB")
}

func TestProgressDisplayDebug(t *testing.T) {
	buf := captureOutput(t)
	p := NewProgressDisplay(true)

	p.CreatorStarted("somecreator")
	p.ItemDone("somecreator", media.Descriptor{ID: "7", Kind: media.KindVideo}, fetcher.Result{Outcome: fetcher.OutcomeFailed, Err: errors.New("timeout")})

	assert.Contains(t, buf.String(), "video 7 - timeout")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 MB", FormatBytes(1536*1024))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h1m", FormatDuration(61*time.Minute))
}
