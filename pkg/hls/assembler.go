package hls

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"fanslydl/internal/downloader"
	errs "fanslydl/pkg/errors"
	"fanslydl/pkg/logger"
)

// maxPlaylistSize bounds how much of a playlist response is read
const maxPlaylistSize = 8 << 20

// Opener starts a download of a CDN URL
type Opener interface {
	OpenMedia(ctx context.Context, url string, cookies map[string]string) (*http.Response, error)
}

// FindFFmpeg locates the ffmpeg binary on PATH
func FindFFmpeg() (string, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", errs.ErrFFmpegNotFound
	}
	return path, nil
}

// Options tune an Assembler
type Options struct {
	Workers         int
	SegmentAttempts int
}

// Assembler downloads an HLS stream and joins it into one file with ffmpeg
type Assembler struct {
	opener Opener
	ffmpeg string
	opts   Options
	logger logger.Logger

	// newPool is replaced in tests
	newPool func(f downloader.SegmentFetcher) *downloader.WorkerPool
}

// NewAssembler creates an assembler; ffmpegPath comes from FindFFmpeg
func NewAssembler(opener Opener, ffmpegPath string, opts Options, log logger.Logger) *Assembler {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = downloader.DefaultWorkers
	}
	a := &Assembler{opener: opener, ffmpeg: ffmpegPath, opts: opts, logger: log}
	a.newPool = func(f downloader.SegmentFetcher) *downloader.WorkerPool {
		return downloader.NewWorkerPool(a.opts.Workers, a.opts.SegmentAttempts, f, nil, a.logger)
	}
	return a
}

// Assemble downloads the stream at playlistURL and writes an mp4 to dest.
// Temporary segments and the concat list are removed whatever the outcome.
func (a *Assembler) Assemble(ctx context.Context, playlistURL string, cookies map[string]string, dest string) (int64, error) {
	segments, err := a.segments(ctx, playlistURL, cookies)
	if err != nil {
		return 0, err
	}
	if len(segments) == 0 {
		return 0, errs.New(errs.ErrorTypeDownload, "no segments found in playlist")
	}

	tempDir := filepath.Join(filepath.Dir(dest), ".m3u8_temp_"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to create segment directory")
	}
	defer os.RemoveAll(tempDir)

	jobs := make([]downloader.SegmentJob, len(segments))
	for i, u := range segments {
		jobs[i] = downloader.SegmentJob{
			Index: i,
			URL:   u,
			Dest:  filepath.Join(tempDir, fmt.Sprintf("segment_%05d.ts", i)),
		}
	}

	a.logger.DebugWithFields("downloading stream segments", map[string]interface{}{
		"segments": len(jobs),
		"workers":  a.opts.Workers,
	})
	pool := a.newPool(&segmentFetcher{opener: a.opener, cookies: cookies})
	if _, err := pool.Run(ctx, jobs); err != nil {
		return 0, errs.Wrap(errs.ErrorTypeDownload, err, "segment download failed")
	}

	list := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".ffc"
	if err := writeConcatList(list, jobs); err != nil {
		return 0, err
	}
	defer os.Remove(list)

	if err := a.concat(ctx, list, dest); err != nil {
		os.Remove(dest)
		return 0, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, err, "ffmpeg produced no output")
	}
	return info.Size(), nil
}

// segments resolves the playlist to its ordered segment URLs, following a
// master playlist to its highest bandwidth variant
func (a *Assembler) segments(ctx context.Context, playlistURL string, cookies map[string]string) ([]string, error) {
	data, err := a.fetchPlaylist(ctx, playlistURL, cookies)
	if err != nil {
		return nil, err
	}
	p, err := parsePlaylist(data, playlistURL)
	if err != nil {
		return nil, err
	}
	if p.variant == "" {
		return p.segments, nil
	}

	a.logger.DebugWithFields("selected stream variant", map[string]interface{}{
		"variant": p.variant,
	})
	data, err = a.fetchPlaylist(ctx, p.variant, cookies)
	if err != nil {
		return nil, err
	}
	p, err = parsePlaylist(data, p.variant)
	if err != nil {
		return nil, err
	}
	if p.variant != "" {
		return nil, errs.New(errs.ErrorTypeParsing, "expected media playlist")
	}
	return p.segments, nil
}

func (a *Assembler) fetchPlaylist(ctx context.Context, u string, cookies map[string]string) ([]byte, error) {
	resp, err := a.opener.OpenMedia(ctx, u, cookies)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistSize))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDownload, err, "failed to read playlist")
	}
	return data, nil
}

// writeConcatList writes the ffmpeg concat demuxer input in segment order
func writeConcatList(path string, jobs []downloader.SegmentJob) error {
	var b strings.Builder
	for _, j := range jobs {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(j.Dest, "'", `'\''`))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to write concat list")
	}
	return nil
}

// concat runs ffmpeg; the process is killed if ctx ends first
func (a *Assembler) concat(ctx context.Context, list, dest string) error {
	if a.ffmpeg == "" {
		return errs.ErrFFmpegNotFound
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y", "-f", "concat", "-safe", "0",
		"-i", list,
		"-c", "copy",
		"-f", "mp4",
		dest,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &errs.Error{
			Type:    errs.ErrorTypeDownload,
			Message: "ffmpeg failed: " + tail(stderr.String(), 500),
			Err:     err,
		}
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

// segmentFetcher writes one segment to disk
type segmentFetcher struct {
	opener  Opener
	cookies map[string]string
}

func (f *segmentFetcher) FetchSegment(ctx context.Context, url, dest string) (int64, error) {
	resp, err := f.opener.OpenMedia(ctx, url, f.cookies)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeFilesystem, err, "failed to create segment file")
	}
	n, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		return n, errs.Wrap(errs.ErrorTypeDownload, err, "segment transfer interrupted")
	}
	if closeErr != nil {
		return n, errs.Wrap(errs.ErrorTypeFilesystem, closeErr, "failed to close segment file")
	}
	return n, nil
}
