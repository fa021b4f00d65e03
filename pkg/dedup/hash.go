package dedup

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"image"
	"io"
	"strconv"

	// decoders for image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/corona10/goimagehash"
	"github.com/spf13/afero"

	"fanslydl/pkg/media"
)

// ImageHash returns the perceptual hash of an encoded image as 16 hex digits
func ImageHash(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("perceptual hash: %w", err)
	}
	return fmt.Sprintf("%016x", h.GetHash()), nil
}

// parseImageHash converts a hex perceptual hash back into a comparable value
func parseImageHash(s string) (*goimagehash.ImageHash, bool) {
	if len(s) != 16 {
		return nil, false
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return nil, false
	}
	return goimagehash.NewImageHash(v, goimagehash.PHash), true
}

// ImageDistance is the Hamming distance between two perceptual hashes
func ImageDistance(a, b string) (int, error) {
	ha, ok := parseImageHash(a)
	if !ok {
		return 0, fmt.Errorf("invalid image hash %q", a)
	}
	hb, ok := parseImageHash(b)
	if !ok {
		return 0, fmt.Errorf("invalid image hash %q", b)
	}
	return ha.Distance(hb)
}

// Hasher accumulates a content hash while bytes are written
type Hasher interface {
	io.Writer
	Sum() (string, error)
}

// NewHasher returns the streaming hasher for a media kind
func NewHasher(kind media.Kind) Hasher {
	switch kind {
	case media.KindImage:
		return &imageHasher{}
	case media.KindVideo:
		return NewMP4Hasher()
	default:
		return &md5Hasher{h: md5.New()}
	}
}

// imageHasher keeps the encoded image as it arrives and decodes it once on Sum
type imageHasher struct{ buf bytes.Buffer }

func (i *imageHasher) Write(p []byte) (int, error) { return i.buf.Write(p) }
func (i *imageHasher) Sum() (string, error)        { return ImageHash(bytes.NewReader(i.buf.Bytes())) }

type md5Hasher struct{ h hash.Hash }

func (m *md5Hasher) Write(p []byte) (int, error) { return m.h.Write(p) }
func (m *md5Hasher) Sum() (string, error)        { return hex.EncodeToString(m.h.Sum(nil)), nil }

// boxes left out of the video hash; they change when a container is rewritten
var skippedBoxes = map[string]bool{
	"moov": true,
	"free": true,
	"skip": true,
	"meta": true,
	"udta": true,
}

// MP4Hasher is an MD5 over the top-level MP4 boxes excluding metadata boxes.
// Input that does not parse as MP4 falls back to a plain MD5.
type MP4Hasher struct {
	boxes hash.Hash
	plain hash.Hash

	hdr       [16]byte
	hdrLen    int
	hdrNeed   int
	remaining uint64
	toEOF     bool
	skip      bool
	seen      int
	invalid   bool
	stopped   bool
}

// NewMP4Hasher creates an MP4 box hasher
func NewMP4Hasher() *MP4Hasher {
	return &MP4Hasher{boxes: md5.New(), plain: md5.New(), hdrNeed: 8}
}

func (m *MP4Hasher) Write(p []byte) (int, error) {
	n := len(p)
	m.plain.Write(p)

	for len(p) > 0 && !m.invalid && !m.stopped {
		if m.toEOF || m.remaining > 0 {
			take := len(p)
			if !m.toEOF && uint64(take) > m.remaining {
				take = int(m.remaining)
			}
			if !m.skip {
				m.boxes.Write(p[:take])
			}
			if !m.toEOF {
				m.remaining -= uint64(take)
			}
			p = p[take:]
			continue
		}

		c := copy(m.hdr[m.hdrLen:m.hdrNeed], p)
		m.hdrLen += c
		p = p[c:]
		if m.hdrLen < m.hdrNeed {
			continue
		}
		m.parseHeader()
	}
	return n, nil
}

func (m *MP4Hasher) parseHeader() {
	size := uint64(binary.BigEndian.Uint32(m.hdr[0:4]))
	boxType := m.hdr[4:8]
	for _, c := range boxType {
		if c < 0x20 || c > 0x7e {
			m.fail()
			return
		}
	}

	if size == 1 && m.hdrNeed == 8 {
		m.hdrNeed = 16
		return
	}

	hdrLen := uint64(m.hdrNeed)
	if m.hdrNeed == 16 {
		size = binary.BigEndian.Uint64(m.hdr[8:16])
	}

	m.skip = skippedBoxes[string(boxType)]
	switch {
	case size == 0:
		m.toEOF = true
	case size < hdrLen:
		m.fail()
		return
	default:
		m.remaining = size - hdrLen
	}

	if !m.skip {
		m.boxes.Write(m.hdr[:m.hdrNeed])
	}
	m.seen++
	m.hdrLen = 0
	m.hdrNeed = 8
}

// a malformed box before any valid one means the data is not MP4;
// after that the remaining bytes are ignored
func (m *MP4Hasher) fail() {
	if m.seen == 0 {
		m.invalid = true
		return
	}
	m.stopped = true
}

// Sum returns the hex digest
func (m *MP4Hasher) Sum() (string, error) {
	if m.invalid || m.seen == 0 {
		return hex.EncodeToString(m.plain.Sum(nil)), nil
	}
	return hex.EncodeToString(m.boxes.Sum(nil)), nil
}

// HashFile computes the content hash of a finished file for the given kind
func HashFile(fs afero.Fs, path string, kind media.Kind) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := NewHasher(kind)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return h.Sum()
}
