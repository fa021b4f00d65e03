package dedup

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanslydl/pkg/media"
)

func box(typ string, payload []byte) []byte {
	b := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(b[0:4], uint32(len(b)))
	copy(b[4:8], typ)
	copy(b[8:], payload)
	return b
}

func mp4(moov, mdat string) []byte {
	var buf bytes.Buffer
	buf.Write(box("ftyp", []byte("isom0000")))
	buf.Write(box("moov", []byte(moov)))
	buf.Write(box("free", []byte("padding")))
	buf.Write(box("mdat", []byte(mdat)))
	return buf.Bytes()
}

func sumMP4(data []byte, chunk int) string {
	h := NewMP4Hasher()
	for len(data) > 0 {
		n := chunk
		if n > len(data) {
			n = len(data)
		}
		h.Write(data[:n])
		data = data[n:]
	}
	sum, _ := h.Sum()
	return sum
}

func TestMP4HashIgnoresMetadataBoxes(t *testing.T) {
	a := sumMP4(mp4("metadata-one", "frames"), 1<<20)
	b := sumMP4(mp4("completely different metadata", "frames"), 1<<20)
	c := sumMP4(mp4("metadata-one", "other frames"), 1<<20)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestMP4HashIsChunkIndependent(t *testing.T) {
	data := mp4("meta", "some media payload")
	whole := sumMP4(data, len(data))
	for _, chunk := range []int{1, 3, 7, 16} {
		assert.Equal(t, whole, sumMP4(data, chunk), "chunk %d", chunk)
	}
}

func TestMP4HashLargeSizeBox(t *testing.T) {
	payload := []byte("large box payload")
	large := make([]byte, 16+len(payload))
	binary.BigEndian.PutUint32(large[0:4], 1)
	copy(large[4:8], "mdat")
	binary.BigEndian.PutUint64(large[8:16], uint64(len(large)))
	copy(large[16:], payload)

	data := append(box("ftyp", []byte("isom")), large...)
	data = append(data, box("free", []byte("x"))...)

	want := md5.New()
	want.Write(box("ftyp", []byte("isom")))
	want.Write(large)
	assert.Equal(t, hex.EncodeToString(want.Sum(nil)), sumMP4(data, 5))
}

func TestMP4HashFallsBackForNonMP4(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x02, 0xff, 0xfe, 0x01, 0x02, 0x03}
	plain := md5.Sum(data)
	assert.Equal(t, hex.EncodeToString(plain[:]), sumMP4(data, 4))
}

func TestAudioHasherIsMD5(t *testing.T) {
	h := NewHasher(media.KindAudio)
	h.Write([]byte("audio bytes"))
	plain := md5.Sum([]byte("audio bytes"))
	got, err := h.Sum()
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(plain[:]), got)
}

func TestImageHasherMatchesImageHash(t *testing.T) {
	data := encodePNG(t, noiseImage(4))
	want, err := ImageHash(bytes.NewReader(data))
	require.NoError(t, err)

	h := NewHasher(media.KindImage)
	for len(data) > 0 {
		n := min(len(data), 100)
		h.Write(data[:n])
		data = data[n:]
	}
	got, err := h.Sum()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	bad := NewHasher(media.KindImage)
	bad.Write([]byte("not an image"))
	_, err = bad.Sum()
	assert.Error(t, err)
}

func noiseImage(seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(rng.Intn(256))})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageHashStableAndDistinct(t *testing.T) {
	a1, err := ImageHash(bytes.NewReader(encodePNG(t, noiseImage(1))))
	require.NoError(t, err)
	a2, err := ImageHash(bytes.NewReader(encodePNG(t, noiseImage(1))))
	require.NoError(t, err)
	b, err := ImageHash(bytes.NewReader(encodePNG(t, noiseImage(2))))
	require.NoError(t, err)

	assert.Len(t, a1, 16)
	dist, err := ImageDistance(a1, a2)
	require.NoError(t, err)
	assert.Equal(t, 0, dist)

	dist, err = ImageDistance(a1, b)
	require.NoError(t, err)
	assert.Greater(t, dist, DefaultImageThreshold)
}

func TestImageHashRejectsGarbage(t *testing.T) {
	_, err := ImageHash(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)

	_, err = ImageDistance("zz", "0000000000000000")
	assert.Error(t, err)
}

func TestHashFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.mp3", []byte("abc"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/a.png", encodePNG(t, noiseImage(3)), 0o644))

	got, err := HashFile(fs, "/a.mp3", media.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", got)

	got, err = HashFile(fs, "/a.png", media.KindImage)
	require.NoError(t, err)
	assert.Len(t, got, 16)

	_, err = HashFile(fs, "/missing", media.KindAudio)
	assert.Error(t, err)
}
