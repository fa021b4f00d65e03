package dedup

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanslydl/pkg/media"
)

func TestEngineIDAndHash(t *testing.T) {
	e := NewEngine(Options{})
	video := media.Descriptor{ID: "100", Kind: media.KindVideo}

	assert.False(t, e.IsDuplicate(video, "abc"))
	e.Record(video, "abc", "f.mp4")

	assert.True(t, e.SeenID(video))
	assert.True(t, e.IsDuplicate(video, ""))

	other := media.Descriptor{ID: "200", Kind: media.KindVideo}
	assert.True(t, e.IsDuplicate(other, "abc"), "same content under another id")
	assert.False(t, e.IsDuplicate(other, "def"))

	audio := media.Descriptor{ID: "300", Kind: media.KindAudio}
	assert.False(t, e.IsDuplicate(audio, "abc"), "kinds use separate pools")
}

func TestEngineRecordIsIdempotent(t *testing.T) {
	e := NewEngine(Options{})
	d := media.Descriptor{ID: "1", Kind: media.KindAudio}
	e.Record(d, "h", "a.mp3")
	e.Record(d, "h", "a.mp3")

	ids, hashes := e.Stats(media.KindAudio, false)
	assert.Equal(t, 1, ids)
	assert.Equal(t, 1, hashes)
}

func TestEnginePreviewPoolsAreSeparate(t *testing.T) {
	e := NewEngine(Options{})
	full := media.Descriptor{ID: "1", Kind: media.KindImage}
	preview := media.Descriptor{ID: "1", Kind: media.KindImage, Preview: true}

	e.Record(full, "0000000000000000", "a.jpg")
	assert.False(t, e.IsDuplicate(preview, ""))
	assert.True(t, e.IsDuplicate(full, ""))
}

func TestEnginePerceptualThreshold(t *testing.T) {
	base := "00000000000000ff"
	near := "00000000000000f0" // 4 bits away
	far := "ffffffffffffff00"  // 64 bits away
	d := func(id string) media.Descriptor { return media.Descriptor{ID: id, Kind: media.KindImage} }

	perceptual := NewEngine(Options{Perceptual: true, ImageThreshold: DefaultImageThreshold})
	perceptual.Record(d("1"), base, "a.jpg")
	assert.True(t, perceptual.IsDuplicate(d("2"), near))
	assert.False(t, perceptual.IsDuplicate(d("3"), far))

	exact := NewEngine(Options{Perceptual: false, ImageThreshold: DefaultImageThreshold})
	exact.Record(d("1"), base, "a.jpg")
	assert.False(t, exact.IsDuplicate(d("2"), near))
	assert.True(t, exact.IsDuplicate(d("3"), base))
}

func TestBootstrapFromTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := []string{
		"/dl/alice_fansly/Timeline/Pictures/2023-11-14T22-13-20_id_111111_hash2_00000000000000ff.jpg",
		"/dl/alice_fansly/Timeline/Videos/2023-11-14T22-13-20_id_222222_hash2_abcd.mp4",
		"/dl/alice_fansly/Timeline/Pictures/Previews/2023-11-14T22-13-20_preview_id_333333.jpg",
		"/dl/alice_fansly/Messages/Audio/legacy_444444444.mp3",
		"/dl/alice_fansly/notes.txt",
	}
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f, []byte("x"), 0o644))
	}

	e := NewEngine(Options{Perceptual: true, ImageThreshold: 8})
	n, err := e.Bootstrap(fs, "/dl/alice_fansly")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.True(t, e.IsDuplicate(media.Descriptor{ID: "111111", Kind: media.KindImage}, ""))
	assert.True(t, e.IsDuplicate(media.Descriptor{ID: "999", Kind: media.KindImage}, "00000000000000fe"))
	assert.True(t, e.IsDuplicate(media.Descriptor{ID: "999", Kind: media.KindVideo}, "abcd"))
	assert.True(t, e.SeenID(media.Descriptor{ID: "333333", Kind: media.KindImage, Preview: true}))
	assert.True(t, e.SeenID(media.Descriptor{ID: "444444444", Kind: media.KindAudio}))

	again, err := e.Bootstrap(fs, "/dl/alice_fansly")
	require.NoError(t, err)
	assert.Equal(t, n, again)
	ids, hashes := e.Stats(media.KindImage, false)
	assert.Equal(t, 1, ids)
	assert.Equal(t, 1, hashes)
}

func TestBootstrapKindFromFolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := []string{
		"/dl/alice_fansly/Timeline/Videos/2023-11-14T22-13-20_id_100000001_hash2_aaaa.mkv",
		"/dl/alice_fansly/Timeline/Videos/2023-11-14T22-13-20_id_100000002_hash2_bbbb.bin",
		"/dl/alice_fansly/Messages/Pictures/Previews/2023-11-14T22-13-20_preview_id_100000003.heic",
		"/dl/alice_fansly/Timeline/Other/2023-11-14T22-13-20_id_100000004.bin",
		"/dl/alice_fansly/Timeline/Videos/2023-11-14T22-13-20_id_100000005_hash2_cccc.mp3",
	}
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f, []byte("x"), 0o644))
	}

	e := NewEngine(Options{})
	n, err := e.Bootstrap(fs, "/dl/alice_fansly")
	require.NoError(t, err)
	assert.Equal(t, len(files), n)

	assert.True(t, e.SeenID(media.Descriptor{ID: "100000001", Kind: media.KindVideo}))
	assert.True(t, e.SeenID(media.Descriptor{ID: "100000002", Kind: media.KindVideo}))
	assert.True(t, e.IsDuplicate(media.Descriptor{ID: "9", Kind: media.KindVideo}, "bbbb"))
	assert.True(t, e.SeenID(media.Descriptor{ID: "100000003", Kind: media.KindImage, Preview: true}))
	assert.True(t, e.SeenID(media.Descriptor{ID: "100000004", Kind: media.KindUnknown}))
	assert.True(t, e.SeenID(media.Descriptor{ID: "100000005", Kind: media.KindVideo}), "folder wins over extension")
	assert.False(t, e.SeenID(media.Descriptor{ID: "100000005", Kind: media.KindAudio}))
}

func TestBootstrapMissingRoot(t *testing.T) {
	n, err := NewEngine(Options{}).Bootstrap(afero.NewMemMapFs(), "/nope")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBreaker(t *testing.T) {
	b := NewBreaker(5)
	for i := 0; i < 4; i++ {
		assert.False(t, b.Observe(true))
	}
	assert.False(t, b.Observe(false), "a fresh item resets the streak")
	for i := 0; i < 4; i++ {
		assert.False(t, b.Observe(true))
	}
	assert.True(t, b.Observe(true))

	disabled := NewBreaker(0)
	for i := 0; i < 100; i++ {
		assert.False(t, disabled.Observe(true))
	}
}
