package hls

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/grafov/m3u8"

	errs "fanslydl/pkg/errors"
)

// parsed is either a master playlist's best variant or a media playlist's segments
type parsed struct {
	variant  string
	segments []string
}

// parsePlaylist decodes playlist text fetched from base
func parsePlaylist(data []byte, base string) (parsed, error) {
	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(data), false)
	if err != nil {
		return parsed{}, errs.Wrap(errs.ErrorTypeParsing, err, "failed to parse playlist")
	}

	switch listType {
	case m3u8.MASTER:
		master := p.(*m3u8.MasterPlaylist)
		var best *m3u8.Variant
		for _, v := range master.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			if best == nil || v.Bandwidth > best.Bandwidth {
				best = v
			}
		}
		if best == nil {
			return parsed{}, errs.New(errs.ErrorTypeParsing, "no variants in master playlist")
		}
		u, err := resolve(base, best.URI)
		if err != nil {
			return parsed{}, err
		}
		return parsed{variant: u}, nil

	case m3u8.MEDIA:
		media := p.(*m3u8.MediaPlaylist)
		var segments []string
		for _, seg := range media.Segments {
			// the segment slice is pre-allocated; unused slots are nil
			if seg == nil {
				break
			}
			u, err := resolve(base, seg.URI)
			if err != nil {
				return parsed{}, err
			}
			segments = append(segments, u)
		}
		return parsed{segments: segments}, nil
	}
	return parsed{}, errs.New(errs.ErrorTypeParsing, "unknown playlist type")
}

// resolve makes ref absolute against base
func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeParsing, err, fmt.Sprintf("invalid playlist URL %q", base))
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeParsing, err, fmt.Sprintf("invalid segment URL %q", ref))
	}
	return b.ResolveReference(r).String(), nil
}
