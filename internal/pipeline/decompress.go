package pipeline

import (
	"compress/bzip2"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// NewArtifactReader wraps r with the decompressor matching the artifact
// file name. Unrecognized names pass through untouched. All branches
// stream, nothing is buffered whole.
func NewArtifactReader(name string, r io.Reader) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".bz2"):
		return bzip2.NewReader(r), nil
	case strings.HasSuffix(name, ".gz"):
		return gzip.NewReader(r)
	default:
		return r, nil
	}
}

// demoName derives the plain demo file name from the artifact URL, with
// the compression suffix stripped. It falls back to the match id when the
// URL has no usable base name.
func demoName(artifactURL, matchID string) string {
	base := path.Base(artifactURL)
	base = strings.TrimSuffix(base, ".bz2")
	base = strings.TrimSuffix(base, ".gz")
	if base == "" || base == "." || base == "/" {
		return matchID + ".dem"
	}
	return base
}
