package parsers

import (
	"bytes"
	"io"
	"iter"

	"github.com/klauspost/compress/gzip"
	"github.com/mightyhouseinc/polyfile/pkg/registry"
	"github.com/mightyhouseinc/polyfile/pkg/types"
	"github.com/mightyhouseinc/polyfile/pkg/window"
)

// gzipParser decodes the first gzip member in the window and recurses
// into the decompressed payload.
type gzipParser struct{}

func (p *gzipParser) Parse(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
	return func(yield func(*types.Node, error) bool) {
		data, err := readAll(w)
		if err != nil {
			yield(nil, err)
			return
		}
		if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
			yield(nil, registry.ErrInvalidMatch)
			return
		}
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			yield(nil, registry.ErrInvalidMatch)
			return
		}
		defer zr.Close()
		decoded, err := io.ReadAll(io.LimitReader(zr, maxDecodedBytes))
		if err != nil && len(decoded) == 0 {
			yield(nil, registry.ErrInvalidMatch)
			return
		}

		name := zr.Name
		if name == "" {
			name = "gzip member"
		}
		member := node.NewChild("GzipMember", name, 0,
			types.WithDisplayName(name),
			types.WithLength(w.Size()),
			types.WithDecoded(decoded),
		)
		if !yield(member, nil) {
			return
		}
		recurse(decoded, member, yield)
	}
}
