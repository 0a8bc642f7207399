package parsers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/mightyhouseinc/polyfile/pkg/registry"
	"github.com/mightyhouseinc/polyfile/pkg/types"
	"github.com/mightyhouseinc/polyfile/pkg/window"
)

var pngSig = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// pngParser walks the chunk sequence of a PNG stream. Trailing bytes
// after IEND are left for the recursive matcher to identify.
type pngParser struct{}

func (p *pngParser) Parse(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
	return func(yield func(*types.Node, error) bool) {
		data, err := readAll(w)
		if err != nil {
			yield(nil, err)
			return
		}
		if !bytes.HasPrefix(data, pngSig) {
			yield(nil, registry.ErrInvalidMatch)
			return
		}
		pos := int64(len(pngSig))
		emitted := false
		for pos+8 <= int64(len(data)) {
			length := int64(binary.BigEndian.Uint32(data[pos : pos+4]))
			typ := string(data[pos+4 : pos+8])
			end := pos + 8 + length + 4
			if end > int64(len(data)) {
				if !emitted {
					// The first chunk is already broken: not a PNG.
					yield(nil, registry.ErrInvalidMatch)
					return
				}
				yield(nil, fmt.Errorf("png: chunk %q at %d runs past the window", typ, pos))
				return
			}
			if !emitted && typ != "IHDR" {
				yield(nil, registry.ErrInvalidMatch)
				return
			}
			value := typ
			if typ == "IHDR" && length >= 8 {
				width := binary.BigEndian.Uint32(data[pos+8 : pos+12])
				height := binary.BigEndian.Uint32(data[pos+12 : pos+16])
				value = fmt.Sprintf("%dx%d", width, height)
			}
			chunk := node.NewChild("PNGChunk", value, pos,
				types.WithDisplayName(typ),
				types.WithLength(8+length+4),
			)
			if !yield(chunk, nil) {
				return
			}
			emitted = true
			pos = end
			if typ == "IEND" {
				return
			}
		}
	}
}
