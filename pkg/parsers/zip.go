package parsers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"iter"

	"github.com/klauspost/compress/flate"
	"github.com/mightyhouseinc/polyfile/pkg/registry"
	"github.com/mightyhouseinc/polyfile/pkg/search"
	"github.com/mightyhouseinc/polyfile/pkg/types"
	"github.com/mightyhouseinc/polyfile/pkg/window"
)

var zipLocalSig = []byte{'P', 'K', 0x03, 0x04}

var zipSearch = search.MustCompile(zipLocalSig)

const zipLocalHeaderLen = 30

// zipParser walks every local file header in the window, including
// headers of zips embedded past other content, and recurses into each
// entry's decompressed data.
type zipParser struct{}

func (p *zipParser) Parse(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
	return func(yield func(*types.Node, error) bool) {
		data, err := readAll(w)
		if err != nil {
			yield(nil, err)
			return
		}
		if !bytes.HasPrefix(data, zipLocalSig) {
			yield(nil, registry.ErrInvalidMatch)
			return
		}
		for m, serr := range zipSearch.SearchBytes(data) {
			if serr != nil {
				yield(nil, serr)
				return
			}
			start := m.End - int64(len(zipLocalSig)) + 1
			if !p.parseEntry(data, start, node, yield) {
				return
			}
		}
	}
}

// parseEntry decodes one local file header at start and emits its
// nodes. It reports whether the consumer wants more output.
func (p *zipParser) parseEntry(data []byte, start int64, node *types.Node, yield func(*types.Node, error) bool) bool {
	if start+zipLocalHeaderLen > int64(len(data)) {
		yield(nil, fmt.Errorf("zip: truncated local file header at %d", start))
		return false
	}
	h := data[start:]
	flags := binary.LittleEndian.Uint16(h[6:8])
	method := binary.LittleEndian.Uint16(h[8:10])
	csize := int64(binary.LittleEndian.Uint32(h[18:22]))
	nameLen := int64(binary.LittleEndian.Uint16(h[26:28]))
	extraLen := int64(binary.LittleEndian.Uint16(h[28:30]))

	nameEnd := start + zipLocalHeaderLen + nameLen
	if nameEnd > int64(len(data)) {
		yield(nil, fmt.Errorf("zip: truncated file name at %d", start))
		return false
	}
	name := string(data[start+zipLocalHeaderLen : nameEnd])

	entryLen := zipLocalHeaderLen + nameLen + extraLen + csize
	entry := node.NewChild("ZipLocalFileHeader", name, start,
		types.WithDisplayName(name),
		types.WithLength(entryLen),
	)
	if !yield(entry, nil) {
		return false
	}
	if nameLen > 0 {
		fn := entry.NewChild("ZipFileName", name, zipLocalHeaderLen,
			types.WithLength(nameLen))
		if !yield(fn, nil) {
			return false
		}
	}

	// Flag bit 3: sizes live in a trailing data descriptor we do not
	// chase; the entry keeps its header and name nodes only.
	if flags&0x08 != 0 || csize == 0 {
		return true
	}
	dataOff := zipLocalHeaderLen + nameLen + extraLen
	dataEnd := start + dataOff + csize
	if dataEnd > int64(len(data)) {
		yield(nil, fmt.Errorf("zip: entry %q data runs past the window", name))
		return false
	}
	raw := data[start+dataOff : dataEnd]
	decoded := decodeZipData(method, raw)
	opts := []types.NodeOption{types.WithLength(csize)}
	if decoded != nil {
		opts = append(opts, types.WithDecoded(decoded))
	}
	body := entry.NewChild("ZipFileData", name, dataOff, opts...)
	if !yield(body, nil) {
		return false
	}
	return recurse(decoded, body, yield)
}

// decodeZipData inflates an entry's data when the method allows it.
// Undecodable data is treated as opaque, not an error.
func decodeZipData(method uint16, raw []byte) []byte {
	switch method {
	case 0: // stored
		return raw
	case 8: // deflate
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		decoded, err := io.ReadAll(io.LimitReader(fr, maxDecodedBytes))
		if err != nil && len(decoded) == 0 {
			return nil
		}
		return decoded
	default:
		return nil
	}
}
