// Package parsers provides the built-in format capabilities. Importing
// it registers them with the default registry; each capability decodes
// one format's structure and recurses into embedded payloads through
// its node's submatcher.
package parsers

import (
	"io"

	"github.com/mightyhouseinc/polyfile/pkg/registry"
	"github.com/mightyhouseinc/polyfile/pkg/types"
	"github.com/mightyhouseinc/polyfile/pkg/window"
)

const (
	// maxParseBytes bounds how much of a window a capability loads.
	maxParseBytes = 64 << 20

	// maxDecodedBytes bounds a single decompressed payload.
	maxDecodedBytes = 64 << 20
)

func init() {
	registry.Register(&zipParser{}, "application/zip")
	registry.Register(&gzipParser{}, "application/gzip")
	registry.Register(&pngParser{}, "image/png")
	registry.Register(&pdfParser{}, "application/pdf")
}

// readAll loads the window contents up to maxParseBytes.
func readAll(w *window.Window) ([]byte, error) {
	size := w.Size()
	if size > maxParseBytes {
		size = maxParseBytes
	}
	buf := make([]byte, size)
	if _, err := w.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// recurse feeds a decoded payload back through the node's submatcher
// and forwards everything it finds. It reports whether the consumer
// wants more output.
func recurse(data []byte, parent *types.Node, yield func(*types.Node, error) bool) bool {
	m := parent.Submatcher()
	if m == nil || len(data) == 0 {
		return true
	}
	for child, err := range m.Submatch(window.FromBytes(data), parent) {
		if !yield(child, err) {
			return false
		}
		if err != nil {
			return false
		}
	}
	return true
}
