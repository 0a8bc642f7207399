package parsers

import (
	"bytes"
	"fmt"
	"iter"

	"github.com/ledongthuc/pdf"
	"github.com/mightyhouseinc/polyfile/pkg/registry"
	"github.com/mightyhouseinc/polyfile/pkg/search"
	"github.com/mightyhouseinc/polyfile/pkg/types"
	"github.com/mightyhouseinc/polyfile/pkg/window"
)

// Pattern indices follow the MustCompile argument order.
const (
	pdfPatObj = iota
	pdfPatEndobj
	pdfPatStartxref
	pdfPatEOF
)

var pdfSearch = search.MustCompile(
	[]byte("obj"),
	[]byte("endobj"),
	[]byte("startxref"),
	[]byte("%%EOF"),
)

// pdfParser maps the coarse structure of a PDF body: header, indirect
// objects, xref pointer and end-of-file markers. Deep object decoding
// belongs to the pdf library, used here only to count pages.
type pdfParser struct{}

func (p *pdfParser) Parse(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
	return func(yield func(*types.Node, error) bool) {
		data, err := readAll(w)
		if err != nil {
			yield(nil, err)
			return
		}
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			yield(nil, registry.ErrInvalidMatch)
			return
		}
		version := data
		if len(version) > 8 {
			version = version[:8]
		}
		header := node.NewChild("PDFHeader", string(version), 0,
			types.WithDisplayName("PDF header"),
			types.WithLength(int64(len(version))),
		)
		if !yield(header, nil) {
			return
		}

		if pages := pdfPageCount(w); pages > 0 {
			info := node.NewChild("PDFPageTree", pages, 0,
				types.WithDisplayName(fmt.Sprintf("%d page(s)", pages)),
				types.WithLength(w.Size()),
			)
			if !yield(info, nil) {
				return
			}
		}

		var objStart int64 = -1
		var lastEndobjEnd int64 = -1
		for m, serr := range pdfSearch.SearchBytes(data) {
			if serr != nil {
				yield(nil, serr)
				return
			}
			switch m.Pattern {
			case pdfPatObj:
				// "endobj" ends with "obj"; skip the shadow event.
				if m.End == lastEndobjEnd {
					continue
				}
				if objStart < 0 {
					objStart = pdfObjectStart(data, m.End-2)
				}
			case pdfPatEndobj:
				lastEndobjEnd = m.End
				if objStart < 0 {
					continue
				}
				obj := node.NewChild("PDFObject", string(trimObjectLabel(data, objStart)), objStart,
					types.WithDisplayName("indirect object"),
					types.WithLength(m.End+1-objStart),
				)
				objStart = -1
				if !yield(obj, nil) {
					return
				}
			case pdfPatStartxref:
				marker := node.NewChild("PDFStartXref", "startxref", m.End-8,
					types.WithDisplayName("startxref"),
					types.WithLength(9),
				)
				if !yield(marker, nil) {
					return
				}
			case pdfPatEOF:
				marker := node.NewChild("PDFEOF", "%%EOF", m.End-4,
					types.WithDisplayName("end-of-file marker"),
					types.WithLength(5),
				)
				if !yield(marker, nil) {
					return
				}
			}
		}
	}
}

// pdfObjectStart walks back from the "obj" keyword over the generation
// and object numbers ("N G obj").
func pdfObjectStart(data []byte, keywordStart int64) int64 {
	i := keywordStart
	skipBack := func(pred func(byte) bool) {
		for i > 0 && pred(data[i-1]) {
			i--
		}
	}
	digit := func(b byte) bool { return b >= '0' && b <= '9' }
	space := func(b byte) bool { return b == ' ' || b == '\t' }
	skipBack(space)
	skipBack(digit) // generation number
	skipBack(space)
	skipBack(digit) // object number
	return i
}

// trimObjectLabel returns the "N G obj" label at the object start.
func trimObjectLabel(data []byte, start int64) []byte {
	end := start
	for end < int64(len(data)) && data[end] != '\r' && data[end] != '\n' && end < start+32 {
		end++
	}
	return data[start:end]
}

// pdfPageCount asks the pdf library for the page count. The library
// panics on some malformed xref tables, so the call is isolated.
func pdfPageCount(w *window.Window) (pages int) {
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()
	r, err := pdf.NewReader(w, w.Size())
	if err != nil {
		return 0
	}
	return r.NumPage()
}
