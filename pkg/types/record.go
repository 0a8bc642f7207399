package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Record is the stable export shape for one node. Downstream tooling
// depends on these field names; do not rename them.
type Record struct {
	RelativeOffset int64     `json:"relative_offset"`
	Offset         int64     `json:"offset"`
	Size           int64     `json:"size"`
	Type           string    `json:"type"`
	Name           string    `json:"name"`
	Value          string    `json:"value"`
	Children       []*Record `json:"subEls"`
	ImgData        string    `json:"img_data,omitempty"`
	Decoded        string    `json:"decoded,omitempty"` // base64
	Extension      string    `json:"extension,omitempty"`
}

// Record serializes the subtree rooted at n.
func (n *Node) Record() *Record {
	r := &Record{
		RelativeOffset: n.RelativeOffset(),
		Offset:         n.Offset(),
		Size:           n.Length(),
		Type:           n.name,
		Name:           n.displayName,
		Value:          fmt.Sprint(n.value),
		Children:       make([]*Record, 0, len(n.children)),
		ImgData:        n.imgData,
		Extension:      n.extension,
	}
	if n.decoded != nil {
		r.Decoded = base64.StdEncoding.EncodeToString(n.decoded)
	}
	for _, c := range n.children {
		r.Children = append(r.Children, c.Record())
	}
	return r
}

// JSON serializes the subtree rooted at n to the export format.
func (n *Node) JSON() ([]byte, error) {
	return json.Marshal(n.Record())
}
