package bundle

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/odvcencio/gitweave/pkg/ledger"
)

// Entry is an unencoded item to be packed.
type Entry struct {
	Tags []ledger.Tag
	Data []byte
}

// Pack encodes entries as an ANS-102 bundle payload. Items are unsigned;
// each id is derived from the item's content so packing is deterministic.
func Pack(entries []Entry) ([]byte, error) {
	items := make([]Item, 0, len(entries))
	for i, e := range entries {
		item := Item{
			Data: encodeBase64URL(e.Data),
			Tags: make([]EncodedTag, 0, len(e.Tags)),
		}
		h := sha256.New()
		fmt.Fprintf(h, "%d:", i)
		h.Write(e.Data)
		for _, t := range e.Tags {
			item.Tags = append(item.Tags, EncodedTag{
				Name:  encodeBase64URL([]byte(t.Name)),
				Value: encodeBase64URL([]byte(t.Value)),
			})
			fmt.Fprintf(h, "|%s=%s", t.Name, t.Value)
		}
		item.ID = encodeBase64URL(h.Sum(nil))
		items = append(items, item)
	}
	return json.Marshal(struct {
		Items []Item `json:"items"`
	}{Items: items})
}
