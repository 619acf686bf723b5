// Package bundle decodes ANS-102 envelopes: a single ledger record whose
// JSON payload packs many data items, each with base64url-encoded tags and
// data.
package bundle

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/warpfork/go-errcat"

	"github.com/odvcencio/gitweave/pkg/ledger"
)

// EncodedTag is a tag as stored inside an item: both halves base64url.
type EncodedTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Item is one data item of a bundle, still encoded.
type Item struct {
	ID        string       `json:"id"`
	Owner     string       `json:"owner"`
	Target    string       `json:"target"`
	Nonce     string       `json:"nonce"`
	Tags      []EncodedTag `json:"tags"`
	Data      string       `json:"data"`
	Signature string       `json:"signature"`
}

type envelope struct {
	Items *[]Item `json:"items"`
}

// Decoder implements the envelope primitives over ANS-102 JSON bundles.
// The zero value is ready to use.
type Decoder struct{}

// Unbundle splits a bundle payload into its items. Malformed input fails
// with ledger.ErrBundleCorrupt.
func (Decoder) Unbundle(raw []byte) ([]Item, error) {
	return Unbundle(raw)
}

// DecodeData returns the item's payload bytes.
func (Decoder) DecodeData(item Item) ([]byte, error) {
	return DecodeData(item)
}

// DecodeTag returns the item's tag at index i.
func (Decoder) DecodeTag(item Item, i int) (ledger.Tag, error) {
	if i < 0 || i >= len(item.Tags) {
		return ledger.Tag{}, fmt.Errorf("item %s: tag index %d out of range (%d tags)", item.ID, i, len(item.Tags))
	}
	return DecodeTag(item.Tags[i])
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Unbundle parses an ANS-102 payload as downloaded. A leading BOM is
// ignored; any payload that is not UTF-8 JSON is corrupt.
func Unbundle(raw []byte) ([]Item, error) {
	raw = bytes.TrimSpace(bytes.TrimPrefix(raw, utf8BOM))
	if len(raw) == 0 {
		return nil, errcat.Errorf(ledger.ErrBundleCorrupt, "unbundle: empty payload")
	}
	if !utf8.Valid(raw) {
		return nil, errcat.Errorf(ledger.ErrBundleCorrupt, "unbundle: payload is not UTF-8 text")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errcat.Errorf(ledger.ErrBundleCorrupt, "unbundle: %v", err)
	}
	if env.Items == nil {
		return nil, errcat.Errorf(ledger.ErrBundleCorrupt, "unbundle: missing items")
	}
	items := *env.Items
	for i, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			return nil, errcat.Errorf(ledger.ErrBundleCorrupt, "unbundle: item %d has no id", i)
		}
	}
	return items, nil
}

// DecodeData decodes an item's payload.
func DecodeData(item Item) ([]byte, error) {
	data, err := decodeBase64URL(item.Data)
	if err != nil {
		return nil, fmt.Errorf("item %s: decode data: %w", item.ID, err)
	}
	return data, nil
}

// DecodeTag decodes one encoded tag.
func DecodeTag(tag EncodedTag) (ledger.Tag, error) {
	name, err := decodeBase64URL(tag.Name)
	if err != nil {
		return ledger.Tag{}, fmt.Errorf("decode tag name: %w", err)
	}
	value, err := decodeBase64URL(tag.Value)
	if err != nil {
		return ledger.Tag{}, fmt.Errorf("decode tag %q value: %w", name, err)
	}
	return ledger.Tag{Name: string(name), Value: string(value)}, nil
}

// decodeBase64URL accepts base64url with or without padding.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func encodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
