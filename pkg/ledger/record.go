package ledger

// Tag is one name/value pair attached to a record. Names are not unique.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Tags is an ordered tag list.
type Tags []Tag

// Get returns the value of the first tag called name.
func (ts Tags) Get(name string) (string, bool) {
	for _, t := range ts {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// Block is the confirmation metadata of a mined record.
type Block struct {
	Height    int64 `json:"height"`
	Timestamp int64 `json:"timestamp"`
}

// Record is a ledger transaction as returned by the indexing service.
// Block is nil while the record is unconfirmed (pending in the mempool).
type Record struct {
	ID    string
	Owner string
	Tags  Tags
	Block *Block
}

// Confirmed reports whether the record has been mined.
func (r Record) Confirmed() bool {
	return r.Block != nil
}

// Height returns the block height of a confirmed record and false otherwise.
func (r Record) Height() (int64, bool) {
	if r.Block == nil {
		return 0, false
	}
	return r.Block.Height, true
}
