package remote

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/odvcencio/gitweave/pkg/ledger"
)

type rankedUpdate struct {
	rec      ledger.Record
	height   int64
	unixTime float64
}

// rankUpdates orders update-ref candidates most recent first.
//
// Unconfirmed candidates rank one block above the highest confirmed
// candidate in the set, so a pending update always beats any mined one.
// Equal heights (including two pending updates) fall back to the Unix-Time
// tag, larger first. The sort is stable, so full ties keep query order.
func rankUpdates(candidates []ledger.Record) []ledger.Record {
	var maxHeight int64
	for _, rec := range candidates {
		if h, ok := rec.Height(); ok && h > maxHeight {
			maxHeight = h
		}
	}
	pendingHeight := maxHeight + 1

	ranked := make([]rankedUpdate, 0, len(candidates))
	for _, rec := range candidates {
		h, ok := rec.Height()
		if !ok {
			h = pendingHeight
		}
		ranked = append(ranked, rankedUpdate{rec: rec, height: h, unixTime: unixTime(rec)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].height != ranked[j].height {
			return ranked[i].height > ranked[j].height
		}
		return ranked[i].unixTime > ranked[j].unixTime
	})

	out := make([]ledger.Record, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.rec)
	}
	return out
}

// unixTime reads the writer's Unix-Time tag. Missing or unparsable values
// count as 0.
func unixTime(rec ledger.Record) float64 {
	v, ok := rec.Tags.Get(TagUnixTime)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return f
}
