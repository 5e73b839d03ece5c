// Package convid derives the deterministic identifier that addresses a
// two-party conversation in the chat transport. The id is never stored; it is
// recomputed from the pair on every session, so the algorithm must stay
// bit-for-bit stable across deployments.
package convid

import (
	"sort"
	"strconv"
)

// Prefixes for the two identifier families derived from the same pair. The
// prefix, not the hash, separates a text conversation from its call session.
const (
	ConversationPrefix = "match"
	CallPrefix         = "call"
)

// Derive maps prefix and an unordered user pair to a stable identifier.
//
// The two ids are rendered as decimal strings, sorted lexicographically and
// joined with "_". A rolling 32-bit hash (h = h*31 + c, wrapped) is taken over
// the joined key; the absolute value is rendered base-36 under "prefix_".
//
// Known weakness: 32 bits over an unbounded id namespace can collide. The
// algorithm is kept for compatibility with existing channels; swap the
// implementation here if a keyed hash ever replaces it.
func Derive(prefix string, a, b uint64) string {
	ids := []string{
		strconv.FormatUint(a, 10),
		strconv.FormatUint(b, 10),
	}
	sort.Strings(ids)
	key := ids[0] + "_" + ids[1]

	var h int32
	for _, c := range key {
		h = h*31 + int32(c)
	}

	// Widen before negating so the minimum int32 keeps its magnitude.
	n := int64(h)
	if n < 0 {
		n = -n
	}

	return prefix + "_" + strconv.FormatInt(n, 36)
}
