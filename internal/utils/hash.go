package utils

import "hash/fnv"

// TieBreak hashes the given parts into a stable 64-bit value so that
// equally-ranked items sort in an order that does not depend on input order.
func TieBreak(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
