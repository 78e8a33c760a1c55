package session

import (
	"sort"
	"strconv"
	"strings"
)

// EncodeIDs renders a selection as a comma-joined ID list in canonical
// ascending order, so re-encoding a decoded selection is byte-stable.
func EncodeIDs(ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)

	parts := make([]string, 0, len(sorted))
	for _, id := range sorted {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}

// DecodeIDs parses a comma-joined ID list. Share links get hand-edited
// and truncated by messaging apps, so malformed tokens are skipped
// rather than failing the whole decode; a fully unparseable string
// yields an empty selection. Duplicates collapse (set semantics).
func DecodeIDs(s string) []int {
	seen := map[int]struct{}{}

	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		seen[id] = struct{}{}
	}

	return sortedIDs(seen)
}
