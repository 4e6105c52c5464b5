package coalesce

import "sort"

// Priority is the declared precedence of data sources, highest trust first.
// It is configuration, not an accident of import order.
type Priority []string

// Rank returns the position of source in p. Unlisted sources rank after all
// listed ones and tie with each other.
func (p Priority) Rank(source string) int {
	for i, name := range p {
		if name == source {
			return i
		}
	}
	return len(p)
}

// Contains reports whether source is listed.
func (p Priority) Contains(source string) bool {
	return p.Rank(source) < len(p)
}

// SortRows stably orders rows by the rank of their source. Rows of unlisted
// sources, and rows from the same source, keep their relative input order.
func (p Priority) SortRows(rows []Fields, sourceOf func(Fields) string) {
	ranks := make(map[string]int)
	rank := func(row Fields) int {
		src := sourceOf(row)
		r, ok := ranks[src]
		if !ok {
			r = p.Rank(src)
			ranks[src] = r
		}
		return r
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rank(rows[i]) < rank(rows[j])
	})
}

// Order returns names sorted by rank, unlisted names last in input order.
func (p Priority) Order(names []string) []string {
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		return p.Rank(out[i]) < p.Rank(out[j])
	})
	return out
}
