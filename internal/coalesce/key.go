package coalesce

// Column names shared by every address-like row.
const (
	ColChain   = "chain"
	ColAddress = "address"
)

// Key identifies one address on one chain. Rows with equal keys are merge
// candidates.
type Key struct {
	Chain   string
	Address string
}

// KeyFunc extracts the merge key of a row.
type KeyFunc func(Fields) Key

// ChainAddressKey reads the key from the chain and address columns.
// Values are expected to be normalized already.
func ChainAddressKey(row Fields) Key {
	return Key{Chain: row.String(ColChain), Address: row.String(ColAddress)}
}

// Merge groups rows by key and coalesces each group. Groups are returned in
// the order their key first appears; within a group rows keep their input
// order, so input order is priority order.
func Merge(rows []Fields, key KeyFunc) []Fields {
	if key == nil {
		key = ChainAddressKey
	}

	var order []Key
	groups := make(map[Key][]Fields)
	for _, row := range rows {
		k := key(row)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], row)
	}

	out := make([]Fields, 0, len(order))
	for _, k := range order {
		out = append(out, Coalesce(groups[k]))
	}
	return out
}
