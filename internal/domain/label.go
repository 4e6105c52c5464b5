package domain

// Label is the flattened, coalesced view of a wallet handed to consumers
// that annotate transaction graphs.
type Label struct {
	Chain        string
	Address      string
	Label        string  // "unknown" when absent
	Category     string  // "unknown" when absent
	Organization *string
	DataSource   string // source that supplied the winning row
}

// Label flattens the wallet.
func (w *Wallet) Label() Label {
	return Label{
		Chain:        w.Chain,
		Address:      w.Address.Address,
		Label:        w.LabelOrUnknown(),
		Category:     w.CategoryOrUnknown(),
		Organization: w.Organization,
		DataSource:   w.DataSource,
	}
}
