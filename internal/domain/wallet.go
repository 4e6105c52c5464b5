package domain

import "chain-addresses/internal/coalesce"

// Wallet is a labelled address.
type Wallet struct {
	Address
}

// LabelOrUnknown returns the label, or "unknown" when absent.
func (w *Wallet) LabelOrUnknown() string {
	if w.Name == nil {
		return Unknown
	}
	return *w.Name
}

// CategoryOrUnknown returns the category, or "unknown" when absent.
func (w *Wallet) CategoryOrUnknown() string {
	if w.Category == nil {
		return Unknown
	}
	return *w.Category
}

// Fields returns the wallet as a field-map keyed by column name.
func (w *Wallet) Fields() coalesce.Fields {
	return w.Address.fields()
}

// WalletFromFields builds a wallet from a stored or coalesced field-map.
func WalletFromFields(f coalesce.Fields) Wallet {
	return Wallet{Address: addressFromFields(f)}
}
