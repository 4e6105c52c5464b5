package domain

import (
	"strings"
	"time"

	"chain-addresses/internal/chains"
	"chain-addresses/internal/coalesce"
)

// Unknown is shown for absent labels and categories.
const Unknown = "unknown"

// Column names shared by wallets and tokens.
const (
	ColChain        = coalesce.ColChain
	ColAddress      = coalesce.ColAddress
	ColName         = "name"
	ColCategory     = "category"
	ColOrganization = "organization"
	ColDataSourceID = "data_source_id"
	ColDataSource   = "data_source" // joined source name; read-only
	ColExtractedAt  = "extracted_at"
)

// Address is the shape shared by tokens and wallets.
type Address struct {
	Chain        string    // canonical chain identifier
	Address      string    // normalized per chain convention
	Name         *string   // display label (nullable)
	Category     *string   // lowercase tag (nullable)
	Organization *string   // owning organization (nullable)
	DataSource   string    // source name, set by importers
	DataSourceID int64     // stamped by the persistence layer
	ExtractedAt  time.Time // stamped by the persistence layer
}

// Key returns the merge identity.
func (a *Address) Key() coalesce.Key {
	return coalesce.Key{Chain: a.Chain, Address: a.Address}
}

// Normalize trims string fields, turns empty strings into nulls, lowercases
// the category and resolves the chain. An empty chain is guessed from the
// address when possible.
func (a *Address) Normalize(reg *chains.Registry) {
	a.Chain = strings.TrimSpace(a.Chain)
	a.Address = strings.TrimSpace(a.Address)
	a.Name = trimmed(a.Name)
	a.Category = lowered(a.Category)
	a.Organization = trimmed(a.Organization)
	a.DataSource = strings.TrimSpace(a.DataSource)

	var d *chains.Descriptor
	if a.Chain == "" {
		if guessed, ok := reg.Guess(a.Address); ok {
			d = guessed
		}
	} else {
		d = reg.Resolve(a.Chain)
	}
	if d == nil {
		return
	}
	a.Chain = d.ChainString()
	a.Address = d.Normalize(a.Address)
}

// Validate checks the address against its chain's rules.
func (a *Address) Validate(reg *chains.Registry) error {
	if a.Address == "" {
		return &ValidationError{Chain: a.Chain, Address: a.Address, Reason: "empty address"}
	}
	if a.Chain == "" {
		return &ValidationError{Chain: a.Chain, Address: a.Address, Reason: "chain could not be determined"}
	}
	d, ok := reg.Get(a.Chain)
	if !ok {
		return &ValidationError{Chain: a.Chain, Address: a.Address, Reason: "unknown chain"}
	}
	if !d.IsValidAddress(a.Address) {
		return &ValidationError{Chain: a.Chain, Address: a.Address, Reason: "not a valid " + d.ChainString() + " address"}
	}
	return nil
}

func (a *Address) fields() coalesce.Fields {
	f := coalesce.Fields{
		ColChain:        a.Chain,
		ColAddress:      a.Address,
		ColName:         deref(a.Name),
		ColCategory:     deref(a.Category),
		ColOrganization: deref(a.Organization),
		ColDataSourceID: a.DataSourceID,
		ColExtractedAt:  a.ExtractedAt,
	}
	if a.DataSource != "" {
		f[ColDataSource] = a.DataSource
	}
	return f
}

func addressFromFields(f coalesce.Fields) Address {
	return Address{
		Chain:        f.String(ColChain),
		Address:      f.String(ColAddress),
		Name:         stringField(f, ColName),
		Category:     stringField(f, ColCategory),
		Organization: stringField(f, ColOrganization),
		DataSource:   f.String(ColDataSource),
		DataSourceID: int64Field(f, ColDataSourceID),
		ExtractedAt:  timeField(f, ColExtractedAt),
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func lowered(s *string) *string {
	s = trimmed(s)
	if s == nil {
		return nil
	}
	v := strings.ToLower(*s)
	return &v
}

// deref maps nil to an untyped nil so coalescing sees it as empty.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
