package domain

import (
	"fmt"
	"strings"
	"time"

	"chain-addresses/internal/chains"
	"chain-addresses/internal/coalesce"
)

// CategoryToken is the category of a token's wallet view.
const CategoryToken = "token"

// Token-only column names.
const (
	ColSymbol      = "symbol"
	ColDecimals    = "decimals"
	ColTokenType   = "token_type"
	ColIsActive    = "is_active"
	ColIsScam      = "is_scam"
	ColURLExplorer = "url_explorer"
	ColLaunchedAt  = "launched_at"
	ColExtraFields = "extra_fields"
)

// Token is an address carrying token metadata.
type Token struct {
	Address
	Symbol      *string        // ticker (nullable)
	Decimals    *int           // nil means unknown; 0 is a real value
	TokenType   *string        // lowercase, e.g. "erc20"
	IsActive    *bool          // provenance flags (nullable)
	IsScam      *bool
	URLExplorer *string
	LaunchedAt  *time.Time
	ExtraFields map[string]any // source-specific leftovers
}

// Normalize applies Address normalization plus token-specific cleanup.
func (t *Token) Normalize(reg *chains.Registry) {
	t.Address.Normalize(reg)
	t.Symbol = trimmed(t.Symbol)
	t.TokenType = lowered(t.TokenType)
	t.URLExplorer = trimmed(t.URLExplorer)
	if len(t.ExtraFields) == 0 {
		t.ExtraFields = nil
	}
}

// WalletView returns the token as a wallet labelled with its symbol. Derived
// at read time, never stored.
func (t *Token) WalletView() Wallet {
	w := Wallet{Address: t.Address}
	w.Name = t.Symbol
	category := CategoryToken
	w.Category = &category
	return w
}

// Fields returns the token as a field-map keyed by column name.
func (t *Token) Fields() coalesce.Fields {
	f := t.Address.fields()
	f[ColSymbol] = deref(t.Symbol)
	f[ColDecimals] = deref(t.Decimals)
	f[ColTokenType] = deref(t.TokenType)
	f[ColIsActive] = deref(t.IsActive)
	f[ColIsScam] = deref(t.IsScam)
	f[ColURLExplorer] = deref(t.URLExplorer)
	f[ColLaunchedAt] = deref(t.LaunchedAt)
	if len(t.ExtraFields) > 0 {
		f[ColExtraFields] = t.ExtraFields
	} else {
		f[ColExtraFields] = nil
	}
	return f
}

// TokenFromFields builds a token from a stored or coalesced field-map.
func TokenFromFields(f coalesce.Fields) Token {
	t := Token{
		Address:     addressFromFields(f),
		Symbol:      stringField(f, ColSymbol),
		Decimals:    intField(f, ColDecimals),
		TokenType:   stringField(f, ColTokenType),
		IsActive:    boolField(f, ColIsActive),
		IsScam:      boolField(f, ColIsScam),
		URLExplorer: stringField(f, ColURLExplorer),
	}
	if ts := timeField(f, ColLaunchedAt); !ts.IsZero() {
		t.LaunchedAt = &ts
	}
	if extra, ok := f[ColExtraFields].(map[string]any); ok && len(extra) > 0 {
		t.ExtraFields = extra
	}
	return t
}

// TokenFromProperties builds a token from a loosely typed property map, as
// found in third-party token lists. Known keys map to fields; everything else
// is kept in ExtraFields.
func TokenFromProperties(props map[string]any) (Token, error) {
	var t Token
	for k, v := range props {
		if coalesce.IsEmpty(v) {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))

		var err error
		switch key {
		case ColChain, "blockchain":
			t.Chain, err = asString(v)
		case ColAddress, "contract_address":
			t.Address.Address, err = asString(v)
		case ColName:
			t.Name, err = asStringPtr(v)
		case ColCategory:
			t.Category, err = asStringPtr(v)
		case ColOrganization:
			t.Organization, err = asStringPtr(v)
		case ColDataSource:
			t.DataSource, err = asString(v)
		case ColSymbol:
			t.Symbol, err = asStringPtr(v)
		case ColDecimals:
			var d int
			if d, err = asInt(v); err == nil {
				t.Decimals = &d
			}
		case ColTokenType, "type":
			t.TokenType, err = asStringPtr(v)
		case ColIsActive:
			t.IsActive, err = asBoolPtr(v)
		case ColIsScam:
			t.IsScam, err = asBoolPtr(v)
		case ColURLExplorer:
			t.URLExplorer, err = asStringPtr(v)
		default:
			if t.ExtraFields == nil {
				t.ExtraFields = make(map[string]any)
			}
			t.ExtraFields[k] = v
		}
		if err != nil {
			return Token{}, fmt.Errorf("%w: property %q: %v", ErrInvalidRecord, k, err)
		}
	}
	return t, nil
}
