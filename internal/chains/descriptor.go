// Package chains holds per-chain address rules. Every chain is one Descriptor
// value in a Registry; address semantics vary only through descriptor data.
package chains

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// MinAddressLength is the global floor: an address must be longer than this.
const MinAddressLength = 8

// Encoding selects an optional check of the address body.
type Encoding string

const (
	EncodingNone   Encoding = ""
	EncodingEVM    Encoding = "evm"    // 0x + 40 hex digits
	EncodingBase58 Encoding = "base58" // bitcoin alphabet
)

// Descriptor describes how addresses look on one blockchain.
type Descriptor struct {
	Name            string   // display name, e.g. "Binance Smart Chain"
	ID              string   // canonical identifier; derived from Name when empty
	ShortName       string   // e.g. "bsc"
	Prefixes        []string // empty accepts any prefix
	ExactLength     int      // 0 means unset
	DefaultDecimals int
	Encoding        Encoding
	DecodedLength   int  // expected decoded byte length for base58 bodies; 0 means any
	CaseSensitive   bool // false lower-cases addresses
	EVMChainID      int64
	ScannerURL      string // block explorer base URL, optional
	Synthesized     bool   // created on the fly for an unknown chain tag
}

// ChainString returns the canonical lowercase identifier used as the merge and
// lookup key.
func (d *Descriptor) ChainString() string {
	if d.ID != "" {
		return strings.ToLower(d.ID)
	}
	return deriveID(d.Name)
}

// IsValidAddress reports whether value is a plausible address on this chain.
func (d *Descriptor) IsValidAddress(value string) bool {
	if len(value) <= MinAddressLength || strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return false
	}

	if len(d.Prefixes) > 0 {
		if !d.hasPrefix(value) {
			return false
		}
		if d.ExactLength > 0 && len(value) != d.ExactLength {
			return false
		}
	}

	return d.checkEncoding(value)
}

// IsValidAddressValue is IsValidAddress for untyped importer fields.
// Non-string values are never valid.
func (d *Descriptor) IsValidAddressValue(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return d.IsValidAddress(s)
}

// Normalize trims value and applies the chain's case convention.
func (d *Descriptor) Normalize(value string) string {
	value = strings.TrimSpace(value)
	if d.CaseSensitive {
		return value
	}
	return strings.ToLower(value)
}

// ScannerAddressURL returns the explorer page for addr, or "" if the chain has
// no explorer configured.
func (d *Descriptor) ScannerAddressURL(addr string) string {
	if d.ScannerURL == "" {
		return ""
	}
	u, err := url.JoinPath(d.ScannerURL, "address", addr)
	if err != nil {
		return ""
	}
	return u
}

func (d *Descriptor) hasPrefix(value string) bool {
	for _, p := range d.Prefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}

func (d *Descriptor) checkEncoding(value string) bool {
	switch d.Encoding {
	case EncodingEVM:
		return common.IsHexAddress(value)
	case EncodingBase58:
		decoded, err := base58.Decode(value)
		if err != nil {
			return false
		}
		return d.DecodedLength == 0 || len(decoded) == d.DecodedLength
	}
	return true
}

// deriveID turns a display name into an identifier: "Bitcoin Cash" -> "bitcoin_cash".
func deriveID(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return '_'
		}
		return r
	}, name)
}
