// Package importer defines the contract for address sources and runs them
// into the knowledge base.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chain-addresses/internal/domain"
)

// ErrSourceUnavailable wraps any failure to fetch from a source.
var ErrSourceUnavailable = errors.New("source unavailable")

// Batch is everything one importer produced in one run.
type Batch struct {
	Tokens  []domain.Token
	Wallets []domain.Wallet
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Tokens) + len(b.Wallets)
}

// Importer fetches records from one origin. Records with a blank data
// source are attributed to Name.
type Importer interface {
	Name() string
	Fetch(ctx context.Context) (*Batch, error)
}

// SourceErrorPolicy decides what a rebuild does when one source fails.
type SourceErrorPolicy string

const (
	// PolicySkip logs the failure and continues with the next source.
	PolicySkip SourceErrorPolicy = "skip"
	// PolicyAbort stops the rebuild at the first failing source.
	PolicyAbort SourceErrorPolicy = "abort"
)

// ParsePolicy parses a policy name. Empty means PolicySkip.
func ParsePolicy(s string) (SourceErrorPolicy, error) {
	switch p := SourceErrorPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicySkip, nil
	case PolicySkip, PolicyAbort:
		return p, nil
	default:
		return "", fmt.Errorf("unknown source error policy %q", s)
	}
}

// Func adapts a function to the Importer interface.
type Func struct {
	SourceName string
	FetchFunc  func(ctx context.Context) (*Batch, error)
}

// Name implements Importer.
func (f Func) Name() string { return f.SourceName }

// Fetch implements Importer.
func (f Func) Fetch(ctx context.Context) (*Batch, error) { return f.FetchFunc(ctx) }
