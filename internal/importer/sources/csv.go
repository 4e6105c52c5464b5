package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"chain-addresses/internal/domain"
	"chain-addresses/internal/importer"
)

// CSV columns. "blockchain" is accepted as an alias of "chain".
const (
	csvChain        = "chain"
	csvBlockchain   = "blockchain"
	csvAddress      = "address"
	csvName         = "name"
	csvCategory     = "category"
	csvOrganization = "organization"
)

// HandCollated is the conventional name of the hand-maintained wallet CSV.
const HandCollated = "hand_collated"

type csvImporter struct {
	name string
	path string
}

// NewCSV returns an importer reading wallets from a headed CSV file. When
// name is empty the file's base name without extension is used.
func NewCSV(name, path string) importer.Importer {
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &csvImporter{name: name, path: path}
}

func (c *csvImporter) Name() string { return c.name }

func (c *csvImporter) Fetch(ctx context.Context) (*importer.Batch, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wallets, err := ReadWalletsCSV(ctx, f, c.name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.path, err)
	}
	return &importer.Batch{Wallets: wallets}, nil
}

// ReadWalletsCSV parses wallets from r. The first record is the header;
// unknown columns are ignored and blank cells become nulls.
func ReadWalletsCSV(ctx context.Context, r io.Reader, source string) ([]domain.Wallet, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols[csvChain]; !ok {
		if i, ok := cols[csvBlockchain]; ok {
			cols[csvChain] = i
		}
	}
	if _, ok := cols[csvAddress]; !ok {
		return nil, fmt.Errorf("missing %q column", csvAddress)
	}

	var wallets []domain.Wallet
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		cell := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}
		wallets = append(wallets, domain.Wallet{Address: domain.Address{
			Chain:        cell(csvChain),
			Address:      cell(csvAddress),
			Name:         optional(cell(csvName)),
			Category:     optional(cell(csvCategory)),
			Organization: optional(cell(csvOrganization)),
			DataSource:   source,
		}})
	}
	return wallets, nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
