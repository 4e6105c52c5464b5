package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"chain-addresses/internal/domain"
	"chain-addresses/internal/importer"
)

// LabelList is the YAML layout of a label list file. Token entries accept
// any property; unknown keys end up in the token's extra fields.
type LabelList struct {
	Source  string           `yaml:"source"`
	Wallets []WalletEntry    `yaml:"wallets"`
	Tokens  []map[string]any `yaml:"tokens"`
}

// WalletEntry is one wallet in a label list.
type WalletEntry struct {
	Chain        string `yaml:"chain"`
	Address      string `yaml:"address"`
	Name         string `yaml:"name"`
	Category     string `yaml:"category"`
	Organization string `yaml:"organization"`
}

type yamlImporter struct {
	name string
	path string
}

// NewYAML returns an importer for a label list file. The source name is
// taken from the file's "source" key, then name, then the file's base name.
func NewYAML(name, path string) importer.Importer {
	return &yamlImporter{name: name, path: path}
}

func (y *yamlImporter) Name() string {
	if y.name != "" {
		return y.name
	}
	return strings.TrimSuffix(filepath.Base(y.path), filepath.Ext(y.path))
}

func (y *yamlImporter) Fetch(context.Context) (*importer.Batch, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		return nil, err
	}
	var list LabelList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse %s: %w", y.path, err)
	}
	source := list.Source
	if source == "" {
		source = y.Name()
	}
	return list.Batch(source)
}

// Batch converts the list into records attributed to source. A malformed
// token entry fails the whole list.
func (l *LabelList) Batch(source string) (*importer.Batch, error) {
	batch := &importer.Batch{
		Wallets: make([]domain.Wallet, 0, len(l.Wallets)),
		Tokens:  make([]domain.Token, 0, len(l.Tokens)),
	}
	for _, w := range l.Wallets {
		batch.Wallets = append(batch.Wallets, domain.Wallet{Address: domain.Address{
			Chain:        w.Chain,
			Address:      w.Address,
			Name:         optional(w.Name),
			Category:     optional(w.Category),
			Organization: optional(w.Organization),
			DataSource:   source,
		}})
	}
	for i, props := range l.Tokens {
		t, err := domain.TokenFromProperties(props)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		t.DataSource = source
		batch.Tokens = append(batch.Tokens, t)
	}
	return batch, nil
}
