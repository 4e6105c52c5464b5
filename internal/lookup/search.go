package lookup

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"

	"chain-addresses/internal/domain"
)

// Match is one fuzzy search hit.
type Match struct {
	Wallet *domain.Wallet
	Score  int
}

// labelSource adapts wallets to fuzzy.Source. Each entry reads
// "label_address" with spaces replaced so multi-word queries still match.
type labelSource []*domain.Wallet

func (ls labelSource) Len() int { return len(ls) }

func (ls labelSource) String(i int) string {
	w := ls[i]
	return strings.ReplaceAll(w.LabelOrUnknown(), " ", "_") + "_" + w.Address.Address
}

// Search fuzzy-matches query against wallet labels and addresses, best
// first. limit <= 0 returns every match.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	wallets, err := s.Wallets(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	src := labelSource(wallets)
	found := fuzzy.FindFrom(strings.ReplaceAll(query, " ", "_"), src)
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}

	out := make([]Match, len(found))
	for i, m := range found {
		out[i] = Match{Wallet: src[m.Index], Score: m.Score}
	}
	return out, nil
}
