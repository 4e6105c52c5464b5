package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chain-addresses/internal/chains"
	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/observability"
	"chain-addresses/internal/storage"
)

// Writer is the persistence side used by the runner. Satisfied by
// *addressdb.DB.
type Writer interface {
	InsertTokens(ctx context.Context, tokens []domain.Token) (storage.InsertStats, error)
	InsertWallets(ctx context.Context, wallets []domain.Wallet) (storage.InsertStats, error)
	ClearSource(ctx context.Context, schema domain.Schema, source string) (int64, error)
	DropAndRecreate(ctx context.Context) error
	Close() error
}

// Options configures a Runner.
type Options struct {
	Writer    Writer
	Registry  *chains.Registry
	Importers []Importer
	Priority  coalesce.Priority
	Policy    SourceErrorPolicy
	Logger    *zap.Logger
}

// Runner imports sources into the knowledge base.
type Runner struct {
	writer    Writer
	reg       *chains.Registry
	importers []Importer
	priority  coalesce.Priority
	policy    SourceErrorPolicy
	logger    *zap.Logger
}

// Result summarizes one importer run.
type Result struct {
	Source   string
	Tokens   storage.InsertStats
	Wallets  storage.InsertStats
	Invalid  int
	Duration time.Duration
	Err      error
}

// RebuildResult summarizes a full rebuild.
type RebuildResult struct {
	RunID   string
	Results []Result
}

// Failed returns the results that ended in an error.
func (r *RebuildResult) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// NewRunner creates a runner.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		writer:    opts.Writer,
		reg:       opts.Registry,
		importers: opts.Importers,
		priority:  opts.Priority,
		policy:    opts.Policy,
		logger:    opts.Logger,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.reg == nil {
		r.reg = chains.Default()
	}
	if r.policy == "" {
		r.policy = PolicySkip
	}
	return r
}

// Ordered returns the registered importers in declared priority order.
// Importers missing from the priority run last in registration order.
func (r *Runner) Ordered() []Importer {
	byName := make(map[string]Importer, len(r.importers))
	names := make([]string, 0, len(r.importers))
	for _, imp := range r.importers {
		byName[imp.Name()] = imp
		names = append(names, imp.Name())
	}
	out := make([]Importer, 0, len(names))
	for _, name := range r.priority.Order(names) {
		out = append(out, byName[name])
	}
	return out
}

// Rebuild drops and recreates the schema, runs every importer in priority
// order and disconnects. Failing sources are skipped or abort the rebuild
// depending on the policy.
func (r *Runner) Rebuild(ctx context.Context) (*RebuildResult, error) {
	result := &RebuildResult{RunID: uuid.NewString()}
	logger := r.logger.With(zap.String("run_id", result.RunID))

	defer func() {
		if err := r.writer.Close(); err != nil {
			logger.Warn("disconnect after rebuild failed", zap.Error(err))
		}
	}()

	for _, imp := range r.importers {
		if !r.priority.Contains(imp.Name()) {
			logger.Warn("source missing from priority, its rows rank last", zap.String("source", imp.Name()))
		}
	}

	logger.Info("rebuild started", zap.Int("sources", len(r.importers)))
	if err := r.writer.DropAndRecreate(ctx); err != nil {
		observability.RecordRebuild("error", time.Now().Unix())
		return result, fmt.Errorf("recreate schema: %w", err)
	}

	for _, imp := range r.Ordered() {
		res, err := r.run(ctx, logger, imp)
		result.Results = append(result.Results, res)
		if err == nil {
			continue
		}
		if r.policy == PolicyAbort || ctx.Err() != nil {
			logger.Error("rebuild aborted", zap.String("source", imp.Name()), zap.Error(err))
			observability.RecordRebuild("error", time.Now().Unix())
			return result, err
		}
		logger.Warn("skipping failed source", zap.String("source", imp.Name()), zap.Error(err))
	}

	status := "success"
	if len(result.Failed()) > 0 {
		status = "partial"
	}
	observability.RecordRebuild(status, time.Now().Unix())
	logger.Info("rebuild finished",
		zap.String("status", status),
		zap.Int("sources", len(result.Results)),
		zap.Int("failed", len(result.Failed())),
	)
	return result, nil
}

// Import runs a single importer against the current schema. Only the
// importer's own sources are replaced.
func (r *Runner) Import(ctx context.Context, imp Importer) (*Result, error) {
	res, err := r.run(ctx, r.logger, imp)
	return &res, err
}

func (r *Runner) run(ctx context.Context, logger *zap.Logger, imp Importer) (Result, error) {
	start := time.Now()
	res := Result{Source: imp.Name()}
	logger = logger.With(zap.String("source", imp.Name()))

	err := r.runImporter(ctx, logger, imp, &res)
	res.Duration = time.Since(start)
	res.Err = err

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordImportRun(imp.Name(), status, res.Duration.Seconds())
	return res, err
}

func (r *Runner) runImporter(ctx context.Context, logger *zap.Logger, imp Importer, res *Result) error {
	batch, err := imp.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, imp.Name(), err)
	}
	if batch.Len() == 0 {
		logger.Warn("source returned no records")
	}

	tokens := make([]domain.Token, 0, len(batch.Tokens))
	for _, t := range batch.Tokens {
		if t.DataSource == "" {
			t.DataSource = imp.Name()
		}
		t.Normalize(r.reg)
		if err := t.Validate(r.reg); err != nil {
			r.invalid(logger, res, "token", err)
			continue
		}
		tokens = append(tokens, t)
	}

	wallets := make([]domain.Wallet, 0, len(batch.Wallets))
	for _, w := range batch.Wallets {
		if w.DataSource == "" {
			w.DataSource = imp.Name()
		}
		w.Normalize(r.reg)
		if err := w.Validate(r.reg); err != nil {
			r.invalid(logger, res, "wallet", err)
			continue
		}
		wallets = append(wallets, w)
	}

	ownTokens, ownWallets := false, false
	for _, group := range groupBySource(tokens, func(t *domain.Token) string { return t.DataSource }) {
		ownTokens = ownTokens || group[0].DataSource == imp.Name()
		stats, err := r.writer.InsertTokens(ctx, group)
		res.Tokens.Add(stats)
		if err != nil {
			return fmt.Errorf("write tokens from %s: %w", imp.Name(), err)
		}
	}
	for _, group := range groupBySource(wallets, func(w *domain.Wallet) string { return w.DataSource }) {
		ownWallets = ownWallets || group[0].DataSource == imp.Name()
		stats, err := r.writer.InsertWallets(ctx, group)
		res.Wallets.Add(stats)
		if err != nil {
			return fmt.Errorf("write wallets from %s: %w", imp.Name(), err)
		}
	}

	// A source that no longer yields a record type must not keep its old rows.
	if !ownTokens {
		if err := r.clear(ctx, logger, domain.TokenSchema, imp.Name()); err != nil {
			return err
		}
	}
	if !ownWallets {
		if err := r.clear(ctx, logger, domain.WalletSchema, imp.Name()); err != nil {
			return err
		}
	}

	logger.Info("import finished",
		zap.Int("tokens", res.Tokens.Written),
		zap.Int("wallets", res.Wallets.Written),
		zap.Int("invalid", res.Invalid),
		zap.Int("collisions", res.Tokens.Collisions+res.Wallets.Collisions),
	)
	return nil
}

func (r *Runner) clear(ctx context.Context, logger *zap.Logger, schema domain.Schema, source string) error {
	n, err := r.writer.ClearSource(ctx, schema, source)
	if err != nil {
		return fmt.Errorf("clear %s from %s: %w", schema.Table, source, err)
	}
	if n > 0 {
		logger.Info("cleared stale rows", zap.String("table", schema.Table), zap.Int64("rows", n))
	}
	return nil
}

func (r *Runner) invalid(logger *zap.Logger, res *Result, kind string, err error) {
	res.Invalid++
	observability.RecordInvalidRecord(res.Source)

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		logger.Warn("skipping invalid record",
			zap.String("kind", kind),
			zap.String("chain", verr.Chain),
			zap.String("address", verr.Address),
			zap.String("reason", verr.Reason),
		)
		return
	}
	logger.Warn("skipping invalid record", zap.String("kind", kind), zap.Error(err))
}

// groupBySource splits records by data source, keeping first-seen order.
func groupBySource[T any](records []T, source func(*T) string) [][]T {
	index := make(map[string]int)
	var groups [][]T
	for i := range records {
		name := source(&records[i])
		g, ok := index[name]
		if !ok {
			g = len(groups)
			index[name] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], records[i])
	}
	return groups
}
