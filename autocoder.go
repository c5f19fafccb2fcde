// Package autocoder provides a top-level convenience entry point for the
// context budgeting subsystem: building the symbol index, selecting relevant
// files for a query, and pruning conversations and file payloads into a
// token budget.
//
// Usage:
//
//	import autocoder "github.com/w4n9H/autocoder-nano-sub001"
//
//	sys, err := autocoder.New(myCompleter)
//	sel, err := sys.SelectFiles(ctx, files, "add retry to uploads")
//	res, err := sys.PruneConversation(ctx, history)
//
// A Completer is the only hard dependency; everything else has working
// defaults and can be overridden with options.
package autocoder

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/w4n9H/autocoder-nano-sub001/config"
	"github.com/w4n9H/autocoder-nano-sub001/index"
	"github.com/w4n9H/autocoder-nano-sub001/internal/metrics"
	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/pruner"
	"github.com/w4n9H/autocoder-nano-sub001/selector"
	"github.com/w4n9H/autocoder-nano-sub001/tokenizer"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// Option configures the system created by New.
type Option func(*options)

type options struct {
	config    *config.Config
	logger    *zap.Logger
	store     index.Store
	counter   tokenizer.Counter
	oracle    oracle.Oracle
	registry  prometheus.Registerer
	indexPath string
}

// WithConfig sets the full configuration. Defaults to config.DefaultConfig().
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithLogger sets a custom zap logger. Defaults to one built from the Log
// section of the configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithIndexPath persists the symbol index as JSON at the given path.
// Defaults to an in-memory index.
func WithIndexPath(path string) Option {
	return func(o *options) { o.indexPath = path }
}

// WithStore sets a custom index store. Overrides WithIndexPath.
func WithStore(s index.Store) Option {
	return func(o *options) { o.store = s }
}

// WithCounter sets a custom token counter. Defaults to the tiktoken counter
// registered for the configured oracle model, falling back to the estimator.
func WithCounter(c tokenizer.Counter) Option {
	return func(o *options) { o.counter = c }
}

// WithOracle sets a pre-built Oracle, bypassing the LLM client entirely.
// Intended for tests and offline use.
func WithOracle(orc oracle.Oracle) Option {
	return func(o *options) { o.oracle = orc }
}

// WithMetricsRegistry enables Prometheus metrics on the given registry.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// System bundles the index manager, file selector and pruners built from a
// single configuration.
type System struct {
	Index        *index.Manager
	Selector     *selector.Selector
	Conversation *pruner.ConversationPruner
	Content      *pruner.ContentPruner

	config *config.Config
	logger *zap.Logger
}

// New wires the whole subsystem. completer may be nil only when WithOracle
// supplies a pre-built Oracle.
func New(completer oracle.Completer, opts ...Option) (*System, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = cfg.Log.BuildLogger()
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	var collector *metrics.Collector
	if o.registry != nil {
		collector = metrics.NewCollector("autocoder", o.registry, logger)
	}

	counter := o.counter
	if counter == nil {
		tokenizer.RegisterOpenAICounters()
		counter = tokenizer.GetCounterOrEstimator(cfg.Oracle.Model)
	}

	orc := o.oracle
	if orc == nil {
		if completer == nil {
			return nil, fmt.Errorf("completer is required: pass one to New or use WithOracle")
		}
		orc = oracle.NewClient(cfg.Oracle, completer, logger, collector)
	}

	store := o.store
	if store == nil {
		if o.indexPath != "" {
			store = index.NewFileStore(o.indexPath)
		} else {
			store = index.NewMemoryStore()
		}
	}

	idx := index.NewManager(cfg.Index, store, orc, counter, logger)
	return &System{
		Index:        idx,
		Selector:     selector.New(cfg.Selector, idx, orc, counter, logger, collector),
		Conversation: pruner.NewConversationPruner(cfg.Pruner.Conversation, orc, counter, logger, collector),
		Content:      pruner.NewContentPruner(cfg.Pruner.Content, orc, counter, logger),
		config:       cfg,
		logger:       logger,
	}, nil
}

// Config returns the effective configuration the system was built with.
func (s *System) Config() *config.Config {
	return s.config
}

// SelectFiles builds or refreshes the symbol index from files and runs the
// full relevance pipeline for query.
func (s *System) SelectFiles(ctx context.Context, files []types.SourceFile, query string) (*selector.Selection, error) {
	return s.Selector.Select(ctx, files, query)
}

// PruneConversation prunes msgs into the configured conversation budget
// using the configured default strategy.
func (s *System) PruneConversation(ctx context.Context, msgs []types.Message) (*types.PruneResult, error) {
	return s.Conversation.Prune(ctx, msgs, s.config.Pruner.ConversationBudget, pruner.Strategy(s.config.Pruner.Strategy))
}

// PruneFiles prunes a file list into the content budget using the configured
// default strategy. convo supplies the active task intent.
func (s *System) PruneFiles(ctx context.Context, files []types.SourceFile, convo []types.Message) ([]types.SourceFile, error) {
	return s.Content.PruneFiles(ctx, files, convo, pruner.Strategy(s.config.Pruner.Strategy))
}
