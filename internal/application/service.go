package application

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Observer receives counts of cascade work and formula jobs.
// metrics.Recorder implements it.
type Observer interface {
	CascadeDeleted(kind string, n int)
	FormulaInvalidated(err error)
}

type nopObserver struct{}

func (nopObserver) CascadeDeleted(string, int) {}
func (nopObserver) FormulaInvalidated(error)   {}

// MetaService owns every metadata mutation. All reads and writes go through
// the store and the cache handed to NewMetaService.
type MetaService struct {
	store    domain.MetaStore
	cache    domain.Cache
	logger   *log.Logger
	observer Observer
	loads    singleflight.Group

	queueSize int
	formulas  *FormulaInvalidator
}

type Option func(*MetaService)

func WithLogger(l *log.Logger) Option {
	return func(s *MetaService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFormulaQueueSize bounds the background formula invalidation queue.
func WithFormulaQueueSize(n int) Option {
	return func(s *MetaService) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *MetaService) {
		if o != nil {
			s.observer = o
		}
	}
}

func NewMetaService(store domain.MetaStore, cache domain.Cache, opts ...Option) *MetaService {
	s := &MetaService{
		store:     store,
		cache:     cache,
		logger:    log.New(io.Discard, "", 0),
		observer:  nopObserver{},
		queueSize: 256,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.formulas = newFormulaInvalidator(s.queueSize, s.invalidateFormulas, s.logger, s.observer)
	return s
}

// Formulas exposes the background formula invalidator.
func (s *MetaService) Formulas() *FormulaInvalidator { return s.formulas }

// Close stops the background workers after draining queued jobs.
func (s *MetaService) Close() error {
	s.formulas.Close()
	return nil
}

func (s *MetaService) clearSingleQueryCache(ctx context.Context, modelID string) error {
	if modelID == "" {
		return nil
	}
	return s.cache.DelAll(ctx, domain.ScopeSingleQuery, modelID+":*")
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
