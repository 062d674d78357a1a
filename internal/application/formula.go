package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

// FormulaJob asks for the parsed trees of formulas referencing ColumnID to be
// dropped so they are compiled again on the next read.
type FormulaJob struct {
	ModelID  string
	ColumnID string
}

// FormulaInvalidator runs formula jobs on one background goroutine. Enqueue
// never blocks; failures are logged and reported on Errors.
type FormulaInvalidator struct {
	jobs     chan FormulaJob
	errs     chan error
	run      func(context.Context, FormulaJob) error
	logger   *log.Logger
	observer Observer

	// pending counts accepted jobs not yet run; idle fires when it reaches 0.
	mu      sync.Mutex
	idle    *sync.Cond
	closed  bool
	pending int
	done    chan struct{}
}

func newFormulaInvalidator(size int, run func(context.Context, FormulaJob) error, logger *log.Logger, observer Observer) *FormulaInvalidator {
	f := &FormulaInvalidator{
		jobs:     make(chan FormulaJob, size),
		errs:     make(chan error, size),
		run:      run,
		logger:   logger,
		observer: observer,
		done:     make(chan struct{}),
	}
	f.idle = sync.NewCond(&f.mu)
	go f.loop()
	return f
}

func (f *FormulaInvalidator) loop() {
	defer close(f.done)
	for job := range f.jobs {
		err := f.run(context.Background(), job)
		f.observer.FormulaInvalidated(err)
		if err != nil {
			err = fmt.Errorf("formula invalidation for column %s: %w", job.ColumnID, err)
			f.logger.Print(err)
			select {
			case f.errs <- err:
			default:
			}
		}
		f.mu.Lock()
		f.pending--
		if f.pending == 0 {
			f.idle.Broadcast()
		}
		f.mu.Unlock()
	}
}

// Enqueue schedules job and reports whether it was accepted. A full queue or a
// closed invalidator drops the job.
func (f *FormulaInvalidator) Enqueue(job FormulaJob) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.jobs <- job:
		f.pending++
		return true
	default:
		f.logger.Printf("formula invalidation queue full, dropping column %s", job.ColumnID)
		return false
	}
}

// Errors reports failed jobs. It is buffered and never blocks the worker.
func (f *FormulaInvalidator) Errors() <-chan error { return f.errs }

// Flush waits until every job accepted so far has run. Jobs enqueued while it
// waits are waited for too.
func (f *FormulaInvalidator) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.pending > 0 {
		f.idle.Wait()
	}
}

// Close drains the queue and stops the worker.
func (f *FormulaInvalidator) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		<-f.done
		return
	}
	f.closed = true
	close(f.jobs)
	f.mu.Unlock()
	<-f.done
}

// invalidateFormulas clears the parsed tree of every formula in the model that
// references the updated column.
func (s *MetaService) invalidateFormulas(ctx context.Context, job FormulaJob) error {
	cols, err := s.columns().list(ctx, []string{job.ModelID}, domain.Where("fk_model_id", job.ModelID).Asc("order"))
	if err != nil {
		return err
	}
	for _, c := range cols {
		if c.UIDT != domain.UIFormula || c.ID == job.ColumnID {
			continue
		}
		f, err := formulaOptions.get(ctx, s, c.ID)
		if err != nil {
			return err
		}
		if f == nil || len(f.ParsedTree) == 0 || !formulaReferences(f, job.ColumnID) {
			continue
		}
		if err := s.store.Formulas().Update(ctx, f.ID, map[string]any{"parsed_tree": nil}); err != nil {
			return err
		}
		if err := s.cache.Del(ctx, domain.Key(domain.ScopeFormula, c.ID)); err != nil {
			return err
		}
	}
	return nil
}

// markFormulaBroken records on a formula that a column it references was
// deleted. References in the parsed tree are renamed to the deleted title.
func (s *MetaService) markFormulaBroken(ctx context.Context, formulaColID string, deleted *domain.Column) error {
	f, err := formulaOptions.get(ctx, s, formulaColID)
	if err != nil || f == nil {
		return err
	}
	patch := map[string]any{
		"error": fmt.Sprintf("field %s not found", deleted.Title),
	}
	if tree, changed := renameIdentifier(f.ParsedTree, deleted.ID, deleted.Title); changed {
		patch["parsed_tree"] = tree
	}
	if err := s.store.Formulas().Update(ctx, f.ID, patch); err != nil {
		return fmt.Errorf("mark formula %s: %w", formulaColID, err)
	}
	return s.cache.Del(ctx, domain.Key(domain.ScopeFormula, formulaColID))
}

// formulaReferences reports whether the formula text or its parsed tree names
// colID.
func formulaReferences(f *domain.FormulaColumn, colID string) bool {
	if colID == "" {
		return false
	}
	if strings.Contains(f.Formula, colID) {
		return true
	}
	_, found := renameIdentifier(f.ParsedTree, colID, colID)
	return found
}

// renameIdentifier rewrites Identifier nodes named from to to. It reports
// whether any node matched.
func renameIdentifier(tree json.RawMessage, from, to string) (json.RawMessage, bool) {
	if len(tree) == 0 {
		return tree, false
	}
	var root any
	if err := json.Unmarshal(tree, &root); err != nil {
		return tree, false
	}
	if !walkIdentifiers(root, from, to) {
		return tree, false
	}
	out, err := json.Marshal(root)
	if err != nil {
		return tree, false
	}
	return out, true
}

func walkIdentifiers(node any, from, to string) bool {
	found := false
	switch n := node.(type) {
	case map[string]any:
		if n["type"] == "Identifier" && n["name"] == from {
			n["name"] = to
			found = true
		}
		for _, v := range n {
			if walkIdentifiers(v, from, to) {
				found = true
			}
		}
	case []any:
		for _, v := range n {
			if walkIdentifiers(v, from, to) {
				found = true
			}
		}
	}
	return found
}
