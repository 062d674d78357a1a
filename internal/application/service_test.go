package application

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/nocometa/internal/adapters/cache/lru"
	"github.com/atvirokodosprendimai/nocometa/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu       sync.Mutex
	deleted  map[string]int
	formulas int
	failures int
}

func (o *countingObserver) CascadeDeleted(kind string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.deleted == nil {
		o.deleted = map[string]int{}
	}
	o.deleted[kind] += n
}

func (o *countingObserver) FormulaInvalidated(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.formulas++
	if err != nil {
		o.failures++
	}
}

func newTestService(t *testing.T, opts ...Option) *MetaService {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nocometa_test.db")

	db, err := sqlite.Open(dbPath)
	require.NoError(t, err, "open db")
	require.NoError(t, sqlite.RunMigrations(context.Background(), db), "run migrations")

	cache, err := lru.New(0)
	require.NoError(t, err)

	svc := NewMetaService(sqlite.NewMetaStore(db), cache, opts...)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func textColumn(title string) ColumnRequest {
	return ColumnRequest{Column: domain.Column{Title: title, ColumnName: title, UIDT: domain.UISingleLineText, DT: "varchar"}}
}

// newFilms creates a model with an Id key, a Title display value and the
// extra columns given.
func newFilms(t *testing.T, svc *MetaService, title string, extra ...ColumnRequest) *domain.Model {
	t.Helper()
	id := ColumnRequest{Column: domain.Column{Title: "Id", ColumnName: "id", UIDT: domain.UIID, DT: "integer", PK: true, AI: true}}
	name := textColumn("Title")
	name.PV = true
	cols := append([]ColumnRequest{id, name}, extra...)

	m, err := svc.InsertModel(context.Background(), ModelRequest{
		Model:   domain.Model{BaseID: "p1", Title: title, TableName: title},
		Columns: cols,
	})
	require.NoError(t, err)
	require.Len(t, m.Columns, len(cols))
	require.Len(t, m.Views, 1)
	return m
}

func columnByTitle(t *testing.T, m *domain.Model, title string) *domain.Column {
	t.Helper()
	for i := range m.Columns {
		if m.Columns[i].Title == title {
			return &m.Columns[i]
		}
	}
	t.Fatalf("column %q not found", title)
	return nil
}

func TestInsertModelCreatesDefaultGridView(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	m := newFilms(t, svc, "Films")
	require.Equal(t, domain.ModelTable, m.Type)
	require.Equal(t, "Title", m.DisplayValue().Title)
	require.Equal(t, "Id", m.PrimaryKey().Title)

	view := m.Views[0]
	require.Equal(t, domain.ViewGrid, view.Type)
	require.True(t, view.IsDefault)
	require.NotNil(t, view.Detail)

	def, err := svc.GetDefaultView(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, view.ID, def.ID)

	vcs, err := svc.ListViewColumns(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, vcs, 2)
	for _, c := range m.Columns {
		require.Contains(t, c.Meta, "defaultViewColOrder")
	}

	_, err = svc.InsertModel(ctx, ModelRequest{Model: domain.Model{BaseID: "p1", Title: "Films", TableName: "films2"}})
	require.True(t, domain.IsBadRequest(err))
	_, err = svc.InsertModel(ctx, ModelRequest{Model: domain.Model{BaseID: "p1", Title: "Other"}})
	require.True(t, domain.IsBadRequest(err))

	byTitle, err := svc.GetModelByTitle(ctx, "p1", "Films")
	require.NoError(t, err)
	require.Equal(t, m.ID, byTitle.ID)
}

func TestUpdateModelRenamesAndChecksTitles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	films := newFilms(t, svc, "Films")
	newFilms(t, svc, "Actors")

	taken := "Actors"
	_, err := svc.UpdateModel(ctx, films.ID, ModelPatch{Title: &taken})
	require.True(t, domain.IsBadRequest(err))

	renamed := "Movies"
	got, err := svc.UpdateModel(ctx, films.ID, ModelPatch{Title: &renamed, Meta: domain.Meta{"icon": "film"}})
	require.NoError(t, err)
	require.Equal(t, "Movies", got.Title)
	require.Equal(t, "film", got.Meta["icon"])

	old, err := svc.GetModelByTitle(ctx, "p1", "Films")
	require.NoError(t, err)
	require.Nil(t, old)

	models, err := svc.ListModels(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "Movies", models[0].Title)
}

func TestDeleteModelRemovesEverythingItOwns(t *testing.T) {
	ctx := context.Background()
	obs := &countingObserver{}
	svc := newTestService(t, WithObserver(obs))
	m := newFilms(t, svc, "Films")
	title := columnByTitle(t, m, "Title")

	_, err := svc.InsertSort(ctx, SortRequest{Sort: domain.Sort{FkViewID: m.Views[0].ID, FkColumnID: title.ID}})
	require.NoError(t, err)
	_, err = svc.InsertComment(ctx, domain.Comment{FkModelID: m.ID, RowID: "1", Comment: "nice"})
	require.NoError(t, err)
	gallery, err := svc.InsertView(ctx, ViewRequest{View: domain.View{FkModelID: m.ID, Title: "Cards", Type: domain.ViewGallery}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteModel(ctx, m.ID, false))

	got, err := svc.GetModel(ctx, m.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	cols, err := svc.ListColumns(ctx, m.ID, "")
	require.NoError(t, err)
	require.Empty(t, cols)
	views, err := svc.ListViews(ctx, m.ID)
	require.NoError(t, err)
	require.Empty(t, views)
	vcs, err := svc.store.ViewColumns(domain.ViewGallery).List(ctx, domain.Where("fk_view_id", gallery.ID))
	require.NoError(t, err)
	require.Empty(t, vcs)
	comments, err := svc.ListComments(ctx, m.ID, "1")
	require.NoError(t, err)
	require.Empty(t, comments)
	require.Equal(t, 1, obs.deleted["sort"])
	require.Equal(t, 2, obs.deleted["view"])

	require.NoError(t, svc.DeleteModel(ctx, m.ID, false))
}

func TestFormulaInvalidatorReportsFailuresWithoutBlocking(t *testing.T) {
	obs := &countingObserver{}
	fails := errors.New("store down")
	f := newFormulaInvalidator(1, func(_ context.Context, job FormulaJob) error {
		if job.ColumnID == "bad" {
			return fails
		}
		return nil
	}, log.New(io.Discard, "", 0), obs)
	defer f.Close()

	require.True(t, f.Enqueue(FormulaJob{ModelID: "m", ColumnID: "bad"}))
	f.Flush()

	select {
	case err := <-f.Errors():
		require.ErrorIs(t, err, fails)
	case <-time.After(time.Second):
		t.Fatal("expected a formula error")
	}
	require.True(t, f.Enqueue(FormulaJob{ModelID: "m", ColumnID: "ok"}))
	f.Flush()
	f.Close()
	require.False(t, f.Enqueue(FormulaJob{ModelID: "m", ColumnID: "late"}))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, 2, obs.formulas)
	require.Equal(t, 1, obs.failures)
}

func TestFormulaInvalidatorFlushWhileEnqueueing(t *testing.T) {
	var mu sync.Mutex
	ran := 0
	f := newFormulaInvalidator(64, func(context.Context, FormulaJob) error {
		mu.Lock()
		ran++
		mu.Unlock()
		return nil
	}, log.New(io.Discard, "", 0), &countingObserver{})
	defer f.Close()

	var (
		wg       sync.WaitGroup
		accepted int
		amu      sync.Mutex
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if f.Enqueue(FormulaJob{ModelID: "m", ColumnID: "c"}) {
					amu.Lock()
					accepted++
					amu.Unlock()
				}
				if i%10 == 0 {
					f.Flush()
				}
			}
		}()
	}
	wg.Wait()
	f.Flush()

	mu.Lock()
	defer mu.Unlock()
	amu.Lock()
	defer amu.Unlock()
	require.Positive(t, accepted)
	require.Equal(t, accepted, ran)
}
