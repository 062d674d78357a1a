package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MetaStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nocometa_test.db")

	db, err := Open(dbPath)
	require.NoError(t, err, "open db")
	require.NoError(t, RunMigrations(context.Background(), db), "run migrations")
	return NewMetaStore(db)
}

func TestInsertAssignsPrefixedIDAndReloads(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	model := domain.Model{BaseID: "p1", TableName: "films", Title: "Films", Meta: domain.Meta{"icon": "film"}}
	require.NoError(t, store.Models().Insert(ctx, &model))
	require.Regexp(t, `^md_[0-9a-f]{16}$`, model.ID)
	require.Equal(t, domain.ModelTable, model.Type)
	require.False(t, model.CreatedAt.IsZero())

	got, err := store.Models().Get(ctx, model.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "films", got.TableName)
	require.Equal(t, "film", got.Meta["icon"])

	missing, err := store.Models().Get(ctx, "md_missing")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestUpdatePersistsFalseAndMeta(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	col := domain.Column{FkModelID: "md_1", Title: "Name", ColumnName: "name", UIDT: domain.UISingleLineText, PV: true}
	require.NoError(t, store.Columns().Insert(ctx, &col))

	require.NoError(t, store.Columns().Update(ctx, col.ID, map[string]any{
		"pv":   false,
		"meta": domain.Meta{"richMode": true},
		"uidt": domain.UILongText,
	}))

	got, err := store.Columns().Get(ctx, col.ID)
	require.NoError(t, err)
	require.False(t, got.PV)
	require.Equal(t, domain.UILongText, got.UIDT)
	require.True(t, got.Meta.Bool("richMode"))
}

func TestNextOrderAndIncrement(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	byView := domain.Where("fk_view_id", "vw_1")

	next, err := store.Sorts().NextOrder(ctx, byView)
	require.NoError(t, err)
	require.Equal(t, 1.0, next)

	for i := 0; i < 3; i++ {
		next, err := store.Sorts().NextOrder(ctx, byView)
		require.NoError(t, err)
		s := domain.Sort{FkViewID: "vw_1", FkColumnID: "cl_x", Direction: domain.SortAsc, Order: domain.Float(next)}
		require.NoError(t, store.Sorts().Insert(ctx, &s))
	}
	next, err = store.Sorts().NextOrder(ctx, byView)
	require.NoError(t, err)
	require.Equal(t, 4.0, next)

	require.NoError(t, store.Sorts().Increment(ctx, byView, "order", 1))
	sorts, err := store.Sorts().List(ctx, byView.Asc("order"))
	require.NoError(t, err)
	require.Len(t, sorts, 3)
	require.Equal(t, 2.0, *sorts[0].Order)
	require.Equal(t, 4.0, *sorts[2].Order)
}

func TestCriteriaNotInAndAnyOf(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	grid := store.ViewColumns(domain.ViewGrid)

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		vc := domain.ViewColumn{FkViewID: "vw_1", FkColumnID: "cl_" + string(rune('a'+i)), Show: true, Order: domain.Float(float64(i + 1))}
		require.NoError(t, grid.Insert(ctx, &vc))
		ids = append(ids, vc.FkColumnID)
	}

	n, err := grid.UpdateWhere(ctx, domain.Where("fk_view_id", "vw_1").Excluding("fk_column_id", ids[:1]), map[string]any{"show": false})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	rows, err := grid.List(ctx, domain.Where("fk_view_id", "vw_1").Asc("order"))
	require.NoError(t, err)
	require.True(t, rows[0].Show)
	require.False(t, rows[1].Show)
	require.False(t, rows[2].Show)

	link := domain.LinkColumn{FkColumnID: "cl_l", Type: domain.RelationHasMany, FkChildColumnID: "cl_child", FkParentColumnID: "cl_parent"}
	require.NoError(t, store.Relations().Insert(ctx, &link))
	found, err := store.Relations().List(ctx, domain.AnyOf("cl_parent", "fk_child_column_id", "fk_parent_column_id"))
	require.NoError(t, err)
	require.Len(t, found, 1)

	deleted, err := grid.DeleteWhere(ctx, domain.Where("fk_view_id", "vw_1"))
	require.NoError(t, err)
	require.EqualValues(t, 3, deleted)
}

func TestFormulaParsedTreeRoundTripsAndClears(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	f := domain.FormulaColumn{FkColumnID: "cl_f", Formula: "{cl_a} + 1", ParsedTree: json.RawMessage(`{"type":"BinaryExpression"}`)}
	require.NoError(t, store.Formulas().Insert(ctx, &f))
	require.JSONEq(t, `{"type":"BinaryExpression"}`, string(f.ParsedTree))

	require.NoError(t, store.Formulas().Update(ctx, f.ID, map[string]any{"parsed_tree": nil}))
	got, err := store.Formulas().Get(ctx, f.ID)
	require.NoError(t, err)
	require.Nil(t, got.ParsedTree)
}

func TestViewDetailKeyedByView(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	d := domain.ViewDetail{FkViewID: "vw_k", FkGrpColID: "cl_status"}
	require.NoError(t, store.ViewDetails(domain.ViewKanban).Insert(ctx, &d))

	got, err := store.ViewDetails(domain.ViewKanban).Get(ctx, "vw_k")
	require.NoError(t, err)
	require.Equal(t, "cl_status", got.FkGrpColID)
	require.Nil(t, store.ViewDetails(domain.ViewType("calendar")))

	err = store.ViewDetails(domain.ViewGrid).Insert(ctx, &domain.ViewDetail{})
	require.Error(t, err)
}

func TestMissingRowsDoNotLog(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	db, err := openSQLite(filepath.Join(t.TempDir(), "quiet.db"), &out)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(ctx, db))
	store := NewMetaStore(db)

	m, err := store.Models().Get(ctx, "md_missing")
	require.NoError(t, err)
	require.Nil(t, m)
	v, err := store.Views().FindOne(ctx, domain.Where("fk_model_id", "md_missing"))
	require.NoError(t, err)
	require.Nil(t, v)
	require.Empty(t, out.String())

	require.Error(t, db.Exec("SELECT * FROM no_such_table").Error)
	require.Contains(t, out.String(), "no_such_table")
}

func TestMigrationsReachLatestVersion(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)

	dialect, err := gooseDialect(db)
	require.NoError(t, err)
	require.EqualValues(t, "sqlite3", dialect)

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
	current, latest, err := SchemaVersion(ctx, db)
	require.NoError(t, err)
	require.EqualValues(t, 1, latest)
	require.Equal(t, latest, current)
}
