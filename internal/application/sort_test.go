package application

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestInsertSortPushToTop(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films", textColumn("Director"), textColumn("Year"))
	grid := m.Views[0].ID

	var ids []string
	for _, title := range []string{"Title", "Director"} {
		so, err := svc.InsertSort(ctx, SortRequest{Sort: domain.Sort{FkViewID: grid, FkColumnID: columnByTitle(t, m, title).ID}})
		require.NoError(t, err)
		require.Equal(t, domain.SortAsc, so.Direction)
		ids = append(ids, so.ID)
	}
	top, err := svc.InsertSort(ctx, SortRequest{
		Sort:      domain.Sort{FkViewID: grid, FkColumnID: columnByTitle(t, m, "Year").ID, Direction: domain.SortDesc},
		PushToTop: true,
	})
	require.NoError(t, err)

	sorts, err := svc.ListSorts(ctx, grid)
	require.NoError(t, err)
	require.Len(t, sorts, 3)
	require.Equal(t, []string{top.ID, ids[0], ids[1]}, []string{sorts[0].ID, sorts[1].ID, sorts[2].ID})
	for i, so := range sorts {
		require.Equal(t, float64(i+1), *so.Order)
	}

	updated, err := svc.UpdateSort(ctx, ids[0], domain.SortDesc)
	require.NoError(t, err)
	require.Equal(t, domain.SortDesc, updated.Direction)
	_, err = svc.UpdateSort(ctx, ids[0], "sideways")
	require.True(t, domain.IsBadRequest(err))
	_, err = svc.UpdateSort(ctx, "so_missing", domain.SortAsc)
	require.True(t, domain.IsNotFound(err))

	require.NoError(t, svc.DeleteSort(ctx, top.ID))
	require.NoError(t, svc.DeleteSort(ctx, top.ID))
	sorts, err = svc.ListSorts(ctx, grid)
	require.NoError(t, err)
	require.Len(t, sorts, 2)

	require.NoError(t, svc.DeleteAllSorts(ctx, grid))
	sorts, err = svc.ListSorts(ctx, grid)
	require.NoError(t, err)
	require.Empty(t, sorts)
}

func TestInsertSortValidates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films")
	title := columnByTitle(t, m, "Title")

	for _, so := range []domain.Sort{
		{FkColumnID: title.ID},
		{FkViewID: m.Views[0].ID},
		{FkViewID: m.Views[0].ID, FkColumnID: title.ID, Direction: "up"},
		{FkViewID: "vw_missing", FkColumnID: title.ID},
		{FkViewID: m.Views[0].ID, FkColumnID: "cl_missing"},
	} {
		_, err := svc.InsertSort(ctx, SortRequest{Sort: so})
		require.True(t, domain.IsBadRequest(err), "sort %+v", so)
	}
}

func TestFilterGroupsDeleteWithChildren(t *testing.T) {
	ctx := context.Background()
	obs := &countingObserver{}
	svc := newTestService(t, WithObserver(obs))
	m := newFilms(t, svc, "Films", textColumn("Director"))
	grid := m.Views[0].ID
	title := columnByTitle(t, m, "Title")
	director := columnByTitle(t, m, "Director")

	plain, err := svc.InsertFilter(ctx, domain.Filter{FkViewID: grid, FkColumnID: title.ID, ComparisonOp: "like", Value: "Star"})
	require.NoError(t, err)
	group, err := svc.InsertFilter(ctx, domain.Filter{FkViewID: grid, IsGroup: true, Children: []domain.Filter{
		{FkColumnID: director.ID, ComparisonOp: "eq", Value: "Lucas"},
		{IsGroup: true, LogicalOp: "or", Children: []domain.Filter{
			{FkColumnID: title.ID, ComparisonOp: "blank"},
		}},
	}})
	require.NoError(t, err)
	require.Equal(t, "and", group.LogicalOp)
	require.Len(t, group.Children, 2)
	require.Equal(t, 2.0, *group.Order)

	_, err = svc.InsertFilter(ctx, domain.Filter{FkViewID: grid, FkParentID: plain.ID, FkColumnID: title.ID})
	require.True(t, domain.IsBadRequest(err))
	_, err = svc.InsertFilter(ctx, domain.Filter{FkViewID: grid})
	require.True(t, domain.IsBadRequest(err))

	extra, err := svc.InsertFilter(ctx, domain.Filter{FkViewID: grid, FkParentID: group.ID, FkColumnID: title.ID, ComparisonOp: "neq", Value: "x"})
	require.NoError(t, err)
	require.Equal(t, 3.0, *extra.Order)

	children, err := svc.FilterChildren(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, children, 3)

	updated, err := svc.UpdateFilter(ctx, plain.ID, map[string]any{"value": "Trek"})
	require.NoError(t, err)
	require.Equal(t, "Trek", updated.Value)

	require.NoError(t, svc.DeleteFilter(ctx, group.ID))
	require.Equal(t, 5, obs.deleted["filter"])
	rows, err := svc.store.Filters().List(ctx, domain.Where("fk_view_id", grid))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, plain.ID, rows[0].ID)

	children, err = svc.FilterChildren(ctx, group.ID)
	require.NoError(t, err)
	require.Empty(t, children)
	require.NoError(t, svc.DeleteFilter(ctx, group.ID))
}
