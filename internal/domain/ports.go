package domain

import (
	"context"
	"strings"
)

// Criteria selects metadata rows. Eq entries are ANDed, AnyOf entries are
// ORed as one group, NotIn excludes value sets.
type Criteria struct {
	Eq      map[string]any
	NotIn   map[string][]string
	AnyOf   map[string]any
	OrderBy []string
}

func Where(field string, value any) Criteria {
	return Criteria{Eq: map[string]any{field: value}}
}

func (c Criteria) And(field string, value any) Criteria {
	eq := make(map[string]any, len(c.Eq)+1)
	for k, v := range c.Eq {
		eq[k] = v
	}
	eq[field] = value
	c.Eq = eq
	return c
}

func (c Criteria) Excluding(field string, values []string) Criteria {
	if len(values) == 0 {
		return c
	}
	notIn := make(map[string][]string, len(c.NotIn)+1)
	for k, v := range c.NotIn {
		notIn[k] = v
	}
	notIn[field] = values
	c.NotIn = notIn
	return c
}

// AnyOf matches rows where at least one of fields equals value.
func AnyOf(value any, fields ...string) Criteria {
	c := Criteria{AnyOf: make(map[string]any, len(fields))}
	for _, f := range fields {
		c.AnyOf[f] = value
	}
	return c
}

func (c Criteria) Asc(field string) Criteria {
	c.OrderBy = append(append([]string(nil), c.OrderBy...), field+" asc")
	return c
}

// Table is the persistence contract of one metadata table. Missing rows are
// reported as (nil, nil), never as an error.
type Table[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, c Criteria) (*T, error)
	List(ctx context.Context, c Criteria) ([]T, error)
	// Insert assigns an id when the row has none and reloads store defaults.
	Insert(ctx context.Context, row *T) error
	InsertMany(ctx context.Context, rows []*T) error
	Update(ctx context.Context, id string, patch map[string]any) error
	UpdateWhere(ctx context.Context, c Criteria, patch map[string]any) (int64, error)
	Increment(ctx context.Context, c Criteria, field string, by int) error
	Delete(ctx context.Context, id string) error
	DeleteWhere(ctx context.Context, c Criteria) (int64, error)
	// NextOrder is max(order)+1 over the matching rows, 1 when there are none.
	NextOrder(ctx context.Context, c Criteria) (float64, error)
}

type MetaStore interface {
	Models() Table[Model]
	Columns() Table[Column]
	Lookups() Table[LookupColumn]
	Rollups() Table[RollupColumn]
	Relations() Table[LinkColumn]
	Formulas() Table[FormulaColumn]
	QrCodes() Table[QrCodeColumn]
	Barcodes() Table[BarcodeColumn]
	SelectOptions() Table[SelectOption]
	Views() Table[View]
	ViewDetails(t ViewType) Table[ViewDetail]
	ViewColumns(t ViewType) Table[ViewColumn]
	Sorts() Table[Sort]
	Filters() Table[Filter]
	Comments() Table[Comment]
}

type CacheScope string

const (
	ScopeModel             CacheScope = "model"
	ScopeColumn            CacheScope = "column"
	ScopeLookup            CacheScope = "colLookup"
	ScopeRollup            CacheScope = "colRollup"
	ScopeRelation          CacheScope = "colRelation"
	ScopeFormula           CacheScope = "colFormula"
	ScopeQrCode            CacheScope = "colQrcode"
	ScopeBarcode           CacheScope = "colBarcode"
	ScopeSelectOption      CacheScope = "colSelectOption"
	ScopeView              CacheScope = "view"
	ScopeGridView          CacheScope = "gridView"
	ScopeGalleryView       CacheScope = "galleryView"
	ScopeFormView          CacheScope = "formView"
	ScopeKanbanView        CacheScope = "kanbanView"
	ScopeMapView           CacheScope = "mapView"
	ScopeGridViewColumn    CacheScope = "gridViewColumn"
	ScopeGalleryViewColumn CacheScope = "galleryViewColumn"
	ScopeFormViewColumn    CacheScope = "formViewColumn"
	ScopeKanbanViewColumn  CacheScope = "kanbanViewColumn"
	ScopeMapViewColumn     CacheScope = "mapViewColumn"
	ScopeSort              CacheScope = "sort"
	ScopeFilter            CacheScope = "filterExp"
	ScopeComment           CacheScope = "comment"
	ScopeSingleQuery       CacheScope = "singleQuery"
)

// Key is the cache key of a single object.
func Key(scope CacheScope, parts ...string) string {
	return string(scope) + ":" + strings.Join(parts, ":")
}

// ListKey is the cache key of the list of scope objects owned by parents.
func ListKey(scope CacheScope, parents ...string) string {
	return Key(scope, parents...) + ":list"
}

type CacheDelDirection int

const (
	// ChildToParent deletes the object and drops it from every list holding it.
	ChildToParent CacheDelDirection = iota + 1
	// ParentToChild deletes a list and every object it lists.
	ParentToChild
)

// Cache is a read-through/write-through store for metadata objects and lists
// of object keys. Values are copied in and out; callers never share memory
// with the cache.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	// Update merges patch into a cached object; absent keys are left alone.
	Update(ctx context.Context, key string, patch map[string]any) error
	Del(ctx context.Context, keys ...string) error
	// DelAll removes every key of scope matching the glob pattern.
	DelAll(ctx context.Context, scope CacheScope, pattern string) error
	DeepDel(ctx context.Context, key string, dir CacheDelDirection) error
	// GetList reports a miss when the list or any of its objects is absent.
	GetList(ctx context.Context, scope CacheScope, parents []string, dst any) (bool, error)
	// SetList stores every item under scope:{item.id} and the list of their keys.
	SetList(ctx context.Context, scope CacheScope, parents []string, items any) error
	// AppendToList adds key to an existing list; a missing list stays missing.
	AppendToList(ctx context.Context, scope CacheScope, parents []string, key string) error
}
