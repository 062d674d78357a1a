package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// table persists domain values of type D through gorm row models of type R.
type table[R any, D any] struct {
	db       *gorm.DB
	pk       string
	prefix   string
	idOf     func(*D) *string
	toDomain func(*R) D
	toRow    func(*D) R
}

func (t *table[R, D]) Get(ctx context.Context, id string) (*D, error) {
	if id == "" {
		return nil, nil
	}
	return t.FindOne(ctx, domain.Where(t.pk, id))
}

func (t *table[R, D]) FindOne(ctx context.Context, c domain.Criteria) (*D, error) {
	var r R
	err := applyCriteria(t.db.WithContext(ctx).Model(new(R)), c).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d := t.toDomain(&r)
	return &d, nil
}

func (t *table[R, D]) List(ctx context.Context, c domain.Criteria) ([]D, error) {
	rows := make([]R, 0)
	if err := applyCriteria(t.db.WithContext(ctx).Model(new(R)), c).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]D, 0, len(rows))
	for i := range rows {
		result = append(result, t.toDomain(&rows[i]))
	}
	return result, nil
}

func (t *table[R, D]) Insert(ctx context.Context, row *D) error {
	if err := t.assignID(row); err != nil {
		return err
	}
	r := t.toRow(row)
	if err := t.db.WithContext(ctx).Create(&r).Error; err != nil {
		return err
	}
	loaded, err := t.Get(ctx, *t.idOf(row))
	if err != nil {
		return err
	}
	if loaded != nil {
		*row = *loaded
	}
	return nil
}

func (t *table[R, D]) InsertMany(ctx context.Context, rows []*D) error {
	if len(rows) == 0 {
		return nil
	}
	batch := make([]R, 0, len(rows))
	for _, d := range rows {
		if err := t.assignID(d); err != nil {
			return err
		}
		batch = append(batch, t.toRow(d))
	}
	if err := t.db.WithContext(ctx).Create(&batch).Error; err != nil {
		return err
	}
	for i := range batch {
		*rows[i] = t.toDomain(&batch[i])
	}
	return nil
}

func (t *table[R, D]) Update(ctx context.Context, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	return t.db.WithContext(ctx).Model(new(R)).
		Where(map[string]any{t.pk: id}).
		Updates(encodePatch(patch)).Error
}

func (t *table[R, D]) UpdateWhere(ctx context.Context, c domain.Criteria, patch map[string]any) (int64, error) {
	if len(patch) == 0 {
		return 0, nil
	}
	res := applyCriteria(t.db.WithContext(ctx).Model(new(R)), c).Updates(encodePatch(patch))
	return res.RowsAffected, res.Error
}

func (t *table[R, D]) Increment(ctx context.Context, c domain.Criteria, field string, by int) error {
	return applyCriteria(t.db.WithContext(ctx).Model(new(R)), c).
		UpdateColumn(field, gorm.Expr("? + ?", clause.Column{Name: field}, by)).Error
}

func (t *table[R, D]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return t.db.WithContext(ctx).Where(map[string]any{t.pk: id}).Delete(new(R)).Error
}

func (t *table[R, D]) DeleteWhere(ctx context.Context, c domain.Criteria) (int64, error) {
	res := applyCriteria(t.db.WithContext(ctx), c).Delete(new(R))
	return res.RowsAffected, res.Error
}

func (t *table[R, D]) NextOrder(ctx context.Context, c domain.Criteria) (float64, error) {
	var max sql.NullFloat64
	row := applyCriteria(t.db.WithContext(ctx).Model(new(R)), c).
		Select("MAX(?)", clause.Column{Name: "order"}).
		Row()
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return max.Float64 + 1, nil
}

func (t *table[R, D]) assignID(row *D) error {
	id := t.idOf(row)
	if *id != "" {
		return nil
	}
	if t.prefix == "" {
		return fmt.Errorf("%s is required", t.pk)
	}
	*id = newID(t.prefix)
	return nil
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func applyCriteria(q *gorm.DB, c domain.Criteria) *gorm.DB {
	if len(c.Eq) > 0 {
		eq := make(map[string]any, len(c.Eq))
		for k, v := range c.Eq {
			eq[k] = plainValue(v)
		}
		q = q.Where(eq)
	}
	for _, field := range sortedKeys(c.NotIn) {
		values := make([]any, 0, len(c.NotIn[field]))
		for _, v := range c.NotIn[field] {
			values = append(values, v)
		}
		q = q.Where(clause.Not(clause.IN{Column: clause.Column{Name: field}, Values: values}))
	}
	if len(c.AnyOf) > 0 {
		exprs := make([]clause.Expression, 0, len(c.AnyOf))
		for _, field := range sortedKeys(c.AnyOf) {
			exprs = append(exprs, clause.Eq{Column: clause.Column{Name: field}, Value: plainValue(c.AnyOf[field])})
		}
		q = q.Where(clause.Or(exprs...))
	}
	for _, term := range c.OrderBy {
		parts := strings.Fields(term)
		if len(parts) == 0 {
			continue
		}
		desc := len(parts) > 1 && strings.EqualFold(parts[1], "desc")
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: parts[0]}, Desc: desc})
	}
	return q
}

// encodePatch turns a domain-level patch into column values: JSON columns are
// stringified and named string types are unwrapped.
func encodePatch(patch map[string]any) map[string]any {
	out := make(map[string]any, len(patch))
	for k, v := range patch {
		switch k {
		case "meta":
			out[k] = domain.ToMeta(v).String()
		case "validate":
			out[k] = domain.StringifyJSON(v)
		case "parsed_tree":
			raw := domain.StringifyJSON(v)
			if raw == "" || raw == "null" {
				out[k] = nil
			} else {
				out[k] = datatypes.JSON(raw)
			}
		default:
			out[k] = plainValue(v)
		}
	}
	return out
}

func plainValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String && rv.Type() != reflect.TypeOf("") {
		return rv.String()
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
