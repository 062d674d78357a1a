package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

// optionStore owns the side table of one column variant.
type optionStore interface {
	scope() domain.CacheScope
	load(ctx context.Context, s *MetaService, colID string) (domain.ColumnOptions, error)
	insert(ctx context.Context, s *MetaService, col *domain.Column) error
	remove(ctx context.Context, s *MetaService, colID string) (int64, error)
}

var (
	lookupOptions = rowOptions[domain.LookupColumn, *domain.LookupColumn]{
		optScope: domain.ScopeLookup,
		table:    func(m domain.MetaStore) domain.Table[domain.LookupColumn] { return m.Lookups() },
		bind:     func(o *domain.LookupColumn, colID string) { o.ID, o.FkColumnID = "", colID },
	}
	rollupOptions = rowOptions[domain.RollupColumn, *domain.RollupColumn]{
		optScope: domain.ScopeRollup,
		table:    func(m domain.MetaStore) domain.Table[domain.RollupColumn] { return m.Rollups() },
		bind:     func(o *domain.RollupColumn, colID string) { o.ID, o.FkColumnID = "", colID },
	}
	relationOptions = rowOptions[domain.LinkColumn, *domain.LinkColumn]{
		optScope: domain.ScopeRelation,
		table:    func(m domain.MetaStore) domain.Table[domain.LinkColumn] { return m.Relations() },
		bind:     func(o *domain.LinkColumn, colID string) { o.ID, o.FkColumnID = "", colID },
	}
	formulaOptions = rowOptions[domain.FormulaColumn, *domain.FormulaColumn]{
		optScope: domain.ScopeFormula,
		table:    func(m domain.MetaStore) domain.Table[domain.FormulaColumn] { return m.Formulas() },
		bind: func(o *domain.FormulaColumn, colID string) {
			o.ID, o.FkColumnID = "", colID
			if string(o.ParsedTree) == "null" {
				o.ParsedTree = nil
			}
		},
	}
	qrCodeOptions = rowOptions[domain.QrCodeColumn, *domain.QrCodeColumn]{
		optScope: domain.ScopeQrCode,
		table:    func(m domain.MetaStore) domain.Table[domain.QrCodeColumn] { return m.QrCodes() },
		bind:     func(o *domain.QrCodeColumn, colID string) { o.ID, o.FkColumnID = "", colID },
	}
	barcodeOptions = rowOptions[domain.BarcodeColumn, *domain.BarcodeColumn]{
		optScope: domain.ScopeBarcode,
		table:    func(m domain.MetaStore) domain.Table[domain.BarcodeColumn] { return m.Barcodes() },
		bind:     func(o *domain.BarcodeColumn, colID string) { o.ID, o.FkColumnID = "", colID },
	}

	// optionStores is the one place mapping a uidt to the side table it owns.
	// Types missing here own no side table.
	optionStores = map[domain.UIType]optionStore{
		domain.UILookup:              lookupOptions,
		domain.UIRollup:              rollupOptions,
		domain.UILinkToAnotherRecord: relationOptions,
		domain.UILinks:               relationOptions,
		domain.UIFormula:             formulaOptions,
		domain.UIQrCode:              qrCodeOptions,
		domain.UIBarcode:             barcodeOptions,
		domain.UISingleSelect:        selectOptionStore{},
		domain.UIMultiSelect:         selectOptionStore{},
	}
)

// rowOptions is a variant owning exactly one row per column, cached under the
// column id.
type rowOptions[T any, P interface {
	*T
	domain.ColumnOptions
}] struct {
	optScope domain.CacheScope
	table    func(domain.MetaStore) domain.Table[T]
	bind     func(P, string)
}

func (o rowOptions[T, P]) scope() domain.CacheScope { return o.optScope }

func (o rowOptions[T, P]) get(ctx context.Context, s *MetaService, colID string) (*T, error) {
	key := domain.Key(o.optScope, colID)
	var v T
	ok, err := s.cache.Get(ctx, key, &v)
	if err != nil {
		return nil, err
	}
	if ok {
		return &v, nil
	}
	row, err := o.table(s.store).FindOne(ctx, domain.Where("fk_column_id", colID))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if row == nil {
		return nil, nil
	}
	if err := s.cache.Set(ctx, key, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (o rowOptions[T, P]) load(ctx context.Context, s *MetaService, colID string) (domain.ColumnOptions, error) {
	row, err := o.get(ctx, s, colID)
	if err != nil || row == nil {
		return nil, err
	}
	return P(row), nil
}

func (o rowOptions[T, P]) insert(ctx context.Context, s *MetaService, col *domain.Column) error {
	row := new(T)
	if given, ok := col.ColOptions.(P); ok && given != nil {
		*row = *(*T)(given)
	}
	o.bind(P(row), col.ID)
	if err := o.table(s.store).Insert(ctx, row); err != nil {
		return fmt.Errorf("insert %s options for %s: %w", col.UIDT, col.ID, err)
	}
	return s.cache.Set(ctx, domain.Key(o.optScope, col.ID), row)
}

func (o rowOptions[T, P]) remove(ctx context.Context, s *MetaService, colID string) (int64, error) {
	n, err := o.table(s.store).DeleteWhere(ctx, domain.Where("fk_column_id", colID))
	if err != nil {
		return 0, fmt.Errorf("delete %s options for %s: %w", o.optScope, colID, err)
	}
	return n, s.cache.DeepDel(ctx, domain.Key(o.optScope, colID), domain.ChildToParent)
}

// selectColors is the palette assigned round-robin to options without a color.
var selectColors = []string{
	"#cfdffe", "#d0f1fd", "#c2f5e8", "#ffdaf6", "#ffdce5",
	"#fee2d5", "#ffeab6", "#d1f7c4", "#ede2fe", "#eeeeee",
}

type selectOptionStore struct{}

func (selectOptionStore) scope() domain.CacheScope { return domain.ScopeSelectOption }

func (selectOptionStore) repo(s *MetaService) repo[domain.SelectOption] {
	return repo[domain.SelectOption]{
		table: s.store.SelectOptions(), cache: s.cache, scope: domain.ScopeSelectOption, loads: &s.loads,
		id:    func(o *domain.SelectOption) string { return o.ID },
		order: func(o *domain.SelectOption) *float64 { return o.Order },
	}
}

func (st selectOptionStore) load(ctx context.Context, s *MetaService, colID string) (domain.ColumnOptions, error) {
	opts, err := st.repo(s).list(ctx, []string{colID}, domain.Where("fk_column_id", colID).Asc("order"))
	if err != nil {
		return nil, err
	}
	return &domain.SelectOptions{Options: opts}, nil
}

func (st selectOptionStore) insert(ctx context.Context, s *MetaService, col *domain.Column) error {
	options := selectOptionsFor(col)
	if len(options) == 0 {
		return nil
	}
	rows := make([]*domain.SelectOption, 0, len(options))
	for i := range options {
		rows = append(rows, &options[i])
	}
	if err := s.store.SelectOptions().InsertMany(ctx, rows); err != nil {
		return fmt.Errorf("insert select options for %s: %w", col.ID, err)
	}
	return st.repo(s).resetList(ctx, col.ID)
}

func (st selectOptionStore) remove(ctx context.Context, s *MetaService, colID string) (int64, error) {
	n, err := s.store.SelectOptions().DeleteWhere(ctx, domain.Where("fk_column_id", colID))
	if err != nil {
		return 0, fmt.Errorf("delete select options for %s: %w", colID, err)
	}
	return n, st.repo(s).resetList(ctx, colID)
}

// selectOptionsFor builds the option rows of a select column from explicit
// options, or from the legacy comma separated dtxp list.
func selectOptionsFor(col *domain.Column) []domain.SelectOption {
	var given []domain.SelectOption
	if so, ok := col.ColOptions.(*domain.SelectOptions); ok && so != nil {
		given = so.Options
	}

	out := make([]domain.SelectOption, 0, len(given))
	if len(given) > 0 {
		trim := domain.IsEnumOrSet(col.DT)
		for i, o := range given {
			title := o.Title
			if trim {
				title = strings.TrimRight(title, " \t\r\n")
			}
			out = append(out, domain.SelectOption{
				FkColumnID: col.ID,
				Title:      title,
				Color:      defaultString(o.Color, selectColors[i%len(selectColors)]),
				Order:      orderOr(o.Order, float64(i+1)),
			})
		}
		return out
	}

	for i, title := range splitOptionList(col.DTXP) {
		out = append(out, domain.SelectOption{
			FkColumnID: col.ID,
			Title:      title,
			Color:      selectColors[i%len(selectColors)],
			Order:      domain.Float(float64(i + 1)),
		})
	}
	return out
}

// splitOptionList splits a dtxp value list on commas outside quotes and strips
// one surrounding quote from every entry.
func splitOptionList(dtxp string) []string {
	if strings.TrimSpace(dtxp) == "" {
		return nil
	}
	var (
		parts []string
		cur   strings.Builder
		quote rune
	)
	for _, r := range dtxp {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == ',':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	parts = append(parts, cur.String())

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, stripQuote(p))
	}
	return out
}

func stripQuote(v string) string {
	if strings.HasPrefix(v, "'") || strings.HasPrefix(v, `"`) {
		v = v[1:]
	}
	if strings.HasSuffix(v, "'") || strings.HasSuffix(v, `"`) {
		v = v[:len(v)-1]
	}
	return v
}

func orderOr(o *float64, fallback float64) *float64 {
	if o != nil {
		return o
	}
	return domain.Float(fallback)
}

// loadColumnOptions fills col.ColOptions from the side table matching its uidt.
func (s *MetaService) loadColumnOptions(ctx context.Context, col *domain.Column) error {
	store, ok := optionStores[col.UIDT]
	if !ok {
		col.ColOptions = nil
		return nil
	}
	opts, err := store.load(ctx, s, col.ID)
	if err != nil {
		return err
	}
	col.ColOptions = opts
	return nil
}

func (s *MetaService) insertColumnOptions(ctx context.Context, col *domain.Column) error {
	store, ok := optionStores[col.UIDT]
	if !ok {
		return nil
	}
	return store.insert(ctx, s, col)
}

func (s *MetaService) removeColumnOptions(ctx context.Context, colID string, uidt domain.UIType) error {
	store, ok := optionStores[uidt]
	if !ok {
		return nil
	}
	n, err := store.remove(ctx, s, colID)
	if err != nil {
		return err
	}
	s.observer.CascadeDeleted(string(store.scope()), int(n))
	return nil
}
