package sqlite

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MetaStore is the gorm implementation of domain.MetaStore.
type MetaStore struct {
	db *gorm.DB

	models        *table[ModelRow, domain.Model]
	columns       *table[ColumnRow, domain.Column]
	lookups       *table[LookupRow, domain.LookupColumn]
	rollups       *table[RollupRow, domain.RollupColumn]
	relations     *table[RelationRow, domain.LinkColumn]
	formulas      *table[FormulaRow, domain.FormulaColumn]
	qrCodes       *table[QrCodeRow, domain.QrCodeColumn]
	barcodes      *table[BarcodeRow, domain.BarcodeColumn]
	selectOptions *table[SelectOptionRow, domain.SelectOption]
	views         *table[ViewRow, domain.View]
	sorts         *table[SortRow, domain.Sort]
	filters       *table[FilterRow, domain.Filter]
	comments      *table[CommentRow, domain.Comment]

	details     map[domain.ViewType]domain.Table[domain.ViewDetail]
	viewColumns map[domain.ViewType]domain.Table[domain.ViewColumn]
}

// Open opens a sqlite database file with the pure Go driver. Writers wait for
// a busy database instead of failing, since the formula worker writes from its
// own goroutine.
func Open(path string) (*gorm.DB, error) {
	return openSQLite(path, os.Stderr)
}

// OpenDriver opens the metadata database for driver, which is sqlite or postgres.
func OpenDriver(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "", DriverSQLite:
		return Open(dsn)
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newLogger(os.Stderr)})
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

func openSQLite(path string, logTo io.Writer) (*gorm.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, &gorm.Config{Logger: newLogger(logTo)})
}

// newLogger reports slow queries and errors. Lookups of absent rows are how
// Get answers "no such row", so those stay quiet.
func newLogger(w io.Writer) logger.Interface {
	return logger.New(log.New(w, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func NewMetaStore(db *gorm.DB) *MetaStore {
	s := &MetaStore{db: db}
	s.models = &table[ModelRow, domain.Model]{db: db, pk: "id", prefix: "md",
		idOf: func(m *domain.Model) *string { return &m.ID }, toDomain: modelToDomain, toRow: modelToRow}
	s.columns = &table[ColumnRow, domain.Column]{db: db, pk: "id", prefix: "cl",
		idOf: func(c *domain.Column) *string { return &c.ID }, toDomain: columnToDomain, toRow: columnToRow}
	s.lookups = &table[LookupRow, domain.LookupColumn]{db: db, pk: "id", prefix: "lk",
		idOf: func(l *domain.LookupColumn) *string { return &l.ID }, toDomain: lookupToDomain, toRow: lookupToRow}
	s.rollups = &table[RollupRow, domain.RollupColumn]{db: db, pk: "id", prefix: "rl",
		idOf: func(r *domain.RollupColumn) *string { return &r.ID }, toDomain: rollupToDomain, toRow: rollupToRow}
	s.relations = &table[RelationRow, domain.LinkColumn]{db: db, pk: "id", prefix: "ln",
		idOf: func(l *domain.LinkColumn) *string { return &l.ID }, toDomain: relationToDomain, toRow: relationToRow}
	s.formulas = &table[FormulaRow, domain.FormulaColumn]{db: db, pk: "id", prefix: "fm",
		idOf: func(f *domain.FormulaColumn) *string { return &f.ID }, toDomain: formulaToDomain, toRow: formulaToRow}
	s.qrCodes = &table[QrCodeRow, domain.QrCodeColumn]{db: db, pk: "id", prefix: "qr",
		idOf: func(q *domain.QrCodeColumn) *string { return &q.ID }, toDomain: qrCodeToDomain, toRow: qrCodeToRow}
	s.barcodes = &table[BarcodeRow, domain.BarcodeColumn]{db: db, pk: "id", prefix: "bc",
		idOf: func(b *domain.BarcodeColumn) *string { return &b.ID }, toDomain: barcodeToDomain, toRow: barcodeToRow}
	s.selectOptions = &table[SelectOptionRow, domain.SelectOption]{db: db, pk: "id", prefix: "sl",
		idOf: func(o *domain.SelectOption) *string { return &o.ID }, toDomain: selectOptionToDomain, toRow: selectOptionToRow}
	s.views = &table[ViewRow, domain.View]{db: db, pk: "id", prefix: "vw",
		idOf: func(v *domain.View) *string { return &v.ID }, toDomain: viewToDomain, toRow: viewToRow}
	s.sorts = &table[SortRow, domain.Sort]{db: db, pk: "id", prefix: "so",
		idOf: func(v *domain.Sort) *string { return &v.ID }, toDomain: sortToDomain, toRow: sortToRow}
	s.filters = &table[FilterRow, domain.Filter]{db: db, pk: "id", prefix: "fi",
		idOf: func(f *domain.Filter) *string { return &f.ID }, toDomain: filterToDomain, toRow: filterToRow}
	s.comments = &table[CommentRow, domain.Comment]{db: db, pk: "id", prefix: "cm",
		idOf: func(c *domain.Comment) *string { return &c.ID }, toDomain: commentToDomain, toRow: commentToRow}

	detailID := func(d *domain.ViewDetail) *string { return &d.FkViewID }
	s.details = map[domain.ViewType]domain.Table[domain.ViewDetail]{
		domain.ViewGrid:    &table[GridViewRow, domain.ViewDetail]{db: db, pk: "fk_view_id", idOf: detailID, toDomain: gridViewToDomain, toRow: gridViewToRow},
		domain.ViewGallery: &table[GalleryViewRow, domain.ViewDetail]{db: db, pk: "fk_view_id", idOf: detailID, toDomain: galleryViewToDomain, toRow: galleryViewToRow},
		domain.ViewForm:    &table[FormViewRow, domain.ViewDetail]{db: db, pk: "fk_view_id", idOf: detailID, toDomain: formViewToDomain, toRow: formViewToRow},
		domain.ViewKanban:  &table[KanbanViewRow, domain.ViewDetail]{db: db, pk: "fk_view_id", idOf: detailID, toDomain: kanbanViewToDomain, toRow: kanbanViewToRow},
		domain.ViewMap:     &table[MapViewRow, domain.ViewDetail]{db: db, pk: "fk_view_id", idOf: detailID, toDomain: mapViewToDomain, toRow: mapViewToRow},
	}

	viewColumnID := func(c *domain.ViewColumn) *string { return &c.ID }
	s.viewColumns = map[domain.ViewType]domain.Table[domain.ViewColumn]{
		domain.ViewGrid:    &table[GridViewColumnRow, domain.ViewColumn]{db: db, pk: "id", prefix: "nc", idOf: viewColumnID, toDomain: gridViewColumnToDomain, toRow: gridViewColumnToRow},
		domain.ViewGallery: &table[GalleryViewColumnRow, domain.ViewColumn]{db: db, pk: "id", prefix: "nc", idOf: viewColumnID, toDomain: galleryViewColumnToDomain, toRow: galleryViewColumnToRow},
		domain.ViewForm:    &table[FormViewColumnRow, domain.ViewColumn]{db: db, pk: "id", prefix: "nc", idOf: viewColumnID, toDomain: formViewColumnToDomain, toRow: formViewColumnToRow},
		domain.ViewKanban:  &table[KanbanViewColumnRow, domain.ViewColumn]{db: db, pk: "id", prefix: "nc", idOf: viewColumnID, toDomain: kanbanViewColumnToDomain, toRow: kanbanViewColumnToRow},
		domain.ViewMap:     &table[MapViewColumnRow, domain.ViewColumn]{db: db, pk: "id", prefix: "nc", idOf: viewColumnID, toDomain: mapViewColumnToDomain, toRow: mapViewColumnToRow},
	}
	return s
}

func (s *MetaStore) Models() domain.Table[domain.Model]               { return s.models }
func (s *MetaStore) Columns() domain.Table[domain.Column]             { return s.columns }
func (s *MetaStore) Lookups() domain.Table[domain.LookupColumn]       { return s.lookups }
func (s *MetaStore) Rollups() domain.Table[domain.RollupColumn]       { return s.rollups }
func (s *MetaStore) Relations() domain.Table[domain.LinkColumn]       { return s.relations }
func (s *MetaStore) Formulas() domain.Table[domain.FormulaColumn]     { return s.formulas }
func (s *MetaStore) QrCodes() domain.Table[domain.QrCodeColumn]       { return s.qrCodes }
func (s *MetaStore) Barcodes() domain.Table[domain.BarcodeColumn]     { return s.barcodes }
func (s *MetaStore) SelectOptions() domain.Table[domain.SelectOption] { return s.selectOptions }
func (s *MetaStore) Views() domain.Table[domain.View]                 { return s.views }
func (s *MetaStore) Sorts() domain.Table[domain.Sort]                 { return s.sorts }
func (s *MetaStore) Filters() domain.Table[domain.Filter]             { return s.filters }
func (s *MetaStore) Comments() domain.Table[domain.Comment]           { return s.comments }

// ViewDetails returns nil for an unknown view type.
func (s *MetaStore) ViewDetails(t domain.ViewType) domain.Table[domain.ViewDetail] {
	return s.details[t]
}

// ViewColumns returns nil for an unknown view type.
func (s *MetaStore) ViewColumns(t domain.ViewType) domain.Table[domain.ViewColumn] {
	return s.viewColumns[t]
}

// Ping checks the database connection.
func (s *MetaStore) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
