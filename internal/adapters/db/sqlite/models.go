package sqlite

import (
	"time"

	"gorm.io/datatypes"
)

type ModelRow struct {
	ID           string `gorm:"primaryKey"`
	BaseID       string `gorm:"not null;index"`
	SourceID     string `gorm:"not null"`
	PhysicalName string `gorm:"column:table_name;not null"`
	Title        string `gorm:"not null"`
	Type         string `gorm:"not null"`
	MM           bool   `gorm:"column:mm;not null"`
	Order        *float64
	Meta         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ModelRow) TableName() string { return "nc_models_v2" }

type ColumnRow struct {
	ID         string `gorm:"primaryKey"`
	FkModelID  string `gorm:"not null;index"`
	BaseID     string `gorm:"not null"`
	SourceID   string `gorm:"not null"`
	ColumnName string
	Title      string `gorm:"not null"`
	UIDT       string `gorm:"column:uidt;not null"`
	DT         string `gorm:"column:dt"`
	NP         string `gorm:"column:np"`
	NS         string `gorm:"column:ns"`
	Clen       string
	Cop        string
	CT         string `gorm:"column:ct"`
	DTX        string `gorm:"column:dtx"`
	DTXP       string `gorm:"column:dtxp"`
	DTXS       string `gorm:"column:dtxs"`
	CDF        string `gorm:"column:cdf"`
	CC         string `gorm:"column:cc"`
	CSN        string `gorm:"column:csn"`
	PK         bool   `gorm:"column:pk;not null"`
	PV         bool   `gorm:"column:pv;not null"`
	RQD        bool   `gorm:"column:rqd;not null"`
	UN         bool   `gorm:"column:un;not null"`
	AI         bool   `gorm:"column:ai;not null"`
	AU         bool   `gorm:"column:au;not null"`
	Unique     bool   `gorm:"not null"`
	System     bool   `gorm:"not null"`
	Order      *float64
	Meta       string
	Validate   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ColumnRow) TableName() string { return "nc_columns_v2" }

type LookupRow struct {
	ID                 string `gorm:"primaryKey"`
	FkColumnID         string `gorm:"not null;index"`
	FkRelationColumnID string `gorm:"index"`
	FkLookupColumnID   string `gorm:"index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (LookupRow) TableName() string { return "nc_col_lookup_v2" }

type RollupRow struct {
	ID                 string `gorm:"primaryKey"`
	FkColumnID         string `gorm:"not null;index"`
	FkRelationColumnID string `gorm:"index"`
	FkRollupColumnID   string `gorm:"index"`
	RollupFunction     string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (RollupRow) TableName() string { return "nc_col_rollup_v2" }

type RelationRow struct {
	ID                 string `gorm:"primaryKey"`
	FkColumnID         string `gorm:"not null;index"`
	Type               string
	FkChildColumnID    string `gorm:"index"`
	FkParentColumnID   string `gorm:"index"`
	FkMMModelID        string `gorm:"column:fk_mm_model_id"`
	FkMMChildColumnID  string `gorm:"column:fk_mm_child_column_id"`
	FkMMParentColumnID string `gorm:"column:fk_mm_parent_column_id"`
	FkRelatedModelID   string `gorm:"index"`
	UR                 string `gorm:"column:ur"`
	DR                 string `gorm:"column:dr"`
	FkIndexName        string
	Virtual            bool `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (RelationRow) TableName() string { return "nc_col_relations_v2" }

type FormulaRow struct {
	ID         string `gorm:"primaryKey"`
	FkColumnID string `gorm:"not null;index"`
	Formula    string
	FormulaRaw string
	ParsedTree datatypes.JSON
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (FormulaRow) TableName() string { return "nc_col_formula_v2" }

type QrCodeRow struct {
	ID                string `gorm:"primaryKey"`
	FkColumnID        string `gorm:"not null;index"`
	FkQrValueColumnID string `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (QrCodeRow) TableName() string { return "nc_col_qrcode_v2" }

type BarcodeRow struct {
	ID                     string `gorm:"primaryKey"`
	FkColumnID             string `gorm:"not null;index"`
	FkBarcodeValueColumnID string `gorm:"index"`
	BarcodeFormat          string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (BarcodeRow) TableName() string { return "nc_col_barcode_v2" }

type SelectOptionRow struct {
	ID         string `gorm:"primaryKey"`
	FkColumnID string `gorm:"not null;index"`
	Title      string
	Color      string
	Order      *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (SelectOptionRow) TableName() string { return "nc_col_select_options_v2" }

type ViewRow struct {
	ID               string `gorm:"primaryKey"`
	FkModelID        string `gorm:"not null;index"`
	BaseID           string `gorm:"not null"`
	SourceID         string `gorm:"not null"`
	Title            string `gorm:"not null"`
	Type             string `gorm:"not null"`
	IsDefault        bool   `gorm:"not null"`
	Order            *float64
	Show             bool   `gorm:"not null"`
	UUID             string `gorm:"column:uuid"`
	Password         string
	ShowSystemFields bool `gorm:"not null"`
	LockType         string
	Meta             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (ViewRow) TableName() string { return "nc_views_v2" }

type GridViewRow struct {
	FkViewID  string `gorm:"primaryKey"`
	BaseID    string
	SourceID  string
	RowHeight int
	Meta      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GridViewRow) TableName() string { return "nc_grid_view_v2" }

type GalleryViewRow struct {
	FkViewID          string `gorm:"primaryKey"`
	BaseID            string
	SourceID          string
	FkCoverImageColID string
	Meta              string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (GalleryViewRow) TableName() string { return "nc_gallery_view_v2" }

type FormViewRow struct {
	FkViewID          string `gorm:"primaryKey"`
	BaseID            string
	SourceID          string
	Heading           string
	Subheading        string
	SuccessMsg        string
	RedirectURL       string `gorm:"column:redirect_url"`
	SubmitAnotherForm bool   `gorm:"not null"`
	ShowBlankForm     bool   `gorm:"not null"`
	Meta              string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (FormViewRow) TableName() string { return "nc_form_view_v2" }

type KanbanViewRow struct {
	FkViewID          string `gorm:"primaryKey"`
	BaseID            string
	SourceID          string
	FkGrpColID        string
	FkCoverImageColID string
	Meta              string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (KanbanViewRow) TableName() string { return "nc_kanban_view_v2" }

type MapViewRow struct {
	FkViewID       string `gorm:"primaryKey"`
	BaseID         string
	SourceID       string
	FkGeoDataColID string
	Meta           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (MapViewRow) TableName() string { return "nc_map_view_v2" }

type GridViewColumnRow struct {
	ID           string `gorm:"primaryKey"`
	FkViewID     string `gorm:"not null;index"`
	FkColumnID   string `gorm:"not null;index"`
	BaseID       string
	SourceID     string
	Show         bool `gorm:"not null"`
	Order        *float64
	Width        string
	GroupBy      bool `gorm:"not null"`
	GroupByOrder *float64
	GroupBySort  string
	Aggregation  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (GridViewColumnRow) TableName() string { return "nc_grid_view_columns_v2" }

type GalleryViewColumnRow struct {
	ID         string `gorm:"primaryKey"`
	FkViewID   string `gorm:"not null;index"`
	FkColumnID string `gorm:"not null;index"`
	BaseID     string
	SourceID   string
	Show       bool `gorm:"not null"`
	Order      *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (GalleryViewColumnRow) TableName() string { return "nc_gallery_view_columns_v2" }

type FormViewColumnRow struct {
	ID            string `gorm:"primaryKey"`
	FkViewID      string `gorm:"not null;index"`
	FkColumnID    string `gorm:"not null;index"`
	BaseID        string
	SourceID      string
	Show          bool `gorm:"not null"`
	Order         *float64
	Label         string
	Help          string
	Description   string
	Required      bool `gorm:"not null"`
	EnableScanner bool `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (FormViewColumnRow) TableName() string { return "nc_form_view_columns_v2" }

type KanbanViewColumnRow struct {
	ID         string `gorm:"primaryKey"`
	FkViewID   string `gorm:"not null;index"`
	FkColumnID string `gorm:"not null;index"`
	BaseID     string
	SourceID   string
	Show       bool `gorm:"not null"`
	Order      *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (KanbanViewColumnRow) TableName() string { return "nc_kanban_view_columns_v2" }

type MapViewColumnRow struct {
	ID         string `gorm:"primaryKey"`
	FkViewID   string `gorm:"not null;index"`
	FkColumnID string `gorm:"not null;index"`
	BaseID     string
	SourceID   string
	Show       bool `gorm:"not null"`
	Order      *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (MapViewColumnRow) TableName() string { return "nc_map_view_columns_v2" }

type SortRow struct {
	ID         string `gorm:"primaryKey"`
	FkViewID   string `gorm:"not null;index"`
	FkColumnID string `gorm:"not null;index"`
	BaseID     string
	SourceID   string
	Direction  string
	Order      *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (SortRow) TableName() string { return "nc_sort_v2" }

type FilterRow struct {
	ID              string `gorm:"primaryKey"`
	FkViewID        string `gorm:"not null;index"`
	FkColumnID      string `gorm:"index"`
	FkParentID      string `gorm:"index"`
	BaseID          string
	SourceID        string
	ComparisonOp    string
	ComparisonSubOp string
	Value           string
	IsGroup         bool `gorm:"not null"`
	LogicalOp       string
	Order           *float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (FilterRow) TableName() string { return "nc_filter_exp_v2" }

type CommentRow struct {
	ID        string `gorm:"primaryKey"`
	FkModelID string `gorm:"not null;index"`
	RowID     string `gorm:"not null"`
	Comment   string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CommentRow) TableName() string { return "nc_comments" }
