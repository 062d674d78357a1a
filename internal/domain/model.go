package domain

import (
	"encoding/json"
	"time"
)

// Model is a table (or database view) exposed through the metadata layer.
// Columns and Views are loaded on demand and never persisted with the row.
type Model struct {
	ID        string    `json:"id"`
	BaseID    string    `json:"base_id"`
	SourceID  string    `json:"source_id"`
	TableName string    `json:"table_name"`
	Title     string    `json:"title"`
	Type      ModelType `json:"type"`
	MM        bool      `json:"mm"`
	Order     *float64  `json:"order"`
	Meta      Meta      `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Columns []Column `json:"columns,omitempty"`
	Views   []View   `json:"views,omitempty"`
}

// PrimaryKey is the first primary key column of the loaded columns.
func (m *Model) PrimaryKey() *Column {
	for i := range m.Columns {
		if m.Columns[i].PK {
			return &m.Columns[i]
		}
	}
	return nil
}

func (m *Model) PrimaryKeys() []Column {
	out := make([]Column, 0, 1)
	for _, c := range m.Columns {
		if c.PK {
			out = append(out, c)
		}
	}
	return out
}

// DisplayValue is the pv column, else the column right after the primary key,
// else the first column.
func (m *Model) DisplayValue() *Column {
	if len(m.Columns) == 0 {
		return nil
	}
	for i := range m.Columns {
		if m.Columns[i].PV {
			return &m.Columns[i]
		}
	}
	pkIndex := -1
	for i := range m.Columns {
		if m.Columns[i].PK {
			pkIndex = i
			break
		}
	}
	if pkIndex >= 0 && pkIndex < len(m.Columns)-1 {
		return &m.Columns[pkIndex+1]
	}
	return &m.Columns[0]
}

func (m *Model) ColumnByID(id string) *Column {
	for i := range m.Columns {
		if m.Columns[i].ID == id {
			return &m.Columns[i]
		}
	}
	return nil
}

// MapAliasToColumn renames a row keyed by column titles to physical column
// names. Virtual columns and unknown keys are dropped; Attachment values given
// as objects are stored as JSON strings.
func (m *Model) MapAliasToColumn(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for _, c := range m.Columns {
		if c.UIDT.IsVirtual() {
			continue
		}
		v, ok := row[c.Title]
		if !ok {
			continue
		}
		if c.UIDT == UIAttachment {
			if _, isString := v.(string); !isString && v != nil {
				v = StringifyJSON(v)
			}
		}
		out[c.ColumnName] = v
	}
	return out
}

// MapColumnToAlias is the inverse of MapAliasToColumn.
func (m *Model) MapColumnToAlias(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for _, c := range m.Columns {
		if c.UIDT.IsVirtual() {
			continue
		}
		if v, ok := row[c.ColumnName]; ok {
			out[c.Title] = v
		}
	}
	return out
}

type Column struct {
	ID         string    `json:"id"`
	FkModelID  string    `json:"fk_model_id"`
	BaseID     string    `json:"base_id"`
	SourceID   string    `json:"source_id"`
	ColumnName string    `json:"column_name"`
	Title      string    `json:"title"`
	UIDT       UIType    `json:"uidt"`
	DT         string    `json:"dt"`
	NP         string    `json:"np"`
	NS         string    `json:"ns"`
	Clen       string    `json:"clen"`
	Cop        string    `json:"cop"`
	CT         string    `json:"ct"`
	DTX        string    `json:"dtx"`
	DTXP       string    `json:"dtxp"`
	DTXS       string    `json:"dtxs"`
	CDF        string    `json:"cdf"`
	CC         string    `json:"cc"`
	CSN        string    `json:"csn"`
	PK         bool      `json:"pk"`
	PV         bool      `json:"pv"`
	RQD        bool      `json:"rqd"`
	UN         bool      `json:"un"`
	AI         bool      `json:"ai"`
	AU         bool      `json:"au"`
	Unique     bool      `json:"unique"`
	System     bool      `json:"system"`
	Order      *float64  `json:"order"`
	Meta       Meta      `json:"meta"`
	Validate   string    `json:"validate"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	ColOptions ColumnOptions `json:"colOptions,omitempty"`
}

// UnmarshalJSON decodes colOptions into the variant selected by uidt and
// accepts validate as an object or a string. Fields absent from data keep
// their current values, so a partial document can be decoded over an existing
// column.
func (c *Column) UnmarshalJSON(data []byte) error {
	type plain Column
	aux := struct {
		plain
		ColOptions json.RawMessage `json:"colOptions,omitempty"`
		Validate   json.RawMessage `json:"validate,omitempty"`
	}{plain: plain(*c)}
	aux.plain.ColOptions = nil
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	prev := c.ColOptions
	*c = Column(aux.plain)
	c.ColOptions = prev
	if aux.Validate != nil {
		v, err := rawToString(aux.Validate)
		if err != nil {
			return err
		}
		c.Validate = v
	}
	if len(aux.ColOptions) == 0 {
		return nil
	}
	if string(aux.ColOptions) == "null" {
		c.ColOptions = nil
		return nil
	}
	opts, err := DecodeColumnOptions(c.UIDT, aux.ColOptions)
	if err != nil {
		return err
	}
	c.ColOptions = opts
	return nil
}

// IsSystemColumn covers flagged system columns and hidden junction keys.
func (c *Column) IsSystemColumn() bool {
	return c.System || (c.UIDT == UIForeignKey && c.Meta.Bool("system"))
}

type View struct {
	ID               string    `json:"id"`
	FkModelID        string    `json:"fk_model_id"`
	BaseID           string    `json:"base_id"`
	SourceID         string    `json:"source_id"`
	Title            string    `json:"title"`
	Type             ViewType  `json:"type"`
	IsDefault        bool      `json:"is_default"`
	Order            *float64  `json:"order"`
	Show             bool      `json:"show"`
	UUID             string    `json:"uuid"`
	Password         string    `json:"password"`
	ShowSystemFields bool      `json:"show_system_fields"`
	LockType         string    `json:"lock_type"`
	Meta             Meta      `json:"meta"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Detail *ViewDetail `json:"view,omitempty"`
}

func (v *View) Shared() bool { return v.UUID != "" }

// ViewDetail is the one type-specific row a view owns. Only the fields of the
// view's type are persisted.
type ViewDetail struct {
	FkViewID          string `json:"fk_view_id"`
	BaseID            string `json:"base_id"`
	SourceID          string `json:"source_id"`
	RowHeight         int    `json:"row_height,omitempty"`
	FkCoverImageColID string `json:"fk_cover_image_col_id,omitempty"`
	FkGrpColID        string `json:"fk_grp_col_id,omitempty"`
	FkGeoDataColID    string `json:"fk_geo_data_col_id,omitempty"`
	Heading           string `json:"heading,omitempty"`
	Subheading        string `json:"subheading,omitempty"`
	SuccessMsg        string `json:"success_msg,omitempty"`
	RedirectURL       string `json:"redirect_url,omitempty"`
	SubmitAnotherForm bool   `json:"submit_another_form,omitempty"`
	ShowBlankForm     bool   `json:"show_blank_form,omitempty"`
	Meta              Meta   `json:"meta,omitempty"`
}

// ViewColumn is the per-view projection of a column. Grid and form fields are
// only persisted by their own view-column tables.
type ViewColumn struct {
	ID         string   `json:"id"`
	FkViewID   string   `json:"fk_view_id"`
	FkColumnID string   `json:"fk_column_id"`
	BaseID     string   `json:"base_id"`
	SourceID   string   `json:"source_id"`
	Show       bool     `json:"show"`
	Order      *float64 `json:"order"`

	Width        string   `json:"width,omitempty"`
	GroupBy      bool     `json:"group_by,omitempty"`
	GroupByOrder *float64 `json:"group_by_order,omitempty"`
	GroupBySort  string   `json:"group_by_sort,omitempty"`
	Aggregation  string   `json:"aggregation,omitempty"`

	Label         string `json:"label,omitempty"`
	Help          string `json:"help,omitempty"`
	Description   string `json:"description,omitempty"`
	Required      bool   `json:"required,omitempty"`
	EnableScanner bool   `json:"enable_scanner,omitempty"`
}

type Sort struct {
	ID         string        `json:"id"`
	FkViewID   string        `json:"fk_view_id"`
	FkColumnID string        `json:"fk_column_id"`
	BaseID     string        `json:"base_id"`
	SourceID   string        `json:"source_id"`
	Direction  SortDirection `json:"direction"`
	Order      *float64      `json:"order"`
}

// Filter is one node of a view's predicate tree. Group nodes own the filters
// whose FkParentID points at them.
type Filter struct {
	ID              string   `json:"id"`
	FkViewID        string   `json:"fk_view_id"`
	FkColumnID      string   `json:"fk_column_id"`
	FkParentID      string   `json:"fk_parent_id"`
	BaseID          string   `json:"base_id"`
	SourceID        string   `json:"source_id"`
	ComparisonOp    string   `json:"comparison_op"`
	ComparisonSubOp string   `json:"comparison_sub_op"`
	Value           string   `json:"value"`
	IsGroup         bool     `json:"is_group"`
	LogicalOp       string   `json:"logical_op"`
	Order           *float64 `json:"order"`

	Children []Filter `json:"children,omitempty"`
}

// Comment is a row-level note attached to a model record.
type Comment struct {
	ID        string    `json:"id"`
	FkModelID string    `json:"fk_model_id"`
	RowID     string    `json:"row_id"`
	Comment   string    `json:"comment"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
