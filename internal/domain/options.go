package domain

import (
	"encoding/json"
	"fmt"
)

// ColumnOptions is the side-table payload of a column. The concrete type is
// fixed by the column's uidt.
type ColumnOptions interface {
	columnOptions()
}

type LookupColumn struct {
	ID                 string `json:"id"`
	FkColumnID         string `json:"fk_column_id"`
	FkRelationColumnID string `json:"fk_relation_column_id"`
	FkLookupColumnID   string `json:"fk_lookup_column_id"`
}

type RollupColumn struct {
	ID                 string `json:"id"`
	FkColumnID         string `json:"fk_column_id"`
	FkRelationColumnID string `json:"fk_relation_column_id"`
	FkRollupColumnID   string `json:"fk_rollup_column_id"`
	RollupFunction     string `json:"rollup_function"`
}

// LinkColumn holds the relation of a LinkToAnotherRecord or Links column.
type LinkColumn struct {
	ID                 string       `json:"id"`
	FkColumnID         string       `json:"fk_column_id"`
	Type               RelationType `json:"type"`
	FkChildColumnID    string       `json:"fk_child_column_id"`
	FkParentColumnID   string       `json:"fk_parent_column_id"`
	FkMMModelID        string       `json:"fk_mm_model_id"`
	FkMMChildColumnID  string       `json:"fk_mm_child_column_id"`
	FkMMParentColumnID string       `json:"fk_mm_parent_column_id"`
	FkRelatedModelID   string       `json:"fk_related_model_id"`
	UR                 string       `json:"ur"`
	DR                 string       `json:"dr"`
	FkIndexName        string       `json:"fk_index_name"`
	Virtual            bool         `json:"virtual"`
}

// References reports whether columnID is one of the relation's key columns.
func (l *LinkColumn) References(columnID string) bool {
	if columnID == "" {
		return false
	}
	return l.FkChildColumnID == columnID || l.FkParentColumnID == columnID ||
		l.FkMMChildColumnID == columnID || l.FkMMParentColumnID == columnID
}

type FormulaColumn struct {
	ID         string          `json:"id"`
	FkColumnID string          `json:"fk_column_id"`
	Formula    string          `json:"formula"`
	FormulaRaw string          `json:"formula_raw"`
	ParsedTree json.RawMessage `json:"parsed_tree,omitempty"`
	Error      string          `json:"error"`
}

type QrCodeColumn struct {
	ID                string `json:"id"`
	FkColumnID        string `json:"fk_column_id"`
	FkQrValueColumnID string `json:"fk_qr_value_column_id"`
}

type BarcodeColumn struct {
	ID                     string `json:"id"`
	FkColumnID             string `json:"fk_column_id"`
	FkBarcodeValueColumnID string `json:"fk_barcode_value_column_id"`
	BarcodeFormat          string `json:"barcode_format"`
}

type SelectOption struct {
	ID         string   `json:"id"`
	FkColumnID string   `json:"fk_column_id"`
	Title      string   `json:"title"`
	Color      string   `json:"color"`
	Order      *float64 `json:"order"`
}

type SelectOptions struct {
	Options []SelectOption `json:"options"`
}

func (*LookupColumn) columnOptions()  {}
func (*RollupColumn) columnOptions()  {}
func (*LinkColumn) columnOptions()    {}
func (*FormulaColumn) columnOptions() {}
func (*QrCodeColumn) columnOptions()  {}
func (*BarcodeColumn) columnOptions() {}
func (*SelectOptions) columnOptions() {}

// NewColumnOptions returns an empty payload for uidt, or nil when the type
// owns no side table.
func NewColumnOptions(uidt UIType) ColumnOptions {
	switch uidt {
	case UILookup:
		return &LookupColumn{}
	case UIRollup:
		return &RollupColumn{}
	case UILinkToAnotherRecord, UILinks:
		return &LinkColumn{}
	case UIFormula:
		return &FormulaColumn{}
	case UIQrCode:
		return &QrCodeColumn{}
	case UIBarcode:
		return &BarcodeColumn{}
	case UISingleSelect, UIMultiSelect:
		return &SelectOptions{}
	}
	return nil
}

func DecodeColumnOptions(uidt UIType, raw json.RawMessage) (ColumnOptions, error) {
	opts := NewColumnOptions(uidt)
	if opts == nil || len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, opts); err != nil {
		return nil, fmt.Errorf("decode %s options: %w", uidt, err)
	}
	return opts, nil
}
