package domain

import "strings"

// UIType is the closed set of field kinds a column can have.
type UIType string

const (
	UIID                  UIType = "ID"
	UISingleLineText      UIType = "SingleLineText"
	UILongText            UIType = "LongText"
	UINumber              UIType = "Number"
	UIDecimal             UIType = "Decimal"
	UICurrency            UIType = "Currency"
	UIPercent             UIType = "Percent"
	UICheckbox            UIType = "Checkbox"
	UIEmail               UIType = "Email"
	UIURL                 UIType = "URL"
	UIPhoneNumber         UIType = "PhoneNumber"
	UIDate                UIType = "Date"
	UIDateTime            UIType = "DateTime"
	UIAttachment          UIType = "Attachment"
	UIGeoData             UIType = "GeoData"
	UIJSON                UIType = "JSON"
	UIForeignKey          UIType = "ForeignKey"
	UISingleSelect        UIType = "SingleSelect"
	UIMultiSelect         UIType = "MultiSelect"
	UIFormula             UIType = "Formula"
	UILookup              UIType = "Lookup"
	UIRollup              UIType = "Rollup"
	UILinkToAnotherRecord UIType = "LinkToAnotherRecord"
	UILinks               UIType = "Links"
	UIQrCode              UIType = "QrCode"
	UIBarcode             UIType = "Barcode"
	UICreatedTime         UIType = "CreatedTime"
	UILastModifiedTime    UIType = "LastModifiedTime"
)

// IsVirtual reports whether values of the type are computed rather than stored
// in a physical column.
func (t UIType) IsVirtual() bool {
	switch t {
	case UIFormula, UILookup, UIRollup, UILinkToAnotherRecord, UILinks, UIQrCode, UIBarcode:
		return true
	}
	return false
}

func (t UIType) IsRelation() bool {
	return t == UILinkToAnotherRecord || t == UILinks
}

func (t UIType) IsSelect() bool {
	return t == UISingleSelect || t == UIMultiSelect
}

// CanFeedCode reports whether a column of this type may be the value source of
// a QrCode or Barcode column.
func (t UIType) CanFeedCode() bool {
	switch t {
	case UIFormula, UISingleLineText, UILongText, UIPhoneNumber, UIURL, UIEmail, UIDecimal, UINumber:
		return true
	}
	return false
}

// ViewType selects the detail table and view-column table of a view. It never
// changes after the view is created.
type ViewType string

const (
	ViewGrid    ViewType = "grid"
	ViewGallery ViewType = "gallery"
	ViewForm    ViewType = "form"
	ViewKanban  ViewType = "kanban"
	ViewMap     ViewType = "map"
)

var ViewTypes = []ViewType{ViewGrid, ViewGallery, ViewForm, ViewKanban, ViewMap}

func (t ViewType) Valid() bool {
	for _, v := range ViewTypes {
		if v == t {
			return true
		}
	}
	return false
}

// RelationType of a LinkToAnotherRecord/Links column.
type RelationType string

const (
	RelationHasMany    RelationType = "hm"
	RelationBelongsTo  RelationType = "bt"
	RelationManyToMany RelationType = "mm"
	RelationOneToOne   RelationType = "oo"
)

type ModelType string

const (
	ModelTable ModelType = "table"
	ModelView  ModelType = "view"
)

type SortDirection string

const (
	SortAsc       SortDirection = "asc"
	SortDesc      SortDirection = "desc"
	SortCountAsc  SortDirection = "count-asc"
	SortCountDesc SortDirection = "count-desc"
)

func (d SortDirection) Valid() bool {
	switch d {
	case SortAsc, SortDesc, SortCountAsc, SortCountDesc:
		return true
	}
	return false
}

// IsEnumOrSet reports whether a physical data type stores a fixed value list.
func IsEnumOrSet(dt string) bool {
	dt = strings.ToLower(strings.TrimSpace(dt))
	return dt == "enum" || dt == "set"
}
