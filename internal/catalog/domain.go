package catalog

import (
	"errors"
	"time"
)

// Kind enumerates article catalogs. Values match the stock engine's article types.
type Kind string

const (
	KindRawSoap      Kind = "RAW_SOAP"
	KindFragranceOil Kind = "FRAGRANCE_OIL"
	KindPackaging    Kind = "PACKAGING"
	KindAdditive     Kind = "ADDITIVE"
	KindCastMaterial Kind = "CAST_MATERIAL"
	KindCastAdditive Kind = "CAST_ADDITIVE"
	KindFinishedGood Kind = "FINISHED_GOOD"
)

// Valid reports whether k is a known article kind.
func (k Kind) Valid() bool {
	switch k {
	case KindRawSoap, KindFragranceOil, KindPackaging, KindAdditive,
		KindCastMaterial, KindCastAdditive, KindFinishedGood:
		return true
	}
	return false
}

// Article is one trackable entity: raw material, packaging, additive or
// finished good.
type Article struct {
	ID               int64     `json:"id"`
	Kind             Kind      `json:"kind"`
	Name             string    `json:"name"`
	Unit             string    `json:"unit"`
	Unlimited        bool      `json:"unlimited"`
	ReorderThreshold float64   `json:"reorder_threshold"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FormulaShape declares the consumption rule of a finished good.
type FormulaShape string

const (
	ShapeNone   FormulaShape = "NONE"
	ShapeSingle FormulaShape = "SINGLE"
	ShapeDual   FormulaShape = "DUAL"
	ShapeCast   FormulaShape = "CAST"
)

// FormulaAdditive is one admixture entry of a cast formula, ordered by position.
type FormulaAdditive struct {
	ArticleID int64   `json:"article_id"`
	Factor    float64 `json:"factor"`
	Position  int     `json:"position"`
}

// Formula is the stored consumption configuration of a finished good.
type Formula struct {
	ArticleID        int64             `json:"article_id"`
	Shape            FormulaShape      `json:"shape"`
	UnitWeight       float64           `json:"unit_weight"`
	MaterialID       int64             `json:"material_id,omitempty"`
	Soap1ID          int64             `json:"soap1_id,omitempty"`
	Soap2ID          int64             `json:"soap2_id,omitempty"`
	Soap1Percent     float64           `json:"soap1_percent,omitempty"`
	Soap2Percent     float64           `json:"soap2_percent,omitempty"`
	CastMaterialID   int64             `json:"cast_material_id,omitempty"`
	FillVolume       float64           `json:"fill_volume,omitempty"`
	ShrinkagePercent float64           `json:"shrinkage_percent,omitempty"`
	CastFactor       float64           `json:"cast_factor,omitempty"`
	Additives        []FormulaAdditive `json:"additives,omitempty"`
}

// ListFilters represents standard list filters.
type ListFilters struct {
	Page   int
	Limit  int
	Search string
	Kind   Kind
}

// ErrArticleNotFound indicates a missing article row.
var ErrArticleNotFound = errors.New("catalog: article not found")

// ErrNoFormula indicates a finished good without a stored formula.
var ErrNoFormula = errors.New("catalog: no formula configured")

// ErrKindMismatch indicates a reference whose kind does not match the stored article.
var ErrKindMismatch = errors.New("catalog: article kind mismatch")
