package stock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ArticleType enumerates every catalog the stock engine can track quantities for.
type ArticleType string

const (
	// ArticleRawSoap is a bulk soap base tracked in grams.
	ArticleRawSoap ArticleType = "RAW_SOAP"
	// ArticleFragranceOil is tracked in millilitres or drops.
	ArticleFragranceOil ArticleType = "FRAGRANCE_OIL"
	// ArticlePackaging is tracked as a unit count.
	ArticlePackaging ArticleType = "PACKAGING"
	// ArticleAdditive covers dried blossoms, colourants and similar extras.
	ArticleAdditive ArticleType = "ADDITIVE"
	// ArticleCastMaterial is a castable base such as wax or gel, tracked in grams.
	ArticleCastMaterial ArticleType = "CAST_MATERIAL"
	// ArticleCastAdditive is an admixture dosed by a configured factor per millilitre of fill.
	ArticleCastAdditive ArticleType = "CAST_ADDITIVE"
	// ArticleFinishedGood is a sellable product.
	ArticleFinishedGood ArticleType = "FINISHED_GOOD"
)

// Valid reports whether t is a known article type.
func (t ArticleType) Valid() bool {
	switch t {
	case ArticleRawSoap, ArticleFragranceOil, ArticlePackaging, ArticleAdditive,
		ArticleCastMaterial, ArticleCastAdditive, ArticleFinishedGood:
		return true
	}
	return false
}

// ArticleRef identifies one stock subject across all catalogs.
type ArticleRef struct {
	Type ArticleType `json:"type"`
	ID   int64       `json:"id"`
}

// String renders the ref for log lines and ledger keys.
func (r ArticleRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// ChangeSnapshot captures the most recent mutation of a record. Informational
// only; the full history lives in the movement ledger.
type ChangeSnapshot struct {
	At     time.Time `json:"at"`
	Reason string    `json:"reason"`
	Delta  float64   `json:"delta"`
	Before float64   `json:"before"`
	After  float64   `json:"after"`
}

// StockRecord holds the current quantity for one article.
type StockRecord struct {
	Ref              ArticleRef      `json:"ref"`
	Quantity         float64         `json:"quantity"`
	Unit             string          `json:"unit"`
	ReorderThreshold float64         `json:"reorder_threshold"`
	LastChange       *ChangeSnapshot `json:"last_change,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MovementType enumerates ledger entry causes.
type MovementType string

const (
	// MovementIn records an inbound restock.
	MovementIn MovementType = "IN"
	// MovementOut records a consumption or shipment.
	MovementOut MovementType = "OUT"
	// MovementCount records a manual inventory count.
	MovementCount MovementType = "COUNT"
	// MovementProduction records the finished-good side of a production run.
	MovementProduction MovementType = "PRODUCTION"
	// MovementCorrection records an after-the-fact fix, never an edit of history.
	MovementCorrection MovementType = "CORRECTION"
	// MovementReturn records a reversal or customer return.
	MovementReturn MovementType = "RETURN"
)

// Movement is one immutable ledger entry.
type Movement struct {
	ID        int64        `json:"id"`
	Ref       ArticleRef   `json:"ref"`
	Type      MovementType `json:"type"`
	Delta     float64      `json:"delta"`
	Unit      string       `json:"unit"`
	Before    float64      `json:"before"`
	After     float64      `json:"after"`
	Reason    string       `json:"reason"`
	Reference string       `json:"reference,omitempty"`
	Actor     string       `json:"actor"`
	At        time.Time    `json:"at"`
}

// ConsumptionLine is one material requirement produced by the formula resolver.
type ConsumptionLine struct {
	Ref       ArticleRef `json:"ref"`
	Name      string     `json:"name"`
	Unit      string     `json:"unit"`
	Required  float64    `json:"required"`
	PerUnit   float64    `json:"per_unit"`
	Factor    float64    `json:"factor"`
	Unlimited bool       `json:"unlimited"`
}

// ValidationMode distinguishes a binding commit check from an informational preview.
type ValidationMode int

const (
	// ModeCommit refuses the whole operation when any line is short.
	ModeCommit ValidationMode = iota
	// ModePreview never refuses; the result is a report.
	ModePreview
)

// LineAvailability classifies one consumption line against current stock.
type LineAvailability struct {
	Line       ConsumptionLine `json:"line"`
	Available  float64         `json:"available"`
	Shortfall  float64         `json:"shortfall"`
	Sufficient bool            `json:"sufficient"`
	Critical   bool            `json:"critical"`
	Unlimited  bool            `json:"unlimited"`
}

// ValidationResult aggregates per-line availability.
type ValidationResult struct {
	OK    bool               `json:"ok"`
	Lines []LineAvailability `json:"lines"`
}

// LineResult reports the outcome of applying one line.
type LineResult struct {
	Line    ConsumptionLine `json:"line"`
	Delta   float64         `json:"delta"`
	Applied bool            `json:"applied"`
	Before  float64         `json:"before"`
	After   float64         `json:"after"`
	Failure string          `json:"failure,omitempty"`
}

// MutationSummary is returned to callers of the mutation service.
type MutationSummary struct {
	Article        ArticleRef       `json:"article"`
	Count          float64          `json:"count"`
	DryRun         bool             `json:"dry_run"`
	Success        bool             `json:"success"`
	MultiComponent bool             `json:"multi_component"`
	Validation     ValidationResult `json:"validation"`
	Lines          []LineResult     `json:"lines"`
}

// FormulaShape declares how a finished good consumes raw materials.
type FormulaShape string

const (
	// ShapeNone marks articles without a material breakdown; their own stock is the only line.
	ShapeNone FormulaShape = "NONE"
	// ShapeSingle consumes one raw soap.
	ShapeSingle FormulaShape = "SINGLE"
	// ShapeDual blends two raw soaps by declared percentages.
	ShapeDual FormulaShape = "DUAL"
	// ShapeCast pours a cast material plus additives into a mold.
	ShapeCast FormulaShape = "CAST"
)

// CastAdditive is one admixture entry of a cast formula.
type CastAdditive struct {
	Material ArticleRef
	Factor   float64
}

// FormulaConfig is the stored consumption configuration of a finished good,
// as supplied by the article catalog collaborator.
type FormulaConfig struct {
	Article    ArticleRef
	Shape      FormulaShape
	UnitWeight float64

	// single shape
	Material ArticleRef

	// dual-blend shape
	MaterialA ArticleRef
	MaterialB ArticleRef
	PercentA  float64
	PercentB  float64

	// cast shape
	CastMaterial     ArticleRef
	FillVolume       float64
	ShrinkagePercent float64
	CastFactor       float64
	Additives        []CastAdditive
}

// ArticleInfo carries the catalog facts the engine needs about one material.
type ArticleInfo struct {
	Ref       ArticleRef
	Name      string
	Unit      string
	Unlimited bool
}

// Errors shared across the package.
var (
	// ErrRecordNotFound indicates a missing stock record.
	ErrRecordNotFound = errors.New("stock: record not found")
	// ErrArticleNotFound indicates the referenced article does not resolve in the catalog.
	ErrArticleNotFound = errors.New("stock: article not found")
	// ErrNegativeStock is returned by the mutation primitive when a change would
	// drive a quantity below zero.
	ErrNegativeStock = errors.New("stock: negative stock not allowed")
	// ErrInvalidQuantity indicates a zero or non-finite quantity input.
	ErrInvalidQuantity = errors.New("stock: quantity must be non zero")
	// ErrDuplicateReference indicates the operation reference was already committed.
	ErrDuplicateReference = errors.New("stock: reference already processed")
)

// InvalidFormulaError reports a finished-good configuration that is missing
// required fields or declares an unrecognised shape.
type InvalidFormulaError struct {
	Article ArticleRef
	Shape   FormulaShape
	Reason  string
}

func (e *InvalidFormulaError) Error() string {
	return fmt.Sprintf("stock: invalid formula for %s (%s): %s", e.Article, e.Shape, e.Reason)
}

// Shortfall describes one failing line of an insufficient-stock rejection.
type Shortfall struct {
	Ref       ArticleRef `json:"ref"`
	Name      string     `json:"name"`
	Unit      string     `json:"unit"`
	Required  float64    `json:"required"`
	Available float64    `json:"available"`
	Missing   float64    `json:"missing"`
}

// InsufficientStockError carries the complete shortfall breakdown for every
// failing line, not just the first.
type InsufficientStockError struct {
	Article    ArticleRef
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	names := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		names = append(names, fmt.Sprintf("%s (missing %.3f %s)", s.Name, s.Missing, s.Unit))
	}
	return fmt.Sprintf("stock: insufficient stock for %s: %s", e.Article, strings.Join(names, ", "))
}

// ConcurrentUnderrunError reports a line that passed validation but lost a race
// at apply time. Mutations committed before it are not rolled back; callers
// read the per-line summary to decide remediation.
type ConcurrentUnderrunError struct {
	Ref      ArticleRef
	Required float64
}

func (e *ConcurrentUnderrunError) Error() string {
	return fmt.Sprintf("stock: concurrent underrun on %s (required %.3f)", e.Ref, e.Required)
}

// unlimitedNameFragments is the legacy fallback for materials that were never
// flagged explicitly. The catalog flag is authoritative.
var unlimitedNameFragments = []string{"wasser", "water"}

func nameLooksUnlimited(name string) bool {
	lower := strings.ToLower(name)
	for _, fragment := range unlimitedNameFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
