package stock

import (
	"context"
	"math"
)

// quantityDecimals fixes the precision of computed material quantities. All
// formula math rounds half away from zero to this many decimal places.
const quantityDecimals = 3

func roundQuantity(v float64) float64 {
	shift := math.Pow10(quantityDecimals)
	return math.Round(v*shift) / shift
}

// CatalogPort is the article catalog collaborator consumed by the engine.
type CatalogPort interface {
	// FormulaConfig returns the stored consumption configuration of a finished
	// good. Plain articles return a config with ShapeNone.
	FormulaConfig(ctx context.Context, articleID int64) (FormulaConfig, error)
	// ArticleInfo resolves name, unit and the unlimited-supply flag of any article.
	ArticleInfo(ctx context.Context, ref ArticleRef) (ArticleInfo, error)
}

// Resolver turns a finished-good definition into an ordered list of material
// requirements. It is read-only against the catalog and never touches stock.
type Resolver struct {
	catalog CatalogPort
}

// NewResolver builds a Resolver.
func NewResolver(catalog CatalogPort) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve computes the consumption lines for producing count units. A negative
// count reverses a previous production. The line order is deterministic: main
// material first, additives in configured order.
func (r *Resolver) Resolve(ctx context.Context, cfg FormulaConfig, count float64) ([]ConsumptionLine, error) {
	quantities, err := resolveQuantities(cfg, count)
	if err != nil {
		return nil, err
	}
	lines := make([]ConsumptionLine, 0, len(quantities))
	for _, q := range quantities {
		info, err := r.catalog.ArticleInfo(ctx, q.ref)
		if err != nil {
			return nil, err
		}
		lines = append(lines, ConsumptionLine{
			Ref:       q.ref,
			Name:      info.Name,
			Unit:      info.Unit,
			Required:  q.required,
			PerUnit:   q.perUnit,
			Factor:    q.factor,
			Unlimited: info.Unlimited || nameLooksUnlimited(info.Name),
		})
	}
	return lines, nil
}

type lineQuantity struct {
	ref      ArticleRef
	required float64
	perUnit  float64
	factor   float64
}

func resolveQuantities(cfg FormulaConfig, count float64) ([]lineQuantity, error) {
	switch cfg.Shape {
	case ShapeSingle:
		return resolveSingle(cfg, count)
	case ShapeDual:
		return resolveDual(cfg, count)
	case ShapeCast:
		return resolveCast(cfg, count)
	default:
		return nil, &InvalidFormulaError{Article: cfg.Article, Shape: cfg.Shape, Reason: "unrecognised formula shape"}
	}
}

func resolveSingle(cfg FormulaConfig, count float64) ([]lineQuantity, error) {
	if cfg.Material.ID == 0 {
		return nil, &InvalidFormulaError{Article: cfg.Article, Shape: cfg.Shape, Reason: "material missing"}
	}
	if cfg.UnitWeight <= 0 {
		return nil, &InvalidFormulaError{Article: cfg.Article, Shape: cfg.Shape, Reason: "unit weight missing"}
	}
	perUnit := roundQuantity(cfg.UnitWeight)
	return []lineQuantity{{
		ref:      cfg.Material,
		required: roundQuantity(cfg.UnitWeight * count),
		perUnit:  perUnit,
		factor:   1,
	}}, nil
}

func resolveDual(cfg FormulaConfig, count float64) ([]lineQuantity, error) {
	if cfg.MaterialA.ID == 0 || cfg.MaterialB.ID == 0 {
		return nil, &InvalidFormulaError{Article: cfg.Article, Shape: cfg.Shape, Reason: "both blend components required"}
	}
	if cfg.PercentA == 0 && cfg.PercentB == 0 {
		return nil, &InvalidFormulaError{Article: cfg.Article, Shape: cfg.Shape, Reason: "blend percentages missing"}
	}
	if cfg.UnitWeight <= 0 {
		return nil, &InvalidFormulaError{Article: cfg.Article, Shape: cfg.Shape, Reason: "unit weight missing"}
	}
	// The two percentages are caller-declared; the catalog owns validating
	// that they sum to 100.
	return []lineQuantity{
		{
			ref:      cfg.MaterialA,
			required: roundQuantity(cfg.UnitWeight * count * cfg.PercentA / 100),
			perUnit:  roundQuantity(cfg.UnitWeight * cfg.PercentA / 100),
			factor:   cfg.PercentA / 100,
		},
		{
			ref:      cfg.MaterialB,
			required: roundQuantity(cfg.UnitWeight * count * cfg.PercentB / 100),
			perUnit:  roundQuantity(cfg.UnitWeight * cfg.PercentB / 100),
			factor:   cfg.PercentB / 100,
		},
	}, nil
}

func resolveCast(cfg FormulaConfig, count float64) ([]lineQuantity, error) {
	if cfg.CastMaterial.ID == 0 {
		return nil, &InvalidFormulaError{Article: cfg.Article, Shape: cfg.Shape, Reason: "cast material missing"}
	}
	if cfg.FillVolume <= 0 {
		return nil, &InvalidFormulaError{Article: cfg.Article, Shape: cfg.Shape, Reason: "fill volume missing"}
	}
	if cfg.ShrinkagePercent < 0 {
		return nil, &InvalidFormulaError{Article: cfg.Article, Shape: cfg.Shape, Reason: "shrinkage percent negative"}
	}
	mainFactor := cfg.CastFactor
	if mainFactor == 0 {
		mainFactor = 1
	}
	shrinkage := 1 + cfg.ShrinkagePercent/100
	quantities := []lineQuantity{{
		ref:      cfg.CastMaterial,
		required: roundQuantity(cfg.FillVolume * count * mainFactor * shrinkage),
		perUnit:  roundQuantity(cfg.FillVolume * mainFactor * shrinkage),
		factor:   mainFactor,
	}}
	for _, additive := range cfg.Additives {
		if additive.Material.ID == 0 {
			return nil, &InvalidFormulaError{Article: cfg.Article, Shape: cfg.Shape, Reason: "additive material missing"}
		}
		quantities = append(quantities, lineQuantity{
			ref:      additive.Material,
			required: roundQuantity(cfg.FillVolume * count * additive.Factor * shrinkage),
			perUnit:  roundQuantity(cfg.FillVolume * additive.Factor * shrinkage),
			factor:   additive.Factor,
		})
	}
	return quantities, nil
}
