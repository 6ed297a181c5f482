package catalog

import (
	"context"
	"errors"

	"github.com/seifenwerk/seifenwerk/internal/stock"
)

// StockGateway adapts the catalog to the stock engine's CatalogPort. The
// engine keys everything by (type, id); the gateway verifies that stored
// kinds still match the references the engine hands back.
type StockGateway struct {
	repo RepositoryPort
}

// NewStockGateway builds StockGateway.
func NewStockGateway(repo RepositoryPort) *StockGateway {
	return &StockGateway{repo: repo}
}

// ArticleInfo resolves catalog facts for one stock reference.
func (g *StockGateway) ArticleInfo(ctx context.Context, ref stock.ArticleRef) (stock.ArticleInfo, error) {
	article, err := g.repo.GetArticle(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, ErrArticleNotFound) {
			return stock.ArticleInfo{}, stock.ErrArticleNotFound
		}
		return stock.ArticleInfo{}, err
	}
	if string(article.Kind) != string(ref.Type) {
		return stock.ArticleInfo{}, stock.ErrArticleNotFound
	}
	return stock.ArticleInfo{
		Ref:       ref,
		Name:      article.Name,
		Unit:      article.Unit,
		Unlimited: article.Unlimited,
	}, nil
}

// FormulaConfig loads the consumption configuration of a finished good.
// Articles without a stored formula resolve as ShapeNone so the engine books
// them as a plain self-line.
func (g *StockGateway) FormulaConfig(ctx context.Context, articleID int64) (stock.FormulaConfig, error) {
	article, err := g.repo.GetArticle(ctx, articleID)
	if err != nil {
		if errors.Is(err, ErrArticleNotFound) {
			return stock.FormulaConfig{}, stock.ErrArticleNotFound
		}
		return stock.FormulaConfig{}, err
	}
	self := stock.ArticleRef{Type: stock.ArticleType(article.Kind), ID: article.ID}
	if article.Kind != KindFinishedGood {
		return stock.FormulaConfig{Article: self, Shape: stock.ShapeNone}, nil
	}
	formula, err := g.repo.GetFormula(ctx, articleID)
	if err != nil {
		if errors.Is(err, ErrNoFormula) {
			return stock.FormulaConfig{Article: self, Shape: stock.ShapeNone}, nil
		}
		return stock.FormulaConfig{}, err
	}
	cfg := stock.FormulaConfig{
		Article:    self,
		Shape:      stock.FormulaShape(formula.Shape),
		UnitWeight: formula.UnitWeight,
	}
	switch formula.Shape {
	case ShapeSingle:
		cfg.Material, err = g.refFor(ctx, formula.MaterialID)
	case ShapeDual:
		if cfg.MaterialA, err = g.refFor(ctx, formula.Soap1ID); err == nil {
			cfg.MaterialB, err = g.refFor(ctx, formula.Soap2ID)
		}
		cfg.PercentA = formula.Soap1Percent
		cfg.PercentB = formula.Soap2Percent
	case ShapeCast:
		cfg.CastMaterial, err = g.refFor(ctx, formula.CastMaterialID)
		cfg.FillVolume = formula.FillVolume
		cfg.ShrinkagePercent = formula.ShrinkagePercent
		cfg.CastFactor = formula.CastFactor
		for _, additive := range formula.Additives {
			if err != nil {
				break
			}
			var ref stock.ArticleRef
			if ref, err = g.refFor(ctx, additive.ArticleID); err == nil {
				cfg.Additives = append(cfg.Additives, stock.CastAdditive{Material: ref, Factor: additive.Factor})
			}
		}
	}
	if err != nil {
		return stock.FormulaConfig{}, err
	}
	return cfg, nil
}

// refFor resolves an article id to a typed stock reference.
func (g *StockGateway) refFor(ctx context.Context, id int64) (stock.ArticleRef, error) {
	if id == 0 {
		return stock.ArticleRef{}, nil
	}
	article, err := g.repo.GetArticle(ctx, id)
	if err != nil {
		if errors.Is(err, ErrArticleNotFound) {
			return stock.ArticleRef{}, stock.ErrArticleNotFound
		}
		return stock.ArticleRef{}, err
	}
	return stock.ArticleRef{Type: stock.ArticleType(article.Kind), ID: article.ID}, nil
}
