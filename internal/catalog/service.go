package catalog

import (
	"context"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetArticle(ctx context.Context, id int64) (Article, error)
	ListArticles(ctx context.Context, filters ListFilters) ([]Article, int, error)
	CreateArticle(ctx context.Context, article Article) (Article, error)
	UpdateArticle(ctx context.Context, article Article) error
	DeleteArticle(ctx context.Context, id int64) error
	GetFormula(ctx context.Context, articleID int64) (Formula, error)
	UpsertFormula(ctx context.Context, f Formula) error
}

// Service coordinates catalog operations.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// ArticleInput describes a create/update request.
type ArticleInput struct {
	Kind             Kind    `json:"kind" validate:"required"`
	Name             string  `json:"name" validate:"required,min=2,max=120"`
	Unit             string  `json:"unit" validate:"required,oneof=g ml drops pcs"`
	Unlimited        bool    `json:"unlimited"`
	ReorderThreshold float64 `json:"reorder_threshold" validate:"gte=0"`
}

// FormulaInput describes a formula configuration request.
type FormulaInput struct {
	ArticleID        int64             `json:"article_id" validate:"required,gt=0"`
	Shape            FormulaShape      `json:"shape" validate:"required,oneof=NONE SINGLE DUAL CAST"`
	UnitWeight       float64           `json:"unit_weight" validate:"gte=0"`
	MaterialID       int64             `json:"material_id"`
	Soap1ID          int64             `json:"soap1_id"`
	Soap2ID          int64             `json:"soap2_id"`
	Soap1Percent     float64           `json:"soap1_percent" validate:"gte=0,lte=100"`
	Soap2Percent     float64           `json:"soap2_percent" validate:"gte=0,lte=100"`
	CastMaterialID   int64             `json:"cast_material_id"`
	FillVolume       float64           `json:"fill_volume" validate:"gte=0"`
	ShrinkagePercent float64           `json:"shrinkage_percent" validate:"gte=0,lte=100"`
	CastFactor       float64           `json:"cast_factor" validate:"gte=0,lte=10"`
	Additives        []FormulaAdditive `json:"additives" validate:"dive"`
}

// ErrInvalidInput wraps validation failures with a stable sentinel.
var ErrInvalidInput = errors.New("catalog: invalid input")

func (s *Service) GetArticle(ctx context.Context, id int64) (Article, error) {
	if id <= 0 {
		return Article{}, ErrArticleNotFound
	}
	return s.repo.GetArticle(ctx, id)
}

func (s *Service) ListArticles(ctx context.Context, filters ListFilters) ([]Article, int, error) {
	if filters.Kind != "" && !filters.Kind.Valid() {
		return nil, 0, ErrInvalidInput
	}
	return s.repo.ListArticles(ctx, filters)
}

func (s *Service) CreateArticle(ctx context.Context, input ArticleInput) (Article, error) {
	if err := s.validate.Struct(input); err != nil {
		return Article{}, errors.Join(ErrInvalidInput, err)
	}
	if !input.Kind.Valid() {
		return Article{}, ErrInvalidInput
	}
	return s.repo.CreateArticle(ctx, Article{
		Kind:             input.Kind,
		Name:             input.Name,
		Unit:             input.Unit,
		Unlimited:        input.Unlimited,
		ReorderThreshold: input.ReorderThreshold,
	})
}

func (s *Service) UpdateArticle(ctx context.Context, id int64, input ArticleInput) (Article, error) {
	if id <= 0 {
		return Article{}, ErrArticleNotFound
	}
	if err := s.validate.Struct(input); err != nil {
		return Article{}, errors.Join(ErrInvalidInput, err)
	}
	existing, err := s.repo.GetArticle(ctx, id)
	if err != nil {
		return Article{}, err
	}
	// The kind is immutable; the stock key depends on it.
	existing.Name = input.Name
	existing.Unit = input.Unit
	existing.Unlimited = input.Unlimited
	existing.ReorderThreshold = input.ReorderThreshold
	if err := s.repo.UpdateArticle(ctx, existing); err != nil {
		return Article{}, err
	}
	return existing, nil
}

// SetReorderThreshold stores the reorder threshold on the article row. The
// caller mirrors it onto the stock record.
func (s *Service) SetReorderThreshold(ctx context.Context, id int64, threshold float64) (Article, error) {
	if threshold < 0 {
		return Article{}, ErrInvalidInput
	}
	article, err := s.repo.GetArticle(ctx, id)
	if err != nil {
		return Article{}, err
	}
	article.ReorderThreshold = threshold
	if err := s.repo.UpdateArticle(ctx, article); err != nil {
		return Article{}, err
	}
	return article, nil
}

func (s *Service) DeleteArticle(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrArticleNotFound
	}
	return s.repo.DeleteArticle(ctx, id)
}

// SetFormula validates and stores the consumption configuration of a finished
// good. Blend percentages must sum to 100 here; the stock engine trusts them.
func (s *Service) SetFormula(ctx context.Context, input FormulaInput) error {
	if err := s.validate.Struct(input); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	owner, err := s.repo.GetArticle(ctx, input.ArticleID)
	if err != nil {
		return err
	}
	if owner.Kind != KindFinishedGood {
		return errors.Join(ErrInvalidInput, errors.New("formula owner must be a finished good"))
	}
	switch input.Shape {
	case ShapeSingle:
		if input.MaterialID <= 0 || input.UnitWeight <= 0 {
			return errors.Join(ErrInvalidInput, errors.New("single shape requires material and unit weight"))
		}
		if err := s.requireKind(ctx, input.MaterialID, KindRawSoap); err != nil {
			return err
		}
	case ShapeDual:
		if input.Soap1ID <= 0 || input.Soap2ID <= 0 || input.UnitWeight <= 0 {
			return errors.Join(ErrInvalidInput, errors.New("dual shape requires both soaps and unit weight"))
		}
		if math.Abs(input.Soap1Percent+input.Soap2Percent-100) > 0.01 {
			return errors.Join(ErrInvalidInput, errors.New("blend percentages must sum to 100"))
		}
		for _, id := range []int64{input.Soap1ID, input.Soap2ID} {
			if err := s.requireKind(ctx, id, KindRawSoap); err != nil {
				return err
			}
		}
	case ShapeCast:
		if input.CastMaterialID <= 0 || input.FillVolume <= 0 {
			return errors.Join(ErrInvalidInput, errors.New("cast shape requires cast material and fill volume"))
		}
		if err := s.requireKind(ctx, input.CastMaterialID, KindCastMaterial); err != nil {
			return err
		}
		for _, additive := range input.Additives {
			if additive.ArticleID <= 0 || additive.Factor < 0 || additive.Factor > 10 {
				return errors.Join(ErrInvalidInput, errors.New("additive entries need an article and a factor between 0 and 10"))
			}
			if err := s.requireKind(ctx, additive.ArticleID, KindCastAdditive); err != nil {
				return err
			}
		}
	case ShapeNone:
		// Clearing the formula is allowed; the article books as a plain self-line.
	default:
		return ErrInvalidInput
	}
	return s.repo.UpsertFormula(ctx, Formula{
		ArticleID:        input.ArticleID,
		Shape:            input.Shape,
		UnitWeight:       input.UnitWeight,
		MaterialID:       input.MaterialID,
		Soap1ID:          input.Soap1ID,
		Soap2ID:          input.Soap2ID,
		Soap1Percent:     input.Soap1Percent,
		Soap2Percent:     input.Soap2Percent,
		CastMaterialID:   input.CastMaterialID,
		FillVolume:       input.FillVolume,
		ShrinkagePercent: input.ShrinkagePercent,
		CastFactor:       input.CastFactor,
		Additives:        input.Additives,
	})
}

func (s *Service) GetFormula(ctx context.Context, articleID int64) (Formula, error) {
	if articleID <= 0 {
		return Formula{}, ErrArticleNotFound
	}
	return s.repo.GetFormula(ctx, articleID)
}

func (s *Service) requireKind(ctx context.Context, id int64, kind Kind) error {
	article, err := s.repo.GetArticle(ctx, id)
	if err != nil {
		return err
	}
	if article.Kind != kind {
		return ErrKindMismatch
	}
	return nil
}
