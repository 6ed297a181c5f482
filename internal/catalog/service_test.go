package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	articles map[int64]Article
	formulas map[int64]Formula
	nextID   int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		articles: make(map[int64]Article),
		formulas: make(map[int64]Formula),
	}
}

func (r *memRepo) seed(kind Kind, name, unit string) int64 {
	r.nextID++
	r.articles[r.nextID] = Article{ID: r.nextID, Kind: kind, Name: name, Unit: unit}
	return r.nextID
}

func (r *memRepo) GetArticle(ctx context.Context, id int64) (Article, error) {
	if article, ok := r.articles[id]; ok {
		return article, nil
	}
	return Article{}, ErrArticleNotFound
}

func (r *memRepo) ListArticles(ctx context.Context, filters ListFilters) ([]Article, int, error) {
	var out []Article
	for _, article := range r.articles {
		if filters.Kind != "" && article.Kind != filters.Kind {
			continue
		}
		out = append(out, article)
	}
	return out, len(out), nil
}

func (r *memRepo) CreateArticle(ctx context.Context, article Article) (Article, error) {
	r.nextID++
	article.ID = r.nextID
	r.articles[article.ID] = article
	return article, nil
}

func (r *memRepo) UpdateArticle(ctx context.Context, article Article) error {
	if _, ok := r.articles[article.ID]; !ok {
		return ErrArticleNotFound
	}
	r.articles[article.ID] = article
	return nil
}

func (r *memRepo) DeleteArticle(ctx context.Context, id int64) error {
	if _, ok := r.articles[id]; !ok {
		return ErrArticleNotFound
	}
	delete(r.articles, id)
	return nil
}

func (r *memRepo) GetFormula(ctx context.Context, articleID int64) (Formula, error) {
	if f, ok := r.formulas[articleID]; ok {
		return f, nil
	}
	return Formula{}, ErrNoFormula
}

func (r *memRepo) UpsertFormula(ctx context.Context, f Formula) error {
	r.formulas[f.ArticleID] = f
	return nil
}

type catalogFixture struct {
	repo    *memRepo
	service *Service

	shea    int64
	olive   int64
	cast    int64
	pigment int64
	soap    int64
}

func newCatalogFixture() *catalogFixture {
	repo := newMemRepo()
	f := &catalogFixture{repo: repo, service: NewService(repo)}
	f.shea = repo.seed(KindRawSoap, "Sheabutter-Seifenbasis", "g")
	f.olive = repo.seed(KindRawSoap, "Olivenöl-Seifenbasis", "g")
	f.cast = repo.seed(KindCastMaterial, "Gießmasse Standard", "ml")
	f.pigment = repo.seed(KindCastAdditive, "Pigment Blau", "g")
	f.soap = repo.seed(KindFinishedGood, "Lavendelseife 100g", "pcs")
	return f
}

func TestCreateArticle(t *testing.T) {
	f := newCatalogFixture()

	article, err := f.service.CreateArticle(context.Background(), ArticleInput{
		Kind: KindFragranceOil,
		Name: "Lavendelöl",
		Unit: "drops",
	})
	require.NoError(t, err)
	require.NotZero(t, article.ID)
	require.Equal(t, KindFragranceOil, article.Kind)
}

func TestCreateArticleRejectsBadInput(t *testing.T) {
	f := newCatalogFixture()

	cases := []struct {
		name  string
		input ArticleInput
	}{
		{"unknown unit", ArticleInput{Kind: KindRawSoap, Name: "Basis", Unit: "kg"}},
		{"unknown kind", ArticleInput{Kind: "SOMETHING", Name: "Basis", Unit: "g"}},
		{"name too short", ArticleInput{Kind: KindRawSoap, Name: "B", Unit: "g"}},
		{"negative threshold", ArticleInput{Kind: KindRawSoap, Name: "Basis", Unit: "g", ReorderThreshold: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateArticle(context.Background(), tc.input)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestUpdateArticleKeepsKind(t *testing.T) {
	f := newCatalogFixture()

	updated, err := f.service.UpdateArticle(context.Background(), f.shea, ArticleInput{
		Kind: KindAdditive,
		Name: "Sheabutter-Seifenbasis Bio",
		Unit: "g",
	})
	require.NoError(t, err)
	require.Equal(t, KindRawSoap, updated.Kind)
	require.Equal(t, "Sheabutter-Seifenbasis Bio", updated.Name)
}

func TestSetReorderThreshold(t *testing.T) {
	f := newCatalogFixture()

	article, err := f.service.SetReorderThreshold(context.Background(), f.shea, 250)
	require.NoError(t, err)
	require.InDelta(t, 250.0, article.ReorderThreshold, 1e-9)

	_, err = f.service.SetReorderThreshold(context.Background(), f.shea, -5)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetFormulaSingle(t *testing.T) {
	f := newCatalogFixture()

	err := f.service.SetFormula(context.Background(), FormulaInput{
		ArticleID:  f.soap,
		Shape:      ShapeSingle,
		UnitWeight: 100,
		MaterialID: f.shea,
	})
	require.NoError(t, err)

	stored, err := f.service.GetFormula(context.Background(), f.soap)
	require.NoError(t, err)
	require.Equal(t, ShapeSingle, stored.Shape)
	require.Equal(t, f.shea, stored.MaterialID)
}

func TestSetFormulaOwnerMustBeFinishedGood(t *testing.T) {
	f := newCatalogFixture()

	err := f.service.SetFormula(context.Background(), FormulaInput{
		ArticleID:  f.shea,
		Shape:      ShapeSingle,
		UnitWeight: 100,
		MaterialID: f.olive,
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSetFormulaDualPercentagesMustSum(t *testing.T) {
	f := newCatalogFixture()

	input := FormulaInput{
		ArticleID:    f.soap,
		Shape:        ShapeDual,
		UnitWeight:   120,
		Soap1ID:      f.shea,
		Soap2ID:      f.olive,
		Soap1Percent: 70,
		Soap2Percent: 20,
	}
	require.ErrorIs(t, f.service.SetFormula(context.Background(), input), ErrInvalidInput)

	input.Soap2Percent = 30
	require.NoError(t, f.service.SetFormula(context.Background(), input))
}

func TestSetFormulaComponentKindChecked(t *testing.T) {
	f := newCatalogFixture()

	// A cast material cannot serve as a soap base.
	err := f.service.SetFormula(context.Background(), FormulaInput{
		ArticleID:  f.soap,
		Shape:      ShapeSingle,
		UnitWeight: 100,
		MaterialID: f.cast,
	})
	require.ErrorIs(t, err, ErrKindMismatch)
}

func TestSetFormulaCast(t *testing.T) {
	f := newCatalogFixture()

	err := f.service.SetFormula(context.Background(), FormulaInput{
		ArticleID:      f.soap,
		Shape:          ShapeCast,
		CastMaterialID: f.cast,
		FillVolume:     100,
		CastFactor:     1.5,
		Additives: []FormulaAdditive{
			{ArticleID: f.pigment, Factor: 0.02, Position: 0},
		},
	})
	require.NoError(t, err)
}

func TestSetFormulaCastRejectsWrongAdditiveKind(t *testing.T) {
	f := newCatalogFixture()

	err := f.service.SetFormula(context.Background(), FormulaInput{
		ArticleID:      f.soap,
		Shape:          ShapeCast,
		CastMaterialID: f.cast,
		FillVolume:     100,
		Additives: []FormulaAdditive{
			{ArticleID: f.shea, Factor: 0.02},
		},
	})
	require.ErrorIs(t, err, ErrKindMismatch)
}

func TestSetFormulaNoneClears(t *testing.T) {
	f := newCatalogFixture()

	require.NoError(t, f.service.SetFormula(context.Background(), FormulaInput{
		ArticleID:  f.soap,
		Shape:      ShapeSingle,
		UnitWeight: 100,
		MaterialID: f.shea,
	}))
	require.NoError(t, f.service.SetFormula(context.Background(), FormulaInput{
		ArticleID: f.soap,
		Shape:     ShapeNone,
	}))

	stored, err := f.service.GetFormula(context.Background(), f.soap)
	require.NoError(t, err)
	require.Equal(t, ShapeNone, stored.Shape)
}

func TestListArticlesValidatesKind(t *testing.T) {
	f := newCatalogFixture()

	_, _, err := f.service.ListArticles(context.Background(), ListFilters{Kind: "BOGUS"})
	require.ErrorIs(t, err, ErrInvalidInput)

	articles, total, err := f.service.ListArticles(context.Background(), ListFilters{Kind: KindRawSoap})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, articles, 2)
}
