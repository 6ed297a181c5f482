package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticCatalog struct {
	infos    map[string]ArticleInfo
	formulas map[int64]FormulaConfig
}

func (c *staticCatalog) ArticleInfo(ctx context.Context, ref ArticleRef) (ArticleInfo, error) {
	if info, ok := c.infos[ref.String()]; ok {
		return info, nil
	}
	return ArticleInfo{}, ErrArticleNotFound
}

func (c *staticCatalog) FormulaConfig(ctx context.Context, articleID int64) (FormulaConfig, error) {
	if cfg, ok := c.formulas[articleID]; ok {
		return cfg, nil
	}
	return FormulaConfig{
		Article: ArticleRef{Type: ArticleFinishedGood, ID: articleID},
		Shape:   ShapeNone,
	}, nil
}

func newStaticCatalog() *staticCatalog {
	return &staticCatalog{
		infos:    make(map[string]ArticleInfo),
		formulas: make(map[int64]FormulaConfig),
	}
}

func (c *staticCatalog) add(ref ArticleRef, name, unit string, unlimited bool) {
	c.infos[ref.String()] = ArticleInfo{Ref: ref, Name: name, Unit: unit, Unlimited: unlimited}
}

var (
	sheaRef    = ArticleRef{Type: ArticleRawSoap, ID: 1}
	oliveRef   = ArticleRef{Type: ArticleRawSoap, ID: 2}
	castRef    = ArticleRef{Type: ArticleCastMaterial, ID: 3}
	pigmentRef = ArticleRef{Type: ArticleCastAdditive, ID: 4}
	scentRef   = ArticleRef{Type: ArticleCastAdditive, ID: 5}
	soapRef    = ArticleRef{Type: ArticleFinishedGood, ID: 10}
)

func testCatalog() *staticCatalog {
	c := newStaticCatalog()
	c.add(sheaRef, "Sheabutter-Seifenbasis", "g", false)
	c.add(oliveRef, "Olivenöl-Seifenbasis", "g", false)
	c.add(castRef, "Gießmasse Standard", "ml", false)
	c.add(pigmentRef, "Pigment Blau", "g", false)
	c.add(scentRef, "Duftkonzentrat", "ml", false)
	c.add(soapRef, "Lavendelseife 100g", "pcs", false)
	return c
}

func TestResolveSingleShape(t *testing.T) {
	resolver := NewResolver(testCatalog())
	cfg := FormulaConfig{
		Article:    soapRef,
		Shape:      ShapeSingle,
		UnitWeight: 100,
		Material:   sheaRef,
	}

	lines, err := resolver.Resolve(context.Background(), cfg, 5)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, sheaRef, lines[0].Ref)
	require.InDelta(t, 500.0, lines[0].Required, 1e-9)
	require.InDelta(t, 100.0, lines[0].PerUnit, 1e-9)
	require.Equal(t, "g", lines[0].Unit)
}

func TestResolveDualBlendSplitsByPercent(t *testing.T) {
	resolver := NewResolver(testCatalog())
	cfg := FormulaConfig{
		Article:    soapRef,
		Shape:      ShapeDual,
		UnitWeight: 120,
		MaterialA:  sheaRef,
		MaterialB:  oliveRef,
		PercentA:   70,
		PercentB:   30,
	}

	lines, err := resolver.Resolve(context.Background(), cfg, 5)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, sheaRef, lines[0].Ref)
	require.InDelta(t, 420.0, lines[0].Required, 1e-9)
	require.Equal(t, oliveRef, lines[1].Ref)
	require.InDelta(t, 180.0, lines[1].Required, 1e-9)
}

func TestResolveCastAppliesFactorAndShrinkage(t *testing.T) {
	resolver := NewResolver(testCatalog())
	cfg := FormulaConfig{
		Article:          soapRef,
		Shape:            ShapeCast,
		CastMaterial:     castRef,
		FillVolume:       100,
		ShrinkagePercent: 5,
		CastFactor:       1.5,
		Additives: []CastAdditive{
			{Material: pigmentRef, Factor: 0.02},
			{Material: scentRef, Factor: 0.05},
		},
	}

	lines, err := resolver.Resolve(context.Background(), cfg, 1)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	// 100 ml fill * factor 1.5 * 5 % shrinkage = 157.5 ml of cast material.
	require.Equal(t, castRef, lines[0].Ref)
	require.InDelta(t, 157.5, lines[0].Required, 1e-9)

	// Additives follow configured order and dose against the raw fill volume.
	require.Equal(t, pigmentRef, lines[1].Ref)
	require.InDelta(t, 2.1, lines[1].Required, 1e-9)
	require.Equal(t, scentRef, lines[2].Ref)
	require.InDelta(t, 5.25, lines[2].Required, 1e-9)
}

func TestResolveCastDefaultsMainFactor(t *testing.T) {
	resolver := NewResolver(testCatalog())
	cfg := FormulaConfig{
		Article:          soapRef,
		Shape:            ShapeCast,
		CastMaterial:     castRef,
		FillVolume:       100,
		ShrinkagePercent: 5,
	}

	lines, err := resolver.Resolve(context.Background(), cfg, 2)
	require.NoError(t, err)
	require.InDelta(t, 210.0, lines[0].Required, 1e-9)
}

func TestResolveIsDeterministic(t *testing.T) {
	resolver := NewResolver(testCatalog())
	cfg := FormulaConfig{
		Article:          soapRef,
		Shape:            ShapeCast,
		CastMaterial:     castRef,
		FillVolume:       33.333,
		ShrinkagePercent: 5,
		Additives: []CastAdditive{
			{Material: pigmentRef, Factor: 0.07},
			{Material: scentRef, Factor: 0.013},
		},
	}

	first, err := resolver.Resolve(context.Background(), cfg, 7)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), cfg, 7)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestResolveNegativeCountReverses(t *testing.T) {
	resolver := NewResolver(testCatalog())
	cfg := FormulaConfig{
		Article:    soapRef,
		Shape:      ShapeSingle,
		UnitWeight: 100,
		Material:   sheaRef,
	}

	lines, err := resolver.Resolve(context.Background(), cfg, -3)
	require.NoError(t, err)
	require.InDelta(t, -300.0, lines[0].Required, 1e-9)
}

func TestResolveRoundsToThreeDecimals(t *testing.T) {
	resolver := NewResolver(testCatalog())
	cfg := FormulaConfig{
		Article:    soapRef,
		Shape:      ShapeDual,
		UnitWeight: 100,
		MaterialA:  sheaRef,
		MaterialB:  oliveRef,
		PercentA:   33.333,
		PercentB:   66.667,
	}

	lines, err := resolver.Resolve(context.Background(), cfg, 1)
	require.NoError(t, err)
	require.InDelta(t, 33.333, lines[0].Required, 1e-9)
	require.InDelta(t, 66.667, lines[1].Required, 1e-9)
}

func TestResolveInvalidFormulas(t *testing.T) {
	resolver := NewResolver(testCatalog())

	cases := []struct {
		name string
		cfg  FormulaConfig
	}{
		{"single without material", FormulaConfig{Article: soapRef, Shape: ShapeSingle, UnitWeight: 100}},
		{"single without unit weight", FormulaConfig{Article: soapRef, Shape: ShapeSingle, Material: sheaRef}},
		{"dual missing component", FormulaConfig{Article: soapRef, Shape: ShapeDual, UnitWeight: 100, MaterialA: sheaRef, PercentA: 100}},
		{"cast without fill volume", FormulaConfig{Article: soapRef, Shape: ShapeCast, CastMaterial: castRef}},
		{"unknown shape", FormulaConfig{Article: soapRef, Shape: FormulaShape("BOGUS")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), tc.cfg, 1)
			var invalid *InvalidFormulaError
			require.ErrorAs(t, err, &invalid)
		})
	}
}
