package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSufficientLine(t *testing.T) {
	store := newMemStore()
	store.set(sheaRef, 1000, "g", 0)
	v := NewValidator(store)

	result, err := v.Validate(context.Background(), []ConsumptionLine{
		{Ref: sheaRef, Name: "Sheabutter-Seifenbasis", Unit: "g", Required: 500, PerUnit: 100},
	}, ModeCommit)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Len(t, result.Lines, 1)
	require.True(t, result.Lines[0].Sufficient)
	require.False(t, result.Lines[0].Critical)
	require.InDelta(t, 1000.0, result.Lines[0].Available, 1e-9)
	require.Empty(t, result.Shortfalls())
}

func TestValidateShortfallMath(t *testing.T) {
	store := newMemStore()
	store.set(sheaRef, 300, "g", 0)
	v := NewValidator(store)

	result, err := v.Validate(context.Background(), []ConsumptionLine{
		{Ref: sheaRef, Name: "Sheabutter-Seifenbasis", Unit: "g", Required: 500, PerUnit: 100},
	}, ModeCommit)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.InDelta(t, 200.0, result.Lines[0].Shortfall, 1e-9)

	shortfalls := result.Shortfalls()
	require.Len(t, shortfalls, 1)
	require.InDelta(t, 500.0, shortfalls[0].Required, 1e-9)
	require.InDelta(t, 300.0, shortfalls[0].Available, 1e-9)
	require.InDelta(t, 200.0, shortfalls[0].Missing, 1e-9)
	require.Equal(t, "g", shortfalls[0].Unit)
}

func TestValidateMissingRecordCountsAsEmpty(t *testing.T) {
	v := NewValidator(newMemStore())

	result, err := v.Validate(context.Background(), []ConsumptionLine{
		{Ref: oliveRef, Name: "Olivenöl-Seifenbasis", Unit: "g", Required: 50},
	}, ModeCommit)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.InDelta(t, 0.0, result.Lines[0].Available, 1e-9)
	require.InDelta(t, 50.0, result.Lines[0].Shortfall, 1e-9)
}

func TestValidateUnlimitedBypassesStock(t *testing.T) {
	v := NewValidator(newMemStore())

	result, err := v.Validate(context.Background(), []ConsumptionLine{
		{Ref: ArticleRef{Type: ArticleAdditive, ID: 9}, Name: "Natriumlaurylsulfat", Unit: "g", Required: 5000, Unlimited: true},
	}, ModeCommit)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.True(t, result.Lines[0].Unlimited)
	require.True(t, result.Lines[0].Sufficient)
}

func TestValidateWaterNameBypassesStock(t *testing.T) {
	v := NewValidator(newMemStore())

	result, err := v.Validate(context.Background(), []ConsumptionLine{
		{Ref: ArticleRef{Type: ArticleAdditive, ID: 9}, Name: "Destilliertes Wasser", Unit: "ml", Required: 5000},
	}, ModeCommit)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.True(t, result.Lines[0].Unlimited)
}

func TestValidateCriticalBelowTwoRuns(t *testing.T) {
	store := newMemStore()
	v := NewValidator(store)
	line := ConsumptionLine{Ref: sheaRef, Name: "Sheabutter-Seifenbasis", Unit: "g", Required: 500, PerUnit: 100}

	cases := []struct {
		name      string
		available float64
		critical  bool
	}{
		{"well stocked", 800, false},
		{"exactly two runs left", 700, false},
		{"below two runs", 699, true},
		{"exact requirement", 500, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store.set(sheaRef, tc.available, "g", 0)
			result, err := v.Validate(context.Background(), []ConsumptionLine{line}, ModeCommit)
			require.NoError(t, err)
			require.True(t, result.Lines[0].Sufficient)
			require.Equal(t, tc.critical, result.Lines[0].Critical)
		})
	}
}

func TestValidateNegativeRequirementAlwaysSufficient(t *testing.T) {
	v := NewValidator(newMemStore())

	// A reversal returns material; there is nothing to be short of.
	result, err := v.Validate(context.Background(), []ConsumptionLine{
		{Ref: sheaRef, Name: "Sheabutter-Seifenbasis", Unit: "g", Required: -300, PerUnit: 100},
	}, ModeCommit)
	require.NoError(t, err)
	require.True(t, result.OK)
}

func TestValidateMultipleLinesCollectsAllShortfalls(t *testing.T) {
	store := newMemStore()
	store.set(sheaRef, 100, "g", 0)
	store.set(oliveRef, 50, "g", 0)
	v := NewValidator(store)

	result, err := v.Validate(context.Background(), []ConsumptionLine{
		{Ref: sheaRef, Name: "Sheabutter-Seifenbasis", Unit: "g", Required: 420},
		{Ref: oliveRef, Name: "Olivenöl-Seifenbasis", Unit: "g", Required: 180},
	}, ModeCommit)
	require.NoError(t, err)
	require.False(t, result.OK)

	shortfalls := result.Shortfalls()
	require.Len(t, shortfalls, 2)
	require.InDelta(t, 320.0, shortfalls[0].Missing, 1e-9)
	require.InDelta(t, 130.0, shortfalls[1].Missing, 1e-9)
}
