package decoration

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/goanalyzer/internal/model"
)

func span(l int) model.Range {
	return model.Range{Start: model.Position{Line: l}, End: model.Position{Line: l, Character: 1}}
}

func TestRaceHighWinsOverReassignment(t *testing.T) {
	sym := &model.Symbol{Name: "x"}
	sites := []model.UseSite{
		{Symbol: sym, Range: span(1), Classification: model.ClassReassignment},
		{Symbol: sym, Range: span(1), Classification: model.ClassUse, Severity: model.RaceHigh},
	}
	decs := Compose(sites)
	require.Len(t, decs, 1)
	require.Equal(t, model.DecorationRace, decs[0].Kind)
}

func TestStableOrderBySpan(t *testing.T) {
	sym := &model.Symbol{Name: "x"}
	sites := []model.UseSite{
		{Symbol: sym, Range: span(3), Classification: model.ClassUse},
		{Symbol: sym, Range: span(1), Classification: model.ClassDeclaration},
		{Symbol: sym, Range: span(2), Classification: model.ClassReassignment},
	}
	decs := Compose(sites)
	require.Len(t, decs, 3)
	require.Equal(t, 1, decs[0].Range.Start.Line)
	require.Equal(t, 2, decs[1].Range.Start.Line)
	require.Equal(t, 3, decs[2].Range.Start.Line)
}
