// Package decoration implements the Decoration Composer: merges Use
// Classifier and Concurrency Analyzer output into the wire-level
// Decoration list the Request Surface returns, applying the priority order
// RaceHigh > RaceLow > Reassignment > Captured > Pointer > Use > Declaration
// when two classifications land on the same span (spec.md §4.8).
package decoration

import (
	"fmt"
	"sort"

	"github.com/standardbeagle/goanalyzer/internal/model"
)

// rank gives each wire-level kind its merge priority; lower wins.
var rank = map[model.DecorationKind]int{
	model.DecorationRace:            0,
	model.DecorationRaceLow:         1,
	model.DecorationAliasReassigned: 2,
	model.DecorationAliasCaptured:   3,
	model.DecorationPointer:         4,
	model.DecorationUse:             5,
	model.DecorationDeclaration:     6,
}

func kindFor(site model.UseSite) model.DecorationKind {
	switch site.Severity {
	case model.RaceHigh:
		return model.DecorationRace
	case model.RaceLow:
		return model.DecorationRaceLow
	}
	switch site.Classification {
	case model.ClassDeclaration:
		return model.DecorationDeclaration
	case model.ClassReassignment:
		return model.DecorationAliasReassigned
	case model.ClassPointer:
		return model.DecorationPointer
	case model.ClassCaptured:
		return model.DecorationAliasCaptured
	default:
		return model.DecorationUse
	}
}

// Compose merges use sites (possibly several per span) into one Decoration
// per span, picking the highest-priority kind, then sorts the result
// stably by span.
func Compose(sites []model.UseSite) []model.Decoration {
	bySpan := map[model.Range][]model.UseSite{}
	var order []model.Range
	for _, s := range sites {
		if _, ok := bySpan[s.Range]; !ok {
			order = append(order, s.Range)
		}
		bySpan[s.Range] = append(bySpan[s.Range], s)
	}

	decs := make([]model.Decoration, 0, len(order))
	for _, r := range order {
		winner := pickWinner(bySpan[r])
		decs = append(decs, model.Decoration{
			Range:     r,
			Kind:      kindFor(winner),
			HoverText: hoverText(winner),
		})
	}

	sort.SliceStable(decs, func(i, j int) bool {
		return decs[i].Range.Start.Less(decs[j].Range.Start)
	})
	return decs
}

func pickWinner(sites []model.UseSite) model.UseSite {
	best := sites[0]
	bestRank := rank[kindFor(best)]
	for _, s := range sites[1:] {
		if r := rank[kindFor(s)]; r < bestRank {
			best, bestRank = s, r
		}
	}
	return best
}

// hoverText composes the Markdown hover message: a fixed template per
// classification plus any synchronization note the Concurrency Analyzer
// attached.
func hoverText(site model.UseSite) string {
	name := ""
	if site.Symbol != nil {
		name = site.Symbol.Name
	}
	var base string
	switch kindFor(site) {
	case model.DecorationRace:
		base = fmt.Sprintf("**%s** — unsynchronized concurrent access (high confidence race)", name)
	case model.DecorationRaceLow:
		base = fmt.Sprintf("**%s** — concurrent access, synchronization detected (low confidence race)", name)
	case model.DecorationAliasReassigned:
		base = fmt.Sprintf("**%s** — reassigned here", name)
	case model.DecorationAliasCaptured:
		base = fmt.Sprintf("**%s** — captured by a closure", name)
	case model.DecorationPointer:
		base = fmt.Sprintf("**%s** — pointer operation", name)
	case model.DecorationDeclaration:
		base = fmt.Sprintf("**%s** — declared here", name)
	default:
		base = fmt.Sprintf("**%s**", name)
	}
	if site.HoverText != "" {
		base = site.HoverText
	}
	if site.SyncNote != "" {
		base += "\n\n" + site.SyncNote
	}
	return base
}
