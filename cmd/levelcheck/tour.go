package main

import (
	"slices"

	"github.com/wricardo/parcel-run/game/engine"
)

// Tour is a greedy delivery route: from the start, always drive to the
// destination with the shortest hint path until none is left reachable.
type Tour struct {
	Moves       []engine.Direction
	FuelUsed    int
	Visited     []engine.Position
	Unreachable []engine.Position
}

// Fits reports whether the tour can be driven on the level's initial fuel
func (t *Tour) Fits(level *engine.Level) bool {
	return len(t.Unreachable) == 0 && t.FuelUsed <= level.InitialFuel
}

// PlanTour builds the nearest-destination tour for a level
func PlanTour(level *engine.Level, rules *engine.Rules) *Tour {
	tour := &Tour{}
	pos := level.Start
	remaining := slices.Clone(level.Destinations)

	for len(remaining) > 0 {
		target, path, ok := engine.HintRoute(level.Grid, pos, remaining, rules)
		if !ok {
			tour.Unreachable = remaining
			break
		}
		for _, p := range path[1:] {
			tour.FuelUsed += rules.MoveCost(level.Grid.At(p))
			// Passing over another destination delivers it too
			if i := slices.Index(remaining, p); i >= 0 {
				remaining = slices.Delete(remaining, i, i+1)
				tour.Visited = append(tour.Visited, p)
			}
		}
		tour.Moves = append(tour.Moves, engine.PathDirections(path)...)
		pos = target
	}
	return tour
}

// Analysis summarizes a level for the analyze command
type Analysis struct {
	Level       *engine.Level
	Reachable   int
	Unreachable []engine.Position
	Tour        *Tour
}

// AnalyzeLevel checks destination reachability and the greedy fuel budget
func AnalyzeLevel(level *engine.Level, rules *engine.Rules) *Analysis {
	a := &Analysis{Level: level, Tour: PlanTour(level, rules)}
	for _, d := range level.Destinations {
		if len(engine.FindPath(level.Grid, level.Start, d, rules)) == 0 {
			a.Unreachable = append(a.Unreachable, d)
			continue
		}
		a.Reachable++
	}
	return a
}

// Replay drives the tour through a fresh engine and returns the final state
func Replay(levels engine.LevelSource, progress engine.ProgressStore, rules *engine.Rules, levelID int, moves []engine.Direction) (*engine.GameState, error) {
	eng, err := engine.NewEngine(levels, progress, engine.WithRules(rules))
	if err != nil {
		return nil, err
	}
	if err := eng.LoadLevel(levelID); err != nil {
		return nil, err
	}
	for _, m := range moves {
		if !eng.Move(m) {
			break
		}
	}
	return eng.GetState(), nil
}
