package engine

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dr := from.Row - to.Row
	if dr < 0 {
		dr = -dr
	}
	dc := from.Col - to.Col
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}

// HintRoute picks the target with the shortest hint path from the player.
// Ties go to the smaller Manhattan distance, then to the smaller (row, col).
// Unreachable targets are skipped; ok is false when none can be reached.
func HintRoute(grid Grid, from Position, targets []Position, rules *Rules) (Position, Path, bool) {
	var (
		bestTarget Position
		bestPath   Path
		found      bool
	)
	for _, target := range targets {
		path := FindPath(grid, from, target, rules)
		if len(path) == 0 {
			continue
		}
		if !found || betterHint(path, target, bestPath, bestTarget, from) {
			bestTarget, bestPath, found = target, path, true
		}
	}
	return bestTarget, bestPath, found
}

func betterHint(path Path, target Position, bestPath Path, bestTarget, from Position) bool {
	if len(path) != len(bestPath) {
		return len(path) < len(bestPath)
	}
	d, bd := ManhattanDistance(from, target), ManhattanDistance(from, bestTarget)
	if d != bd {
		return d < bd
	}
	return target.Less(bestTarget)
}

// PathDirections converts a path into the moves that walk it
func PathDirections(path Path) []Direction {
	if len(path) < 2 {
		return nil
	}
	out := make([]Direction, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		prev, cur := path[i-1], path[i]
		for _, d := range Directions {
			if prev.Step(d) == cur {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
