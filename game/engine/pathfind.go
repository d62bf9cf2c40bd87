package engine

import (
	"github.com/zyedidia/generic/heap"
	"github.com/zyedidia/generic/mapset"
)

// searchNode is an entry in the A* open list
type searchNode struct {
	pos Position
	g   int
	h   int
	seq int
}

// lessNode orders the open list by f = g + h, then by h, then by push order,
// which keeps the result deterministic for a fixed grid, start and goal.
func lessNode(a, b searchNode) bool {
	fa, fb := a.g+a.h, b.g+b.h
	if fa != fb {
		return fa < fb
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

// FindPath returns a shortest 4-connected route from start to goal avoiding
// walls. Every step costs 1 regardless of tile fuel cost. It returns an empty
// path when the grid is empty, either endpoint is out of bounds or on a wall,
// or no route exists.
func FindPath(grid Grid, start, goal Position, rules *Rules) Path {
	if rules == nil {
		rules = DefaultRules()
	}
	if grid.Height() == 0 || grid.Width() == 0 {
		return nil
	}
	if !CanMoveTo(grid, start, rules) || !CanMoveTo(grid, goal, rules) {
		return nil
	}
	if start == goal {
		return Path{start}
	}

	open := heap.New(lessNode)
	closed := mapset.New[Position]()
	best := map[Position]int{start: 0}
	parent := make(map[Position]Position)

	seq := 0
	open.Push(searchNode{pos: start, h: ManhattanDistance(start, goal)})

	for open.Size() > 0 {
		current, _ := open.Pop()
		if closed.Has(current.pos) {
			continue
		}
		// Stale entry superseded by a cheaper push
		if current.g > best[current.pos] {
			continue
		}
		closed.Put(current.pos)

		if current.pos == goal {
			return reconstructPath(parent, start, goal)
		}

		for _, d := range Directions {
			next := current.pos.Step(d)
			if !CanMoveTo(grid, next, rules) || closed.Has(next) {
				continue
			}
			g := current.g + 1
			if known, ok := best[next]; ok && g >= known {
				continue
			}
			best[next] = g
			parent[next] = current.pos
			seq++
			open.Push(searchNode{pos: next, g: g, h: ManhattanDistance(next, goal), seq: seq})
		}
	}

	return nil
}

// reconstructPath walks parent links back from goal and reverses them
func reconstructPath(parent map[Position]Position, start, goal Position) Path {
	path := Path{goal}
	for at := goal; at != start; {
		at = parent[at]
		path = append(path, at)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
