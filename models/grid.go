package models

import "sort"

// Grid indexes values by the first and then the second dimension value.
type Grid[T any] map[string]map[string]T

func (g Grid[T]) Get(dim0, dim1 string) (T, bool) {
	v, ok := g[dim0][dim1]
	return v, ok
}

func (g Grid[T]) Set(dim0, dim1 string, v T) {
	row, ok := g[dim0]
	if !ok {
		row = make(map[string]T)
		g[dim0] = row
	}
	row[dim1] = v
}

// Len counts the pairs, ignoring empty rows.
func (g Grid[T]) Len() int {
	n := 0
	for _, row := range g {
		n += len(row)
	}
	return n
}

func (g Grid[T]) Dim0s() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (g Grid[T]) Dim1s(dim0 string) []string {
	row := g[dim0]
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Each visits every pair in sorted order.
func (g Grid[T]) Each(fn func(dim0, dim1 string, v T)) {
	for _, d0 := range g.Dim0s() {
		for _, d1 := range g.Dim1s(d0) {
			fn(d0, d1, g[d0][d1])
		}
	}
}

// Union returns the sorted pairs present in either grid.
func Union[A, B any](a Grid[A], b Grid[B]) [][2]string {
	seen := make(Grid[struct{}])
	for d0, row := range a {
		for d1 := range row {
			seen.Set(d0, d1, struct{}{})
		}
	}
	for d0, row := range b {
		for d1 := range row {
			seen.Set(d0, d1, struct{}{})
		}
	}
	pairs := make([][2]string, 0, seen.Len())
	seen.Each(func(d0, d1 string, _ struct{}) {
		pairs = append(pairs, [2]string{d0, d1})
	})
	return pairs
}
