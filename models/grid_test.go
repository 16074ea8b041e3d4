package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrid(t *testing.T) {
	g := Grid[int]{}
	g.Set("b", "y", 2)
	g.Set("a", "z", 3)
	g.Set("a", "x", 1)

	v, ok := g.Get("a", "x")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = g.Get("c", "x")
	assert.False(t, ok)
	assert.Equal(t, 3, g.Len())

	var visited []int
	g.Each(func(_, _ string, v int) { visited = append(visited, v) })
	assert.Equal(t, []int{1, 3, 2}, visited)
}

func TestUnion(t *testing.T) {
	a := Grid[int]{"malicious": {"pdf": 1}, "benign": {}}
	b := Grid[string]{"malicious": {"exe": "x", "pdf": "y"}}

	assert.Equal(t, [][2]string{
		{"malicious", "exe"},
		{"malicious", "pdf"},
	}, Union(a, b))
}

func TestLocalTableAdd(t *testing.T) {
	lt := LocalTable{}
	lt.Add("file.sha1", "s1", 3)
	lt.Add("file.sha1", "s1", 2)
	lt.Add("file.sha1", "s2", 1)

	assert.Equal(t, Counter{"s1": 5, "s2": 1}, lt["file.sha1"])
	assert.Equal(t, 6, lt["file.sha1"].Total())
}
