package compiler

import (
	"slices"

	"github.com/kinetlab/kinet/internal/patch"
)

// unionFind is an arena-backed disjoint set over dense ids. Backing the
// structure with flat arrays (instead of map-keyed parent pointers) gives
// O(1) access and makes deterministic iteration trivial: callers intern
// keys in sorted order and walk ids ascending.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

// find returns the representative with path halving.
func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union merges the sets of a and b by rank. On equal rank the smaller root
// id wins, so representatives are deterministic regardless of union order.
func (u *unionFind) union(a, b int) int {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return ra
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		ra, rb = rb, ra
	case u.rank[ra] == u.rank[rb]:
		if rb < ra {
			ra, rb = rb, ra
		}
		u.rank[ra]++
	}
	u.parent[rb] = ra
	return ra
}

// groups returns member ids per representative, members ascending, groups
// ordered by smallest member.
func (u *unionFind) groups() [][]int {
	byRoot := make(map[int][]int)
	for i := range u.parent {
		r := u.find(i)
		byRoot[r] = append(byRoot[r], i)
	}
	out := make([][]int, 0, len(byRoot))
	for _, members := range byRoot {
		out = append(out, members)
	}
	slices.SortFunc(out, func(a, b []int) int { return a[0] - b[0] })
	return out
}

// interner assigns dense ids to port keys in sorted key order. Solvers
// intern once up front and then work purely on ints.
type interner struct {
	keys []patch.PortKey
	ids  map[patch.PortKey]int
}

func newInterner(keys []patch.PortKey) *interner {
	sorted := append([]patch.PortKey(nil), keys...)
	slices.SortFunc(sorted, patch.ComparePortKeys)
	in := &interner{
		keys: sorted,
		ids:  make(map[patch.PortKey]int, len(sorted)),
	}
	for i, k := range sorted {
		in.ids[k] = i
	}
	return in
}

func (in *interner) id(k patch.PortKey) int {
	id, ok := in.ids[k]
	if !ok {
		// Constraints are extracted from the same graph the keys came
		// from; a miss is an extractor bug, not an input condition.
		panic("compiler: constraint references unknown port " + k.String())
	}
	return id
}

func (in *interner) key(id int) patch.PortKey { return in.keys[id] }

func (in *interner) len() int { return len(in.keys) }
