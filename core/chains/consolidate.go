// Package chains merges coreference chains that share members and removes
// chains that are too short to carry coreference.
package chains

// disjointSet is a union-find forest over dense integer nodes.
type disjointSet struct {
	parent []int
	rank   []int
}

func (s *disjointSet) add() int {
	n := len(s.parent)
	s.parent = append(s.parent, n)
	s.rank = append(s.rank, 0)
	return n
}

func (s *disjointSet) find(x int) int {
	for s.parent[x] != x {
		// path halving
		s.parent[x] = s.parent[s.parent[x]]
		x = s.parent[x]
	}
	return x
}

func (s *disjointSet) union(a, b int) {
	ra, rb := s.find(a), s.find(b)
	if ra == rb {
		return
	}
	switch {
	case s.rank[ra] < s.rank[rb]:
		s.parent[ra] = rb
	case s.rank[ra] > s.rank[rb]:
		s.parent[rb] = ra
	default:
		s.parent[rb] = ra
		s.rank[ra]++
	}
}

// Consolidate merges every pair of chains that share a member until no member
// belongs to more than one chain. The result is the set of connected
// components: chains appear in the order of their first contributing input
// chain, and members in first-seen order with duplicates removed. Empty input
// chains are dropped.
func Consolidate[K comparable](chains [][]K) [][]K {
	var ds disjointSet
	node := make(map[K]int)
	var keys []K

	for _, chain := range chains {
		first := -1
		for _, k := range chain {
			n, ok := node[k]
			if !ok {
				n = ds.add()
				node[k] = n
				keys = append(keys, k)
			}
			if first < 0 {
				first = n
			} else {
				ds.union(first, n)
			}
		}
	}

	group := make(map[int]int)
	var out [][]K
	for _, k := range keys {
		root := ds.find(node[k])
		g, ok := group[root]
		if !ok {
			g = len(out)
			group[root] = g
			out = append(out, nil)
		}
		out[g] = append(out[g], k)
	}
	return out
}
