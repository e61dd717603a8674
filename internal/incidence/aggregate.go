// Package incidence builds subject-incidence trees from classified exam
// questions. Aggregation is a pure projection of a point-in-time question
// snapshot: every run rebuilds the tree from scratch, nothing is mutated
// in place.
package incidence

import (
	"math"
	"slices"

	"github.com/acssjr/examscan/internal/models"
)

// UnclassifiedLabel names the synthetic bucket that absorbs questions
// without a usable classification path, so totals always reconcile.
const UnclassifiedLabel = "unclassified"

// Node is one entry in the incidence tree. Percentage is the node's share
// of the whole corpus (count / total questions), not of its siblings, so
// the number stays comparable at every depth.
type Node struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Children   []*Node `json:"children,omitempty"`
}

// Aggregate builds an incidence tree for questions following the supplied
// taxonomy skeleton. Each question is counted at the deepest skeleton node
// its path reaches; parent counts are the sums over their subtrees.
// Questions whose path matches no top-level skeleton node fall into an
// "unclassified" bucket appended at the root. The skeleton's authored order
// is preserved, never re-sorted.
//
// A nil skeleton falls back to AggregateAdHoc.
func Aggregate(questions []models.Question, skeleton []*Skeleton) []*Node {
	if skeleton == nil {
		return AggregateAdHoc(questions)
	}
	if len(questions) == 0 {
		return []*Node{}
	}

	nodes := make([]*Node, len(skeleton))
	index := make(map[string]int, len(skeleton))
	for i, s := range skeleton {
		nodes[i] = buildSkeleton(s)
		index[s.Name] = i
	}

	unclassified := 0
	for _, q := range questions {
		if len(q.Path) == 0 {
			unclassified++
			continue
		}
		i, ok := index[q.Path[0]]
		if !ok {
			// Path does not exist in the skeleton. Degrade to the
			// unclassified bucket, never error.
			unclassified++
			continue
		}
		countInto(nodes[i], skeleton[i], q.Path[1:])
	}

	total := len(questions)
	for _, n := range nodes {
		sumCounts(n)
		fillPercentages(n, total)
	}
	if unclassified > 0 {
		nodes = append(nodes, &Node{
			Name:       UnclassifiedLabel,
			Count:      unclassified,
			Percentage: pct(unclassified, total),
		})
	}
	return nodes
}

// buildSkeleton mirrors a skeleton subtree into zero-count nodes.
func buildSkeleton(s *Skeleton) *Node {
	n := &Node{Name: s.Name}
	for _, c := range s.Children {
		n.Children = append(n.Children, buildSkeleton(c))
	}
	return n
}

// countInto walks rest down the subtree under node/skel and increments the
// deepest node the path reaches. Skeleton order and node order are parallel
// by construction.
func countInto(node *Node, skel *Skeleton, rest []string) {
	if len(rest) == 0 {
		node.Count++
		return
	}
	for i, c := range skel.Children {
		if c.Name == rest[0] {
			countInto(node.Children[i], c, rest[1:])
			return
		}
	}
	// Deeper segments are unknown to the skeleton; count here.
	node.Count++
}

// sumCounts folds child counts upward so every inner node's count covers
// its whole subtree.
func sumCounts(n *Node) int {
	for _, c := range n.Children {
		n.Count += sumCounts(c)
	}
	return n.Count
}

func fillPercentages(n *Node, total int) {
	n.Percentage = pct(n.Count, total)
	for _, c := range n.Children {
		fillPercentages(c, total)
	}
}

// AggregateAdHoc groups questions one level deep by the head of their
// classification path when no taxonomy is available. Groups are ordered by
// the position of their first-encountered question, preserving the user's
// scan order. Questions without a path form an "unclassified" group ordered
// like any other.
func AggregateAdHoc(questions []models.Question) []*Node {
	if len(questions) == 0 {
		return []*Node{}
	}

	var order []string
	counts := make(map[string]int)
	for _, q := range questions {
		name := UnclassifiedLabel
		if len(q.Path) > 0 {
			name = q.Path[0]
		}
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	total := len(questions)
	nodes := make([]*Node, 0, len(order))
	for _, name := range order {
		nodes = append(nodes, &Node{
			Name:       name,
			Count:      counts[name],
			Percentage: pct(counts[name], total),
		})
	}
	return nodes
}

// TopN returns the n highest-count nodes, ties broken by input order so
// rankings stay deterministic across runs. The input slice is not modified.
func TopN(nodes []*Node, n int) []*Node {
	out := make([]*Node, len(nodes))
	copy(out, nodes)
	slices.SortStableFunc(out, func(a, b *Node) int {
		return b.Count - a.Count
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// pct is count as a share of total, rounded to one decimal place.
func pct(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}
