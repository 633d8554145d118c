// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

package learn

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// minImpurityDecrease is the smallest improvement a split must make.
const minImpurityDecrease = 1e-12

// TreeConfig controls tree growth.
type TreeConfig struct {
	// MaxDepth limits depth; 0 means unlimited.
	MaxDepth int

	// MinSamplesSplit is the minimum number of rows a node needs before it
	// is considered for splitting.
	// Default: 2
	MinSamplesSplit int

	// MaxFeatures is the number of features sampled per split; 0 means all.
	MaxFeatures int
}

// Node is one node of a fitted tree, stored in a flat slice.
// Leaves have Feature == -1. For classification trees Value holds class
// probabilities; for regression trees it holds a single mean.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
}

// DecisionTree is a fitted CART tree.
type DecisionTree struct {
	Nodes     []Node
	NFeatures int
}

type criterion int

const (
	gini criterion = iota
	squaredError
)

type treeBuilder struct {
	x        *mat.Dense
	classes  []int
	nClasses int
	targets  []float64
	crit     criterion
	cfg      TreeConfig
	rng      *rand.Rand
	nodes    []Node
}

// FitClassificationTree grows a gini tree on rows idx of x. y holds class
// indices in [0, nClasses).
func FitClassificationTree(x *mat.Dense, y []int, nClasses int, idx []int, cfg TreeConfig, rng *rand.Rand) (*DecisionTree, error) {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 || len(idx) == 0 {
		return nil, ErrEmptyInput
	}
	if len(y) != rows {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrShape, rows, len(y))
	}
	b := &treeBuilder{x: x, classes: y, nClasses: nClasses, crit: gini, cfg: cfg, rng: rng}
	b.grow(idx, 0)
	return &DecisionTree{Nodes: b.nodes, NFeatures: cols}, nil
}

// FitRegressionTree grows a squared-error tree on rows idx of x.
func FitRegressionTree(x *mat.Dense, y []float64, idx []int, cfg TreeConfig, rng *rand.Rand) (*DecisionTree, error) {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 || len(idx) == 0 {
		return nil, ErrEmptyInput
	}
	if len(y) != rows {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrShape, rows, len(y))
	}
	b := &treeBuilder{x: x, targets: y, crit: squaredError, cfg: cfg, rng: rng}
	b.grow(idx, 0)
	return &DecisionTree{Nodes: b.nodes, NFeatures: cols}, nil
}

// Leaf returns the value of the leaf row falls into.
func (t *DecisionTree) Leaf(row []float64) ([]float64, error) {
	if t == nil || len(t.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	if len(row) != t.NFeatures {
		return nil, fmt.Errorf("%w: tree expects %d features, got %d", ErrShape, t.NFeatures, len(row))
	}
	n := 0
	for t.Nodes[n].Feature >= 0 {
		node := t.Nodes[n]
		if row[node.Feature] <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
	return t.Nodes[n].Value, nil
}

// grow appends the subtree for idx and returns its node index.
func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Value: b.leafValue(idx)})

	minSplit := b.cfg.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	if (b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) || len(idx) < minSplit {
		return id
	}

	parent := b.impurity(idx)
	if parent <= minImpurityDecrease {
		return id
	}

	feature, threshold, score, ok := b.bestSplit(idx)
	if !ok || parent-score <= minImpurityDecrease {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *treeBuilder) leafValue(idx []int) []float64 {
	if b.crit == gini {
		counts := make([]float64, b.nClasses)
		for _, i := range idx {
			counts[b.classes[i]]++
		}
		floats.Scale(1/float64(len(idx)), counts)
		return counts
	}
	var sum float64
	for _, i := range idx {
		sum += b.targets[i]
	}
	return []float64{sum / float64(len(idx))}
}

// impurity is gini impurity or mean squared error of idx.
func (b *treeBuilder) impurity(idx []int) float64 {
	n := float64(len(idx))
	if b.crit == gini {
		counts := make([]float64, b.nClasses)
		for _, i := range idx {
			counts[b.classes[i]]++
		}
		return giniFromCounts(counts, n)
	}
	var sum, sumSq float64
	for _, i := range idx {
		v := b.targets[i]
		sum += v
		sumSq += v * v
	}
	return (sumSq - sum*sum/n) / n
}

func giniFromCounts(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

// candidateFeatures returns the features examined at one split.
func (b *treeBuilder) candidateFeatures() []int {
	_, cols := b.x.Dims()
	k := b.cfg.MaxFeatures
	if k <= 0 || k >= cols || b.rng == nil {
		all := make([]int, cols)
		for j := range all {
			all[j] = j
		}
		return all
	}
	return b.rng.Perm(cols)[:k]
}

// bestSplit scans every candidate feature and returns the split with the
// lowest weighted child impurity.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold, score float64, ok bool) {
	n := len(idx)
	score = math.Inf(1)
	sorted := make([]int, n)

	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.x.At(sorted[a], f) < b.x.At(sorted[c], f)
		})

		var scan splitScan
		if b.crit == gini {
			scan = newGiniScan(b, sorted)
		} else {
			scan = newSSEScan(b, sorted)
		}

		for i := 1; i < n; i++ {
			scan.move(sorted[i-1])
			lo, hi := b.x.At(sorted[i-1], f), b.x.At(sorted[i], f)
			if lo == hi {
				continue
			}
			if s := scan.score(i, n); s < score {
				score = s
				feature = f
				threshold = lo + (hi-lo)/2
				ok = true
			}
		}
	}
	return feature, threshold, score, ok
}

// splitScan tracks left/right statistics while rows move left one at a time.
type splitScan interface {
	move(row int)
	score(nLeft, n int) float64
}

type giniScan struct {
	b           *treeBuilder
	left, right []float64
}

func newGiniScan(b *treeBuilder, idx []int) *giniScan {
	s := &giniScan{b: b, left: make([]float64, b.nClasses), right: make([]float64, b.nClasses)}
	for _, i := range idx {
		s.right[b.classes[i]]++
	}
	return s
}

func (s *giniScan) move(row int) {
	c := s.b.classes[row]
	s.left[c]++
	s.right[c]--
}

func (s *giniScan) score(nLeft, n int) float64 {
	nl, nr := float64(nLeft), float64(n-nLeft)
	return (nl*giniFromCounts(s.left, nl) + nr*giniFromCounts(s.right, nr)) / float64(n)
}

type sseScan struct {
	b                   *treeBuilder
	lSum, lSq, rSum, rSq float64
}

func newSSEScan(b *treeBuilder, idx []int) *sseScan {
	s := &sseScan{b: b}
	for _, i := range idx {
		v := b.targets[i]
		s.rSum += v
		s.rSq += v * v
	}
	return s
}

func (s *sseScan) move(row int) {
	v := s.b.targets[row]
	s.lSum += v
	s.lSq += v * v
	s.rSum -= v
	s.rSq -= v * v
}

func (s *sseScan) score(nLeft, n int) float64 {
	nl, nr := float64(nLeft), float64(n-nLeft)
	sse := (s.lSq - s.lSum*s.lSum/nl) + (s.rSq - s.rSum*s.rSum/nr)
	return sse / float64(n)
}
