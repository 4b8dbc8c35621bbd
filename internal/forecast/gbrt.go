package forecast

import (
	"fmt"
	"sort"
)

// GBRT is a gradient-boosted ensemble of depth-limited regression trees under
// squared loss: each stage fits the previous ensemble's residuals and is
// added back with shrinkage. Fitting is fully deterministic, so a refit on
// the same training set reproduces the same model.
type GBRT struct {
	nTrees       int
	maxDepth     int
	learningRate float64
	minLeaf      int

	base  float64
	trees []*treeNode
}

// NewGBRT creates a gradient-boosted tree regressor
func NewGBRT(nTrees, maxDepth int, learningRate float64) *GBRT {
	return &GBRT{
		nTrees:       nTrees,
		maxDepth:     maxDepth,
		learningRate: learningRate,
		minLeaf:      5,
	}
}

// ID returns the model identifier
func (g *GBRT) ID() ModelID { return ModelGBRT }

// Fit trains the ensemble on the feature matrix and targets
func (g *GBRT) Fit(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(features) != len(targets) {
		return fmt.Errorf("invalid training set: %d feature rows, %d targets", len(features), len(targets))
	}

	g.base = mean(targets)
	g.trees = g.trees[:0]

	preds := make([]float64, len(targets))
	for i := range preds {
		preds[i] = g.base
	}

	residuals := make([]float64, len(targets))
	indices := make([]int, len(targets))
	for i := range indices {
		indices[i] = i
	}

	for t := 0; t < g.nTrees; t++ {
		for i := range targets {
			residuals[i] = targets[i] - preds[i]
		}
		tree := g.buildNode(features, residuals, indices, 0)
		g.trees = append(g.trees, tree)
		for i := range preds {
			preds[i] += g.learningRate * tree.predict(features[i])
		}
	}
	return nil
}

// Predict returns the ensemble's estimate for one feature row
func (g *GBRT) Predict(features []float64) float64 {
	out := g.base
	for _, tree := range g.trees {
		out += g.learningRate * tree.predict(features)
	}
	return out
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) predict(features []float64) float64 {
	for !n.leaf {
		if features[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func (g *GBRT) buildNode(features [][]float64, targets []float64, indices []int, depth int) *treeNode {
	if depth >= g.maxDepth || len(indices) < 2*g.minLeaf {
		return &treeNode{leaf: true, value: meanAt(targets, indices)}
	}

	feature, threshold, ok := g.bestSplit(features, targets, indices)
	if !ok {
		return &treeNode{leaf: true, value: meanAt(targets, indices)}
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, idx := range indices {
		if features[idx][feature] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      g.buildNode(features, targets, left, depth+1),
		right:     g.buildNode(features, targets, right, depth+1),
	}
}

// bestSplit finds the (feature, threshold) minimizing the summed squared
// error of the two children, via prefix sums over each feature's sort order.
func (g *GBRT) bestSplit(features [][]float64, targets []float64, indices []int) (int, float64, bool) {
	nFeatures := len(features[indices[0]])
	n := len(indices)

	var total, totalSq float64
	for _, idx := range indices {
		total += targets[idx]
		totalSq += targets[idx] * targets[idx]
	}
	parentSSE := totalSq - total*total/float64(n)

	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, n)
	for f := 0; f < nFeatures; f++ {
		copy(order, indices)
		sort.Slice(order, func(i, j int) bool {
			return features[order[i]][f] < features[order[j]][f]
		})

		var leftSum, leftSq float64
		for i := 0; i < n-1; i++ {
			idx := order[i]
			leftSum += targets[idx]
			leftSq += targets[idx] * targets[idx]

			nl := i + 1
			nr := n - nl
			if nl < g.minLeaf || nr < g.minLeaf {
				continue
			}
			// No valid threshold between equal values.
			if features[order[i]][f] == features[order[i+1]][f] {
				continue
			}

			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))

			if gain := parentSSE - sse; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (features[order[i]][f] + features[order[i+1]][f]) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanAt(values []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	sum := 0.0
	for _, idx := range indices {
		sum += values[idx]
	}
	return sum / float64(len(indices))
}
