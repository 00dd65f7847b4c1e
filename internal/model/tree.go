package model

import (
	"context"
	"fmt"

	"github.com/clinical-risk-scorer/internal/domain"
)

type tree struct {
	nodes   []TreeNode
	classes [2]domain.Label
}

func newTree(p *TreeParams, classes [2]domain.Label) *tree {
	return &tree{nodes: append([]TreeNode(nil), p.Nodes...), classes: classes}
}

func (t *tree) Predict(_ context.Context, x []float64) (domain.Label, error) {
	i := 0
	// Children always follow their parent, so a walk visits at most
	// len(nodes) nodes.
	for steps := 0; steps <= len(t.nodes); steps++ {
		if i < 0 || i >= len(t.nodes) {
			return 0, fmt.Errorf("tree walk left the node table at %d", i)
		}
		node := t.nodes[i]
		if node.Feature == -1 {
			if node.Class < 0 || node.Class > 1 {
				return 0, fmt.Errorf("tree leaf %d has class index %d", i, node.Class)
			}
			return t.classes[node.Class], nil
		}
		if node.Feature >= len(x) {
			return 0, fmt.Errorf("%w: tree node %d reads feature %d of %d", domain.ErrShapeMismatch, i, node.Feature, len(x))
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
	return 0, fmt.Errorf("tree walk did not reach a leaf")
}

func (t *tree) Kind() string {
	return KindTree
}
