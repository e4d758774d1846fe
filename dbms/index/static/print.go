package static

import (
	"fmt"

	"github.com/xlab/treeprint"

	"github.com/btree-query-bench/simplekv/dbms/layout"
)

// Tree renders the first depth levels below the root, at most width children
// per node.
func (im *Image) Tree(depth, width int) (treeprint.Tree, error) {
	root, err := im.Node(0)
	if err != nil {
		return nil, err
	}
	tree := treeprint.New()
	tree.SetValue(describe(0, root))
	if err := im.addChildren(tree, root, depth, width); err != nil {
		return nil, err
	}
	return tree, nil
}

func (im *Image) addChildren(branch treeprint.Tree, n layout.Node, depth, width int) error {
	if depth <= 0 || n.IsLeaf() {
		return nil
	}
	for k, p := range n.Ptrs {
		if k == width {
			branch.AddNode(fmt.Sprintf("... %d more", len(n.Ptrs)-width))
			break
		}
		off, err := layout.Decode(p)
		if err != nil {
			return err
		}
		child, err := im.Node(off)
		if err != nil {
			branch.AddNode(fmt.Sprintf("@%d: %v", off, err))
			continue
		}
		sub := branch.AddBranch(describe(off, child))
		if err := im.addChildren(sub, child, depth-1, width); err != nil {
			return err
		}
	}
	return nil
}

func describe(off uint64, n layout.Node) string {
	last := len(n.Keys) - 1
	return fmt.Sprintf("@%d %s keys [%d..%d] next=%d", off, n.Type, n.Keys[0], n.Keys[last], n.Next)
}
