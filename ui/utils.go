package ui

import "github.com/jesspatton/livetest/filesystem"

// DisplayNode is one line of the watched tree.
type DisplayNode struct {
	*filesystem.Node
	DisplayName string
	Depth       int
}

// flattenNodes performs a depth-first traversal to create a flat list of nodes.
// It merges single-child directories to reduce vertical space.
func flattenNodes(tree *filesystem.Node) []DisplayNode {
	nodes := []DisplayNode{}
	if tree == nil {
		return nodes
	}

	var getCompacted func(*filesystem.Node, string) (*filesystem.Node, string)
	getCompacted = func(n *filesystem.Node, currentName string) (*filesystem.Node, string) {
		if n.IsDir && len(n.Children) == 1 && n.Children[0].IsDir {
			child := n.Children[0]
			return getCompacted(child, currentName+"/"+child.Name)
		}
		return n, currentName
	}

	var traverse func(*filesystem.Node, int)
	traverse = func(n *filesystem.Node, depth int) {
		// The root is implied by the pane title
		if n == tree {
			for _, child := range n.Children {
				traverse(child, depth)
			}
			return
		}

		finalNode, displayName := getCompacted(n, n.Name)
		nodes = append(nodes, DisplayNode{
			Node:        finalNode,
			DisplayName: displayName,
			Depth:       depth,
		})
		for _, child := range finalNode.Children {
			traverse(child, depth+1)
		}
	}
	traverse(tree, 0)
	return nodes
}
