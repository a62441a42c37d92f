package filesystem

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Node represents a file or directory in the watched source tree
type Node struct {
	Name     string
	Path     string
	IsDir    bool
	Children []*Node
	Parent   *Node
}

// BuildTree arranges the given paths under root. Paths outside root hang off
// a separate top-level node named after their own directory.
func BuildTree(root string, paths []string) *Node {
	rootNode := &Node{
		Name:  filepath.Base(root),
		Path:  root,
		IsDir: true,
	}

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	for _, path := range sorted {
		base := root
		if rel, err := filepath.Rel(root, path); err != nil || strings.HasPrefix(rel, "..") {
			base = filepath.Dir(filepath.Dir(path))
		}
		addPathToTree(rootNode, path, base)
	}

	return rootNode
}

// addPathToTree adds a file path to the tree, creating intermediate directory nodes as needed
func addPathToTree(root *Node, path string, rootPath string) {
	relPath, err := filepath.Rel(rootPath, path)
	if err != nil {
		return
	}

	parts := strings.Split(relPath, string(os.PathSeparator))
	currentNode := root
	currentPath := rootPath

	for i, part := range parts {
		currentPath = filepath.Join(currentPath, part)

		// If it's the last part, it's the file
		if i == len(parts)-1 {
			child := &Node{
				Name:   part,
				Path:   path,
				IsDir:  false,
				Parent: currentNode,
			}
			currentNode.Children = append(currentNode.Children, child)
			return
		}

		found := false
		for _, child := range currentNode.Children {
			if child.Name == part && child.IsDir {
				currentNode = child
				found = true
				break
			}
		}

		if !found {
			newNode := &Node{
				Name:   part,
				Path:   currentPath,
				IsDir:  true,
				Parent: currentNode,
			}
			currentNode.Children = append(currentNode.Children, newNode)
			currentNode = newNode
		}
	}
}
