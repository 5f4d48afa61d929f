// Package tree arranges catalog records into a path hierarchy with sizes
// aggregated per directory.
package tree

// Node represents a directory or file in the tree.
type Node struct {
	// Path is the slash-separated path from the tree root.
	Path string `json:"path" yaml:"path"`
	Name string `json:"name" yaml:"name"`

	IsDir bool `json:"is_dir" yaml:"is_dir"`

	// Size is the file size, or the total of all files below a directory.
	Size int64 `json:"size" yaml:"size"`

	// Files is 1 for a file, or the number of files below a directory.
	Files int `json:"files" yaml:"files"`

	FileType string `json:"file_type,omitempty" yaml:"file_type,omitempty"`

	// Truncated marks a directory whose children were collapsed.
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`

	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
	Parent   *Node   `json:"-" yaml:"-"`
}

// AddChild adds a child node and sets this node as the child's parent.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// IsLeaf returns true if the node is a file or an empty directory.
func (n *Node) IsLeaf() bool {
	return !n.IsDir || len(n.Children) == 0
}

// Depth returns the depth of this node from the root (root = 0).
func (n *Node) Depth() int {
	depth := 0
	for p := n.Parent; p != nil; p = p.Parent {
		depth++
	}
	return depth
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
}

// Truncate drops every node deeper than depth below n. Directories at the
// cut keep their aggregated size and count.
func (n *Node) Truncate(depth int) *Node {
	if depth < 0 {
		return n
	}
	n.Walk(func(node *Node, d int) bool {
		if d < depth {
			return true
		}
		if len(node.Children) > 0 {
			node.Children = nil
			node.Truncated = true
		}
		return false
	})
	return n
}

// Find returns the descendant at the slash-separated path, or nil.
func (n *Node) Find(path string) *Node {
	var found *Node
	n.Walk(func(node *Node, _ int) bool {
		if found != nil {
			return false
		}
		if node.Path == path {
			found = node
			return false
		}
		return true
	})
	return found
}
