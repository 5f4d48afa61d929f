package tree

import (
	"path"
	"sort"
	"strings"

	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
)

// Build arranges records under a root named name by splitting each
// relative path on "/". File sizes come from decoded metadata (see
// catalog.Record.Size), so records should be queried with info decoding.
// Children are sorted by size descending.
func Build(name string, records []catalog.Record) *Node {
	root := &Node{Name: name, IsDir: true}
	insertAll(root, "", records)
	aggregateSizes(root)
	sortChildren(root)
	return root
}

// ByApp builds one subtree per app holding the records whose domain
// contains the app identifier. Apps without records are left out.
func ByApp(apps []string, records []catalog.Record) *Node {
	root := &Node{Name: "root", IsDir: true}

	for _, app := range apps {
		var matched []catalog.Record
		for _, r := range records {
			if strings.Contains(r.Domain, app) {
				matched = append(matched, r)
			}
		}
		if len(matched) == 0 {
			continue
		}

		appNode := &Node{Path: app, Name: app, IsDir: true}
		root.AddChild(appNode)
		insertAll(appNode, app, matched)
	}

	aggregateSizes(root)
	sortChildren(root)
	return root
}

func insertAll(root *Node, prefix string, records []catalog.Record) {
	nodes := map[string]*Node{prefix: root}

	for _, r := range records {
		rel := strings.Trim(r.RelativePath, "/")
		if rel == "" {
			continue
		}

		full := rel
		if prefix != "" {
			full = prefix + "/" + rel
		}

		if existing, ok := nodes[full]; ok {
			// A path seen before as a directory gains no file data.
			if !existing.IsDir {
				existing.Size += r.Size()
			}
			continue
		}

		parent := ensureAncestors(nodes, prefix, full)
		leaf := &Node{
			Path:     full,
			Name:     path.Base(full),
			Size:     r.Size(),
			FileType: DetectFileType(full),
		}
		parent.AddChild(leaf)
		nodes[full] = leaf
	}
}

// ensureAncestors creates the directory chain between prefix and p's parent
// and returns the parent. A file node found on the chain becomes a
// directory.
func ensureAncestors(nodes map[string]*Node, prefix, p string) *Node {
	dir := path.Dir(p)
	if prefix == "" && dir == "." {
		return nodes[prefix]
	}
	if dir == prefix {
		return nodes[prefix]
	}

	if n, ok := nodes[dir]; ok {
		if !n.IsDir {
			n.IsDir = true
			n.Size = 0
			n.FileType = ""
		}
		return n
	}

	parent := ensureAncestors(nodes, prefix, dir)
	n := &Node{Path: dir, Name: path.Base(dir), IsDir: true}
	parent.AddChild(n)
	nodes[dir] = n
	return n
}

func aggregateSizes(node *Node) (totalSize int64, totalCount int) {
	if !node.IsDir {
		node.Files = 1
		return node.Size, 1
	}

	for _, child := range node.Children {
		size, count := aggregateSizes(child)
		totalSize += size
		totalCount += count
	}

	node.Size = totalSize
	node.Files = totalCount
	return totalSize, totalCount
}

// sortChildren orders children by size descending, directories first on
// equal size, then by name.
func sortChildren(node *Node) {
	if !node.IsDir || len(node.Children) == 0 {
		return
	}

	sort.Slice(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		return a.Name < b.Name
	})

	for _, child := range node.Children {
		sortChildren(child)
	}
}

var fileTypes = map[string]string{
	".jpg":  "Image",
	".jpeg": "Image",
	".png":  "Image",
	".heic": "Image",
	".gif":  "Image",
	".webp": "Image",

	".mov": "Video",
	".mp4": "Video",
	".m4v": "Video",

	".m4a": "Audio",
	".mp3": "Audio",
	".caf": "Audio",
	".aac": "Audio",
	".wav": "Audio",

	".sqlite":   "Database",
	".sqlite3":  "Database",
	".sqlitedb": "Database",
	".db":       "Database",

	".plist": "Property List",
	".json":  "JSON",
	".xml":   "XML",

	".txt":     "Text",
	".pdf":     "PDF",
	".pages":   "Document",
	".numbers": "Document",
	".key":     "Document",

	".zip": "Archive",
	".gz":  "Archive",
}

// DetectFileType returns a human-readable type based on the extension.
func DetectFileType(p string) string {
	if t, ok := fileTypes[strings.ToLower(path.Ext(p))]; ok {
		return t
	}
	return "File"
}
