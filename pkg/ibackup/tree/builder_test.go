package tree_test

import (
	"testing"

	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
	"github.com/jamesainslie/ibackup/pkg/ibackup/property"
	"github.com/jamesainslie/ibackup/pkg/ibackup/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(domain, rel string, size int64) catalog.Record {
	return catalog.Record{
		Domain:       domain,
		RelativePath: rel,
		Info: property.Dict{
			"$objects": []interface{}{"$null", map[string]interface{}{"Size": uint64(size)}},
		},
	}
}

func childNames(n *tree.Node) []string {
	names := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		names = append(names, c.Name)
	}
	return names
}

func TestBuild(t *testing.T) {
	t.Run("aggregates sizes and counts", func(t *testing.T) {
		records := []catalog.Record{
			rec("AppDomain-com.apple.Pages", "Documents/a.pages", 1000),
			rec("AppDomain-com.apple.Pages", "Documents/b.pages", 2000),
			rec("AppDomain-com.apple.Pages", "Library/Caches/c.db", 5000),
		}

		root := tree.Build("Pages", records)

		require.NotNil(t, root)
		assert.Equal(t, "Pages", root.Name)
		assert.True(t, root.IsDir)
		assert.Equal(t, int64(8000), root.Size)
		assert.Equal(t, 3, root.Files)

		assert.Equal(t, []string{"Library", "Documents"}, childNames(root))

		caches := root.Find("Library/Caches")
		require.NotNil(t, caches)
		assert.Equal(t, int64(5000), caches.Size)
		assert.Equal(t, 2, caches.Depth())
		assert.Equal(t, root.Children[0], caches.Parent)
	})

	t.Run("file metadata", func(t *testing.T) {
		root := tree.Build("x", []catalog.Record{rec("HomeDomain", "Media/photo.HEIC", 42)})

		file := root.Find("Media/photo.HEIC")
		require.NotNil(t, file)
		assert.False(t, file.IsDir)
		assert.True(t, file.IsLeaf())
		assert.Equal(t, "photo.HEIC", file.Name)
		assert.Equal(t, int64(42), file.Size)
		assert.Equal(t, 1, file.Files)
		assert.Equal(t, "Image", file.FileType)
	})

	t.Run("records without metadata count as zero", func(t *testing.T) {
		root := tree.Build("x", []catalog.Record{
			{Domain: "HomeDomain", RelativePath: "a"},
			{Domain: "HomeDomain", RelativePath: ""},
		})

		assert.Equal(t, int64(0), root.Size)
		assert.Equal(t, 1, root.Files)
	})

	t.Run("directory entries become directories when files appear below", func(t *testing.T) {
		root := tree.Build("x", []catalog.Record{
			{Domain: "HomeDomain", RelativePath: "Library"},
			rec("HomeDomain", "Library/Preferences/a.plist", 10),
		})

		lib := root.Find("Library")
		require.NotNil(t, lib)
		assert.True(t, lib.IsDir)
		assert.Equal(t, int64(10), lib.Size)
		assert.Equal(t, 1, root.Files)
	})

	t.Run("sorts by size then directories then name", func(t *testing.T) {
		root := tree.Build("x", []catalog.Record{
			rec("d", "b.txt", 5),
			rec("d", "a.txt", 5),
			rec("d", "dir/c.txt", 5),
			rec("d", "big.bin", 50),
		})

		assert.Equal(t, []string{"big.bin", "dir", "a.txt", "b.txt"}, childNames(root))
	})
}

func TestByApp(t *testing.T) {
	records := []catalog.Record{
		rec("AppDomain-com.apple.Notes", "Documents/n.txt", 10),
		rec("AppDomainGroup-group.com.apple.Notes", "Shared/s.sqlite", 30),
		rec("AppDomain-com.apple.Pages", "Documents/p.pages", 5),
		rec("HomeDomain", "Library/x", 100),
	}

	root := tree.ByApp([]string{"com.apple.Pages", "com.apple.Notes", "com.example.Empty"}, records)

	assert.Equal(t, []string{"com.apple.Notes", "com.apple.Pages"}, childNames(root))
	assert.Equal(t, int64(45), root.Size)

	notes := root.Children[0]
	assert.Equal(t, "com.apple.Notes", notes.Path)
	assert.Equal(t, int64(40), notes.Size)
	assert.Equal(t, 2, notes.Files)

	shared := root.Find("com.apple.Notes/Shared/s.sqlite")
	require.NotNil(t, shared)
	assert.Equal(t, "Database", shared.FileType)
}

func TestTruncate(t *testing.T) {
	root := tree.Build("x", []catalog.Record{
		rec("d", "a/b/c/d/e.txt", 7),
		rec("d", "a/f.txt", 3),
	})

	root.Truncate(2)

	b := root.Find("a/b")
	require.NotNil(t, b)
	assert.True(t, b.Truncated)
	assert.Empty(t, b.Children)
	assert.Equal(t, int64(7), b.Size)
	assert.Equal(t, 1, b.Files)

	assert.Nil(t, root.Find("a/b/c"))
	assert.NotNil(t, root.Find("a/f.txt"))
	assert.Equal(t, int64(10), root.Size)

	maxDepth := 0
	root.Walk(func(n *tree.Node, d int) bool {
		if d > maxDepth {
			maxDepth = d
		}
		return true
	})
	assert.Equal(t, 2, maxDepth)
}
