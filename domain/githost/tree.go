package githost

import "slices"

// TreeEntryType distinguishes blobs from subtrees.
type TreeEntryType string

// TreeEntryType values.
const (
	TreeEntryBlob TreeEntryType = "blob"
	TreeEntryTree TreeEntryType = "tree"
)

// TreeEntry is a single path in a repository tree listing.
type TreeEntry struct {
	path      string
	mode      string
	entryType TreeEntryType
	sha       string
	size      int64
}

// NewTreeEntry creates a tree entry.
func NewTreeEntry(path, mode string, entryType TreeEntryType, sha string, size int64) TreeEntry {
	return TreeEntry{path: path, mode: mode, entryType: entryType, sha: sha, size: size}
}

// Path returns the repository-relative path.
func (e TreeEntry) Path() string { return e.path }

// Mode returns the git file mode string.
func (e TreeEntry) Mode() string { return e.mode }

// Type returns whether the entry is a blob or a tree.
func (e TreeEntry) Type() TreeEntryType { return e.entryType }

// SHA returns the blob or tree SHA.
func (e TreeEntry) SHA() string { return e.sha }

// Size returns the blob size in bytes, zero for trees.
func (e TreeEntry) Size() int64 { return e.size }

// IsBlob reports whether the entry is a file.
func (e TreeEntry) IsBlob() bool { return e.entryType == TreeEntryBlob }

// Tree is a repository tree listing at a ref.
type Tree struct {
	sha       string
	entries   []TreeEntry
	truncated bool
}

// NewTree creates a tree listing.
func NewTree(sha string, entries []TreeEntry, truncated bool) Tree {
	return Tree{sha: sha, entries: slices.Clone(entries), truncated: truncated}
}

// SHA returns the tree SHA.
func (t Tree) SHA() string { return t.sha }

// Entries returns a copy of all entries.
func (t Tree) Entries() []TreeEntry { return slices.Clone(t.entries) }

// Truncated reports whether the provider cut the listing short.
func (t Tree) Truncated() bool { return t.truncated }

// Blobs returns only the file entries.
func (t Tree) Blobs() []TreeEntry {
	blobs := make([]TreeEntry, 0, len(t.entries))
	for _, entry := range t.entries {
		if entry.IsBlob() {
			blobs = append(blobs, entry)
		}
	}
	return blobs
}

// PathSHAs returns a map from blob path to blob SHA, the shape the
// incremental refresh diff works on.
func (t Tree) PathSHAs() map[string]string {
	shas := make(map[string]string, len(t.entries))
	for _, entry := range t.entries {
		if entry.IsBlob() {
			shas[entry.Path()] = entry.SHA()
		}
	}
	return shas
}

// IsEmpty returns true if the tree has no SHA.
func (t Tree) IsEmpty() bool { return t.sha == "" }
