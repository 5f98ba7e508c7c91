package vfs

import "strings"

// A Path must be unique in it's context and has the role of a composite key. It's segments are always separated using
// a slash. Within the forest, a Path is either an absolute forest path, an exposed path (as seen by callers after
// conflict resolution) or a path relative to the root of a storage.
//
// # Example
//
// Valid example paths
//
//   - /my/path/may/denote/a/file/or/folder
//   - /photos@3f2a9c1e/2019/holiday.jpg
//
// Paths are normalized lazily: "a/b/", "/a/b" and "//a//b" all denote the same resource. Use String to get the
// canonical form and Equals to compare.
//
// # Design decisions
//
//   - It is a string and not a slice of names, to keep the memory footprint small when millions of listing entries
//     are kept around and to reuse all the standard string handling infrastructures.
type Path string

// Root is the forest root.
const Root Path = "/"

// StartsWith tests whether the path begins with prefix, segment wise.
func (p Path) StartsWith(prefix Path) bool {
	names := p.Names()
	prefixNames := prefix.Names()
	if len(prefixNames) > len(names) {
		return false
	}
	for i, name := range prefixNames {
		if names[i] != name {
			return false
		}
	}
	return true
}

// Names splits the path by / and returns all segments as a simple string array.
func (p Path) Names() []string {
	tmp := strings.Split(string(p), "/")
	cleaned := make([]string, len(tmp))
	idx := 0
	for _, str := range tmp {
		if len(str) > 0 {
			cleaned[idx] = str
			idx++
		}
	}
	return cleaned[0:idx]
}

// NameCount returns how many names are included in this path.
func (p Path) NameCount() int {
	return len(p.Names())
}

// NameAt returns the name at the given index.
func (p Path) NameAt(idx int) string {
	return p.Names()[idx]
}

// Name returns the last element in this path or the empty string if this path is empty.
func (p Path) Name() string {
	tmp := p.Names()
	if len(tmp) > 0 {
		return tmp[len(tmp)-1]
	}
	return ""
}

// IsRoot returns true if the path has no names at all.
func (p Path) IsRoot() bool {
	return p.NameCount() == 0
}

// Parent returns the parent path of this path. The parent of the root is the root.
func (p Path) Parent() Path {
	tmp := p.Names()
	if len(tmp) > 0 {
		return Path("/" + strings.Join(tmp[:len(tmp)-1], "/"))
	}
	return Root
}

// String normalizes the slashes in Path
func (p Path) String() string {
	return "/" + strings.Join(p.Names(), "/")
}

// Equals compares the normalized forms.
func (p Path) Equals(other Path) bool {
	return p.String() == other.String()
}

// Child returns a new Path with name appended as a child
func (p Path) Child(name string) Path {
	return ConcatPaths(p, Path(name))
}

// TrimPrefix returns a path without the prefix. If prefix is not a segment wise prefix, the normalized path is
// returned unchanged.
func (p Path) TrimPrefix(prefix Path) Path {
	if !p.StartsWith(prefix) {
		return Path(p.String())
	}
	return Path("/" + strings.Join(p.Names()[prefix.NameCount():], "/"))
}

// ConcatPaths merges all paths together
func ConcatPaths(paths ...Path) Path {
	tmp := make([]string, 0)
	for _, path := range paths {
		tmp = append(tmp, path.Names()...)
	}
	return Path("/" + strings.Join(tmp, "/"))
}
