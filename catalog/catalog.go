// Package catalog contains a static vfs.Resolver, which keeps the claims of all containers in memory. It is meant
// for tests, tools and small installations which describe their forest in a yaml file.
package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	vfs "github.com/worldiety/forestvfs"
)

var _ vfs.Resolver = (*Catalog)(nil)

// claim binds a container to its mount point.
type claim struct {
	mount     vfs.Path
	container uuid.UUID
	storages  []vfs.Storage
}

type virtualDir struct {
	children []*namedEntry
}

type namedEntry struct {
	name string
	dir  *virtualDir
	// claims rooted exactly at this entry
	claims []*claim
}

// Returns the namedEntry or nil
func (d *virtualDir) ChildByName(name string) *namedEntry {
	for _, child := range d.children {
		if child.name == name {
			return child
		}
	}
	return nil
}

// Removes and returns the child, if any
func (d *virtualDir) RemoveChild(name string) *namedEntry {
	index := -1
	for idx, child := range d.children {
		if child.name == name {
			index = idx
			break
		}
	}
	if index == -1 {
		return nil
	}
	c := d.children[index]
	d.children = append(d.children[:index], d.children[index+1:]...)
	return c
}

func (e *namedEntry) empty() bool {
	return len(e.claims) == 0 && len(e.dir.children) == 0
}

// A Catalog is a tree of claims. In contrast to a classic mount table, claims may overlap: several containers can
// claim the same mount point, and a container can be claimed below the mount point of another one. Resolve then
// answers with all of them and leaves the disambiguation to the engine.
//
// All methods are safe for concurrent use. Each Resolve answers from one consistent snapshot.
type Catalog struct {
	mutex     sync.RWMutex
	root      *namedEntry
	container map[uuid.UUID]vfs.Path
}

func New() *Catalog {
	return &Catalog{
		root:      &namedEntry{dir: &virtualDir{}},
		container: make(map[uuid.UUID]vfs.Path),
	}
}

// Claim mounts a container with its replicas. A container can only be claimed once.
func (c *Catalog) Claim(mount vfs.Path, container uuid.UUID, storages ...vfs.Storage) error {
	if len(storages) == 0 {
		return errors.Errorf("claim %s: container %s has no storages", mount, container)
	}
	if err := ValidateMountPoint(mount); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if other, ok := c.container[container]; ok {
		return errors.Errorf("claim %s: container %s is already claimed at %s", mount, container, other)
	}

	// ensure the path
	entry := c.root
	for _, name := range mount.Names() {
		child := entry.dir.ChildByName(name)
		if child == nil {
			child = &namedEntry{name: name, dir: &virtualDir{}}
			entry.dir.children = append(entry.dir.children, child)
		}
		entry = child
	}

	replicas := make([]vfs.Storage, len(storages))
	copy(replicas, storages)
	entry.claims = append(entry.claims, &claim{mount: vfs.Path(mount.String()), container: container, storages: replicas})
	c.container[container] = vfs.Path(mount.String())
	return nil
}

// Release removes the claim of the container and prunes directories which are no longer needed.
func (c *Catalog) Release(container uuid.UUID) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	mount, ok := c.container[container]
	if !ok {
		return false
	}
	delete(c.container, container)

	trail := []*namedEntry{c.root}
	for _, name := range mount.Names() {
		trail = append(trail, trail[len(trail)-1].dir.ChildByName(name))
	}
	leaf := trail[len(trail)-1]
	for i, cl := range leaf.claims {
		if cl.container == container {
			leaf.claims = append(leaf.claims[:i], leaf.claims[i+1:]...)
			break
		}
	}
	for i := len(trail) - 1; i > 0 && trail[i].empty(); i-- {
		trail[i-1].dir.RemoveChild(trail[i].name)
	}
	return true
}

// MountPoint returns where the container is claimed.
func (c *Catalog) MountPoint(container uuid.UUID) (vfs.Path, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	p, ok := c.container[container]
	return p, ok
}

// Containers returns all claimed container ids, sorted.
func (c *Catalog) Containers() []uuid.UUID {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	res := make([]uuid.UUID, 0, len(c.container))
	for id := range c.container {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

// Resolve returns every claim covering the path, outermost first, and a virtual path if the path is a strict
// ancestor of any claim. The root is always virtual unless it is claimed itself and nothing else exists.
func (c *Catalog) Resolve(ctx context.Context, absolute vfs.Path) ([]vfs.ResolvedPath, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var res []vfs.ResolvedPath
	entry := c.root
	res = appendClaims(res, entry, absolute)
	for _, name := range absolute.Names() {
		entry = entry.dir.ChildByName(name)
		if entry == nil {
			return res, nil
		}
		res = appendClaims(res, entry, absolute)
	}

	if len(entry.dir.children) > 0 || (entry == c.root && len(entry.claims) == 0) {
		res = append(res, &vfs.VirtualPath{AbsolutePath: vfs.Path(absolute.String())})
	}
	return res, nil
}

func appendClaims(res []vfs.ResolvedPath, entry *namedEntry, absolute vfs.Path) []vfs.ResolvedPath {
	for _, cl := range entry.claims {
		inner := "/" + strings.Join(absolute.Names()[cl.mount.NameCount():], "/")
		res = append(res, &vfs.PathWithStorages{
			PathWithinStorage: vfs.Path(inner),
			StoragesID:        cl.container,
			Storages:          cl.storages,
		})
	}
	return res
}

// Children returns the names of the catalog entries below absolute, sorted.
func (c *Catalog) Children(ctx context.Context, absolute vfs.Path) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry := c.root
	for _, name := range absolute.Names() {
		entry = entry.dir.ChildByName(name)
		if entry == nil {
			return nil, nil
		}
	}
	names := make([]string, 0, len(entry.dir.children))
	for _, child := range entry.dir.children {
		names = append(names, child.name)
	}
	sort.Strings(names)
	return names, nil
}

// ValidateMountPoint rejects names which cannot be expressed as a forest path segment.
func ValidateMountPoint(mount vfs.Path) error {
	for _, name := range mount.Names() {
		if name == "." || name == ".." {
			return errors.Errorf("mount point %s: relative segment %q", mount, name)
		}
		if strings.ContainsRune(name, 0) {
			return errors.Errorf("mount point %s: segment %q contains NUL", mount, name)
		}
	}
	return nil
}
