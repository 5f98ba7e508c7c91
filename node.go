package vfs

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NodeStorages bundles the replicas answering for one node.
type NodeStorages struct {
	// Storages are the equivalent replicas in the order they must be tried. Never empty.
	Storages []Storage
	// Path is the path relative to the root of each storage.
	Path Path
	// ContainerUUID identifies the owning container.
	ContainerUUID uuid.UUID
}

// A Node is the identity of one forest path for one query. It is either a *PhysicalNode or a *VirtualNode.
// Nodes never point to their parent; Parent derives it on demand.
type Node interface {
	// AbsolutePath is the forest path the node was resolved for.
	AbsolutePath() Path
	// Parent returns the parent node of the same kind, or false at the root.
	Parent() (Node, bool)
	fmt.Stringer
}

// A PhysicalNode is backed by one or more storages.
type PhysicalNode struct {
	storages     NodeStorages
	absolutePath Path
}

// NewPhysicalNode panics if storages contains no replica, because a physical node without a backend is a bug in
// the resolver and not a runtime condition.
func NewPhysicalNode(storages NodeStorages, absolutePath Path) *PhysicalNode {
	if len(storages.Storages) == 0 {
		panic(fmt.Sprintf("vfs: physical node %s without storages", absolutePath.String()))
	}
	return &PhysicalNode{storages: storages, absolutePath: Path(absolutePath.String())}
}

func (n *PhysicalNode) AbsolutePath() Path {
	return n.absolutePath
}

// Storages returns the replica set.
func (n *PhysicalNode) Storages() NodeStorages {
	return n.storages
}

// MountPoint returns the forest path of the container root this node lives in.
func (n *PhysicalNode) MountPoint() Path {
	names := n.absolutePath.Names()
	inner := n.storages.Path.NameCount()
	if inner > len(names) {
		panic(fmt.Sprintf("vfs: storage path %s is deeper than forest path %s", n.storages.Path, n.absolutePath))
	}
	return Path("/" + strings.Join(names[:len(names)-inner], "/"))
}

// Parent returns the parent inside the same storages. At the container root there is nothing to derive without
// asking the resolver again, so false is returned.
func (n *PhysicalNode) Parent() (Node, bool) {
	if n.storages.Path.IsRoot() || n.absolutePath.IsRoot() {
		return nil, false
	}
	storages := n.storages
	storages.Path = storages.Path.Parent()
	return &PhysicalNode{storages: storages, absolutePath: n.absolutePath.Parent()}, true
}

func (n *PhysicalNode) String() string {
	return "physical(" + n.absolutePath.String() + " -> " + n.storages.ContainerUUID.String() + ":" + n.storages.Path.String() + ")"
}

// A VirtualNode only exists because one of its descendants is claimed. It is always a read-only directory.
type VirtualNode struct {
	absolutePath Path
}

func NewVirtualNode(absolutePath Path) *VirtualNode {
	return &VirtualNode{absolutePath: Path(absolutePath.String())}
}

func (n *VirtualNode) AbsolutePath() Path {
	return n.absolutePath
}

func (n *VirtualNode) Parent() (Node, bool) {
	if n.absolutePath.IsRoot() {
		return nil, false
	}
	return &VirtualNode{absolutePath: n.absolutePath.Parent()}, true
}

func (n *VirtualNode) String() string {
	return "virtual(" + n.absolutePath.String() + ")"
}

// nodeOf maps one resolver answer to a node for the queried absolute path.
func nodeOf(absolute Path, resolved ResolvedPath) Node {
	switch r := resolved.(type) {
	case *PathWithStorages:
		return NewPhysicalNode(NodeStorages{
			Storages:      r.Storages,
			Path:          Path(r.PathWithinStorage.String()),
			ContainerUUID: r.StoragesID,
		}, absolute)
	case *VirtualPath:
		return NewVirtualNode(r.AbsolutePath)
	default:
		panic(fmt.Sprintf("vfs: unknown resolved path %T", resolved))
	}
}

func nodesOf(absolute Path, resolved []ResolvedPath) []Node {
	nodes := make([]Node, 0, len(resolved))
	for _, r := range resolved {
		nodes = append(nodes, nodeOf(absolute, r))
	}
	return nodes
}
