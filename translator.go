package vfs

import (
	"sort"
	"strings"
)

// An Exposure connects a node with the path it is exposed under for one query. If Ok is false, the node lost a
// naming collision and is not reachable through this query.
type Exposure struct {
	Node    Node
	Exposed Path
	Ok      bool
}

// A PathTranslator maps between the exposed namespace and absolute forest paths.
type PathTranslator interface {
	// ExposedToAbsolute is total and pure: any string maps to exactly one absolute path.
	ExposedToAbsolute(exposed Path) Path

	// SolveConflicts assigns each node answering one absolute path a distinct exposed path. The result only depends
	// on the set of nodes, not on their order.
	SolveConflicts(nodes []Node) []Exposure

	// Match selects the node a request addresses within a table returned by SolveConflicts.
	Match(table []Exposure, exposed Path) (Node, bool)

	// EscapeName returns the exposed form of a plain entry name.
	EscapeName(name string) string
}

// TagMarker separates an exposed name from its container tag. A literal marker in a name is doubled.
const TagMarker = '@'

const (
	shortTagLen = 8
	fullTagLen  = 32
)

var _ PathTranslator = SuffixTranslator{}

// SuffixTranslator is the default PathTranslator. Colliding physical nodes get a tag derived from their container
// UUID appended to the name of their mount point, e.g. /photos@3f2a9c1e/2019. A virtual node in the same collision
// keeps the untagged path.
type SuffixTranslator struct{}

func (SuffixTranslator) EscapeName(name string) string {
	return strings.ReplaceAll(name, string(TagMarker), string(TagMarker)+string(TagMarker))
}

func (t SuffixTranslator) ExposedToAbsolute(exposed Path) Path {
	segments := parseExposed(exposed)
	names := make([]string, len(segments))
	for i, s := range segments {
		names[i] = s.name
	}
	return Path("/" + strings.Join(names, "/"))
}

func (t SuffixTranslator) SolveConflicts(nodes []Node) []Exposure {
	if len(nodes) == 0 {
		return nil
	}
	sorted := make([]Node, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return nodeKey(sorted[i]) < nodeKey(sorted[j])
	})

	if len(sorted) == 1 {
		return []Exposure{{Node: sorted[0], Exposed: t.escapePath(sorted[0].AbsolutePath()), Ok: true}}
	}

	// claims of the forest root cannot carry a tag, they give way to every other node
	var contenders []Node
	var lost []Exposure
	for _, node := range sorted {
		if physical, ok := node.(*PhysicalNode); ok && physical.MountPoint().IsRoot() {
			lost = append(lost, Exposure{Node: node})
			continue
		}
		contenders = append(contenders, node)
	}
	if len(contenders) == 1 {
		return append([]Exposure{{Node: contenders[0], Exposed: t.escapePath(contenders[0].AbsolutePath()), Ok: true}}, lost...)
	}

	tagLen := tagLength(contenders)
	seen := make(map[Path]bool)
	var won []Exposure
	for _, node := range contenders {
		exposed, ok := t.expose(node, tagLen)
		if ok && seen[exposed] {
			ok = false
		}
		if !ok {
			lost = append(lost, Exposure{Node: node})
			continue
		}
		seen[exposed] = true
		won = append(won, Exposure{Node: node, Exposed: exposed, Ok: true})
	}
	sort.SliceStable(won, func(i, j int) bool {
		return won[i].Exposed < won[j].Exposed
	})
	sort.SliceStable(lost, func(i, j int) bool {
		return nodeKey(lost[i].Node) < nodeKey(lost[j].Node)
	})
	return append(won, lost...)
}

func (t SuffixTranslator) Match(table []Exposure, exposed Path) (Node, bool) {
	requested := parseExposed(exposed)
	var found Node
	matches := 0
	for _, e := range table {
		if !e.Ok {
			continue
		}
		if compatible(requested, parseExposed(e.Exposed), e.Node, len(table) == 1) {
			found = e.Node
			matches++
		}
	}
	if matches != 1 {
		return nil, false
	}
	return found, true
}

// ExposedChild returns the exposed path of a plain child name below an exposed directory.
func ExposedChild(t PathTranslator, dir Path, name string) Path {
	return ConcatPaths(dir, Path(t.EscapeName(name)))
}

func (t SuffixTranslator) expose(node Node, tagLen int) (Path, bool) {
	physical, ok := node.(*PhysicalNode)
	if !ok {
		return t.escapePath(node.AbsolutePath()), true
	}
	mount := physical.MountPoint()
	if mount.IsRoot() {
		return "", false
	}
	tag := containerTag(physical)[:tagLen]
	names := physical.AbsolutePath().Names()
	idx := mount.NameCount() - 1
	escaped := make([]string, len(names))
	for i, name := range names {
		escaped[i] = t.EscapeName(name)
		if i == idx {
			escaped[i] += string(TagMarker) + tag
		}
	}
	return Path("/" + strings.Join(escaped, "/")), true
}

func (t SuffixTranslator) escapePath(p Path) Path {
	names := p.Names()
	for i, name := range names {
		names[i] = t.EscapeName(name)
	}
	return Path("/" + strings.Join(names, "/"))
}

type exposedSegment struct {
	name string
	tag  string
}

// parseExposed un-escapes every segment and splits off tags. It never fails: a trailing single marker yields an
// empty tag.
func parseExposed(exposed Path) []exposedSegment {
	names := exposed.Names()
	res := make([]exposedSegment, len(names))
	for i, raw := range names {
		var sb strings.Builder
		seg := exposedSegment{}
		for j := 0; j < len(raw); j++ {
			if raw[j] != TagMarker {
				sb.WriteByte(raw[j])
				continue
			}
			if j+1 < len(raw) && raw[j+1] == TagMarker {
				sb.WriteByte(TagMarker)
				j++
				continue
			}
			seg.tag = raw[j+1:]
			break
		}
		seg.name = sb.String()
		res[i] = seg
	}
	return res
}

func compatible(requested, exposed []exposedSegment, node Node, single bool) bool {
	if len(requested) != len(exposed) {
		return false
	}
	var full string
	if physical, ok := node.(*PhysicalNode); ok {
		full = containerTag(physical)
	}
	for i := range requested {
		req, exp := requested[i], exposed[i]
		if req.name != exp.name {
			return false
		}
		switch {
		case exp.tag != "":
			if len(req.tag) < len(exp.tag) || !strings.HasPrefix(full, req.tag) {
				return false
			}
		case req.tag != "":
			// a single answer tolerates a stale tag, as long as it names the same container
			if !single || full == "" || !strings.HasPrefix(full, req.tag) {
				return false
			}
		}
	}
	return true
}

func containerTag(n *PhysicalNode) string {
	return strings.ReplaceAll(n.Storages().ContainerUUID.String(), "-", "")
}

// tagLength widens the tag if two distinct colliding containers share the short prefix.
func tagLength(nodes []Node) int {
	short := make(map[string]string)
	for _, node := range nodes {
		physical, ok := node.(*PhysicalNode)
		if !ok {
			continue
		}
		full := containerTag(physical)
		prefix := full[:shortTagLen]
		if other, exists := short[prefix]; exists && other != full {
			return fullTagLen
		}
		short[prefix] = full
	}
	return shortTagLen
}

func nodeKey(n Node) string {
	switch node := n.(type) {
	case *VirtualNode:
		return "0" + node.AbsolutePath().String()
	case *PhysicalNode:
		return "1" + containerTag(node) + node.Storages().Path.String()
	default:
		return "2" + n.String()
	}
}
