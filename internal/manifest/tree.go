package manifest

import (
	"net/url"
	"strings"
)

// NodeKind tags the variant held by a Node.
type NodeKind int

const (
	NodeCategory NodeKind = iota
	NodeFolder
	NodeLeaf
)

func (k NodeKind) String() string {
	switch k {
	case NodeCategory:
		return "category"
	case NodeFolder:
		return "folder"
	case NodeLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Node is one vertex of a manifest tree. Categories and folders carry
// Children in insertion order; leaves carry an Entry and no children.
type Node struct {
	Kind     NodeKind
	Name     string
	Children []*Node
	Entry    *Entry
}

// Child returns the direct child named name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Folder returns the child folder named name, creating it when absent. An
// existing leaf with the same name is replaced by the folder.
func (n *Node) Folder(name string) *Node {
	if c := n.Child(name); c != nil {
		if c.Kind != NodeLeaf {
			return c
		}
		c.Kind, c.Entry, c.Children = NodeFolder, nil, nil
		return c
	}
	c := &Node{Kind: NodeFolder, Name: name}
	n.Children = append(n.Children, c)
	return c
}

// Leaf sets the child leaf named name to e, overwriting any existing child
// of that name in place so sibling order is kept.
func (n *Node) Leaf(name string, e Entry) *Node {
	entry := e
	if c := n.Child(name); c != nil {
		c.Kind, c.Entry, c.Children = NodeLeaf, &entry, nil
		return c
	}
	c := &Node{Kind: NodeLeaf, Name: name, Entry: &entry}
	n.Children = append(n.Children, c)
	return c
}

// Manifest is a version stamped tree of entries under named categories.
type Manifest struct {
	Class       Class
	Version     string
	LastUpdated string
	BaseURL     string
	Categories  []*Node

	index map[string]*Entry
}

// New returns an empty manifest for class.
func New(class Class, version string) *Manifest {
	return &Manifest{Class: class, Version: version}
}

// Category returns the category named name, creating it when absent.
func (m *Manifest) Category(name string) *Node {
	for _, c := range m.Categories {
		if c.Name == name {
			return c
		}
	}
	c := &Node{Kind: NodeCategory, Name: name}
	m.Categories = append(m.Categories, c)
	m.index = nil
	return c
}

// Upsert inserts or overwrites the leaf at path (category first), creating
// intermediate folders as needed. It reports whether an existing node of the
// other kind was replaced: a leaf standing where a folder is needed, or a
// folder where the leaf goes.
func (m *Manifest) Upsert(path []string, e Entry) (displaced bool) {
	if len(path) < 2 {
		return false
	}
	node := m.Category(path[0])
	for _, name := range path[1 : len(path)-1] {
		if c := node.Child(name); c != nil && c.Kind == NodeLeaf {
			displaced = true
		}
		node = node.Folder(name)
	}
	last := path[len(path)-1]
	if c := node.Child(last); c != nil && c.Kind != NodeLeaf {
		displaced = true
	}
	node.Leaf(last, e)
	m.index = nil
	return displaced
}

// Walk visits every leaf depth first in insertion order. path holds the
// category, folder names and the leaf key.
func (m *Manifest) Walk(fn func(path []string, e *Entry)) {
	for _, category := range m.Categories {
		walkNode(category, []string{category.Name}, fn)
	}
}

func walkNode(n *Node, path []string, fn func([]string, *Entry)) {
	for _, child := range n.Children {
		childPath := append(append([]string(nil), path...), child.Name)
		switch child.Kind {
		case NodeLeaf:
			if child.Entry != nil {
				fn(childPath, child.Entry)
			}
		case NodeFolder, NodeCategory:
			walkNode(child, childPath, fn)
		}
	}
}

// Entries returns every leaf entry in walk order.
func (m *Manifest) Entries() []*Entry {
	var out []*Entry
	m.Walk(func(_ []string, e *Entry) {
		out = append(out, e)
	})
	return out
}

// Len returns the number of leaves.
func (m *Manifest) Len() int {
	n := 0
	m.Walk(func([]string, *Entry) { n++ })
	return n
}

// Identifier derives the stable key for the leaf at path. Content leaves
// are keyed by their full hierarchical path; code leaves by the file key
// inside their category.
func Identifier(class Class, path []string) string {
	if class == ClassCode && len(path) > 1 {
		return strings.Join(path[1:], "/")
	}
	return strings.Join(path, "/")
}

// Resolve fills Identifier, Path, Kind and SourceURL for every leaf. Relative
// references resolve against BaseURL, or against manifestURL's directory
// when the manifest has no base URL.
func (m *Manifest) Resolve(manifestURL string) {
	base := resolveBase(m.BaseURL, manifestURL)

	m.index = make(map[string]*Entry)
	m.Walk(func(path []string, e *Entry) {
		e.Path = path
		if e.Identifier == "" {
			e.Identifier = Identifier(m.Class, path)
		}
		if m.Class == ClassContent {
			e.Kind = KindContent
		} else if e.Kind == "" {
			e.Kind = ParseAssetKind("", e.File)
		}
		if e.SourceURL == "" {
			e.SourceURL = resolveRef(base, e.File)
		}
		m.index[e.Identifier] = e
	})
}

// Lookup implements RecordSet so a manifest can stand in for a local record set.
func (m *Manifest) Lookup(identifier string) (Record, bool) {
	if m.index == nil {
		m.Resolve("")
	}
	e, ok := m.index[identifier]
	if !ok {
		return Record{}, false
	}
	return Record{
		Identifier:  e.Identifier,
		File:        e.File,
		ContentHash: e.ContentHash,
		Version:     e.Version,
		Kind:        e.Kind,
		SizeBytes:   e.SizeBytes,
		Critical:    e.Critical,
		Path:        e.Path,
	}, true
}

func resolveBase(baseURL, manifestURL string) *url.URL {
	if b := strings.TrimSpace(baseURL); b != "" {
		if !strings.HasSuffix(b, "/") {
			b += "/"
		}
		if u, err := url.Parse(b); err == nil {
			return u
		}
	}
	if manifestURL != "" {
		if u, err := url.Parse(manifestURL); err == nil {
			u.RawQuery, u.Fragment = "", ""
			return u
		}
	}
	return nil
}

func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() || base == nil {
		return r.String()
	}
	if strings.HasPrefix(ref, "/") && base.Path != "" {
		// Leading slashes are relative to the base, not the host root.
		r, err = url.Parse(strings.TrimLeft(ref, "/"))
		if err != nil {
			return ref
		}
	}
	return base.ResolveReference(r).String()
}
