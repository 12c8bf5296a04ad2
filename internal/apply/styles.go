package apply

import "sort"

// Overlay is an injected stylesheet that replaces a static one.
type Overlay struct {
	Identifier string
	Version    string
	CSS        string
}

// StyleSet is the set of active stylesheet overlays. Injecting an overlay
// disables the static stylesheet of the same identifier.
type StyleSet struct {
	order    []string
	overlays map[string]Overlay
	disabled map[string]bool
}

// NewStyleSet returns an empty StyleSet.
func NewStyleSet() *StyleSet {
	return &StyleSet{
		overlays: make(map[string]Overlay),
		disabled: make(map[string]bool),
	}
}

// Inject adds or replaces the overlay for o.Identifier. Replacing keeps the
// original position.
func (s *StyleSet) Inject(o Overlay) {
	if _, ok := s.overlays[o.Identifier]; !ok {
		s.order = append(s.order, o.Identifier)
	}
	s.overlays[o.Identifier] = o
	s.disabled[o.Identifier] = true
}

// Overlays returns the active overlays in injection order.
func (s *StyleSet) Overlays() []Overlay {
	out := make([]Overlay, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.overlays[id])
	}
	return out
}

// Disabled reports whether the static stylesheet for identifier is switched off.
func (s *StyleSet) Disabled(identifier string) bool {
	return s.disabled[identifier]
}

// DisabledOriginals lists the static stylesheets switched off, sorted.
func (s *StyleSet) DisabledOriginals() []string {
	out := make([]string, 0, len(s.disabled))
	for id := range s.disabled {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
