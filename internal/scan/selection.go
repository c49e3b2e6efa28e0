package scan

import (
	"sort"

	"ioclens/internal/dom"
)

// SelectionEvent carries the state after a mutating selection operation.
// Count always equals the set size, never the annotation instance count.
type SelectionEvent struct {
	Count  int
	Values []string
}

// SelectionListener receives selection-changed notifications. The transport
// to the presentation surface is the caller's concern.
type SelectionListener func(SelectionEvent)

// SelectionController keeps the selected-value set and every annotation
// instance's presentation flag in agreement. Selection is value-scoped:
// toggling a value flips all of its instances anywhere in the document.
type SelectionController struct {
	selected    map[string]bool
	annotations func() []*Annotation
	listener    SelectionListener
}

// NewSelectionController creates a controller over the annotations returned
// by the supplier (live per scan, so the controller survives re-scans).
func NewSelectionController(annotations func() []*Annotation, listener SelectionListener) *SelectionController {
	return &SelectionController{
		selected:    make(map[string]bool),
		annotations: annotations,
		listener:    listener,
	}
}

// Toggle flips one value's membership.
func (s *SelectionController) Toggle(value string) {
	key := NormalizeValue(value)
	if s.selected[key] {
		delete(s.selected, key)
	} else {
		s.selected[key] = true
	}
	s.sync()
}

// SelectAll adds every given value.
func (s *SelectionController) SelectAll(values []string) {
	for _, v := range values {
		s.selected[NormalizeValue(v)] = true
	}
	s.sync()
}

// DeselectAll empties the set.
func (s *SelectionController) DeselectAll() {
	s.selected = make(map[string]bool)
	s.sync()
}

// DeselectOne removes one value.
func (s *SelectionController) DeselectOne(value string) {
	delete(s.selected, NormalizeValue(value))
	s.sync()
}

// Selected reports one value's membership.
func (s *SelectionController) Selected(value string) bool {
	return s.selected[NormalizeValue(value)]
}

// Values returns the sorted selection set.
func (s *SelectionController) Values() []string {
	out := make([]string, 0, len(s.selected))
	for v := range s.selected {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Count returns the set size.
func (s *SelectionController) Count() int {
	return len(s.selected)
}

// Clear resets the set without notifying; used on scan-mode change where the
// annotations are being torn down anyway.
func (s *SelectionController) Clear() {
	s.selected = make(map[string]bool)
}

// sync re-derives every instance's flag from set membership. Running the full
// re-sync after each mutation is what keeps presentation from ever diverging;
// prior consistency is never assumed.
func (s *SelectionController) sync() {
	if s.annotations != nil {
		for _, ann := range s.annotations() {
			if ann == nil || ann.Record == nil {
				continue
			}
			on := s.selected[NormalizeValue(ann.Record.Value)]
			ann.Selected = on
			if ann.Wrapper != nil {
				if on {
					dom.SetAttr(ann.Wrapper, AttrSelected, "true")
				} else {
					dom.SetAttr(ann.Wrapper, AttrSelected, "false")
				}
			}
		}
	}
	if s.listener != nil {
		s.listener(SelectionEvent{Count: len(s.selected), Values: s.Values()})
	}
}
