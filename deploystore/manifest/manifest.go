// Package manifest keeps the ordered list of object names that were saved to
// the persistent location and therefore have to be unpacked in packaged builds.
package manifest

import "slices"

// Manifest is an ordered list of names. Duplicates are kept.
type Manifest struct {
	names []string
}

func New(names ...string) *Manifest {
	return &Manifest{names: slices.Clone(names)}
}

func (m *Manifest) Append(name string) {
	m.names = append(m.names, name)
}

// Names returns a copy of the names in insertion order.
func (m *Manifest) Names() []string {
	return slices.Clone(m.names)
}

// Unique returns the names in first-insertion order without duplicates.
func (m *Manifest) Unique() []string {
	seen := make(map[string]struct{}, len(m.names))
	out := make([]string, 0, len(m.names))
	for _, n := range m.names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (m *Manifest) Contains(name string) bool {
	return slices.Contains(m.names, name)
}

func (m *Manifest) Len() int {
	return len(m.names)
}
