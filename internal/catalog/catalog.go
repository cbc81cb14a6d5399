package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrUnknownScale = errors.New("unknown scale")
	ErrUnknownNote  = errors.New("unknown note")
)

// Note names a scale degree in Byzantine notation. A trailing "#" marks the
// raised (sharp) variant.
type Note string

// Sharp reports whether n is a raised variant.
func (n Note) Sharp() bool {
	return strings.HasSuffix(string(n), "#")
}

// Base returns the degree without the sharp marker.
func (n Note) Base() Note {
	return Note(strings.TrimSuffix(string(n), "#"))
}

// File returns the sample file name for n: "<base>.mp3", or
// "<base>-sharp.mp3" for a raised note.
func (n Note) File() string {
	if n.Sharp() {
		return string(n.Base()) + "-sharp.mp3"
	}
	return string(n) + ".mp3"
}

// Scale is a named sequence of seven notes.
type Scale struct {
	Name  string
	Notes []Note
}

// DefaultScale is selected when nothing else has been chosen.
const DefaultScale = "Diatonic"

// Scales lists the built-in scales in display order.
var Scales = []Scale{
	{
		Name:  "Diatonic",
		Notes: []Note{"Νη", "Πα", "Βου", "Γα", "Δι", "Κε", "Ζω"},
	},
	{
		Name:  "Chromatic",
		Notes: []Note{"Νη", "Πα", "Βου#", "Γα", "Δι#", "Κε", "Ζω"},
	},
	{
		Name:  "Enharmonic",
		Notes: []Note{"Νη", "Πα#", "Βου", "Γα#", "Δι", "Κε#", "Ζω"},
	},
}

// SampleNotes is every note that has a recorded sample.
var SampleNotes = []Note{
	"Νη",
	"Πα", "Πα#",
	"Βου", "Βου#",
	"Γα", "Γα#",
	"Δι", "Δι#",
	"Κε", "Κε#",
	"Ζω",
}

// Catalog resolves scale names to notes and notes to sample locations.
// It is read-only after New.
type Catalog struct {
	sampleDir string
	scales    map[string]Scale
	order     []string
	paths     map[Note]string
}

// New builds the catalog with sample paths rooted at sampleDir, which may
// be a directory or a base URL.
func New(sampleDir string) *Catalog {
	c := &Catalog{
		sampleDir: strings.TrimRight(sampleDir, "/"),
		scales:    make(map[string]Scale, len(Scales)),
		paths:     make(map[Note]string, len(SampleNotes)),
	}
	for _, s := range Scales {
		c.scales[s.Name] = s
		c.order = append(c.order, s.Name)
	}
	for _, n := range SampleNotes {
		if c.sampleDir == "" {
			c.paths[n] = n.File()
			continue
		}
		c.paths[n] = c.sampleDir + "/" + n.File()
	}
	return c
}

// ScaleNames returns the scale names in display order.
func (c *Catalog) ScaleNames() []string {
	return slices.Clone(c.order)
}

// IsValidScale checks if a scale exists in the catalog.
func (c *Catalog) IsValidScale(name string) bool {
	_, ok := c.scales[name]
	return ok
}

// Scale returns the ordered notes of the named scale.
func (c *Catalog) Scale(name string) ([]Note, error) {
	s, ok := c.scales[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScale, name)
	}
	return slices.Clone(s.Notes), nil
}

// Path returns the sample location for a note.
func (c *Catalog) Path(n Note) (string, error) {
	p, ok := c.paths[n]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownNote, n)
	}
	return p, nil
}

// HasNote reports whether n has a sample.
func (c *Catalog) HasNote(n Note) bool {
	_, ok := c.paths[n]
	return ok
}

// Notes returns every note with a sample, in SampleNotes order.
func (c *Catalog) Notes() []Note {
	return slices.Clone(SampleNotes)
}
