// Package ui binds the scale catalog, the playback controller and the
// preference store into the control surface state shared by every
// front-end (web page, terminal, SSH sessions).
package ui

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"charm.land/log/v2"

	"github.com/satindergrewal/ison/internal/audio"
	"github.com/satindergrewal/ison/internal/catalog"
	"github.com/satindergrewal/ison/internal/prefs"
)

var (
	ErrNoSuchButton = errors.New("note is not on the selected scale")
	ErrPitchRange   = errors.New("pitch out of range")
)

// Player is the playback side of the binder.
type Player interface {
	Play(n catalog.Note) error
	Stop()
	SetPitch(p float64) error
	State() audio.PlaybackState
}

// Button is one rendered note button.
type Button struct {
	Key  int    `json:"key"` // 1-based position on the scale
	Note string `json:"note"`
}

// PitchRange bounds the pitch control.
type PitchRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// DefaultPitchRange is one octave down to one octave up.
var DefaultPitchRange = PitchRange{Min: 0.5, Max: 2.0, Step: 0.01}

func (r PitchRange) clamp(p float64) float64 {
	return min(max(p, r.Min), r.Max)
}

// View is a snapshot of the control surface.
type View struct {
	Scales   []string   `json:"scales"`
	Selected string     `json:"selected"`
	Buttons  []Button   `json:"buttons"`
	Pitch    float64    `json:"pitch"`
	Range    PitchRange `json:"range"`
	Playing  string     `json:"playing"`
}

// Binder owns the control surface state.
type Binder struct {
	catalog *catalog.Catalog
	player  Player
	prefs   *prefs.Store
	rng     PitchRange

	// opMu serializes changes so the shown, playing and saved state agree.
	opMu sync.Mutex

	mu       sync.RWMutex
	selected string
	buttons  []Button
	pitch    float64
}

// New initializes the surface from saved preferences: the saved scale is
// selected and its buttons rendered, and the saved pitch is applied to the
// player. An unknown saved scale falls back to the default.
func New(c *catalog.Catalog, p Player, store *prefs.Store, rng PitchRange) *Binder {
	b := &Binder{
		catalog: c,
		player:  p,
		prefs:   store,
		rng:     rng,
	}

	selected := store.Scale()
	if !c.IsValidScale(selected) {
		log.Warn("Saved scale unknown, using default", "scale", selected)
		selected = catalog.DefaultScale
	}
	b.render(selected)

	b.pitch = rng.clamp(store.Pitch())
	if err := p.SetPitch(b.pitch); err != nil {
		log.Error("Applying saved pitch", "pitch", b.pitch, "err", err)
	}
	return b
}

// render replaces every button with the notes of scale. Callers hold mu or
// own b exclusively.
func (b *Binder) render(scale string) {
	notes, _ := b.catalog.Scale(scale)
	buttons := make([]Button, len(notes))
	for i, n := range notes {
		buttons[i] = Button{Key: i + 1, Note: string(n)}
	}
	b.selected = scale
	b.buttons = buttons
}

// View returns the current control surface.
func (b *Binder) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return View{
		Scales:   b.catalog.ScaleNames(),
		Selected: b.selected,
		Buttons:  slices.Clone(b.buttons),
		Pitch:    b.pitch,
		Range:    b.rng,
		Playing:  b.player.State().Note,
	}
}

// SelectScale saves the selection and re-renders the note buttons.
// Playback is not interrupted.
func (b *Binder) SelectScale(name string) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()
	return b.selectScale(name)
}

func (b *Binder) selectScale(name string) error {
	if !b.catalog.IsValidScale(name) {
		return fmt.Errorf("%w: %q", catalog.ErrUnknownScale, name)
	}
	b.mu.Lock()
	b.render(name)
	b.mu.Unlock()

	if err := b.prefs.SetScale(name); err != nil {
		log.Error("Saving scale", "scale", name, "err", err)
	}
	return nil
}

// CycleScale selects the scale delta positions away from the current one.
func (b *Binder) CycleScale(delta int) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	names := b.catalog.ScaleNames()
	b.mu.RLock()
	i := slices.Index(names, b.selected)
	b.mu.RUnlock()
	next := ((i+delta)%len(names) + len(names)) % len(names)
	return b.selectScale(names[next])
}

// Press plays the note of a rendered button.
func (b *Binder) Press(note string) error {
	if !b.catalog.HasNote(catalog.Note(note)) {
		return fmt.Errorf("%w: %q", catalog.ErrUnknownNote, note)
	}
	b.mu.RLock()
	found := slices.ContainsFunc(b.buttons, func(btn Button) bool { return btn.Note == note })
	b.mu.RUnlock()
	if !found {
		return fmt.Errorf("%w: %q", ErrNoSuchButton, note)
	}
	return b.player.Play(catalog.Note(note))
}

// PressKey plays the button at 1-based position key.
func (b *Binder) PressKey(key int) error {
	b.mu.RLock()
	if key < 1 || key > len(b.buttons) {
		b.mu.RUnlock()
		return fmt.Errorf("%w: key %d", ErrNoSuchButton, key)
	}
	note := b.buttons[key-1].Note
	b.mu.RUnlock()
	return b.player.Play(catalog.Note(note))
}

// Stop silences playback.
func (b *Binder) Stop() {
	b.player.Stop()
}

// SetPitch retunes playback and saves the value.
func (b *Binder) SetPitch(p float64) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()
	return b.setPitch(p)
}

func (b *Binder) setPitch(p float64) error {
	if p < b.rng.Min || p > b.rng.Max {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrPitchRange, p, b.rng.Min, b.rng.Max)
	}
	if err := b.player.SetPitch(p); err != nil {
		return err
	}
	b.mu.Lock()
	b.pitch = p
	b.mu.Unlock()

	if err := b.prefs.SetPitch(p); err != nil {
		log.Error("Saving pitch", "pitch", p, "err", err)
	}
	return nil
}

// NudgePitch moves the pitch by delta, clamped to the range.
func (b *Binder) NudgePitch(delta float64) error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	b.mu.RLock()
	p := b.rng.clamp(b.pitch + delta)
	b.mu.RUnlock()
	return b.setPitch(p)
}
