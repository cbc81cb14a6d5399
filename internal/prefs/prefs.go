// Package prefs persists the player's scale and pitch choices as string
// values under fixed keys, so they survive restarts.
package prefs

import (
	"math"
	"strconv"

	"charm.land/log/v2"

	"github.com/satindergrewal/ison/internal/catalog"
)

const (
	KeyScale = "isonScale"
	KeyPitch = "isonPitch"

	DefaultPitch = 1.0
)

// Storage is a persistent string key-value store.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Store reads and writes typed preferences on top of a Storage.
type Store struct {
	storage Storage
}

// New wraps storage.
func New(s Storage) *Store {
	return &Store{storage: s}
}

// Scale returns the saved scale name, or catalog.DefaultScale if none is
// saved.
func (s *Store) Scale() string {
	if v, ok := s.storage.Get(KeyScale); ok && v != "" {
		return v
	}
	return catalog.DefaultScale
}

// SetScale saves the selected scale name.
func (s *Store) SetScale(name string) error {
	return s.storage.Set(KeyScale, name)
}

// Pitch returns the saved pitch multiplier. Missing, non-numeric and
// non-positive values fall back to DefaultPitch.
func (s *Store) Pitch() float64 {
	v, ok := s.storage.Get(KeyPitch)
	if !ok {
		return DefaultPitch
	}
	p, err := strconv.ParseFloat(v, 64)
	if err != nil || p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		log.Warn("Ignoring saved pitch", "value", v)
		return DefaultPitch
	}
	return p
}

// SetPitch saves the pitch multiplier.
func (s *Store) SetPitch(p float64) error {
	return s.storage.Set(KeyPitch, strconv.FormatFloat(p, 'g', -1, 64))
}
