// Package web serves the ison control page and its JSON API.
package web

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"charm.land/log/v2"

	"github.com/satindergrewal/ison/internal/audio"
	"github.com/satindergrewal/ison/internal/catalog"
	"github.com/satindergrewal/ison/internal/ui"
)

//go:embed index.html.tmpl
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

// SampleStatus reports sample loading progress.
type SampleStatus interface {
	Status() audio.CacheStatus
}

// Server exposes a Binder over HTTP.
type Server struct {
	binder    *ui.Binder
	catalog   *catalog.Catalog
	samples   SampleStatus
	listeners func() map[string]int
}

// NewServer creates the web front-end. listeners is nil when audio plays
// on the server's own speaker; the page then carries no stream player.
func NewServer(b *ui.Binder, c *catalog.Catalog, samples SampleStatus, listeners func() map[string]int) *Server {
	return &Server{binder: b, catalog: c, samples: samples, listeners: listeners}
}

// Register adds the page and API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/scales", s.handleScales)
	mux.HandleFunc("/api/scale", s.handleScale)
	mux.HandleFunc("/api/play", s.handlePlay)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/pitch", s.handlePitch)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	page := struct {
		ui.View
		Streaming bool
	}{s.binder.View(), s.listeners != nil}
	if err := indexTmpl.Execute(&buf, page); err != nil {
		log.Error("Render index", "err", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	v := s.binder.View()
	resp := map[string]any{
		"scale":   v.Selected,
		"buttons": v.Buttons,
		"pitch":   v.Pitch,
		"range":   v.Range,
		"playing": v.Playing,
	}
	if s.samples != nil {
		resp["samples"] = s.samples.Status()
	}
	if s.listeners != nil {
		resp["listeners"] = s.listeners()
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, resp)
}

type scaleInfo struct {
	Name  string   `json:"name"`
	Notes []string `json:"notes"`
}

func (s *Server) handleScales(w http.ResponseWriter, r *http.Request) {
	var out []scaleInfo
	for _, name := range s.catalog.ScaleNames() {
		notes, _ := s.catalog.Scale(name)
		info := scaleInfo{Name: name}
		for _, n := range notes {
			info.Notes = append(info.Notes, string(n))
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Scale string `json:"scale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Scale == "" {
		writeError(w, http.StatusBadRequest, "invalid scale")
		return
	}
	if err := s.binder.SelectScale(req.Scale); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v := s.binder.View()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "scale": v.Selected, "buttons": v.Buttons})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Note == "" {
		writeError(w, http.StatusBadRequest, "invalid note")
		return
	}
	err := s.binder.Press(req.Note)
	switch {
	case errors.Is(err, audio.ErrSampleNotReady):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, ui.ErrNoSuchButton), errors.Is(err, catalog.ErrUnknownNote):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "note": req.Note})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	s.binder.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Pitch *float64 `json:"pitch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pitch == nil {
		writeError(w, http.StatusBadRequest, "invalid pitch")
		return
	}
	if err := s.binder.SetPitch(*req.Pitch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "pitch": *req.Pitch})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
