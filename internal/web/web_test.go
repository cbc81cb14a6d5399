package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/gopxl/beep/v2"

	"github.com/satindergrewal/ison/internal/audio"
	"github.com/satindergrewal/ison/internal/catalog"
	"github.com/satindergrewal/ison/internal/prefs"
	"github.com/satindergrewal/ison/internal/ui"
)

type memSamples map[catalog.Note]*audio.Sample

func (m memSamples) Sample(n catalog.Note) (*audio.Sample, bool) {
	s, ok := m[n]
	return s, ok
}

func (m memSamples) Status() audio.CacheStatus {
	st := audio.CacheStatus{Failed: map[string]string{}, Settled: true}
	for n := range m {
		st.Loaded = append(st.Loaded, string(n))
	}
	return st
}

func silentSample(n catalog.Note) *audio.Sample {
	buf := beep.NewBuffer(audio.Format)
	buf.Append(beep.Silence(4800))
	return &audio.Sample{Note: n, Format: audio.Format, Buffer: buf}
}

type fixture struct {
	mux   *http.ServeMux
	ctrl  *audio.Controller
	store *prefs.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := catalog.New("samples")
	samples := memSamples{"Νη": silentSample("Νη"), "Πα": silentSample("Πα")}
	ctrl := audio.NewController(samples, audio.DefaultQuality)
	store := prefs.New(prefs.NewMemoryStorage())
	b := ui.New(c, ctrl, store, ui.DefaultPitchRange)

	mux := http.NewServeMux()
	NewServer(b, c, samples, func() map[string]int { return map[string]int{"http": 2} }).Register(mux)
	return &fixture{mux: mux, ctrl: ctrl, store: store}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

var buttonRe = regexp.MustCompile(`data-note="([^"]+)"`)

func renderedButtons(body string) []string {
	var notes []string
	for _, m := range buttonRe.FindAllStringSubmatch(body, -1) {
		notes = append(notes, m[1])
	}
	return notes
}

func TestIndexRendersDefaultScale(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d", rec.Code)
	}
	body := rec.Body.String()
	want := []string{"Νη", "Πα", "Βου", "Γα", "Δι", "Κε", "Ζω"}
	if got := renderedButtons(body); !slices.Equal(got, want) {
		t.Errorf("buttons = %v, want %v", got, want)
	}
	for _, id := range []string{`id="scale-selector"`, `id="stop-btn"`, `id="pitch-slider"`, `id="note-buttons"`} {
		if !strings.Contains(body, id) {
			t.Errorf("page missing %s", id)
		}
	}
	if !strings.Contains(body, `<option value="Diatonic" selected>`) {
		t.Error("Diatonic should be selected")
	}
}

func TestIndexStreamPlayerOnlyWhenStreaming(t *testing.T) {
	f := newFixture(t)
	if body := f.do(http.MethodGet, "/", "").Body.String(); !strings.Contains(body, `id="ison-stream"`) {
		t.Error("streaming page should carry the stream player")
	}

	c := catalog.New("samples")
	ctrl := audio.NewController(memSamples{}, audio.DefaultQuality)
	b := ui.New(c, ctrl, prefs.New(prefs.NewMemoryStorage()), ui.DefaultPitchRange)
	mux := http.NewServeMux()
	NewServer(b, c, memSamples{}, nil).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `id="ison-stream"`) {
		t.Error("speaker mode page should not point a player at /stream")
	}
}

func TestIndexNotFound(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", rec.Code)
	}
}

func TestScaleChangeRerendersButtons(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/scale", `{"scale":"Enharmonic"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/scale = %d: %s", rec.Code, rec.Body)
	}
	if got := f.store.Scale(); got != "Enharmonic" {
		t.Errorf("saved scale = %q, want Enharmonic", got)
	}
	body := f.do(http.MethodGet, "/", "").Body.String()
	want := []string{"Νη", "Πα#", "Βου", "Γα#", "Δι", "Κε#", "Ζω"}
	if got := renderedButtons(body); !slices.Equal(got, want) {
		t.Errorf("buttons = %v, want %v", got, want)
	}
}

func TestScaleUnknown(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodPost, "/api/scale", `{"scale":"Dorian"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown scale = %d, want 400", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/scale", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/scale = %d, want 405", rec.Code)
	}
}

func TestPlayAndStop(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodPost, "/api/play", `{"note":"Πα"}`); rec.Code != http.StatusOK {
		t.Fatalf("play = %d: %s", rec.Code, rec.Body)
	}
	if v := f.ctrl.Active(); v == nil || v.Note() != "Πα" {
		t.Fatalf("active voice = %v, want Πα", v)
	}
	if rec := f.do(http.MethodPost, "/api/stop", ""); rec.Code != http.StatusOK {
		t.Fatalf("stop = %d", rec.Code)
	}
	if f.ctrl.Active() != nil {
		t.Error("stop should clear the voice")
	}
	// Stopping again is a no-op.
	if rec := f.do(http.MethodPost, "/api/stop", ""); rec.Code != http.StatusOK {
		t.Errorf("second stop = %d", rec.Code)
	}
}

func TestPlayNotReady(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/play", `{"note":"Ζω"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("play unloaded = %d, want 409", rec.Code)
	}
	if f.ctrl.Active() != nil {
		t.Error("no voice should be active")
	}
}

func TestPlayOffScale(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodPost, "/api/play", `{"note":"Πα#"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("off-scale note = %d, want 400", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/play", `{"note":"Λα"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown note = %d, want 400", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/play", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body = %d, want 400", rec.Code)
	}
}

func TestPitch(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/api/play", `{"note":"Νη"}`)
	v := f.ctrl.Active()

	if rec := f.do(http.MethodPost, "/api/pitch", `{"pitch":1.25}`); rec.Code != http.StatusOK {
		t.Fatalf("pitch = %d: %s", rec.Code, rec.Body)
	}
	if f.ctrl.Active() != v || v.Pitch() != 1.25 {
		t.Error("pitch should retune the playing voice in place")
	}
	if got := f.store.Pitch(); got != 1.25 {
		t.Errorf("saved pitch = %v, want 1.25", got)
	}
	for _, body := range []string{`{"pitch":9}`, `{"pitch":0}`, `{}`} {
		if rec := f.do(http.MethodPost, "/api/pitch", body); rec.Code != http.StatusBadRequest {
			t.Errorf("pitch %s = %d, want 400", body, rec.Code)
		}
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/api/play", `{"note":"Νη"}`)
	rec := f.do(http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Scale     string            `json:"scale"`
		Playing   string            `json:"playing"`
		Pitch     float64           `json:"pitch"`
		Samples   audio.CacheStatus `json:"samples"`
		Listeners map[string]int    `json:"listeners"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Scale != "Diatonic" || resp.Playing != "Νη" || resp.Pitch != 1 {
		t.Errorf("status = %+v", resp)
	}
	if !resp.Samples.Settled || len(resp.Samples.Loaded) != 2 {
		t.Errorf("samples = %+v", resp.Samples)
	}
	if resp.Listeners["http"] != 2 {
		t.Errorf("listeners = %v", resp.Listeners)
	}
}

func TestScales(t *testing.T) {
	f := newFixture(t)
	var scales []scaleInfo
	if err := json.NewDecoder(f.do(http.MethodGet, "/api/scales", "").Body).Decode(&scales); err != nil {
		t.Fatal(err)
	}
	if len(scales) != 3 || scales[1].Name != "Chromatic" || scales[1].Notes[2] != "Βου#" {
		t.Errorf("scales = %+v", scales)
	}
}
