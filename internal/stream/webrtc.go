package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"charm.land/log/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/ison/internal/audio"
)

// OpusBitrate is the encoder bitrate for WebRTC peers. A sustained drone
// needs far less than music.
const OpusBitrate = 96000

const maxOpusPacket = 4000

var errBadOffer = errors.New("bad SDP offer")

// WebRTCHandler negotiates sessions on POST and sends the drone to each
// peer as an Opus track.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	config      webrtc.Configuration
	newEncoder  func() (*opus.Encoder, error)

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]*Listener
}

// NewWebRTCHandler creates a handler. iceServers are STUN/TURN URLs; with
// none, only host candidates are gathered.
func NewWebRTCHandler(b *Broadcaster, iceServers ...string) *WebRTCHandler {
	var cfg webrtc.Configuration
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return &WebRTCHandler{
		broadcaster: b,
		config:      cfg,
		newEncoder:  newOpusEncoder,
		peers:       make(map[*webrtc.PeerConnection]*Listener),
	}
}

func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	allowCORS(w, http.MethodPost)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, track, err := h.negotiate(offer)
	if err != nil {
		log.Warn("WebRTC negotiation failed", "remote", r.RemoteAddr, "err", err)
		status := http.StatusInternalServerError
		if errors.Is(err, errBadOffer) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	l := h.add(pc)
	log.Info("WebRTC peer connected", "remote", r.RemoteAddr, "peers", h.PeerCount())

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			h.drop(pc)
		}
	})
	go h.send(pc, l, track)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// negotiate answers offer with a single Opus track. The peer connection is
// closed on failure.
func (h *WebRTCHandler) negotiate(offer webrtc.SessionDescription) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
	pc, err := webrtc.NewPeerConnection(h.config)
	if err != nil {
		return nil, nil, fmt.Errorf("peer connection: %w", err)
	}
	fail := func(err error) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
		pc.Close()
		return nil, nil, err
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"ison",
	)
	if err != nil {
		return fail(fmt.Errorf("audio track: %w", err))
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fail(fmt.Errorf("add track: %w", err))
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail(fmt.Errorf("%w: %v", errBadOffer, err))
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(fmt.Errorf("create answer: %w", err))
	}

	// Answer only once every candidate is in the SDP; there is no trickle.
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(fmt.Errorf("local description: %w", err))
	}
	<-gathered
	return pc, track, nil
}

func (h *WebRTCHandler) add(pc *webrtc.PeerConnection) *Listener {
	l := h.broadcaster.Subscribe(KindWebRTC)
	h.mu.Lock()
	h.peers[pc] = l
	h.mu.Unlock()
	return l
}

// drop forgets pc, unsubscribes its listener and closes it. Only the first
// call for a peer has any effect.
func (h *WebRTCHandler) drop(pc *webrtc.PeerConnection) {
	h.mu.Lock()
	l, ok := h.peers[pc]
	delete(h.peers, pc)
	n := len(h.peers)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.broadcaster.Unsubscribe(l)
	pc.Close()
	log.Info("WebRTC peer disconnected", "peers", n, "dropped", l.Dropped())
}

// send encodes frames for one peer until it is dropped. Any failure here
// drops the peer as well.
func (h *WebRTCHandler) send(pc *webrtc.PeerConnection, l *Listener, track *webrtc.TrackLocalStaticSample) {
	defer h.drop(pc)

	enc, err := h.newEncoder()
	if err != nil {
		log.Error("WebRTC: cannot encode", "err", err)
		return
	}
	packet := make([]byte, maxOpusPacket)
	for {
		select {
		case <-l.Done():
			return
		case frame := <-l.C:
			n, err := enc.Encode(frame, packet)
			if err != nil {
				log.Warn("WebRTC: opus encode", "err", err)
				continue
			}
			if err := track.WriteSample(media.Sample{Data: packet[:n], Duration: audio.FrameDuration}); err != nil {
				log.Debug("WebRTC: write sample", "err", err)
				return
			}
		}
	}
}

func newOpusEncoder() (*opus.Encoder, error) {
	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	if err := enc.SetBitrate(OpusBitrate); err != nil {
		return nil, fmt.Errorf("opus bitrate: %w", err)
	}
	return enc, nil
}
