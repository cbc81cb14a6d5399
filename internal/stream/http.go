package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	"charm.land/log/v2"

	"github.com/satindergrewal/ison/internal/audio"
)

// DefaultMP3Bitrate is used when no bitrate is configured.
const DefaultMP3Bitrate = "128k"

// HTTPHandler serves the drone as an endless MP3 stream for <audio>
// elements. Each connection gets its own ffmpeg process encoding PCM to
// MP3 in real time.
type HTTPHandler struct {
	broadcaster *Broadcaster
	bitrate     string
	encoder     string
}

func NewHTTPHandler(b *Broadcaster, bitrate string) *HTTPHandler {
	if bitrate == "" {
		bitrate = DefaultMP3Bitrate
	}
	return &HTTPHandler{broadcaster: b, bitrate: bitrate, encoder: "ffmpeg"}
}

func (h *HTTPHandler) encoderArgs() []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", h.bitrate,
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmd := exec.CommandContext(ctx, h.encoder, h.encoderArgs()...)
	pcm, mp3, err := startEncoder(cmd)
	if err != nil {
		log.Error("MP3 encoder unavailable", "encoder", h.encoder, "err", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}

	allowCORS(w, http.MethodGet)
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("ICY-Name", "ison")

	l := h.broadcaster.Subscribe(KindHTTP)
	defer h.broadcaster.Unsubscribe(l)
	log.Info("HTTP listener connected", "remote", r.RemoteAddr, "listeners", h.broadcaster.ListenerCount())

	go feed(ctx, l, pcm)

	if err := copyFlush(w, flusher, mp3); err != nil {
		log.Warn("HTTP stream: encoder read", "err", err)
	}
	cancel()
	cmd.Wait()
	log.Info("HTTP listener disconnected", "remote", r.RemoteAddr, "dropped", l.Dropped())
}

func startEncoder(cmd *exec.Cmd) (io.WriteCloser, io.ReadCloser, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	return stdin, stdout, nil
}

// feed writes the listener's frames as s16le bytes to w, closing w when
// ctx ends or the listener is unsubscribed.
func feed(ctx context.Context, l *Listener, w io.WriteCloser) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.Done():
			return
		case frame := <-l.C:
			if _, err := w.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
		}
	}
}

// copyFlush relays r to w, flushing after every chunk. A failed write
// means the client left and is not an error.
func copyFlush(w io.Writer, f http.Flusher, r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return nil
			}
			f.Flush()
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func allowCORS(w http.ResponseWriter, methods string) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", methods)
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}
