package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Output modes.
const (
	OutputStream  = "stream"  // HTTP MP3 + WebRTC Opus listeners
	OutputSpeaker = "speaker" // local sound card
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port   int
	Output string // stream or speaker

	// Listeners
	MP3Bitrate string   // ffmpeg -b:a
	ICEServers []string // STUN/TURN URLs for WebRTC

	// Samples
	Samples         string        // directory or http(s) base URL
	LoadConcurrency int           // parallel sample loads
	FetchTimeout    time.Duration // per sample, 0 = none

	// Preferences
	PrefsFile string

	// Playback
	PitchMin        float64
	PitchMax        float64
	ResampleQuality int // 1-64

	// Terminal UI over SSH
	SSHAddr    string // empty disables
	SSHHostKey string

	LogLevel string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:   envInt("ISON_PORT", 8080),
		Output: strings.ToLower(envStr("ISON_OUTPUT", OutputStream)),

		MP3Bitrate: envStr("ISON_MP3_BITRATE", "128k"),
		ICEServers: envList("ISON_ICE_SERVERS"),

		Samples:         envStr("ISON_SAMPLES", "samples"),
		LoadConcurrency: envInt("ISON_LOAD_CONCURRENCY", 4),
		FetchTimeout:    envDuration("ISON_FETCH_TIMEOUT", 0),

		PrefsFile: envStr("ISON_PREFS_FILE", "ison-prefs.yaml"),

		PitchMin:        envFloat("ISON_PITCH_MIN", 0.5),
		PitchMax:        envFloat("ISON_PITCH_MAX", 2.0),
		ResampleQuality: envInt("ISON_RESAMPLE_QUALITY", 4),

		SSHAddr:    envStr("ISON_SSH_ADDR", ""),
		SSHHostKey: envStr("ISON_SSH_HOST_KEY", ".ssh/ison_ed25519"),

		LogLevel: envStr("ISON_LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envList splits a comma separated value, skipping empty entries.
func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// envDuration accepts Go durations ("1500ms") or plain seconds ("10").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
