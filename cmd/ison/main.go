package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"charm.land/log/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/ssh"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	flag "github.com/spf13/pflag"

	"github.com/satindergrewal/ison/internal/audio"
	"github.com/satindergrewal/ison/internal/catalog"
	"github.com/satindergrewal/ison/internal/config"
	"github.com/satindergrewal/ison/internal/prefs"
	"github.com/satindergrewal/ison/internal/stream"
	"github.com/satindergrewal/ison/internal/tui"
	"github.com/satindergrewal/ison/internal/ui"
	"github.com/satindergrewal/ison/internal/web"
)

func main() {
	cfg := config.Load()

	flag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP port")
	flag.StringVarP(&cfg.Samples, "samples", "s", cfg.Samples, "sample directory or http(s) base URL")
	flag.StringVar(&cfg.PrefsFile, "prefs", cfg.PrefsFile, "preferences file")
	flag.StringVarP(&cfg.Output, "output", "o", cfg.Output, "audio output: stream or speaker")
	flag.StringVar(&cfg.SSHAddr, "ssh", cfg.SSHAddr, "serve the terminal UI over SSH on this address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	localTUI := flag.Bool("tui", false, "run the terminal UI in this terminal")
	flag.Parse()

	var logOut io.Writer = os.Stderr
	if *localTUI {
		// The TUI owns the terminal; keep logs out of it.
		f, err := os.OpenFile("ison.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := log.NewWithOptions(logOut, log.Options{ReportTimestamp: true, Prefix: "ison"})
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("Unknown log level, using info", "level", cfg.LogLevel)
	}
	log.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("ison starting up...", "samples", cfg.Samples, "output", cfg.Output)

	// Samples load in the background; notes become playable as they land.
	cat := catalog.New(cfg.Samples)
	cache := audio.NewSampleCache(cat, audio.NewFetcher(cfg.Samples), audio.CacheConfig{
		Concurrency:  cfg.LoadConcurrency,
		FetchTimeout: cfg.FetchTimeout,
	})
	cache.LoadAll(ctx)

	ctrl := audio.NewController(cache, cfg.ResampleQuality)

	storage, err := prefs.OpenFile(cfg.PrefsFile)
	if err != nil {
		log.Fatal("Preferences unavailable", "path", cfg.PrefsFile, "err", err)
	}
	binder := ui.New(cat, ctrl, prefs.New(storage), pitchRange(cfg))

	mux := http.NewServeMux()
	var (
		listeners   func() map[string]int
		pipeline    *audio.Pipeline
		broadcaster *stream.Broadcaster
	)

	switch cfg.Output {
	case config.OutputSpeaker:
		sr := beep.SampleRate(audio.SampleRate)
		if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
			log.Fatal("Speaker init failed", "err", err)
		}
		defer speaker.Close()
		speaker.Play(ctrl)
		log.Info("Playing on local speaker")
	case config.OutputStream:
		pipeline = audio.NewPipeline(ctrl)
		go pipeline.Run(ctx)

		// Broadcaster: fan-out PCM frames to all listeners
		broadcaster = stream.NewBroadcaster()
		go broadcaster.Run(ctx, pipeline.Frames())

		mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, cfg.MP3Bitrate))
		mux.Handle("/offer", stream.NewWebRTCHandler(broadcaster, cfg.ICEServers...))
		listeners = broadcaster.Counts
	default:
		log.Fatal("Unknown output", "output", cfg.Output)
	}

	web.NewServer(binder, cat, cache, listeners).Register(mux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("ison live", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	var sshServer *ssh.Server
	if cfg.SSHAddr != "" {
		sshServer, err = newSSHServer(cfg.SSHAddr, cfg.SSHHostKey, binder)
		if err != nil {
			log.Fatal("SSH server", "err", err)
		}
		go func() {
			log.Info("Starting SSH server", "addr", cfg.SSHAddr)
			if err := sshServer.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
				log.Error("SSH server error", "err", err)
			}
		}()
	}

	if *localTUI {
		p := tea.NewProgram(tui.New(binder, lipgloss.NewRenderer(os.Stdout)), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			log.Error("Terminal UI", "err", err)
		}
		cancel()
	}

	<-ctx.Done()
	log.Info("Shutting down...")
	ctrl.Stop()
	if pipeline != nil {
		log.Info("Stream totals", "rendered", pipeline.Position(), "broadcast", broadcaster.Frames())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown", "err", err)
	}
	if sshServer != nil {
		if err := sshServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Error("SSH shutdown", "err", err)
		}
	}
}

func pitchRange(cfg config.Config) ui.PitchRange {
	r := ui.DefaultPitchRange
	if cfg.PitchMin > 0 && cfg.PitchMax > cfg.PitchMin {
		r.Min, r.Max = cfg.PitchMin, cfg.PitchMax
	} else {
		log.Warn("Invalid pitch range, using default", "min", cfg.PitchMin, "max", cfg.PitchMax)
	}
	return r
}
