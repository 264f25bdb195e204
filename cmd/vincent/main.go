package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"vincent/internal/audio"
	"vincent/internal/chat"
	"vincent/internal/config"
	"vincent/internal/ipc"
	"vincent/internal/opencode"
	"vincent/internal/proxy"
	"vincent/internal/pulse"
	"vincent/internal/session"
	"vincent/internal/term"
	"vincent/internal/tts"
	"vincent/internal/voice"
	"vincent/pkg/stt"
	"vincent/pkg/stt/whisper"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// exitFatal matches the argument error code so scripts can treat both alike.
const exitFatal = 2

func main() {
	os.Exit(run())
}

func run() int {
	// .env has to be loaded before flag defaults read the environment; the
	// --env flag itself is looked up by hand for that reason.
	godotenv.Load(envFileFromArgs(os.Args[1:]))

	cfg, err := config.Parse(os.Args[1:], os.LookupEnv, os.Stderr)
	if errors.Is(err, cli.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "vincent:", err)
		return exitFatal
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevelMap[cfg.LogLevel],
		TimeFormat: time.Kitchen,
		NoColor:    !term.ColorEnabled(os.LookupEnv, os.Stderr),
	})))

	console := term.NewConsole(os.Stdout, os.Stderr, term.NewStyle(term.ColorEnabled(os.LookupEnv, os.Stdout)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statePath, err := cfg.SessionPath()
	if err != nil {
		console.Statusf("Invalid session file %s: %v", cfg.Session.File, err)
		return exitFatal
	}
	store := session.NewStore(statePath)
	sessionID, err := store.Resolve(cfg.Session.ID, cfg.Session.New)
	if err != nil {
		console.Statusf("%v", err)
	}

	log.Debug("Whisper settings", "model", cfg.Whisper.Model, "device", cfg.Whisper.Device, "compute", cfg.Whisper.ComputeType)
	transcriber, err := whisper.New(cfg.Whisper.Model, stt.Options{
		Task:     cfg.Whisper.Task,
		Language: cfg.Input.Language,
		Threads:  cfg.Whisper.Threads,
	})
	if err != nil {
		console.Statusf("Failed to load Whisper model: %v", err)
		return exitFatal
	}
	defer transcriber.Close()

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		console.Statusf("Failed to init audio: %v", err)
		return exitFatal
	}
	defer rec.Close()

	var speaker chat.Speaker
	if cfg.TTS.Enabled {
		s, closeSpeaker, err := newSpeaker(ctx, cfg.TTS)
		if err != nil {
			console.Statusf("Voice requested but unavailable: %v", err)
			console.Statusf("Run with --no-voice, or start a Kokoro server at %s.", cfg.TTS.URL)
			return exitFatal
		}
		defer closeSpeaker()
		speaker = s
		console.Statusf("Kokoro TTS enabled (voice=%s, lang=%s, speed=%g).", cfg.TTS.Voice, cfg.TTS.LangCode, cfg.TTS.Speed)
	}

	capturer := &voice.Capturer{
		Recorder:    rec,
		Transcriber: transcriber,
		SampleRate:  cfg.Input.SampleRate,
		Channels:    cfg.Input.Channels,
		KeepAudio:   cfg.Input.KeepAudio,
		Stdin:       os.Stdin,
		Status:      console.Statusf,
	}
	if cfg.Control.Enabled {
		remote, handle := ipc.StopSignals()
		if err := ipc.StartServer(ctx, cfg.Control.Socket, handle); err != nil {
			console.Statusf("Failed to open control socket %s: %v", cfg.Control.Socket, err)
			return exitFatal
		}
		capturer.Remote = remote
		log.Info("Control socket listening", "path", cfg.Control.Socket)
	}

	loop := &chat.Loop{
		Capturer:  capturer,
		Assistant: opencode.NewClient(cfg.Opencode.Bin),
		Speaker:   speaker,
		Sessions:  store,
		Console:   console,
		Options: opencode.RunOptions{
			Model:  cfg.Opencode.Model,
			Agent:  cfg.Opencode.Agent,
			Attach: cfg.Opencode.Attach,
			Dir:    cfg.Opencode.Dir,
		},
	}

	if err := loop.Run(ctx, sessionID); err != nil {
		log.Error("Voice loop failed", "err", err)
		return 1
	}
	return 0
}

func newSpeaker(ctx context.Context, c config.TTS) (chat.Speaker, func(), error) {
	kcfg := tts.Config{
		BaseURL:  c.URL,
		APIKey:   c.APIKey,
		Model:    c.Model,
		Voice:    c.Voice,
		LangCode: c.LangCode,
		Speed:    c.Speed,
		Format:   c.Format,
	}
	if c.Proxy != "" {
		httpClient, err := proxy.NewSocksClient(c.Proxy)
		if err != nil {
			return nil, nil, fmt.Errorf("socks proxy %s: %w", c.Proxy, err)
		}
		kcfg.HTTPClient = httpClient
		log.Debug("Using TTS proxy", "proxy", c.Proxy)
	}

	player, err := audio.NewPlayer(audio.DefaultPlaybackRate)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", tts.ErrInitializationFailed, err)
	}

	var opts []tts.SpeakerOption
	if c.DuckOthers {
		opts = append(opts, tts.WithDucker(pulse.NewDucker(nil, []string{"vincent"}, 10)))
	}

	probe, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	s, err := tts.NewSpeaker(probe, tts.NewKokoro(kcfg), player, opts...)
	if err != nil {
		player.Close()
		return nil, nil, err
	}
	return s, player.Close, nil
}

// envFileFromArgs finds -e/--env ahead of the real parse.
func envFileFromArgs(args []string) string {
	for i, a := range args {
		switch {
		case a == "--env" || a == "-e":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(a) > 6 && a[:6] == "--env=":
			return a[6:]
		}
	}
	return ".env"
}
