// Package config parses the command line of the voice chat loop.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/spf13/pflag"

	"vincent/internal/ipc"
	"vincent/internal/opencode"
	"vincent/internal/session"
)

const (
	DefaultTTSURL    = "http://localhost:8880/v1"
	DefaultTTSAPIKey = "not-needed"
)

var (
	whisperTasks   = []string{"transcribe", "translate"}
	whisperDevices = []string{"auto", "cpu", "cuda"}
	ttsFormats     = []string{"wav", "mp3", "opus"}
	logLevels      = []string{"debug", "info", "warn", "error"}
)

type Whisper struct {
	Model       string
	Device      string
	ComputeType string
	Task        string
	Threads     int
}

type Input struct {
	Language   string
	SampleRate int
	Channels   int
	KeepAudio  bool
}

type Session struct {
	ID   string
	New  bool
	File string
}

type Opencode struct {
	Bin    string
	Model  string
	Agent  string
	Attach string
	Dir    string
}

type TTS struct {
	Enabled    bool
	Voice      string
	LangCode   string
	Speed      float64
	URL        string
	APIKey     string
	Model      string
	Format     string
	Proxy      string
	DuckOthers bool
}

// Control is the optional unix socket that lets a hotkey end a turn.
type Control struct {
	Enabled bool
	Socket  string
}

type Config struct {
	EnvFile  string
	LogLevel string
	Whisper  Whisper
	Input    Input
	Session  Session
	Opencode Opencode
	TTS      TTS
	Control  Control
}

// Parse reads args (without the program name). lookupEnv supplies defaults
// for the TTS endpoint and opencode binary, normally os.LookupEnv after the
// env file has been loaded. Usage and errors are written to errOut.
func Parse(args []string, lookupEnv func(string) (string, bool), errOut io.Writer) (Config, error) {
	var c Config
	var noVoice bool

	fs := cli.NewFlagSet("vincent", cli.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		fmt.Fprintln(errOut, "Record microphone audio, transcribe with Whisper, and send turns to a long-lived opencode session.")
		fmt.Fprintln(errOut)
		fmt.Fprintln(errOut, "Usage: vincent [flags]")
		fs.PrintDefaults()
	}

	fs.StringVarP(&c.EnvFile, "env", "e", ".env", "Env file path")
	fs.StringVarP(&c.LogLevel, "log", "l", "warn", "Log level: "+strings.Join(logLevels, ", "))

	fs.StringVar(&c.Whisper.Model, "whisper-model", "base", "Whisper model name/path")
	fs.StringVar(&c.Whisper.Device, "whisper-device", "auto", "Whisper device: "+strings.Join(whisperDevices, ", "))
	fs.StringVar(&c.Whisper.ComputeType, "whisper-compute-type", "int8", "Whisper compute type (int8, float16, float32, ...)")
	fs.StringVar(&c.Whisper.Task, "whisper-task", "transcribe", "Whisper task: transcribe original language or translate to English")
	fs.IntVar(&c.Whisper.Threads, "whisper-threads", 0, "Whisper decoding threads (0 = all CPUs)")

	fs.StringVar(&c.Input.Language, "input-language", "", "Expected spoken language code, e.g. en, de, fr (omit for auto)")
	fs.IntVar(&c.Input.SampleRate, "input-sample-rate", 16000, "Microphone input sample rate in Hz")
	fs.IntVar(&c.Input.Channels, "input-channels", 1, "Microphone input channel count (1=mono, 2=stereo)")
	fs.BoolVar(&c.Input.KeepAudio, "keep-input-audio", false, "Keep each recorded input WAV in .voice_inputs/<session>/")

	fs.StringVar(&c.Session.ID, "session-id", "", "Reuse an existing opencode session id")
	fs.BoolVar(&c.Session.New, "new-session", false, "Ignore any saved session and start a new one")
	fs.StringVar(&c.Session.File, "session-file", session.DefaultFile, "Path to store the current opencode session id")

	fs.StringVar(&c.Opencode.Bin, "opencode-bin", envOr(lookupEnv, "OPENCODE_BIN", opencode.DefaultExecutable), "opencode executable")
	fs.StringVar(&c.Opencode.Model, "opencode-model", "", "Optional opencode model in provider/model format")
	fs.StringVar(&c.Opencode.Agent, "opencode-agent", "", "Optional opencode agent")
	fs.StringVar(&c.Opencode.Attach, "opencode-attach", "", "Optional opencode server URL, e.g. http://127.0.0.1:4096")
	fs.StringVar(&c.Opencode.Dir, "opencode-dir", "", "Optional working directory for opencode run")

	fs.BoolVar(&c.TTS.Enabled, "voice", true, "Speak assistant replies with Kokoro text-to-speech")
	fs.BoolVar(&noVoice, "no-voice", false, "Do not speak assistant replies")
	fs.StringVar(&c.TTS.Voice, "tts-voice", "af_heart", "Kokoro voice id, e.g. af_heart")
	fs.StringVar(&c.TTS.LangCode, "tts-lang-code", "a", "Kokoro language code, usually 'a' (US) or 'b' (UK)")
	fs.Float64Var(&c.TTS.Speed, "tts-speed", 1.0, "Kokoro playback speed")
	fs.StringVar(&c.TTS.URL, "tts-url", envOr(lookupEnv, "KOKORO_BASE_URL", DefaultTTSURL), "Kokoro OpenAI-compatible API base URL")
	fs.StringVar(&c.TTS.Model, "tts-model", "kokoro", "Speech model name sent to the TTS server")
	fs.StringVar(&c.TTS.Format, "tts-format", "wav", "Speech response format: "+strings.Join(ttsFormats, ", "))
	fs.StringVar(&c.TTS.Proxy, "tts-proxy", "", "Optional SOCKS5 proxy address for the TTS server")
	fs.BoolVar(&c.TTS.DuckOthers, "duck-others", false, "Lower other PulseAudio streams while speaking")

	fs.BoolVar(&c.Control.Enabled, "control", false, "Accept stop commands from vincent-ctl on a unix socket")
	fs.StringVar(&c.Control.Socket, "control-socket", ipc.DefaultSocketPath, "Control socket path")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if noVoice {
		c.TTS.Enabled = false
	}
	c.TTS.APIKey = envOr(lookupEnv, "KOKORO_API_KEY", DefaultTTSAPIKey)

	if err := c.validate(fs); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) validate(fs *cli.FlagSet) error {
	var errs []error

	if fs.Changed("session-id") && c.Session.New {
		errs = append(errs, errors.New("--session-id and --new-session are mutually exclusive"))
	}
	if fs.Changed("voice") && fs.Changed("no-voice") {
		errs = append(errs, errors.New("--voice and --no-voice are mutually exclusive"))
	}
	if fs.Changed("control-socket") && !c.Control.Enabled {
		errs = append(errs, errors.New("--control-socket requires --control"))
	}
	if c.Input.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("--input-sample-rate must be positive, got %d", c.Input.SampleRate))
	}
	if c.Input.Channels <= 0 {
		errs = append(errs, fmt.Errorf("--input-channels must be positive, got %d", c.Input.Channels))
	}
	if c.Whisper.Threads < 0 {
		errs = append(errs, fmt.Errorf("--whisper-threads must not be negative, got %d", c.Whisper.Threads))
	}
	if c.TTS.Speed <= 0 {
		errs = append(errs, fmt.Errorf("--tts-speed must be positive, got %g", c.TTS.Speed))
	}
	errs = append(errs,
		oneOf("--whisper-task", c.Whisper.Task, whisperTasks),
		oneOf("--whisper-device", c.Whisper.Device, whisperDevices),
		oneOf("--tts-format", c.TTS.Format, ttsFormats),
		oneOf("--log", c.LogLevel, logLevels),
	)

	return errors.Join(errs...)
}

// SessionPath returns the session file with ~ expanded, made absolute.
func (c Config) SessionPath() (string, error) {
	p := c.Session.File
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}

func oneOf(flag, v string, choices []string) error {
	for _, c := range choices {
		if v == c {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (choose from %s)", flag, v, strings.Join(choices, ", "))
}

func envOr(lookupEnv func(string) (string, bool), key, def string) string {
	if lookupEnv == nil {
		return def
	}
	if v, ok := lookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
