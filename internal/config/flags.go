package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// FlagValues holds parsed flags with explicit set tracking. Only flags the
// user passed are applied on top of the file config.
type FlagValues struct {
	OutputPath    string
	OutputPathSet bool

	set     map[string]bool
	applies []func(*Config)
}

type stringFlag struct {
	value string
	apply func(*Config, string)
	fv    *FlagValues
	name  string
}

func (s *stringFlag) String() string {
	if s == nil {
		return ""
	}
	return s.value
}

func (s *stringFlag) Set(v string) error {
	s.value = v
	s.fv.record(s.name, func(c *Config) { s.apply(c, v) })
	return nil
}

type intFlag struct {
	value int
	apply func(*Config, int)
	fv    *FlagValues
	name  string
}

func (i *intFlag) String() string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(i.value)
}

func (i *intFlag) Set(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	i.value = n
	i.fv.record(i.name, func(c *Config) { i.apply(c, n) })
	return nil
}

type floatFlag struct {
	value float64
	apply func(*Config, float64)
	fv    *FlagValues
	name  string
}

func (f *floatFlag) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%v", f.value)
}

func (f *floatFlag) Set(v string) error {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	f.value = n
	f.fv.record(f.name, func(c *Config) { f.apply(c, n) })
	return nil
}

type boolFlag struct {
	value bool
	apply func(*Config, bool)
	fv    *FlagValues
	name  string
}

func (b *boolFlag) String() string {
	if b == nil {
		return ""
	}
	return fmt.Sprintf("%v", b.value)
}

// IsBoolFlag lets "-flag" mean "-flag=true".
func (b *boolFlag) IsBoolFlag() bool { return true }

func parseBoolExt(v string) (bool, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "1", "true", "yes", "y":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean: %s", v)
}

func (b *boolFlag) Set(v string) error {
	n, err := parseBoolExt(v)
	if err != nil {
		return err
	}
	b.value = n
	b.fv.record(b.name, func(c *Config) { b.apply(c, n) })
	return nil
}

func (fv *FlagValues) record(name string, apply func(*Config)) {
	fv.set[name] = true
	fv.applies = append(fv.applies, apply)
}

// BindFlags registers all config flags on fs and returns the FlagValues
// that collects them.
func BindFlags(fs *flag.FlagSet) *FlagValues {
	fv := &FlagValues{set: make(map[string]bool)}

	str := func(name, usage string, apply func(*Config, string)) {
		fs.Var(&stringFlag{apply: apply, fv: fv, name: name}, name, usage)
	}
	num := func(name, usage string, apply func(*Config, int)) {
		fs.Var(&intFlag{apply: apply, fv: fv, name: name}, name, usage)
	}
	flt := func(name, usage string, apply func(*Config, float64)) {
		fs.Var(&floatFlag{apply: apply, fv: fv, name: name}, name, usage)
	}
	bln := func(name, usage string, apply func(*Config, bool)) {
		fs.Var(&boolFlag{apply: apply, fv: fv, name: name}, name, usage)
	}

	str("press-shortcut", "toggle shortcut, e.g. SUPER+ALT+D", func(c *Config, v string) { c.PressShortcut = v })
	str("hold-shortcut", "push-to-talk shortcut", func(c *Config, v string) { c.HoldShortcut = v })
	num("debounce-ms", "press debounce window (ms)", func(c *Config, v int) { c.DebounceMs = v })
	num("poll-interval-ms", "keyboard poll interval (ms)", func(c *Config, v int) { c.PollIntervalMs = v })
	num("rescan-interval-ms", "fallback keyboard rescan interval (ms)", func(c *Config, v int) { c.RescanIntervalMs = v })

	num("audio-device", "input device index (see -list-audio-devices)", func(c *Config, v int) { c.AudioDevice = &v })
	num("sampling-rate", "capture sampling rate (Hz)", func(c *Config, v int) { c.SAMPLING_RATE = v })
	num("target-sample-rate", "rate sent to the transcriber (Hz)", func(c *Config, v int) { c.TargetRate = v })
	num("frames-per-buffer", "audio callback buffer size (0 = host default)", func(c *Config, v int) { c.FramesPerBuffer = v })

	str("provider", "transcription provider: http, openai, exec", func(c *Config, v string) { c.Provider = v })
	str("api-endpoint", "API endpoint URL", func(c *Config, v string) { c.APIEndpoint = v })
	str("token", "Authorization token", func(c *Config, v string) { c.Token = v })
	str("model", "model", func(c *Config, v string) { c.Model = v })
	str("language", "language", func(c *Config, v string) { c.Language = v })
	str("prompt", "prompt", func(c *Config, v string) { c.Prompt = v })
	str("text-path", "JSON path to extract text", func(c *Config, v string) { c.TEXTPath = v })
	str("extra-config", "extra JSON config to merge into request payload", func(c *Config, v string) { c.ExtraConfig = v })
	str("command", "command line for the exec provider", func(c *Config, v string) { c.Command = v })
	str("codecs", "upload codec (e.g. PCM_S16LE, OPUS, FLAC)", func(c *Config, v string) { c.CODECS = v })
	str("container", "upload container (e.g. WAV, OGG, FLAC)", func(c *Config, v string) { c.CONTAINER = v })
	num("sampling-rate-depth", "sampling depth (bits)", func(c *Config, v int) { c.SAMPLING_RATE_DEPTH = v })
	num("bit-rate", "bit rate (kbps)", func(c *Config, v int) { c.BIT_RATE = v })
	num("request-timeout", "request timeout seconds", func(c *Config, v int) { c.RequestTimeout = v })
	num("max-retry", "max retry attempts", func(c *Config, v int) { c.MaxRetry = v })
	flt("retry-base-delay", "retry base delay seconds (float)", func(c *Config, v float64) { c.RetryBaseDelay = v })
	bln("enable-http2", "enable HTTP/2 (true/false)", func(c *Config, v bool) { c.EnableHTTP2 = v })
	bln("verify-ssl", "verify TLS certificates (true/false)", func(c *Config, v bool) { c.VerifySSL = v })

	bln("vad", "trim silence before upload (true/false)", func(c *Config, v bool) { c.VADEnabled = v })
	flt("vad-threshold", "speech RMS threshold (0-1)", func(c *Config, v float64) { c.VADThreshold = v })

	bln("inject", "paste the transcript into the focused window (true/false)", func(c *Config, v bool) { c.Inject = v })
	str("paste-key", "paste chord: ctrl+v, ctrl+shift+v, shift+insert", func(c *Config, v string) { c.PasteKey = v })
	bln("restore-clipboard", "restore clipboard after paste (true/false)", func(c *Config, v bool) { c.RestoreClipboard = v })

	str("status-file", "waybar status JSON path", func(c *Config, v string) { c.StatusFile = v })
	bln("signal-waybar", "signal waybar on status change (true/false)", func(c *Config, v bool) { c.SignalWaybar = v })
	bln("notification", "enable notifications (true/false)", func(c *Config, v bool) { c.Notification = v })
	bln("sound-cues", "beep when recording starts and stops (true/false)", func(c *Config, v bool) { c.SoundCues = v })
	str("nats-url", "publish status events to this NATS server", func(c *Config, v string) { c.NATSURL = v })
	str("history-path", "transcript history database", func(c *Config, v string) { c.HistoryPath = v })
	str("metrics-addr", "serve Prometheus metrics on host:port", func(c *Config, v string) { c.MetricsAddr = v })
	bln("benchmark", "log per-transcription timing (true/false)", func(c *Config, v bool) { c.Benchmark = v })

	str("cache-dir", "cache directory", func(c *Config, v string) { c.CacheDir = v })
	bln("keep-cache", "keep cache files (true/false)", func(c *Config, v bool) { c.KeepCache = v })

	str("log-level", "log level: debug, info, warn, error", func(c *Config, v string) { c.LogLevel = v })
	bln("log-json", "emit JSON logs (true/false)", func(c *Config, v bool) { c.LogJSON = v })
	bln("ffmpeg-debug", "enable ffmpeg debug output (true/false)", func(c *Config, v bool) { c.FFMPEG_DEBUG = v })
	bln("record-debug", "enable record debug output (true/false)", func(c *Config, v bool) { c.RECORD_DEBUG = v })
	bln("hotkey-debug", "enable hotkey debug output (true/false)", func(c *Config, v bool) { c.HOTKEY_DEBUG = v })
	bln("upload-debug", "enable upload debug output (true/false)", func(c *Config, v bool) { c.UPLOAD_DEBUG = v })

	fs.Func("output", "output txt path for -file mode", func(v string) error {
		fv.OutputPath = v
		fv.OutputPathSet = true
		fv.set["output"] = true
		return nil
	})

	return fv
}

// ApplyFlags applies present flags to the config in command-line order.
func ApplyFlags(cfg *Config, fv *FlagValues) {
	for _, apply := range fv.applies {
		apply(cfg)
	}
}

// IsSet reports whether the named flag was passed.
func (fv *FlagValues) IsSet(name string) bool { return fv.set[name] }

// AnySet reports whether any flag was explicitly set by the user.
func (fv *FlagValues) AnySet() bool { return len(fv.set) > 0 }
