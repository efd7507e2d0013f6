package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"whspr/internal/hotkey"
)

// Config holds configurable parameters.
type Config struct {
	PressShortcut    string `json:"PRESS_SHORTCUT" yaml:"press_shortcut"`
	HoldShortcut     string `json:"HOLD_SHORTCUT" yaml:"hold_shortcut"`
	DebounceMs       int    `json:"DEBOUNCE_MS" yaml:"debounce_ms" validate:"gte=0,lte=10000"`
	PollIntervalMs   int    `json:"POLL_INTERVAL_MS" yaml:"poll_interval_ms" validate:"gte=1,lte=1000"`
	RescanIntervalMs int    `json:"RESCAN_INTERVAL_MS" yaml:"rescan_interval_ms" validate:"gte=100"`

	AudioDevice     *int `json:"AUDIO_DEVICE" yaml:"audio_device" validate:"omitempty,gte=0"`
	SAMPLING_RATE   int  `json:"SAMPLING_RATE" yaml:"sampling_rate" validate:"gte=8000,lte=192000"`
	TargetRate      int  `json:"TARGET_SAMPLE_RATE" yaml:"target_sample_rate" validate:"gte=8000,lte=48000"`
	FramesPerBuffer int  `json:"FRAMES_PER_BUFFER" yaml:"frames_per_buffer" validate:"gte=0,lte=16384"`

	Provider            string  `json:"PROVIDER" yaml:"provider" validate:"oneof=http openai exec"`
	APIEndpoint         string  `json:"API_ENDPOINT" yaml:"api_endpoint" validate:"omitempty,url"`
	Token               string  `json:"TOKEN" yaml:"token"`
	Model               string  `json:"MODEL" yaml:"model"`
	Language            string  `json:"LANGUAGE" yaml:"language"`
	Prompt              string  `json:"PROMPT" yaml:"prompt"`
	TEXTPath            string  `json:"TEXT_PATH" yaml:"text_path"`
	ExtraConfig         string  `json:"ExtraConfig" yaml:"extra_config"`
	Command             string  `json:"COMMAND" yaml:"command"`
	SAMPLING_RATE_DEPTH int     `json:"SAMPLING_RATE_DEPTH" yaml:"sampling_rate_depth"`
	BIT_RATE            int     `json:"BIT_RATE" yaml:"bit_rate" validate:"gt=0"`
	CODECS              string  `json:"CODECS" yaml:"codecs"`
	CONTAINER           string  `json:"CONTAINER" yaml:"container"`
	RequestTimeout      int     `json:"REQUEST_TIMEOUT" yaml:"request_timeout" validate:"gt=0"`
	MaxRetry            int     `json:"MAX_RETRY" yaml:"max_retry" validate:"gte=1,lte=20"`
	RetryBaseDelay      float64 `json:"RETRY_BASE_DELAY" yaml:"retry_base_delay" validate:"gte=0"`
	EnableHTTP2         bool    `json:"ENABLE_HTTP2" yaml:"enable_http2"`
	VerifySSL           bool    `json:"VERIFY_SSL" yaml:"verify_ssl"`

	VADEnabled     bool    `json:"VAD_ENABLED" yaml:"vad_enabled"`
	VADThreshold   float64 `json:"VAD_THRESHOLD" yaml:"vad_threshold" validate:"gte=0,lte=1"`
	VADFrameMs     int     `json:"VAD_FRAME_MS" yaml:"vad_frame_ms" validate:"gte=5,lte=200"`
	VADMinSpeechMs int     `json:"VAD_MIN_SPEECH_MS" yaml:"vad_min_speech_ms" validate:"gte=0"`
	VADPaddingMs   int     `json:"VAD_PADDING_MS" yaml:"vad_padding_ms" validate:"gte=0"`

	Inject           bool   `json:"INJECT" yaml:"inject"`
	PasteKey         string `json:"PASTE_KEY" yaml:"paste_key"`
	PasteDelayMs     int    `json:"PASTE_DELAY_MS" yaml:"paste_delay_ms" validate:"gte=0,lte=5000"`
	RestoreClipboard bool   `json:"RESTORE_CLIPBOARD" yaml:"restore_clipboard"`
	NormalizeText    bool   `json:"NORMALIZE_TEXT" yaml:"normalize_text"`

	StatusFile                string `json:"STATUS_FILE" yaml:"status_file"`
	SignalWaybar              bool   `json:"SIGNAL_WAYBAR" yaml:"signal_waybar"`
	Notification              bool   `json:"NOTIFICATION" yaml:"notification"`
	SoundCues                 bool   `json:"SOUND_CUES" yaml:"sound_cues"`
	RequestFailedNotification bool   `json:"REQUEST_FAILED_NOTIFICATION" yaml:"request_failed_notification"`
	NATSURL                   string `json:"NATS_URL" yaml:"nats_url"`
	NATSSubject               string `json:"NATS_SUBJECT" yaml:"nats_subject"`
	HistoryPath               string `json:"HISTORY_PATH" yaml:"history_path"`
	HistoryMax                int    `json:"HISTORY_MAX" yaml:"history_max" validate:"gte=0"`
	MetricsAddr               string `json:"METRICS_ADDR" yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	Benchmark                 bool   `json:"BENCHMARK" yaml:"benchmark"`

	CacheDir  string `json:"CACHE_DIR" yaml:"cache_dir"`
	KeepCache bool   `json:"KEEP_CACHE" yaml:"keep_cache"`

	LogLevel     string `json:"LOG_LEVEL" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogJSON      bool   `json:"LOG_JSON" yaml:"log_json"`
	FFMPEG_DEBUG bool   `json:"FFMPEG_DEBUG" yaml:"ffmpeg_debug"`
	RECORD_DEBUG bool   `json:"RECORD_DEBUG" yaml:"record_debug"`
	HOTKEY_DEBUG bool   `json:"HOTKEY_DEBUG" yaml:"hotkey_debug"`
	UPLOAD_DEBUG bool   `json:"UPLOAD_DEBUG" yaml:"upload_debug"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		PressShortcut:    "SUPER+ALT+D",
		HoldShortcut:     "",
		DebounceMs:       500,
		PollIntervalMs:   10,
		RescanIntervalMs: 1000,

		AudioDevice:     nil,
		SAMPLING_RATE:   16000,
		TargetRate:      16000,
		FramesPerBuffer: 0,

		Provider:            "http",
		APIEndpoint:         "",
		Token:               "",
		Model:               "whisper-1",
		Language:            "",
		Prompt:              "",
		TEXTPath:            "text",
		ExtraConfig:         "",
		Command:             "",
		SAMPLING_RATE_DEPTH: 16,
		BIT_RATE:            128,
		CODECS:              "pcm_s16le",
		CONTAINER:           "wav",
		RequestTimeout:      30,
		MaxRetry:            3,
		RetryBaseDelay:      0.5,
		EnableHTTP2:         true,
		VerifySSL:           true,

		VADEnabled:     false,
		VADThreshold:   0.02,
		VADFrameMs:     30,
		VADMinSpeechMs: 150,
		VADPaddingMs:   200,

		Inject:           true,
		PasteKey:         "ctrl+v",
		PasteDelayMs:     80,
		RestoreClipboard: true,
		NormalizeText:    true,

		StatusFile:                DefaultStatusFile(),
		SignalWaybar:              false,
		Notification:              false,
		SoundCues:                 false,
		RequestFailedNotification: false,
		NATSURL:                   "",
		NATSSubject:               "whspr.events",
		HistoryPath:               DefaultHistoryPath(),
		HistoryMax:                20,
		MetricsAddr:               "",
		Benchmark:                 false,

		CacheDir:  "",
		KeepCache: false,

		LogLevel:     "info",
		LogJSON:      false,
		FFMPEG_DEBUG: false,
		RECORD_DEBUG: false,
		HOTKEY_DEBUG: false,
		UPLOAD_DEBUG: false,
	}
}

// Load loads config from a JSON or YAML file if provided.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if isYAML(path) {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config: %w", err)
		}
		return cfg, nil
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse json config: %w", err)
	}
	return cfg, nil
}

// SaveDefault writes a default config to the provided path.
func SaveDefault(path string) error {
	cfg := DefaultConfig()
	var (
		b   []byte
		err error
	)
	if isYAML(path) {
		b, err = yaml.Marshal(cfg)
	} else {
		b, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate verifies config fields and returns an error if any value is invalid.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %v (rule %s %s)", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
		}
		return err
	}

	if cfg.PressShortcut != "" {
		if _, err := hotkey.ParseShortcut(cfg.PressShortcut); err != nil {
			return fmt.Errorf("invalid PRESS_SHORTCUT: %w", err)
		}
	}
	if cfg.HoldShortcut != "" {
		if _, err := hotkey.ParseShortcut(cfg.HoldShortcut); err != nil {
			return fmt.Errorf("invalid HOLD_SHORTCUT: %w", err)
		}
	}

	switch cfg.Provider {
	case "http":
		if cfg.APIEndpoint == "" {
			return fmt.Errorf("API_ENDPOINT is required for provider http")
		}
	case "exec":
		if strings.TrimSpace(cfg.Command) == "" {
			return fmt.Errorf("COMMAND is required for provider exec")
		}
	}

	if cfg.ExtraConfig != "" {
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(cfg.ExtraConfig), &m); err != nil {
			return fmt.Errorf("invalid extra-config JSON: %w", err)
		}
	}

	allowedDepth := map[int]bool{8: true, 16: true, 24: true, 32: true}
	if !allowedDepth[cfg.SAMPLING_RATE_DEPTH] {
		return fmt.Errorf("invalid SAMPLING_RATE_DEPTH: %d (allowed: 8,16,24,32)", cfg.SAMPLING_RATE_DEPTH)
	}
	if !allowedCodecs[strings.ToLower(cfg.CODECS)] {
		return fmt.Errorf("invalid CODECS: %s (allowed: %s)", cfg.CODECS, allowedList(allowedCodecs))
	}
	if !allowedContainers[strings.ToLower(cfg.CONTAINER)] {
		return fmt.Errorf("invalid CONTAINER: %s (allowed: %s)", cfg.CONTAINER, allowedList(allowedContainers))
	}
	if _, err := ParsePasteKey(cfg.PasteKey); err != nil {
		return err
	}
	return nil
}

var allowedCodecs = map[string]bool{
	"opus": true, "libopus": true, "wavpack": true, "aac": true, "ac3": true, "eac3": true,
	"mp3": true, "mp2": true, "mp1": true, "flac": true, "alac": true, "pcm": true,
	"vorbis": true, "libvorbis": true, "vorb": true, "adpcm": true, "amr": true,
	"pcm_f32be": true, "pcm_f32le": true, "pcm_f64be": true, "pcm_f64le": true,
	"pcm_s16be": true, "pcm_s16le": true, "pcm_s24be": true, "pcm_s24le": true,
	"pcm_s32be": true, "pcm_s32le": true, "pcm_s64be": true, "pcm_s64le": true, "pcm_s8": true,
}

var allowedContainers = map[string]bool{
	"wav": true, "ac3": true, "ac4": true, "ogg": true, "oga": true, "mp3": true,
	"flac": true, "eac3": true, "aac": true, "m4a": true, "mp4": true, "opus": true, "webm": true,
	"s8": true, "s16be": true, "s16le": true, "s24be": true, "s24le": true,
	"s32be": true, "s32le": true, "f32be": true, "f32le": true, "f64be": true, "f64le": true,
}

func allowedList(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, strings.ToUpper(k))
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// NeedsTranscode reports whether uploads must go through ffmpeg.
func NeedsTranscode(cfg *Config) bool {
	c := strings.ToLower(cfg.CODECS)
	return !(strings.EqualFold(cfg.CONTAINER, "wav") && (c == "pcm" || c == "pcm_s16le") && cfg.SAMPLING_RATE_DEPTH == 16)
}

// PasteChord is a parsed paste shortcut.
type PasteChord struct {
	Ctrl, Shift, Alt bool
	Key              string
}

// ParsePasteKey accepts "ctrl+v", "ctrl+shift+v" or "shift+insert".
func ParsePasteKey(s string) (PasteChord, error) {
	var pc PasteChord
	for _, raw := range strings.Split(strings.ToLower(s), "+") {
		switch tok := strings.TrimSpace(raw); tok {
		case "ctrl", "control":
			pc.Ctrl = true
		case "shift":
			pc.Shift = true
		case "alt":
			pc.Alt = true
		case "v", "insert":
			pc.Key = tok
		case "":
		default:
			return pc, fmt.Errorf("invalid PASTE_KEY %q: unsupported key %q", s, tok)
		}
	}
	if pc.Key == "" {
		return pc, fmt.Errorf("invalid PASTE_KEY %q: missing v or insert", s)
	}
	return pc, nil
}

// InitCacheDir validates/creates the configured cache directory.
// It mutates cfg.CacheDir to an absolute path or clears it on failure.
func InitCacheDir(cfg *Config, log *zap.SugaredLogger) {
	if cfg.CacheDir == "" {
		return
	}
	abs, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		log.Warnw("cache-dir path invalid; falling back to temp dir", "dir", cfg.CacheDir, "error", err)
		cfg.CacheDir = ""
		return
	}
	info, err := os.Stat(abs)
	if err == nil {
		if !info.IsDir() {
			log.Warnw("cache-dir exists but is not a directory; falling back to temp dir", "dir", abs)
			cfg.CacheDir = ""
			return
		}
		cfg.CacheDir = abs
		log.Infow("using existing cache-dir", "dir", abs)
		return
	}
	if os.IsNotExist(err) {
		if err := os.MkdirAll(abs, 0755); err != nil {
			log.Warnw("cannot create cache-dir; falling back to temp dir", "dir", abs, "error", err)
			cfg.CacheDir = ""
			return
		}
		cfg.CacheDir = abs
		log.Infow("created cache-dir", "dir", abs)
		return
	}
	log.Warnw("cannot access cache-dir; falling back to temp dir", "dir", abs, "error", err)
	cfg.CacheDir = ""
}

// TempDir returns the directory to use for temporary files.
func TempDir(cfg *Config) string {
	if cfg.CacheDir != "" {
		return cfg.CacheDir
	}
	return os.TempDir()
}

// ContainerExt maps container names to file extensions (lowercase).
func ContainerExt(container string) string {
	c := strings.ToLower(container)
	if c == "" {
		return "wav"
	}
	return c
}

// Debounce returns the press debounce window.
func (c *Config) Debounce() time.Duration { return time.Duration(c.DebounceMs) * time.Millisecond }

// PollInterval returns the key polling sleep.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// RescanInterval returns the fallback device rescan period.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.RescanIntervalMs) * time.Millisecond
}

// DefaultStatusFile returns the XDG cache location for the status file.
// An explicit empty STATUS_FILE disables the file.
func DefaultStatusFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "whspr", "status.json")
}

// DefaultHistoryPath returns the XDG data location for the history database.
// An explicit empty HISTORY_PATH disables history.
func DefaultHistoryPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "whspr", "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "whspr", "history.db")
	}
	return filepath.Join(home, ".local", "share", "whspr", "history.db")
}
