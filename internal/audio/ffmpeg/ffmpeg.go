package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"whspr/internal/config"
)

// Available reports an error when no ffmpeg binary is on PATH.
func Available() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return nil
}

// Convert transcodes a mono WAV into the configured codec/container at the
// target sample rate.
func Convert(ctx context.Context, cfg config.Config, inPath, outPath string, log *zap.SugaredLogger) error {
	args, err := Args(cfg, inPath, outPath)
	if err != nil {
		return err
	}
	if log != nil {
		log.Debugw("executing ffmpeg", "args", strings.Join(args, " "))
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w\n%s", err, stderr.String())
	}
	return nil
}

// Args builds the ffmpeg command line for Convert.
func Args(cfg config.Config, inPath, outPath string) ([]string, error) {
	sr := cfg.TargetRate
	if sr <= 0 {
		sr = 16000
	}
	bitrate := cfg.BIT_RATE
	if bitrate <= 0 {
		bitrate = 128
	}

	ffCodec, codecHasBitrate := ffmpegCodecFor(cfg.CODECS)
	if ffCodec == "" {
		return nil, fmt.Errorf("unsupported codec: %s", cfg.CODECS)
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", inPath, "-ac", "1", "-ar", strconv.Itoa(sr), "-c:a", ffCodec}
	if !strings.HasPrefix(ffCodec, "pcm_") {
		if codecHasBitrate {
			args = append(args, "-b:a", fmt.Sprintf("%dk", bitrate))
		}
		if f := sampleFormat(cfg.SAMPLING_RATE_DEPTH); f != "" && !codecHasBitrate {
			args = append(args, "-sample_fmt", f)
		}
	}
	return append(args, outPath), nil
}

func sampleFormat(depth int) string {
	switch depth {
	case 8:
		return "u8"
	case 16:
		return "s16"
	case 24:
		return "s32"
	case 32:
		return "s32"
	}
	return ""
}

func ffmpegCodecFor(key string) (string, bool) {
	k := strings.ToLower(key)
	switch k {
	case "opus", "libopus":
		return "libopus", true
	case "wavpack":
		return "wavpack", false
	case "aac":
		return "aac", true
	case "ac3":
		return "ac3", true
	case "eac3":
		return "eac3", true
	case "mp3":
		return "libmp3lame", true
	case "mp2":
		return "mp2", true
	case "mp1":
		return "mp1", true
	case "flac":
		return "flac", false
	case "alac":
		return "alac", false
	case "pcm":
		return "pcm_s16le", false
	case "vorbis", "libvorbis", "vorb":
		return "libvorbis", true
	case "adpcm":
		return "adpcm_ms", false
	case "amr":
		return "libopencore_amrnb", true
	case "pcm_f32be", "pcm_f32le", "pcm_f64be", "pcm_f64le",
		"pcm_s16be", "pcm_s16le", "pcm_s24be", "pcm_s24le",
		"pcm_s32be", "pcm_s32le", "pcm_s64be", "pcm_s64le",
		"pcm_s8":
		return k, false
	default:
		return "", false
	}
}
