package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"whspr/internal/app"
	"whspr/internal/config"
	"whspr/internal/hotkey"
	"whspr/internal/logging"
	"whspr/internal/record"
)

const defaultConfigPath = "config.json"

func usage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, `Usage: %s [options]

Records speech while a global shortcut is active, transcribes it and pastes
the text into the focused window.

Modes:
  (default)              listen for PRESS_SHORTCUT / HOLD_SHORTCUT
  -test                  start and stop recording with Enter on stdin
  -file <path>           transcribe an existing audio file and exit
  -list-keyboards        print detected keyboard devices and exit
  -list-audio-devices    print capture devices and their indexes and exit
  -history <n>           print the n most recent transcripts and exit

Configuration:
  -config <path>         JSON or YAML config file (default ./config.json;
                         created with defaults when missing and no flags are given)
  Every config field can be overridden with a flag; SIGHUP reloads the file.

Options:
`, name)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	configPath := flag.String("config", "", "path to config file (JSON or YAML)")
	filePath := flag.String("file", "", "audio file to transcribe (skips recording)")
	testMode := flag.Bool("test", false, "use Enter on stdin instead of a global shortcut")
	listKeyboards := flag.Bool("list-keyboards", false, "list keyboard devices and exit")
	listAudio := flag.Bool("list-audio-devices", false, "list audio capture devices and exit")
	showHistory := flag.Int("history", 0, "print the N most recent transcripts and exit")
	fv := config.BindFlags(flag.CommandLine)
	flag.Parse()

	if *listKeyboards {
		exitOn(printKeyboards())
		return
	}
	if *listAudio {
		exitOn(printAudioDevices())
		return
	}

	path := *configPath
	if path == "" {
		path = defaultConfigPath
		if _, err := os.Stat(path); os.IsNotExist(err) && !fv.AnySet() && *filePath == "" && !*testMode && *showHistory <= 0 {
			if err := config.SaveDefault(path); err != nil {
				exitOn(fmt.Errorf("write default config: %w", err))
			}
			fmt.Fprintf(os.Stderr, "created default config at %s; edit it and run again\n", path)
			return
		}
	}

	load := func() (config.Config, error) { return loadConfig(path, fv) }
	cfg, err := load()
	if err != nil {
		exitOn(err)
	}
	if _, err := logging.Init(cfg.LogLevel, cfg.LogJSON); err != nil {
		exitOn(fmt.Errorf("init logging: %w", err))
	}
	defer logging.Sync()
	log := logging.For("main", false)
	config.InitCacheDir(&cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *showHistory > 0 {
		if err := app.PrintHistory(ctx, cfg, *showHistory, os.Stdout); err != nil {
			log.Errorw("reading history failed", "error", err)
			logging.Sync()
			os.Exit(1)
		}
		return
	}

	switch {
	case *filePath != "":
		err = app.RunFileMode(ctx, cfg, *filePath, fv.OutputPath)
	case *testMode:
		err = app.RunTestMode(ctx, cfg, os.Stdin)
	default:
		err = app.RunRecordMode(ctx, cfg, func() (config.Config, error) {
			next, err := load()
			if err != nil {
				return next, err
			}
			config.InitCacheDir(&next, log)
			return next, nil
		})
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("exiting", "error", err)
		logging.Sync()
		os.Exit(1)
	}
}

// loadConfig reads path when it exists, applies flags on top and validates.
func loadConfig(path string, fv *config.FlagValues) (config.Config, error) {
	cfg := config.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	} else if !os.IsNotExist(err) {
		return cfg, err
	}
	config.ApplyFlags(&cfg, fv)
	if err := config.Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func printKeyboards() error {
	kbs, err := hotkey.ListKeyboards(nil)
	if err != nil {
		return err
	}
	if len(kbs) == 0 {
		return hotkey.ErrNoKeyboards
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tNAME")
	for _, kb := range kbs {
		fmt.Fprintf(w, "%s\t%s\n", kb.Path, kb.Name)
	}
	return w.Flush()
}

func printAudioDevices() error {
	host, err := record.NewPortAudioHost(0)
	if err != nil {
		return err
	}
	defer host.Close()
	devs, err := host.InputDevices()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tNAME\tCHANNELS\tRATE\tDEFAULT")
	for _, d := range devs {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.0f\t%s\n", d.Index, d.Name, d.Channels, d.DefaultRate, def)
	}
	return w.Flush()
}

func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
