package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"whspr/internal/config"
	"whspr/internal/hotkey"
	"whspr/internal/status"
)

func openAIConfig(press string) config.Config {
	cfg := config.DefaultConfig()
	cfg.Provider = "openai"
	cfg.Token = "test-token"
	cfg.PressShortcut = press
	return cfg
}

// runHarness runs the orchestrator loop until the test ends.
func runHarness(t *testing.T, h *harness) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.o.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ctx
}

func waitPhase(t *testing.T, o *Orchestrator, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for o.State().Phase != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", o.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func newReloadRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := &Runtime{Config: openAIConfig("SUPER+ALT+D"), log: zap.NewNop().Sugar(), cues: status.NewCues(false, nil)}
	t.Cleanup(func() {
		if rt.transport != nil {
			rt.transport.CloseIdleConnections()
		}
	})
	return rt
}

func TestReloadRebindsOnOrchestratorLoop(t *testing.T) {
	h := newHarness(Options{})
	ctx := runHarness(t, h)
	rt := newReloadRuntime(t)

	next := openAIConfig("CTRL+ALT+R")
	next.SoundCues = true
	var rebound []string
	err := rt.Reload(ctx, h.o, next, func(c config.Config) error {
		if h.o.State().Phase != Idle {
			t.Errorf("rebind ran while %s", h.o.State())
		}
		rebound = append(rebound, c.PressShortcut)
		return nil
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(rebound) != 1 || rebound[0] != "CTRL+ALT+R" {
		t.Fatalf("rebind calls = %v", rebound)
	}
	if rt.Transcriber == nil || rt.Transcriber.Provider() != "openai" {
		t.Fatalf("runtime transcriber not swapped")
	}
	if rt.Config.PressShortcut != "CTRL+ALT+R" {
		t.Fatalf("runtime config not swapped")
	}
}

func TestReloadRefusedWhileRecording(t *testing.T) {
	h := newHarness(Options{})
	ctx := runHarness(t, h)
	rt := newReloadRuntime(t)

	h.o.Events() <- hotkey.Event{TriggeredAt: time.Now(), Kind: hotkey.Hold, Phase: hotkey.Start}
	waitPhase(t, h.o, Recording)

	rebinds := 0
	err := rt.Reload(ctx, h.o, openAIConfig("CTRL+ALT+R"), func(config.Config) error {
		rebinds++
		return nil
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if rebinds != 0 {
		t.Fatalf("shortcuts rebound while recording")
	}
	if rt.Transcriber != nil || rt.Config.PressShortcut != "SUPER+ALT+D" {
		t.Fatalf("refused reload changed the runtime")
	}

	// The hold listener is untouched, so its release still ends the recording.
	h.o.Events() <- hotkey.Event{TriggeredAt: time.Now(), Kind: hotkey.Hold, Phase: hotkey.End}
	waitPhase(t, h.o, Idle)
	h.rec.mu.Lock()
	stops := h.rec.stops
	h.rec.mu.Unlock()
	if stops != 1 {
		t.Fatalf("recorder stops = %d", stops)
	}
}

func TestReloadKeepsConfigWhenRebindFails(t *testing.T) {
	h := newHarness(Options{})
	ctx := runHarness(t, h)
	rt := newReloadRuntime(t)

	err := rt.Reload(ctx, h.o, openAIConfig("CTRL+ALT+R"), func(config.Config) error {
		return hotkey.ErrInvalidShortcut
	})
	if err != nil {
		t.Fatalf("a failed rebind should not undo the reload: %v", err)
	}
	if rt.Transcriber == nil {
		t.Fatalf("transcriber not swapped")
	}
}
