package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// waybarStatus is the JSON a bar custom module reads.
type waybarStatus struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip"`
	Class   string `json:"class"`
	Alt     string `json:"alt"`
}

var icons = map[State]string{
	Inactive:   "\U000f036d",
	Active:     "\U000f036c",
	Processing: "\U000f036c",
	Error:      "\U000f036d",
}

// FileSink keeps a status JSON file current for bar widgets.
type FileSink struct {
	Path   string
	Signal bool // send SIGRTMIN+8 to waybar after each write

	signal  func()
	signals coalescer
}

// coalescer runs fn in the background. Kicks that arrive while fn runs
// collapse into one more run.
type coalescer struct {
	mu      sync.Mutex
	running bool
	again   bool
}

func (c *coalescer) kick(fn func()) {
	c.mu.Lock()
	if c.running {
		c.again = true
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()
	go func() {
		for {
			fn()
			c.mu.Lock()
			if !c.again {
				c.running = false
				c.mu.Unlock()
				return
			}
			c.again = false
			c.mu.Unlock()
		}
	}()
}

// NewFileSink creates the parent directory of path.
func NewFileSink(path string, signal bool) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create status dir: %w", err)
	}
	return &FileSink{Path: path, Signal: signal, signal: signalWaybar}, nil
}

func (f *FileSink) Publish(ev Event) error {
	if ev.Kind != KindState {
		return nil
	}
	b, err := json.Marshal(waybarStatus{
		Text:    icons[ev.State],
		Tooltip: ev.Tooltip,
		Class:   ev.State.String(),
		Alt:     ev.State.String(),
	})
	if err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}
	if f.Signal && f.signal != nil {
		f.signals.kick(f.signal)
	}
	return nil
}

// Remove deletes the status file on shutdown. The final signal is sent
// synchronously since the process is about to exit.
func (f *FileSink) Remove() error {
	err := os.Remove(f.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if f.Signal && f.signal != nil {
		f.signal()
	}
	return nil
}

func signalWaybar() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, "pkill", "-RTMIN+8", "waybar").Run()
}
