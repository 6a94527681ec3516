package audio

import (
	"log/slog"
	"sync"

	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

// Sounder plays a sound file.
type Sounder interface {
	Play(path string) error
}

// Chime wraps a Renderer and plays a sound each time a notification becomes
// visible. Playback runs on its own goroutine so the queue is never blocked.
type Chime struct {
	snackbar.Renderer
	player Sounder
	logger *slog.Logger

	mu      sync.RWMutex
	sound   string
	enabled bool

	wg sync.WaitGroup
}

// NewChime wraps r. An empty sound disables the chime.
func NewChime(r snackbar.Renderer, player Sounder, sound string, logger *slog.Logger) *Chime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chime{
		Renderer: r,
		player:   player,
		logger:   logger,
		sound:    sound,
		enabled:  sound != "",
	}
}

// ActionSlots forwards the slot count of the wrapped renderer. It returns -1
// when the wrapped renderer is not slot based.
func (c *Chime) ActionSlots() int {
	return snackbar.ActionSlots(c.Renderer)
}

// Configure changes the sound and whether it plays. Used on config reload.
func (c *Chime) Configure(sound string, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sound = sound
	c.enabled = enabled && sound != ""
}

func (c *Chime) SetVisible(visible bool) {
	c.Renderer.SetVisible(visible)
	if !visible {
		return
	}

	c.mu.RLock()
	sound, enabled := c.sound, c.enabled
	c.mu.RUnlock()
	if !enabled {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.player.Play(sound); err != nil {
			c.logger.Warn("failed to play notification sound", "path", sound, "error", err)
		}
	}()
}

// Wait blocks until started playbacks have been handed to the speaker.
func (c *Chime) Wait() {
	c.wg.Wait()
}
