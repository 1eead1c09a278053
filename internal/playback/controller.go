package playback

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Player starts streaming the audio behind a locator. It returns a stop
// function and a channel that is closed once playback finishes, whether it
// ran to completion or was stopped.
type Player interface {
	Play(ctx context.Context, locator string) (stop func(), done <-chan struct{}, err error)
}

// Controller keeps at most one synthesized-speech playback alive. A new Speak
// preempts whatever is playing; requests are never queued. Speaking is true
// from the moment a request is accepted until its playback settles.
type Controller struct {
	synth  Synthesizer
	player Player

	mu       sync.Mutex
	gen      int
	speaking bool
	stop     func()
	onChange func(bool)
}

func NewController(synth Synthesizer, player Player) *Controller {
	return &Controller{synth: synth, player: player}
}

// SetOnSpeakingChange registers a callback fired whenever the speaking flag
// actually flips. Set it before the controller is in use.
func (c *Controller) SetOnSpeakingChange(fn func(speaking bool)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// setSpeaking must be called with c.mu held; it returns the callback to run
// after the lock is released, or nil if the flag did not change.
func (c *Controller) setSpeaking(speaking bool) func() {
	if c.speaking == speaking {
		return nil
	}
	c.speaking = speaking
	if c.onChange == nil {
		return nil
	}
	fn := c.onChange
	return func() { fn(speaking) }
}

func (c *Controller) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	notify := c.setSpeaking(true)
	c.mu.Unlock()
	if notify != nil {
		notify()
	}

	locator, err := c.synth.Synthesize(ctx, text)
	if err != nil {
		c.settle(gen)
		return err
	}

	stop, done, err := c.player.Play(ctx, locator)
	if err != nil {
		c.settle(gen)
		return fmt.Errorf("start playback: %w", err)
	}

	c.mu.Lock()
	if gen != c.gen {
		// preempted while synthesizing; the newer request owns the state
		c.mu.Unlock()
		stop()
		return nil
	}
	c.stop = stop
	c.mu.Unlock()

	go func() {
		<-done
		c.settle(gen)
	}()

	return nil
}

func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Stop releases any active playback.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.gen++
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	notify := c.setSpeaking(false)
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// settle flips speaking off once the given playback generation finishes, but
// only if it has not been preempted by a newer request.
func (c *Controller) settle(gen int) {
	c.mu.Lock()
	var notify func()
	if gen == c.gen {
		notify = c.setSpeaking(false)
		c.stop = nil
	}
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
}
