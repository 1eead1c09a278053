package playback

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"talkcoach/internal/audio"
)

const playerFrames = 1024

// WAVPlayer fetches the synthesized WAV behind a locator and streams it
// through the default PortAudio output device.
type WAVPlayer struct {
	httpClient *http.Client
}

func NewWAVPlayer(fetchTimeout time.Duration) *WAVPlayer {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &WAVPlayer{httpClient: &http.Client{Timeout: fetchTimeout}}
}

func (p *WAVPlayer) Play(ctx context.Context, locator string) (func(), <-chan struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build audio fetch: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}

	sampleRate, channels, samples, err := audio.DecodeWAV(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("decode audio: %w", err)
	}

	buf := make([]int16, playerFrames*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), playerFrames, buf)
	if err != nil {
		return nil, nil, fmt.Errorf("open output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, nil, fmt.Errorf("start output stream: %w", err)
	}

	done := make(chan struct{})
	stopCh := make(chan struct{})
	var stopOnce sync.Once
	stop := func() { stopOnce.Do(func() { close(stopCh) }) }

	go func() {
		defer close(done)
		defer func() { _ = stream.Close() }()
		defer func() { _ = stream.Stop() }()

		for offset := 0; offset < len(samples); offset += len(buf) {
			select {
			case <-stopCh:
				return
			default:
			}

			n := copy(buf, samples[offset:])
			for i := n; i < len(buf); i++ {
				buf[i] = 0
			}
			if err := stream.Write(); err != nil {
				return
			}
		}
	}()

	return stop, done, nil
}
