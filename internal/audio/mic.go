package audio

import (
	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// mic is the PortAudio-backed capture Source. portaudio.Initialize must have
// been called before the first open (the cmd entrypoint owns that lifecycle).
type mic struct {
	stream *portaudio.Stream
	buf    []int16
}

func openMic(sampleRate int) (Source, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(pcmChannels, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &mic{stream: stream, buf: buf}, nil
}

func (m *mic) Start() error { return m.stream.Start() }
func (m *mic) Stop() error  { return m.stream.Stop() }
func (m *mic) Close() error { return m.stream.Close() }

func (m *mic) Read() ([]int16, error) {
	if err := m.stream.Read(); err != nil {
		return nil, err
	}
	out := make([]int16, len(m.buf))
	copy(out, m.buf)
	return out, nil
}
