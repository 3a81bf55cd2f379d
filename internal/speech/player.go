package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/filosofo/internal/logger"
)

// Player plays WAV clips through the system audio device with oto.
type Player struct {
	ctx *oto.Context
	log *logger.Logger

	mu     sync.Mutex
	active *oto.Player
}

// NewPlayer opens the audio device. It fails when no device is available.
func NewPlayer(log *logger.Logger) (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("speech: open audio device: %w", err)
	}
	<-ready

	log = log.Named("player")
	log.Debug("initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Play blocks until the clip finishes or Stop is called.
func (p *Player) Play(wav []byte) error {
	pcm, err := wavPCM(wav)
	if err != nil {
		return err
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}

	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()
	return player.Close()
}

// Stop cuts the current clip short. Safe when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if active != nil {
		active.Pause()
	}
}

// wavPCM returns the payload of the data chunk of a RIFF/WAVE file.
func wavPCM(wav []byte) ([]byte, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("speech: not a WAV file")
	}

	for pos := 12; pos+8 <= len(wav); {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		start := pos + 8
		if id == "data" {
			return wav[start:min(start+size, len(wav))], nil
		}
		pos = start + size + size%2
	}
	return nil, errors.New("speech: WAV has no data chunk")
}
