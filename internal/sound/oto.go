package sound

import (
	"context"
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func otoContext(p *pcm) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   p.SampleRate,
			ChannelCount: p.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("audio context: %w", err)
			return
		}
		// Wait for the hardware audio devices to be ready
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// OtoPlayer loops the asset through the system audio device.
type OtoPlayer struct {
	Asset *Asset

	mu  sync.Mutex
	pcm *pcm
}

func NewOtoPlayer(asset *Asset) *OtoPlayer {
	return &OtoPlayer{Asset: asset}
}

func (o *OtoPlayer) load(ctx context.Context) (*pcm, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pcm != nil {
		return o.pcm, nil
	}
	b, err := o.Asset.Bytes(ctx)
	if err != nil {
		return nil, err
	}
	p, err := decode(b)
	if err != nil {
		return nil, err
	}
	o.pcm = p
	return p, nil
}

func (o *OtoPlayer) Start(ctx context.Context) (Playback, error) {
	p, err := o.load(ctx)
	if err != nil {
		return nil, err
	}
	octx, err := otoContext(p)
	if err != nil {
		return nil, err
	}
	src := &loopReader{data: p.Data}
	pl := octx.NewPlayer(src)
	pl.Play()
	return &otoPlayback{player: pl}, nil
}

type otoPlayback struct {
	mu     sync.Mutex
	player *oto.Player
}

func (p *otoPlayback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return nil
	}
	p.player.Pause()
	err := p.player.Close()
	p.player = nil
	return err
}
