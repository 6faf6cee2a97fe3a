package sound

import (
	"context"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// BeepPlayer rings the system beep in a loop. It stands in for OtoPlayer on
// hosts without a usable audio device.
type BeepPlayer struct {
	Freq     float64
	Duration time.Duration
	Gap      time.Duration

	beep func(freq float64, ms int) error
}

func NewBeepPlayer() *BeepPlayer {
	return &BeepPlayer{
		Freq:     beeep.DefaultFreq,
		Duration: 300 * time.Millisecond,
		Gap:      700 * time.Millisecond,
		beep:     beeep.Beep,
	}
}

func (b *BeepPlayer) Start(ctx context.Context) (Playback, error) {
	pb := &beepPlayback{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(pb.done)
		t := time.NewTicker(b.Duration + b.Gap)
		defer t.Stop()
		for {
			_ = b.beep(b.Freq, int(b.Duration/time.Millisecond))
			select {
			case <-pb.stop:
				return
			case <-t.C:
			}
		}
	}()
	return pb, nil
}

type beepPlayback struct {
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (p *beepPlayback) Stop() error {
	p.once.Do(func() { close(p.stop) })
	<-p.done
	return nil
}
