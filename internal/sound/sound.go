// Package sound plays the looping alarm sound. Every playback is tracked in a
// Registry under a key (an alarm id, or "push" for the reactor) so sounds can
// be stopped individually.
package sound

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/metrics"
)

// PushKey is the registry key used by push-triggered playback.
const PushKey = "push"

// Playback is one looping sound.
type Playback interface {
	// Stop halts playback and rewinds to the start.
	Stop() error
}

// Player starts looping playback of the configured asset.
type Player interface {
	Start(ctx context.Context) (Playback, error)
}

type Registry struct {
	log    *zap.Logger
	player Player

	mu      sync.Mutex
	playing map[string]*slot
}

// slot reserves a key. pb is nil while the player is still starting.
type slot struct {
	pb Playback
}

func NewRegistry(log *zap.Logger, player Player) *Registry {
	return &Registry{
		log:     log,
		player:  player,
		playing: make(map[string]*slot),
	}
}

// Play starts looping playback under key. A key that is already playing, or
// still starting, keeps its current loop; sounds for one key never stack.
// The player starts without the registry lock held, so a slow asset fetch
// does not block Stop or Keys.
func (r *Registry) Play(ctx context.Context, key string) error {
	r.mu.Lock()
	if _, ok := r.playing[key]; ok {
		r.mu.Unlock()
		return nil
	}
	s := &slot{}
	r.playing[key] = s
	r.mu.Unlock()

	pb, err := r.player.Start(ctx)

	r.mu.Lock()
	current := r.playing[key]
	if current != s {
		// stopped while starting
		r.mu.Unlock()
		if err == nil {
			r.stopPlayback(key, pb)
		}
		return err
	}
	if err != nil {
		delete(r.playing, key)
		r.mu.Unlock()
		return err
	}
	s.pb = pb
	r.updateGauge()
	r.mu.Unlock()

	r.log.Debug("sound_started", zap.String("key", key))
	return nil
}

// Stop stops and rewinds the sound under key. It reports whether one was
// playing or starting.
func (r *Registry) Stop(key string) bool {
	r.mu.Lock()
	s, ok := r.playing[key]
	delete(r.playing, key)
	r.updateGauge()
	r.mu.Unlock()

	if !ok {
		return false
	}
	if s.pb != nil {
		r.stopPlayback(key, s.pb)
	}
	return true
}

func (r *Registry) stopPlayback(key string, pb Playback) {
	if err := pb.Stop(); err != nil {
		r.log.Warn("sound_stop_error", zap.String("key", key), zap.Error(err))
	}
}

// updateGauge counts started loops. Caller holds r.mu.
func (r *Registry) updateGauge() {
	n := 0
	for _, s := range r.playing {
		if s.pb != nil {
			n++
		}
	}
	metrics.SoundsPlaying.Set(float64(n))
}

func (r *Registry) Playing(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.playing[key]
	return ok
}

// Keys lists the keys with an active or starting sound, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.playing))
	for k := range r.playing {
		out = append(out, k)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// StopAll stops every sound; used on shutdown. Sounds still starting are
// stopped by their Play call once the player returns.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	all := r.playing
	r.playing = make(map[string]*slot)
	metrics.SoundsPlaying.Set(0)
	r.mu.Unlock()

	var err error
	for _, s := range all {
		if s.pb != nil {
			err = multierr.Append(err, s.pb.Stop())
		}
	}
	return err
}

// Nop is a Player for hosts without audio.
type Nop struct{}

func (Nop) Start(context.Context) (Playback, error) { return nopPlayback{}, nil }

type nopPlayback struct{}

func (nopPlayback) Stop() error { return nil }
