package memory

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

// maxStrikes is how many consecutive throttled publishes a channel may queue
// before sends are refused.
const maxStrikes = 3

type throttle struct {
	lim     *rate.Limiter
	strikes int
}

// publishLimiter spaces publishes per channel according to the channel type.
// Each consecutive throttled publish waits factor times longer than the last.
type publishLimiter struct {
	mu       sync.Mutex
	factor   int
	per      map[string]time.Duration
	channels map[string]*throttle
}

func newPublishLimiter(per map[string]time.Duration, factor int) *publishLimiter {
	if factor < 1 {
		factor = 1
	}
	return &publishLimiter{factor: factor, per: per, channels: make(map[string]*throttle)}
}

// admit returns how long the publish has to wait, or engine.ErrRateLimited.
func (l *publishLimiter) admit(channelID string, typ engine.ChannelType, now time.Time) (time.Duration, error) {
	interval := l.per[string(typ)]
	if interval <= 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.channels[channelID]
	if t == nil {
		t = &throttle{lim: rate.NewLimiter(rate.Every(interval), 1)}
		l.channels[channelID] = t
	}
	r := t.lim.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	if wait == 0 {
		t.strikes = 0
		return 0, nil
	}
	if t.strikes >= maxStrikes {
		r.CancelAt(now)
		return 0, engine.ErrRateLimited
	}
	t.strikes++
	for i := 1; i < t.strikes; i++ {
		wait *= time.Duration(l.factor)
	}
	return wait, nil
}

func (l *publishLimiter) forget(channelID string) {
	l.mu.Lock()
	delete(l.channels, channelID)
	l.mu.Unlock()
}
