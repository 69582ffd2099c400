// Package memory is an in-process chat engine. State lives in maps guarded by
// one mutex, every result and event is delivered on a single dispatcher
// goroutine, and realtime frames travel over a pubsub.Transport so several
// processes can share channels through Redis.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Goden-Gun/chat-bindings/pkg/association"
	"github.com/Goden-Gun/chat-bindings/pkg/auth"
	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/config"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/envelope"
	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
	"github.com/Goden-Gun/chat-bindings/pkg/pubsub"
	"github.com/Goden-Gun/chat-bindings/pkg/push"
)

// Options configures New. Zero Transport and Push mean an owned in-process
// transport and no pushes.
type Options struct {
	Chat config.ChatConfig
	Auth auth.Config
	// AuthRequired rejects a chat config without a valid AuthKey.
	AuthRequired bool
	Revocations  auth.RevocationList
	Transport    pubsub.Transport
	Push         push.Gateway
	Now          func() time.Time
}

type message struct {
	data    engine.MessageData
	expires time.Time
}

// Engine implements engine.Engine in memory.
type Engine struct {
	cfg           config.ChatConfig
	transport     pubsub.Transport
	ownsTransport bool
	push          push.Gateway
	claims        *auth.AccessClaims
	now           func() time.Time
	log           *logrus.Entry
	d             *dispatcher
	limiter       *publishLimiter

	mu           sync.Mutex
	closed       bool
	userID       string
	users        map[string]*engine.UserData
	channels     map[string]*engine.ChannelData
	members      map[string]map[string]*engine.MembershipData
	history      map[string][]*message
	restrictions map[string]map[string]engine.Restriction
	muted        []string
	presence     map[string]map[string]int
	typingSent   map[string]time.Time
	clock        timetokens

	handlesMu sync.Mutex
	handles   map[association.Handle]struct{}

	pushes       sync.WaitGroup
	stopActivity chan struct{}
	closeOnce    sync.Once
}

var _ engine.Engine = (*Engine)(nil)

// New starts an engine for opts.Chat.UserID. The auth key is verified here
// when present or required.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Chat
	cfg.ApplyDefaults()
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", engine.ErrInvalidArgument)
	}

	e := &Engine{
		cfg:          cfg,
		transport:    opts.Transport,
		push:         opts.Push,
		now:          opts.Now,
		limiter:      newPublishLimiter(cfg.RateLimitPerChannel, cfg.RateLimitFactor),
		userID:       cfg.UserID,
		users:        make(map[string]*engine.UserData),
		channels:     make(map[string]*engine.ChannelData),
		members:      make(map[string]map[string]*engine.MembershipData),
		history:      make(map[string][]*message),
		restrictions: make(map[string]map[string]engine.Restriction),
		presence:     make(map[string]map[string]int),
		typingSent:   make(map[string]time.Time),
		handles:      make(map[association.Handle]struct{}),
	}
	e.log = logrus.NewEntry(log.Derive(log.ChatLevel(cfg.LogLevel))).WithFields(logrus.Fields{
		"component": "engine",
		"user_id":   cfg.UserID,
	})
	if e.now == nil {
		e.now = time.Now
	}
	if cfg.AuthKey != "" || opts.AuthRequired {
		claims, err := verifyAuthKey(ctx, cfg, opts)
		if err != nil {
			return nil, err
		}
		e.claims = claims
	}
	if e.transport == nil {
		e.transport = pubsub.NewLocal()
		e.ownsTransport = true
	}
	if e.push == nil {
		e.push = push.Nop{}
	}

	now := e.now()
	e.users[cfg.UserID] = &engine.UserData{ID: cfg.UserID, Name: cfg.UserID, Updated: now}
	e.d = newDispatcher()

	if cfg.StoreUserActivityTimestamps {
		e.touch()
		e.stopActivity = make(chan struct{})
		go e.activityLoop(cfg.StoreUserActivityInterval.Duration())
	}
	e.log.Debug("engine started")
	return e, nil
}

func verifyAuthKey(ctx context.Context, cfg config.ChatConfig, opts Options) (*auth.AccessClaims, error) {
	if cfg.AuthKey == "" {
		return nil, fmt.Errorf("%w: auth key is required", engine.ErrUnauthorized)
	}
	claims, err := auth.Verify(ctx, cfg.AuthKey, opts.Auth, opts.Revocations)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrUnauthorized, err)
	}
	if claims.UserID != cfg.UserID {
		return nil, fmt.Errorf("%w: auth key issued for %q", engine.ErrUnauthorized, claims.UserID)
	}
	return claims, nil
}

// Config returns the effective chat configuration.
func (e *Engine) Config() config.ChatConfig {
	return e.cfg
}

// txn collects the side effects of one operation. They are flushed after the
// state lock is released.
type txn struct {
	frames []envelope.Envelope
	pushes []push.Notification
}

func (tx *txn) publish(e *Engine, typ, channel string, payload any) {
	env, err := envelope.New(typ, channel, e.userID, payload)
	if err != nil {
		e.log.WithError(err).WithField("type", typ).Error("encode frame failed")
		return
	}
	tx.frames = append(tx.frames, env)
}

// publishUser queues a user update frame on the user's own channel.
func (tx *txn) publishUser(e *Engine, u *engine.UserData) {
	tx.publish(e, envelope.TypeUserUpdate, userChannel(u.ID), cloneUser(*u))
}

func (tx *txn) publishChannel(e *Engine, c *engine.ChannelData) {
	tx.publish(e, envelope.TypeChannelUpdate, c.ID, cloneChannel(*c))
}

// run executes fn under the state lock and then flushes its side effects.
func run[T any](e *Engine, fn func(tx *txn) (T, error)) bridge.Result[T] {
	tx := &txn{}
	var r bridge.Result[T]
	e.mu.Lock()
	if e.closed {
		r.Err = engine.ErrClosed
	} else {
		r.Value, r.Err = fn(tx)
	}
	e.mu.Unlock()
	if r.Err == nil {
		e.flush(tx)
	}
	return r
}

// call returns a future that runs fn on the dispatcher when consumed.
// Results leave the dispatcher untyped, the way a foreign engine hands them
// over, and are narrowed back to T by bridge.Typed.
func call[T any](e *Engine, fn func(tx *txn) (T, error)) bridge.Future[T] {
	return bridge.Typed[T](dispatch(e, func(tx *txn) (any, error) { return fn(tx) }))
}

func dispatch(e *Engine, fn func(tx *txn) (any, error)) bridge.Future[any] {
	return bridge.FutureFunc[any](func(c bridge.Consumer[any]) {
		e.enqueue(func() { c(run(e, fn)) }, func() { c(bridge.Result[any]{Err: engine.ErrClosed}) })
	})
}

func (e *Engine) enqueue(job, rejected func()) {
	if !e.d.submit(job) {
		rejected()
	}
}

func (e *Engine) flush(tx *txn) {
	ctx := context.Background()
	for _, env := range tx.frames {
		if err := e.transport.Publish(ctx, env); err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{"channel": env.Channel, "type": env.Type}).Warn("publish frame failed")
		}
	}
	if len(tx.pushes) == 0 {
		return
	}
	e.pushes.Add(1)
	go func(ns []push.Notification) {
		defer e.pushes.Done()
		for _, n := range ns {
			if err := e.push.Deliver(ctx, n); err != nil {
				e.log.WithError(err).WithField("channel", n.ChannelID).Warn("push delivery failed")
			}
		}
	}(tx.pushes)
}

// issue hands out a fresh handle for an object leaving the engine.
func (e *Engine) issue() association.Handle {
	h := association.NewHandle()
	e.handlesMu.Lock()
	e.handles[h] = struct{}{}
	e.handlesMu.Unlock()
	return h
}

func (e *Engine) known(h association.Handle) bool {
	e.handlesMu.Lock()
	defer e.handlesMu.Unlock()
	_, ok := e.handles[h]
	return ok
}

// Release forgets h. Listeners can no longer be registered against it.
func (e *Engine) Release(h association.Handle) {
	e.handlesMu.Lock()
	delete(e.handles, h)
	e.handlesMu.Unlock()
}

// Outstanding counts handles not yet released.
func (e *Engine) Outstanding() int {
	e.handlesMu.Lock()
	defer e.handlesMu.Unlock()
	return len(e.handles)
}

func (e *Engine) CurrentUser() engine.UserData {
	e.mu.Lock()
	u := cloneUser(*e.users[e.userID])
	e.mu.Unlock()
	u.Handle = e.issue()
	return u
}

func (e *Engine) touch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if u := e.users[e.userID]; u != nil {
		u.LastActive = e.now()
	}
}

func (e *Engine) activityLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopActivity:
			return
		case <-ticker.C:
			e.d.submit(e.touch)
		}
	}
}

// canAccess checks the auth key grants. Callers hold e.mu.
func (e *Engine) canAccess(channelID string) error {
	if e.claims != nil && !e.claims.CanAccess(channelID) {
		return fmt.Errorf("%w: channel %q not granted", engine.ErrUnauthorized, channelID)
	}
	return nil
}

// Close stops the engine after delivering queued results. It must not be
// called from a callback running on the engine goroutine.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() { err = e.shutdown() })
	return err
}

func (e *Engine) shutdown() error {
	if e.stopActivity != nil {
		close(e.stopActivity)
	}
	e.d.close()
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.pushes.Wait()

	var errs []error
	if e.ownsTransport {
		if err := e.transport.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.log.Debug("engine closed")
	return errors.Join(errs...)
}
