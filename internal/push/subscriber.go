// Package push maintains the live notification channel that delivers new posts.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"feedsync/internal/model"
)

// EventNewPost is the event name carrying a freshly created post.
const EventNewPost = "new_post"

const (
	readBufferSize   = 64 * 1024
	writeBufferSize  = 1024
	handshakeTimeout = 20 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 25 * time.Second

	// A single outage gets this many quick reconnect attempts before falling
	// back to idleRetry between attempts.
	maxQuickAttempts = 5
	initialRetry     = 1 * time.Second
	maxRetry         = 5 * time.Second
	idleRetry        = 30 * time.Second
)

// Status is a lifecycle notification of the push channel.
type Status string

// Lifecycle notifications.
const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusConnectError Status = "connect_error"
)

// Handler receives posts delivered by the push channel.
type Handler func(post model.Post)

// StatusHandler receives lifecycle notifications. err is nil for StatusConnected.
type StatusHandler func(status Status, err error)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type binaryEnvelope struct {
	Event string             `msgpack:"event"`
	Data  msgpack.RawMessage `msgpack:"data"`
}

// Subscriber connects to the push endpoint and dispatches new_post events.
type Subscriber struct {
	url    string
	dialer websocket.Dialer
	header http.Header
	log    *slog.Logger

	mu             sync.Mutex
	handlers       []Handler
	statusHandlers []StatusHandler

	initialRetry time.Duration
	maxRetry     time.Duration
	idleRetry    time.Duration
}

// New creates a Subscriber for the websocket endpoint at url.
func New(url string, log *slog.Logger) *Subscriber {
	header := http.Header{}
	header.Set("User-Agent", "feedsync/1.0")
	return &Subscriber{
		url: url,
		dialer: websocket.Dialer{
			ReadBufferSize:   readBufferSize,
			WriteBufferSize:  writeBufferSize,
			HandshakeTimeout: handshakeTimeout,
			NetDialContext: (&net.Dialer{
				Timeout:   handshakeTimeout,
				KeepAlive: 45 * time.Second,
			}).DialContext,
		},
		header:       header,
		log:          log,
		initialRetry: initialRetry,
		maxRetry:     maxRetry,
		idleRetry:    idleRetry,
	}
}

// SetRetryIntervals overrides the reconnect delays (useful for testing).
func (s *Subscriber) SetRetryIntervals(initial, maxQuick, idle time.Duration) {
	s.initialRetry = initial
	s.maxRetry = maxQuick
	s.idleRetry = idle
}

// Subscribe registers a handler for delivered posts.
func (s *Subscriber) Subscribe(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// OnStatus registers a handler for lifecycle notifications.
func (s *Subscriber) OnStatus(h StatusHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusHandlers = append(s.statusHandlers, h)
}

// Run keeps the channel connected until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	b := s.newBackOff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.notify(StatusConnectError, err)
			wait := s.nextRetry(b)
			s.log.Warn("push connect failed", "url", s.url, "retry_in", wait, "error", err)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		b.Reset()
		s.log.Info("push connected", "url", s.url)
		s.notify(StatusConnected, nil)

		err = s.read(ctx, conn)
		if ctx.Err() != nil {
			s.notify(StatusDisconnected, nil)
			return
		}
		s.log.Warn("push disconnected", "url", s.url, "error", err)
		s.notify(StatusDisconnected, err)
	}
}

func (s *Subscriber) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(s.initialRetry),
		backoff.WithMaxInterval(s.maxRetry),
		backoff.WithMultiplier(1.5),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithMaxRetries(eb, maxQuickAttempts)
}

// nextRetry returns the delay before the next connect attempt. Once the quick
// attempts are used up it waits idleRetry and starts a new quick series.
func (s *Subscriber) nextRetry(b backoff.BackOff) time.Duration {
	wait := b.NextBackOff()
	if wait == backoff.Stop {
		b.Reset()
		return s.idleRetry
	}
	return wait
}

func (s *Subscriber) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", s.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}
	return conn, nil
}

func (s *Subscriber) read(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					s.log.Debug("push ping failed", "error", err)
					_ = conn.Close()
					return
				}
			}
		}
	}()

	defer func() { _ = conn.Close() }()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		post, ok, err := Decode(msgType, data)
		if err != nil {
			s.log.Warn("decode push frame", "error", err)
			continue
		}
		if !ok {
			continue
		}
		s.dispatch(post)
	}
}

// Decode parses a push frame. ok is false for events other than new_post.
func Decode(msgType int, data []byte) (post model.Post, ok bool, err error) {
	switch msgType {
	case websocket.TextMessage:
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return post, false, fmt.Errorf("decode json envelope: %w", err)
		}
		if env.Event != EventNewPost {
			return post, false, nil
		}
		if err := json.Unmarshal(env.Data, &post); err != nil {
			return post, false, fmt.Errorf("decode json post: %w", err)
		}
	case websocket.BinaryMessage:
		var env binaryEnvelope
		if err := msgpack.Unmarshal(data, &env); err != nil {
			return post, false, fmt.Errorf("decode msgpack envelope: %w", err)
		}
		if env.Event != EventNewPost {
			return post, false, nil
		}
		if err := msgpack.Unmarshal(env.Data, &post); err != nil {
			return post, false, fmt.Errorf("decode msgpack post: %w", err)
		}
	default:
		return post, false, nil
	}
	if post.ID == "" {
		return post, false, errors.New("post without id")
	}
	return post, true, nil
}

func (s *Subscriber) dispatch(post model.Post) {
	s.mu.Lock()
	handlers := append([]Handler(nil), s.handlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(post)
	}
}

func (s *Subscriber) notify(status Status, err error) {
	s.mu.Lock()
	handlers := append([]StatusHandler(nil), s.statusHandlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(status, err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
