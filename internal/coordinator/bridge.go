package coordinator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avoronov/demorelay/internal/common"
	"github.com/avoronov/demorelay/internal/logging"
	"github.com/cenkalti/backoff/v5"
)

// frame is one newline-delimited JSON message on the bridge connection.
//
// Inbound: {"type":"ready"} once the bot process has an authenticated GC
// session, then {"type":"match",...} per resolution answer.
// Outbound: {"type":"resolve","share_code":...}.
type frame struct {
	Type        string `json:"type"`
	ShareCode   string `json:"share_code,omitempty"`
	MatchID     string `json:"match_id,omitempty"`
	ArtifactURL string `json:"artifact_url,omitempty"`
}

const (
	frameReady   = "ready"
	frameMatch   = "match"
	frameResolve = "resolve"
)

// maxFrameSize bounds a single bridge frame.
const maxFrameSize = 64 * 1024

// BridgeSession implements Session over a line-JSON TCP connection to the
// companion bot process that owns the actual game-coordinator login.
type BridgeSession struct {
	addr   string
	logger logging.Logger

	dial func(ctx context.Context, addr string) (net.Conn, error)

	state  atomic.Int32
	events chan MatchEvent

	mu   sync.Mutex // guards conn writes
	conn net.Conn
}

// NewBridgeSession constructs a session that dials addr. bufSize bounds the
// event channel; events arriving while it is full are dropped with a log,
// which is safe because the match stays QUEUED and is re-requested later.
func NewBridgeSession(addr string, bufSize int, logger logging.Logger) *BridgeSession {
	return &BridgeSession{
		addr:   addr,
		logger: logger.With("module", "coordinator"),
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
		events: make(chan MatchEvent, bufSize),
	}
}

func (s *BridgeSession) State() State {
	return State(s.state.Load())
}

func (s *BridgeSession) Ready() bool {
	return s.State() == StateReady
}

func (s *BridgeSession) Events() <-chan MatchEvent {
	return s.events
}

// Run dials the bridge and consumes frames until ctx is cancelled,
// reconnecting with exponential backoff after any disconnect.
func (s *BridgeSession) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.state.Store(int32(StateConnecting))
		conn, err := s.dial(ctx, s.addr)
		if err != nil {
			s.state.Store(int32(StateDisconnected))
			wait := b.NextBackOff()
			s.logger.Warn(ctx, "bridge dial failed", "addr", s.addr, "retry_in", wait, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		s.serve(ctx, conn, b)

		s.state.Store(int32(StateDisconnected))
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := b.NextBackOff()
		s.logger.Warn(ctx, "bridge connection lost", "addr", s.addr, "retry_in", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// serve reads frames off one connection until it breaks or ctx ends.
func (s *BridgeSession) serve(ctx context.Context, conn net.Conn, b *backoff.ExponentialBackOff) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameSize)

	for scanner.Scan() {
		var f frame
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			s.logger.Warn(ctx, "bad bridge frame", "error", err)
			continue
		}

		switch f.Type {
		case frameReady:
			s.state.Store(int32(StateReady))
			b.Reset()
			s.logger.Info(ctx, "coordinator session ready")
		case frameMatch:
			ev := MatchEvent{ShareCode: f.ShareCode, MatchID: f.MatchID, ArtifactURL: f.ArtifactURL}
			select {
			case s.events <- ev:
			default:
				s.logger.Warn(ctx, "event buffer full, dropping match event",
					"share_code", ev.ShareCode, "match_id", ev.MatchID)
			}
		default:
			s.logger.Warn(ctx, "unknown bridge frame type", "type", f.Type)
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.logger.Warn(ctx, "bridge read error", "error", err)
	}
}

// RequestResolution writes a resolve frame. The request is fire-and-forget:
// the answer, if any, arrives later on Events.
func (s *BridgeSession) RequestResolution(_ context.Context, shareCode string) error {
	if !s.Ready() {
		return common.ErrSessionNotReady
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return common.ErrSessionNotReady
	}

	payload, err := json.Marshal(frame{Type: frameResolve, ShareCode: shareCode})
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	if _, err := s.conn.Write(payload); err != nil {
		// The read loop will observe the broken connection and reconnect.
		_ = s.conn.Close()
		return fmt.Errorf("bridge write: %w", err)
	}
	return nil
}
