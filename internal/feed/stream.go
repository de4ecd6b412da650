// Package feed runs the live price ingestion loop: one goroutine owning the
// WebSocket connection, fed by a command channel and the inbound message
// stream, pushing sell-side ticks into the market registry and evaluating
// every updated market for arbitrage.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dgaray/polyarb/internal/arbitrage"
	"github.com/dgaray/polyarb/internal/domain"
	"github.com/dgaray/polyarb/internal/platform/polymarket"
	"github.com/dgaray/polyarb/internal/registry"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// commandBuffer sizes the command channel so the refresher never blocks
	// on a slow session.
	commandBuffer = 16

	// inboundBuffer sizes the channel between the read pump and the loop.
	inboundBuffer = 256
)

// State is the connection lifecycle phase of the stream loop.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

// String implements fmt.Stringer for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Stats holds the loop's monotonic counters. Safe for concurrent reads.
type Stats struct {
	TicksApplied  atomic.Uint64
	TicksDropped  atomic.Uint64
	Reconnects    atomic.Uint64
	Opportunities atomic.Uint64
}

// OpportunityHandler receives every stream-sourced opportunity the loop
// detects. Handlers must not block; slow work belongs on their own goroutine.
type OpportunityHandler func(ctx context.Context, opp domain.Opportunity)

// Stream is the ingestion loop. The registry it feeds outlives any single
// connection, so a reconnect re-subscribes from the registry and resumes
// without losing tracked markets.
type Stream struct {
	wsURL          string
	reg            *registry.Registry
	detector       *arbitrage.Detector
	onOpportunity  OpportunityHandler
	reconnectDelay time.Duration
	logger         *slog.Logger

	commands chan Command
	state    atomic.Int32
	stats    Stats
}

// NewStream creates a stream loop. onOpportunity may be nil when nothing
// downstream consumes live detections.
func NewStream(wsURL string, reg *registry.Registry, det *arbitrage.Detector, reconnectDelay time.Duration, onOpportunity OpportunityHandler, logger *slog.Logger) *Stream {
	return &Stream{
		wsURL:          wsURL,
		reg:            reg,
		detector:       det,
		onOpportunity:  onOpportunity,
		reconnectDelay: reconnectDelay,
		logger:         logger.With(slog.String("component", "feed")),
		commands:       make(chan Command, commandBuffer),
	}
}

// Enqueue delivers a command to the loop. It never blocks: when the buffer is
// full the command is dropped. A dropped subscription is healed by the next
// command or ping tick, both of which reconcile against the registry.
func (s *Stream) Enqueue(cmd Command) {
	select {
	case s.commands <- cmd:
	default:
		s.logger.Warn("command buffer full, dropping command")
	}
}

// State returns the current connection phase.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Stats exposes the loop's counters.
func (s *Stream) Stats() *Stats {
	return &s.stats
}

// Run drives the connect/subscribe/read cycle until ctx is cancelled. Every
// failure path waits a fixed delay and retries; the loop never gives up on
// its own.
func (s *Stream) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.state.Store(int32(StateConnecting))
		conn, err := s.dial(ctx)
		if err != nil {
			s.logger.Error("connect failed", slog.Any("error", err))
			s.state.Store(int32(StateDisconnected))
			if !s.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}

		err = s.session(ctx, conn)
		conn.Close()
		s.state.Store(int32(StateDisconnected))

		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.stats.Reconnects.Add(1)
		s.logger.Warn("session ended, reconnecting",
			slog.Any("error", err),
			slog.Duration("delay", s.reconnectDelay))
		if !s.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: connect: %w", err)
	}
	return conn, nil
}

// session runs one connected lifetime: subscribe everything the registry
// tracks, then multiplex commands and inbound frames until the connection or
// the context dies.
func (s *Stream) session(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// subscribed tracks what this connection has been told about, so dropped
	// or repeated commands never produce duplicate frames.
	subscribed := make(map[string]struct{})
	if err := s.subscribe(conn, subscribed, s.reg.TokenIDs()); err != nil {
		return err
	}
	s.state.Store(int32(StateSubscribed))
	s.logger.Info("subscribed", slog.Int("tokens", len(subscribed)))

	// Read pump: the loop goroutine owns all writes, the pump owns all
	// reads. The pump closing inbound is the only disconnect signal, and
	// done releases a pump stuck on a full inbound buffer when the session
	// exits first.
	inbound := make(chan []byte, inboundBuffer)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(inbound)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- msg:
			case <-done:
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()

		case cmd := <-s.commands:
			switch c := cmd.(type) {
			case SubscribeCommand:
				// Sweep in any registry tokens a dropped command never
				// delivered alongside the requested ones.
				tokens := append(c.TokenIDs, s.missingTokens(subscribed)...)
				if err := s.subscribe(conn, subscribed, tokens); err != nil {
					return err
				}
			default:
				s.logger.Warn("unknown command type", slog.String("type", fmt.Sprintf("%T", cmd)))
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("feed: ping: %w", err)
			}
			if err := s.subscribe(conn, subscribed, s.missingTokens(subscribed)); err != nil {
				return err
			}

		case msg, ok := <-inbound:
			if !ok {
				err := <-readErr
				return fmt.Errorf("feed: %w: %v", domain.ErrWSDisconnect, err)
			}
			s.handleMessage(ctx, msg)
		}
	}
}

// subscribe sends one price-channel subscription frame per token not already
// subscribed on this connection, recording each as it goes out.
func (s *Stream) subscribe(conn *websocket.Conn, subscribed map[string]struct{}, tokenIDs []string) error {
	for _, id := range tokenIDs {
		if _, ok := subscribed[id]; ok {
			continue
		}
		frame, err := json.Marshal(polymarket.NewWSSubscribe(id))
		if err != nil {
			return fmt.Errorf("feed: marshal subscribe: %w", err)
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("feed: subscribe %s: %w", id, err)
		}
		subscribed[id] = struct{}{}
	}
	return nil
}

// missingTokens lists registry tokens the current connection has not yet
// subscribed to.
func (s *Stream) missingTokens(subscribed map[string]struct{}) []string {
	var missing []string
	for _, id := range s.reg.TokenIDs() {
		if _, ok := subscribed[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// handleMessage applies one inbound frame. Anything that is not a
// well-formed sell-side price update is dropped without logging; the feed
// carries plenty of frame types this engine has no use for.
func (s *Stream) handleMessage(ctx context.Context, raw []byte) {
	var msg polymarket.WSPrice
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.stats.TicksDropped.Add(1)
		return
	}
	if msg.Type != "price" || msg.Side != "sell" || msg.TokenID == "" {
		s.stats.TicksDropped.Add(1)
		return
	}

	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 {
		s.stats.TicksDropped.Add(1)
		return
	}

	quote, ok := s.reg.ApplyTick(msg.TokenID, price)
	if !ok {
		// Token not in the registry; likely a late frame for a market
		// discovered by an earlier run.
		s.stats.TicksDropped.Add(1)
		return
	}
	s.stats.TicksApplied.Add(1)

	opp, hit := s.detector.Evaluate(quote, domain.SourceStream)
	if !hit {
		return
	}
	s.stats.Opportunities.Add(1)

	s.logger.Info("arbitrage detected",
		slog.String("market_id", opp.MarketID),
		slog.String("question", opp.Question),
		slog.Float64("yes", opp.YesPrice),
		slog.Float64("no", opp.NoPrice),
		slog.Float64("profit_pct", opp.ProfitPct))

	if s.onOpportunity != nil {
		s.onOpportunity(ctx, opp)
	}
}

// sleep waits the fixed reconnect delay, returning false if the context was
// cancelled first.
func (s *Stream) sleep(ctx context.Context) bool {
	t := time.NewTimer(s.reconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
