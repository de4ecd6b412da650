// Package notify fans alerts out to external channels (Telegram, Discord).
// Delivery is filtered by event kind so operators only hear about what they
// subscribed to, and one failing channel never blocks the others.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgaray/polyarb/internal/domain"
)

// Event kinds the engine emits.
const (
	EventArbDetected    = "arb_detected"
	EventOrderSubmitted = "order_submitted"
	EventError          = "error"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the sender in logs (e.g. "telegram").
	Name() string
}

// Notifier dispatches events to every configured Sender. Events whose kind is
// not in the allowed set are dropped; an empty set allows everything.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// New creates a Notifier delivering to the given senders, filtered to the
// listed event kinds.
func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends one event through the filter to every sender.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 && !n.allowed[event] {
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// Opportunity formats and sends an arbitrage detection alert.
func (n *Notifier) Opportunity(ctx context.Context, opp domain.Opportunity) error {
	msg := fmt.Sprintf("%s\nYes %.3f + No %.3f = %.3f\nProfit %.2f%% (%s)",
		opp.Question, opp.YesPrice, opp.NoPrice, opp.CombinedCost, opp.ProfitPct, opp.Source)
	return n.Notify(ctx, EventArbDetected, "Arbitrage detected", msg)
}

// dispatch delivers to all senders, collecting individual failures into one
// combined error so a dead channel cannot silence the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.Any("error", err))
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
