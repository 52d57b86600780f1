// Package notifier turns GitHub discussion events into Slack messages.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dynoinc/discussbridge/internal/payload"
)

//go:generate go tool mockgen -source=notifier.go -destination=mocks/mock_sink.go -package=mocks

// Sink delivers a text message to a team/channel pair.
type Sink interface {
	Send(ctx context.Context, team, channel, text string) error
}

type Destination struct {
	Team    string
	Channel string
}

type Outcome string

const (
	OutcomeSent          Outcome = "sent"
	OutcomeNotActionable Outcome = "not_actionable"
	OutcomeNotDiscussion Outcome = "not_discussion"
	OutcomeUnrecognized  Outcome = "unrecognized"
	OutcomeMalformed     Outcome = "malformed"
	OutcomeSendFailed    Outcome = "send_failed"
)

type Handler struct {
	sink Sink
	dest Destination
}

func New(sink Sink, dest Destination) *Handler {
	return &Handler{sink: sink, dest: dest}
}

// Handle processes one raw event. Events that are not worth a notification
// return a nil error; a discussion missing a required field returns an error
// wrapping payload.ErrRequiredField and nothing is sent.
func (h *Handler) Handle(ctx context.Context, event []byte) (Outcome, error) {
	outcome, err := h.handle(ctx, event)
	eventsTotal.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (h *Handler) handle(ctx context.Context, raw []byte) (Outcome, error) {
	event, ok, err := payload.Decode(raw)
	if err != nil || !ok {
		slog.InfoContext(ctx, "uncovered payload", "error", err)
		return OutcomeUnrecognized, nil
	}

	if action, ok := Classify(event); !ok {
		slog.InfoContext(ctx, "skipping event", "action", action, "want", createdAction)
		return OutcomeNotActionable, nil
	}

	d, err := Extract(event)
	if errors.Is(err, ErrNotDiscussion) {
		slog.InfoContext(ctx, "not discussion payload")
		return OutcomeNotDiscussion, nil
	}
	if err != nil {
		return OutcomeMalformed, fmt.Errorf("extracting discussion: %w", err)
	}

	if err := h.sink.Send(ctx, h.dest.Team, h.dest.Channel, Format(d)); err != nil {
		return OutcomeSendFailed, fmt.Errorf("sending discussion %s: %w", d.URL, err)
	}

	slog.InfoContext(ctx, "discussion notification sent", "url", d.URL, "author", d.Author, "channel", h.dest.Channel)
	return OutcomeSent, nil
}
