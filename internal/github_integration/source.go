package github_integration

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/go-github/v53/github"

	"github.com/dynoinc/discussbridge/internal/payload"
)

// Event is a single webhook delivery as received from GitHub.
type Event struct {
	Type       string
	DeliveryID string
	Payload    []byte
}

type Callback interface {
	Handle(ctx context.Context, event Event) error
}

type CallbackFunc func(ctx context.Context, event Event) error

func (f CallbackFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Source receives webhook deliveries for one repository and hands them to a
// single callback, one at a time.
type Source struct {
	c     Config
	queue chan Event
}

func NewSource(ctx context.Context, c Config, client *github.Client) (*Source, error) {
	if c.VerifyRepo {
		if _, _, err := client.Repositories.Get(ctx, c.Owner, c.Repo); err != nil {
			return nil, fmt.Errorf("getting repository %s/%s: %w", c.Owner, c.Repo, err)
		}
	}

	if c.Login != "" && c.authenticated() && !c.hasApp() {
		user, _, err := client.Users.Get(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("getting authenticated user: %w", err)
		}
		if !strings.EqualFold(user.GetLogin(), c.Login) {
			slog.WarnContext(ctx, "GitHub token does not belong to configured login", "login", c.Login, "token_login", user.GetLogin())
		}
	}

	queueSize := c.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	return &Source{
		c:     c,
		queue: make(chan Event, queueSize),
	}, nil
}

func (s *Source) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := github.ValidatePayload(r, []byte(s.c.WebhookSecret))
	if err != nil {
		deliveriesTotal.WithLabelValues("invalid").Inc()
		slog.WarnContext(r.Context(), "rejecting webhook delivery", "error", err)
		http.Error(w, "invalid payload", http.StatusUnauthorized)
		return
	}

	event := Event{
		Type:       github.WebHookType(r),
		DeliveryID: github.DeliveryID(r),
		Payload:    body,
	}

	if event.Type == "ping" {
		deliveriesTotal.WithLabelValues("ping").Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !slices.Contains(s.c.Events, event.Type) {
		deliveriesTotal.WithLabelValues("ignored_event").Inc()
		slog.DebugContext(r.Context(), "ignoring event type", "event", event.Type, "delivery", event.DeliveryID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if name, ok := repositoryName(body); ok && !strings.EqualFold(name, s.c.Owner+"/"+s.c.Repo) {
		deliveriesTotal.WithLabelValues("ignored_repo").Inc()
		slog.InfoContext(r.Context(), "ignoring event for other repository", "repository", name, "delivery", event.DeliveryID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	select {
	case s.queue <- event:
		deliveriesTotal.WithLabelValues("accepted").Inc()
		w.WriteHeader(http.StatusAccepted)
	default:
		deliveriesTotal.WithLabelValues("queue_full").Inc()
		slog.WarnContext(r.Context(), "event queue full, dropping delivery", "delivery", event.DeliveryID)
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}
}

func repositoryName(body []byte) (string, bool) {
	obj, ok, err := payload.Decode(body)
	if err != nil || !ok {
		return "", false
	}

	repo, ok := obj.Object("repository").Get()
	if !ok {
		return "", false
	}

	return repo.String("full_name").Get()
}

// Listen delivers queued events to cb until ctx is done. Errors and panics
// from cb are reported and do not stop the subscription.
func (s *Source) Listen(ctx context.Context, cb Callback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-s.queue:
			s.dispatch(ctx, cb, event)
		}
	}
}

func (s *Source) dispatch(ctx context.Context, cb Callback, event Event) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("github_event", event.Type)
		scope.SetTag("github_delivery", event.DeliveryID)
		scope.AddBreadcrumb(&sentry.Breadcrumb{
			Category: "webhook",
			Message:  event.Type,
			Level:    sentry.LevelInfo,
		}, 100)

		defer func() {
			if r := recover(); r != nil {
				sentry.CurrentHub().RecoverWithContext(ctx, r)
				slog.ErrorContext(ctx, "panic handling event", "event", event.Type, "delivery", event.DeliveryID, "panic", r)
			}
		}()

		if err := cb.Handle(ctx, event); err != nil {
			sentry.CaptureException(err)
			slog.ErrorContext(ctx, "error handling event", "event", event.Type, "delivery", event.DeliveryID, "error", err)
		}
	})
}
