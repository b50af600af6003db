package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/practiceops/servicecatalog/internal/common/httpclient"
)

// WebhookOptions configures a WebhookNotifier.
type WebhookOptions struct {
	URL         string
	QueueSize   int
	MaxAttempts uint
	Timeout     time.Duration // per attempt
	RetryDelay  time.Duration // first backoff delay
}

// WebhookNotifier POSTs notifications as JSON from a single worker
// goroutine. Notifications are queued; when the queue is full new ones
// are dropped with ErrQueueFull.
type WebhookNotifier struct {
	dispatcher
	w *webhookSender
}

type webhookSender struct {
	client *httpclient.HTTPClient
	opts   WebhookOptions
	queue  chan Notification
	logger zerolog.Logger

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewWebhookNotifier returns a notifier for opts.URL. Call Start before use
// and Stop on shutdown.
func NewWebhookNotifier(opts WebhookOptions) *WebhookNotifier {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	w := &webhookSender{
		client: httpclient.NewClient(httpclient.StaticConfig{ServerURL: opts.URL}, httpclient.ClientOptions{Timeout: opts.Timeout}),
		opts:   opts,
		queue:  make(chan Notification, opts.QueueSize),
		logger: log.Logger,
		done:   make(chan struct{}),
	}
	return &WebhookNotifier{dispatcher: dispatcher{w}, w: w}
}

func (w *webhookSender) send(ctx context.Context, n Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the delivery worker until Stop is called. Deliveries use ctx
// for logging only so queued items survive request cancellation.
func (n *WebhookNotifier) Start(ctx context.Context) {
	w := n.w
	w.logger = *log.Ctx(ctx)
	go func() {
		defer close(w.done)
		for item := range w.queue {
			w.deliver(item)
		}
	}()
}

func (w *webhookSender) deliver(n Notification) {
	err := retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), w.attemptTimeout())
			defer cancel()
			_, err := w.client.PostJSON(ctx, "", n, map[string]string{"X-Catalog-Event": n.Kind})
			return err
		},
		retry.Attempts(w.opts.MaxAttempts),
		retry.Delay(w.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var httpErr *httpclient.HTTPError
			if errors.As(err, &httpErr) {
				return httpErr.Retryable()
			}
			return true
		}),
	)
	if err != nil {
		w.logger.Warn().Err(err).Str("kind", n.Kind).Str("url", w.opts.URL).Msg("webhook delivery failed")
		return
	}
	w.logger.Debug().Str("kind", n.Kind).Msg("webhook delivered")
}

func (w *webhookSender) attemptTimeout() time.Duration {
	if w.opts.Timeout > 0 {
		return w.opts.Timeout
	}
	return 5 * time.Second
}

// Stop refuses new notifications and waits for queued ones to be
// delivered or for ctx to end.
func (n *WebhookNotifier) Stop(ctx context.Context) error {
	w := n.w
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
