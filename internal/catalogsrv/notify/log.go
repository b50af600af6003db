package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

type logSender struct{}

func (logSender) send(ctx context.Context, n Notification) error {
	ev := log.Ctx(ctx).Info().
		Str("kind", n.Kind).
		Str("tenant_id", n.TenantID.CacheLabel()).
		Str("actor", n.Actor)
	if n.Service != nil {
		ev = ev.Str("service_id", n.Service.ID.String()).Str("slug", n.Service.Slug)
	}
	if len(n.Changes) > 0 {
		ev = ev.Strs("changes", n.Changes)
	}
	if n.Action != "" {
		ev = ev.Str("action", n.Action).Int("count", n.Count)
	}
	ev.Msg("catalog notification")
	return nil
}

// NewLogNotifier returns a Notifier that writes each notification to the
// context logger.
func NewLogNotifier() Notifier {
	return dispatcher{logSender{}}
}
