package notify

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// LogSink writes one log line per event
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Deliver(_ context.Context, evt Event) error {
	log.Info().
		Str("event_id", evt.ID).
		Str("kind", string(evt.Kind)).
		Str("recipients", strings.Join(evt.Recipients, ",")).
		Str("session_id", evt.SessionID).
		Str("request_id", evt.RequestID).
		Msg("Notification")
	return nil
}
