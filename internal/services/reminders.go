package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ReminderJob sends session reminders for the date DaysAhead days out.
// A date is reminded at most once per process, so an Interval shorter than a
// day does not repeat notifications. Run it on a single replica.
type ReminderJob struct {
	sessions  *SessionService
	daysAhead int

	mu       sync.Mutex
	lastDate string
}

func NewReminderJob(sessions *SessionService, daysAhead int) *ReminderJob {
	return &ReminderJob{sessions: sessions, daysAhead: daysAhead}
}

// RunOnce reminds the target date for now unless it was already reminded.
// It reports whether reminders were sent.
func (j *ReminderJob) RunOnce(ctx context.Context, now time.Time) (bool, error) {
	date := now.AddDate(0, 0, j.daysAhead).Format(dateLayout)

	j.mu.Lock()
	defer j.mu.Unlock()
	if date == j.lastDate {
		return false, nil
	}
	if _, err := j.sessions.SendReminders(ctx, date); err != nil {
		return false, err
	}
	j.lastDate = date
	return true, nil
}

// Run fires immediately and then on every interval until ctx is done
func (j *ReminderJob) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := j.RunOnce(ctx, time.Now()); err != nil {
			log.Error().Err(err).Int("days_ahead", j.daysAhead).Msg("Failed to send session reminders")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
