package searchlog

import (
	"context"
	"github.com/rs/zerolog/log"
	"github.com/skybi/impds-proxy/internal/task"
	"time"
)

// NewRetentionTask creates a repeating task that deletes all entries older than the given retention period
func NewRetentionTask(repo Repository, retention, interval time.Duration) *task.RepeatingTask {
	return task.NewRepeating(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := repo.DeleteOlderThan(ctx, time.Now().Add(-retention).Unix())
		if err != nil {
			log.Error().Err(err).Msg("could not delete expired search log entries")
		} else if n > 0 {
			log.Info().Int64("amount", n).Msg("deleted expired search log entries")
		}
	}, interval)
}
