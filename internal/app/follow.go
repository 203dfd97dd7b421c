package app

import (
	"context"
	"time"

	"dealplan/internal/domain"
)

const (
	followBatch    = 100
	followInterval = 2 * time.Second
)

// Follow polls for events newer than cursor and hands them to fn in id
// order. It returns when ctx is done or fn fails. An empty planID follows
// every plan.
func (s Service) Follow(ctx context.Context, planID string, cursor int64, interval time.Duration, fn func(domain.Event) error) error {
	if interval <= 0 {
		interval = followInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for {
			events, err := s.Repo.EventsAfter(ctx, followBatch, cursor, planID)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			for _, evt := range events {
				if err := fn(evt); err != nil {
					return err
				}
				cursor = evt.ID
			}
			if len(events) < followBatch {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
