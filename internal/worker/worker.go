// Package worker hosts the two settlement trigger sources: the daily sweep
// and the reactive campaign-change listener. Both feed the same evaluation
// routine; neither assumes the other is not running.
package worker

import (
	"context"
	"log"
	"time"

	"unionmade-backend/internal/models"
)

type Store interface {
	ListExpiredOpenCampaigns(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	ListExpiredCampaignsWithHeldOrders(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	WatchCampaignField(ctx context.Context, field string, handler func(campaignID string)) error
}

type Evaluator interface {
	EvaluateCampaign(ctx context.Context, c *models.Campaign) error
}

type Worker struct {
	Store  Store
	Engine Evaluator
	// SweepHour/SweepMinute schedule the daily sweep (UTC).
	SweepHour   int
	SweepMinute int
	// Interval, when set, replaces the daily schedule with a fixed tick.
	Interval time.Duration
}

func (w *Worker) Run(ctx context.Context) {
	go w.RunWatcher(ctx)

	if w.Interval > 0 {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			if err := w.SweepOnce(ctx); err != nil {
				log.Printf("sweep error: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}

	for {
		next := nextRun(time.Now().UTC(), w.SweepHour, w.SweepMinute)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := w.SweepOnce(ctx); err != nil {
			log.Printf("sweep error: %v", err)
		}
	}
}

// SweepOnce runs one full sweep pass: first-time evaluation of campaigns
// past their end time, then the straggler pass over expired campaigns that
// still hold settleable orders. Per-campaign failures are logged and the
// pass continues; a storage failure aborts the pass and the next sweep
// retries the same candidates.
func (w *Worker) SweepOnce(ctx context.Context) error {
	now := time.Now().UTC()

	open, err := w.Store.ListExpiredOpenCampaigns(ctx, now)
	if err != nil {
		return err
	}
	log.Printf("sweep pass open=%d", len(open))
	for _, c := range open {
		if err := w.Engine.EvaluateCampaign(ctx, c); err != nil {
			log.Printf("evaluate campaign %s failed: %v", c.ID, err)
		}
	}

	held, err := w.Store.ListExpiredCampaignsWithHeldOrders(ctx, now)
	if err != nil {
		return err
	}
	log.Printf("sweep pass stragglers=%d", len(held))
	for _, c := range held {
		if err := w.Engine.EvaluateCampaign(ctx, c); err != nil {
			log.Printf("straggler pass campaign %s failed: %v", c.ID, err)
		}
	}
	return nil
}

// RunWatcher keeps the campaign end-time subscription alive, reconnecting
// with a short pause after failures.
func (w *Worker) RunWatcher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := w.Store.WatchCampaignField(ctx, "end_time", func(id string) {
			w.onEndTimeChanged(ctx, id)
		})
		if ctx.Err() != nil {
			return
		}
		log.Printf("campaign watch failed: %v", err)
		time.Sleep(3 * time.Second)
	}
}

func (w *Worker) onEndTimeChanged(ctx context.Context, id string) {
	c, err := w.Store.GetCampaign(ctx, id)
	if err != nil {
		log.Printf("watch: load campaign %s failed: %v", id, err)
		return
	}
	if c.EndTime.After(time.Now().UTC()) {
		return
	}
	log.Printf("watch: campaign %s end time moved into the past, evaluating", id)
	if err := w.Engine.EvaluateCampaign(ctx, c); err != nil {
		log.Printf("watch: evaluate campaign %s failed: %v", id, err)
	}
}

func nextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
