package engine

import (
	"context"
	"time"

	"rehearsal-scheduler-api/internal/model"
	"rehearsal-scheduler-api/internal/store"
)

// Sweep transitions scheduled rehearsals whose endTime has passed into
// completed. It re-reads the status inside each write transaction and skips
// rows that went terminal in the meantime, so losing a race to an explicit
// cancel is harmless. Returns how many rehearsals it completed.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	now := e.now()
	var due []model.Rehearsal
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		due, err = tx.ListRehearsals(ctx, store.RehearsalFilter{
			Status:    model.StatusScheduled,
			EndBefore: now,
		})
		return err
	})
	if err != nil {
		return 0, wrap(err, "rehearsal")
	}

	completed := 0
	for _, r := range due {
		err := e.store.Update(ctx, func(tx store.Tx) error {
			cur, err := tx.Rehearsal(ctx, r.ID)
			if err != nil {
				return err
			}
			// terminal in the meantime, or rescheduled past now
			if cur.Status != model.StatusScheduled || cur.EndTime.After(now) {
				return nil
			}
			if err := transition(cur, model.StatusCompleted, now); err != nil {
				return err
			}
			if err := tx.UpdateRehearsal(ctx, cur); err != nil {
				return err
			}
			completed++
			return nil
		})
		if err != nil {
			e.log.Warn().Err(err).Str("rehearsal_id", r.ID).Msg("sweep: skipping")
			continue
		}
	}
	if completed > 0 {
		e.log.Info().Int("completed", completed).Msg("sweep finished")
	}
	return completed, nil
}

// RunSweeper runs Sweep on a fixed interval until ctx is done.
func (e *Engine) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := e.Sweep(ctx); err != nil {
				e.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}
