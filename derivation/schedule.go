package derivation

import (
	"context"
	"fmt"
	"time"

	"github.com/lifelog/core/scheduler"
)

// snapshotSlotHours are the local hours SnapshotSchedule's cron
// expressions fire at, in the same order, used to compute each
// refresh's expires_at (the next scheduled run).
var snapshotSlotHours = []int{6, 12, 18, 22}

// nextSnapshotRun returns the next slot time strictly after now, in now's
// location, wrapping to the first slot of the following day when now is
// past the last slot.
func nextSnapshotRun(now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	for _, hour := range snapshotSlotHours {
		candidate := time.Date(y, m, d, hour, 0, 0, 0, loc)
		if candidate.After(now) {
			return candidate
		}
	}
	return time.Date(y, m, d, snapshotSlotHours[0], 0, 0, 0, loc).AddDate(0, 0, 1)
}

// RegisterSnapshotSchedules registers one scheduler.Schedule per
// SnapshotSchedule slot, each refreshing every user's prudent-context
// snapshot. userIDs is called fresh at each tick so newly onboarded users
// are picked up without a restart.
func RegisterSnapshotSchedules(sched *scheduler.Scheduler, gen *SnapshotGenerator, userIDs func(ctx context.Context) ([]string, error)) error {
	for i, cronExpr := range SnapshotSchedule {
		err := sched.Register(scheduler.Schedule{
			SourceID: "derivation",
			Stream:   fmt.Sprintf("prudent_context_slot_%d", i),
			CronExpr: cronExpr,
			Run: func(ctx context.Context, _ *scheduler.Job) (int, error) {
				ids, err := userIDs(ctx)
				if err != nil {
					return 0, err
				}
				next := nextSnapshotRun(time.Now())
				processed := 0
				for _, id := range ids {
					if _, err := gen.Generate(ctx, id, next); err != nil {
						continue
					}
					processed++
				}
				return processed, nil
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
