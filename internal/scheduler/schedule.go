package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kestrelai/assistant/pkg/models"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// dateTriggerArgs is the TriggerArgs payload for TriggerDate.
type dateTriggerArgs struct {
	At time.Time `json:"at"`
}

// cronTriggerArgs is the TriggerArgs payload for TriggerCron.
type cronTriggerArgs struct {
	Expression string `json:"expression"`
	Timezone   string `json:"timezone,omitempty"`
}

// intervalTriggerArgs is the TriggerArgs payload for TriggerInterval.
type intervalTriggerArgs struct {
	Every time.Duration `json:"every"`
}

// next computes the next fire time for job strictly after now. A false
// second return means the trigger has no more occurrences (an elapsed
// one-shot date job).
func next(job models.ScheduledJob, now time.Time) (time.Time, bool, error) {
	switch job.TriggerType {
	case models.TriggerDate:
		var args dateTriggerArgs
		if err := json.Unmarshal(job.TriggerArgs, &args); err != nil {
			return time.Time{}, false, fmt.Errorf("invalid date trigger args: %w", err)
		}
		if !args.At.After(now) {
			return time.Time{}, false, nil
		}
		return args.At, true, nil

	case models.TriggerInterval:
		var args intervalTriggerArgs
		if err := json.Unmarshal(job.TriggerArgs, &args); err != nil {
			return time.Time{}, false, fmt.Errorf("invalid interval trigger args: %w", err)
		}
		if args.Every <= 0 {
			return time.Time{}, false, fmt.Errorf("interval trigger requires every > 0")
		}
		return now.Add(args.Every), true, nil

	case models.TriggerCron:
		var args cronTriggerArgs
		if err := json.Unmarshal(job.TriggerArgs, &args); err != nil {
			return time.Time{}, false, fmt.Errorf("invalid cron trigger args: %w", err)
		}
		loc := now.Location()
		if args.Timezone != "" {
			tz, err := time.LoadLocation(args.Timezone)
			if err != nil {
				return time.Time{}, false, fmt.Errorf("invalid cron timezone: %w", err)
			}
			loc = tz
		}
		schedule, err := cronParser.Parse(args.Expression)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid cron expression: %w", err)
		}
		nextAt := schedule.Next(now.In(loc))
		return nextAt, !nextAt.IsZero(), nil

	default:
		return time.Time{}, false, fmt.Errorf("unknown trigger type: %s", job.TriggerType)
	}
}

// isOneShot reports whether a trigger type fires at most once.
func isOneShot(t models.TriggerType) bool {
	return t == models.TriggerDate
}
