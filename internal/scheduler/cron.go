package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard five-field cron expression.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// parseCronSchedule parses a cron expression in the given timezone,
// falling back to UTC when the timezone is invalid or unset.
func parseCronSchedule(cronExpr, timezone string) (cron.Schedule, *time.Location, error) {
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err == nil {
			loc = l
		}
	}

	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, nil, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule, loc, nil
}

// ValidateCronExpr reports whether cronExpr parses as a valid five-field
// cron expression.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}
