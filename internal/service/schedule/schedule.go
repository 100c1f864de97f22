package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"qms-sync/internal/models"
	"qms-sync/pkg/log"
)

// cronFallback is used when a cron expression cannot be parsed; the
// configuration keeps running hourly instead of silently never again.
const cronFallback = 60 * time.Minute

//nolint:gochecknoglobals
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NextRunTime computes when the configuration should run next. Nil means no
// next run: the configuration is disabled or manually triggered only.
func NextRunTime(cfg *models.SyncConfiguration, now time.Time) *time.Time {
	if !cfg.Enabled || cfg.ScheduleType == models.ScheduleManual {
		return nil
	}

	switch cfg.ScheduleType {
	case models.ScheduleInterval:
		next := now.Add(time.Duration(cfg.IntervalMinutes) * time.Minute)
		return &next
	case models.ScheduleCron:
		next := nextCronTime(cfg, now)
		return &next
	default:
		return nil
	}
}

func nextCronTime(cfg *models.SyncConfiguration, now time.Time) time.Time {
	logger := scheduleLogger().With().Int64("configuration_id", cfg.ID).Logger()

	if cfg.CronExpression == nil || *cfg.CronExpression == "" {
		logger.Warn().Msg("Cron schedule without expression, falling back to hourly")
		return now.Add(cronFallback)
	}

	spec, err := cronParser.Parse(*cfg.CronExpression)
	if err != nil {
		logger.Warn().Err(err).Str("cron_expression", *cfg.CronExpression).
			Msg("Unparsable cron expression, falling back to hourly")
		return now.Add(cronFallback)
	}
	return spec.Next(now)
}

func scheduleLogger() zerolog.Logger {
	return log.Logger.With().Str("component", "schedule").Logger()
}
