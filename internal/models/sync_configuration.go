package models

import "time"

type SystemType string

const (
	SystemTypeERP SystemType = "ERP"
	SystemTypeMES SystemType = "MES"
)

func (s SystemType) String() string {
	return string(s)
}

func (s SystemType) Valid() bool {
	return s == SystemTypeERP || s == SystemTypeMES
}

// EntityType is the closed set of QMS entities a configuration may sync.
// Delta queries resolve table names through this enumeration only; values
// outside the set are never interpolated into SQL.
type EntityType string

const (
	EntityEquipment      EntityType = "equipment"
	EntitySuppliers      EntityType = "suppliers"
	EntityOrders         EntityType = "orders"
	EntityInspections    EntityType = "inspections"
	EntityNCR            EntityType = "ncr"
	EntityCAPA           EntityType = "capa"
	EntityQualityRecords EntityType = "quality_records"
)

func (e EntityType) String() string {
	return string(e)
}

func (e EntityType) Valid() bool {
	switch e {
	case EntityEquipment, EntitySuppliers, EntityOrders,
		EntityInspections, EntityNCR, EntityCAPA, EntityQualityRecords:
		return true
	}
	return false
}

type ScheduleType string

const (
	ScheduleManual   ScheduleType = "manual"
	ScheduleInterval ScheduleType = "interval"
	ScheduleCron     ScheduleType = "cron"
)

func (s ScheduleType) String() string {
	return string(s)
}

// SyncConfiguration describes one synchronization link between the QMS
// database and an external system.
type SyncConfiguration struct {
	ID         int64      `db:"id"`
	Name       string     `db:"name"`
	SystemType SystemType `db:"system_type"`
	EntityType EntityType `db:"entity_type"`
	Enabled    bool       `db:"enabled"`

	ScheduleType    ScheduleType `db:"schedule_type"`
	IntervalMinutes int          `db:"interval_minutes"`
	CronExpression  *string      `db:"cron_expression"`

	DeltaEnabled      bool       `db:"delta_enabled"`
	DeltaField        *string    `db:"delta_field"`
	LastSyncTimestamp *time.Time `db:"last_sync_timestamp"`
	LastSyncRecordID  *int64     `db:"last_sync_record_id"`

	MaxRetries int `db:"max_retries"`

	LastRunStatus         *RunStatus `db:"last_run_status"`
	LastRunAt             *time.Time `db:"last_run_at"`
	NextRunAt             *time.Time `db:"next_run_at"`
	TotalRecordsProcessed int64      `db:"total_records_processed"`
	TotalRecordsFailed    int64      `db:"total_records_failed"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// TimestampWatermarkActive reports whether delta detection should filter by
// the timestamp watermark. The timestamp strategy wins whenever a delta field
// is configured and a watermark has been recorded.
func (c *SyncConfiguration) TimestampWatermarkActive() bool {
	return c.DeltaField != nil && *c.DeltaField != "" && c.LastSyncTimestamp != nil
}
