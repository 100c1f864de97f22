package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"qms-sync/internal/models"
	"qms-sync/internal/repository"
	"qms-sync/pkg/converter"
	"qms-sync/pkg/db"
	"qms-sync/pkg/log"
)

// entityTables maps the EntityType enumeration to its physical table and
// delta column. Table names only ever come from this map, never from input.
//
//nolint:gochecknoglobals
var entityTables = map[models.EntityType]struct {
	table       string
	deltaColumn string
}{
	models.EntityEquipment:      {table: "equipment", deltaColumn: "updated_at"},
	models.EntitySuppliers:      {table: "suppliers", deltaColumn: "updated_at"},
	models.EntityOrders:         {table: "orders", deltaColumn: "updated_at"},
	models.EntityInspections:    {table: "inspections", deltaColumn: "updated_at"},
	models.EntityNCR:            {table: "ncr", deltaColumn: "updated_at"},
	models.EntityCAPA:           {table: "capa", deltaColumn: "updated_at"},
	models.EntityQualityRecords: {table: "quality_records", deltaColumn: "updated_at"},
}

type ChangeSource struct {
	psql   *db.PostgresDatastore
	logger zerolog.Logger
}

func NewChangeSource(psql *db.PostgresDatastore) *ChangeSource {
	return &ChangeSource{
		psql:   psql,
		logger: log.Logger.With().Str("component", "change_source").Logger(),
	}
}

func (cs *ChangeSource) FindChangedSince(ctx context.Context, entity models.EntityType, since time.Time, limit int) ([]map[string]interface{}, error) {
	mapping, ok := entityTables[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrUnsupportedEntityType, entity)
	}

	query := fmt.Sprintf(
		`SELECT * FROM %s WHERE %s > $1 ORDER BY id ASC LIMIT $2`,
		mapping.table, mapping.deltaColumn,
	)
	return cs.queryRecords(ctx, entity, query, since, limit)
}

func (cs *ChangeSource) FindChangedAfterID(ctx context.Context, entity models.EntityType, afterID int64, limit int) ([]map[string]interface{}, error) {
	mapping, ok := entityTables[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrUnsupportedEntityType, entity)
	}

	query := fmt.Sprintf(
		`SELECT * FROM %s WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		mapping.table,
	)
	return cs.queryRecords(ctx, entity, query, afterID, limit)
}

func (cs *ChangeSource) queryRecords(ctx context.Context, entity models.EntityType, query string, watermark interface{}, limit int) ([]map[string]interface{}, error) {
	rows, err := cs.psql.DB.QueryxContext(ctx, query, watermark, limit)
	if err != nil {
		cs.logger.Error().Err(err).Str("entity_type", entity.String()).Msg("Failed to query changed records")
		return nil, fmt.Errorf("failed to query changed %s records: %w", entity, err)
	}
	defer rows.Close()

	records := make([]map[string]interface{}, 0)
	for rows.Next() {
		record := map[string]interface{}{}
		if scanErr := rows.MapScan(record); scanErr != nil {
			return nil, fmt.Errorf("failed to scan changed %s record: %w", entity, scanErr)
		}
		records = append(records, converter.NormalizeRecord(record))
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate changed %s records: %w", entity, rowsErr)
	}

	cs.logger.Debug().Str("entity_type", entity.String()).Int("count", len(records)).Msg("Fetched changed records")
	return records, nil
}
