package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"qms-sync/internal/delta"
	"qms-sync/internal/models"
	"qms-sync/internal/remote"
	"qms-sync/internal/repository"
	"qms-sync/testutil/testbuilder"
)

type AdapterTestSuite struct {
	suite.Suite
	ctx   context.Context
	runID string

	detector  *testbuilder.MockDetector
	source    *testbuilder.MockChangeSource
	client    *testbuilder.MockRemoteClient
	conflicts *testbuilder.MockConflictRepository
	notifier  *testbuilder.MockNotifier
}

func TestAdapterTest(t *testing.T) {
	suite.Run(t, new(AdapterTestSuite))
}

func (suite *AdapterTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.runID = "7f6f0a9e-run"
}

func (suite *AdapterTestSuite) SetupSubTest() {
	suite.detector = new(testbuilder.MockDetector)
	suite.source = new(testbuilder.MockChangeSource)
	suite.client = new(testbuilder.MockRemoteClient)
	suite.conflicts = new(testbuilder.MockConflictRepository)
	suite.notifier = new(testbuilder.MockNotifier)
}

func (suite *AdapterTestSuite) newERPAdapter() *ERPAdapter {
	return NewERPAdapter(suite.detector, suite.source, suite.client, suite.conflicts, suite.notifier)
}

func (suite *AdapterTestSuite) newMESAdapter() *MESAdapter {
	return NewMESAdapter(suite.detector, suite.source, suite.client, suite.conflicts, suite.notifier)
}

func (suite *AdapterTestSuite) newConfiguration(system models.SystemType, entity models.EntityType) *models.SyncConfiguration {
	return &models.SyncConfiguration{
		ID:           1,
		Name:         "test-link",
		SystemType:   system,
		EntityType:   entity,
		Enabled:      true,
		DeltaEnabled: true,
	}
}

// expectConflictNotifications collects the asynchronous ConflictDetected
// calls on a channel so a test can wait for them deterministically.
func (suite *AdapterTestSuite) expectConflictNotifications(count int) <-chan *models.SyncConflict {
	notified := make(chan *models.SyncConflict, count)
	suite.notifier.On("ConflictDetected", mock.Anything, mock.AnythingOfType("*models.SyncConflict")).
		Run(func(args mock.Arguments) {
			notified <- args.Get(1).(*models.SyncConflict)
		}).
		Return()
	return notified
}

func (suite *AdapterTestSuite) collectNotifications(notified <-chan *models.SyncConflict, count int) []*models.SyncConflict {
	conflicts := make([]*models.SyncConflict, 0, count)
	for len(conflicts) < count {
		select {
		case conflict := <-notified:
			conflicts = append(conflicts, conflict)
		case <-time.After(time.Second):
			suite.FailNow("conflict was never reported to the audit notifier")
		}
	}
	return conflicts
}

func (suite *AdapterTestSuite) stubChanges(changes ...map[string]interface{}) {
	if changes == nil {
		changes = []map[string]interface{}{}
	}
	suite.detector.On("DetectChanges", mock.Anything, mock.Anything).Return(&delta.ChangeSet{
		HasChanges:  len(changes) > 0,
		ChangeCount: len(changes),
		Changes:     changes,
	})
}

func (suite *AdapterTestSuite) TestSync_DeltaShortCircuit() {
	suite.Run("skips the sync when nothing changed since the watermark", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntityEquipment)
		suite.stubChanges()

		result, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.True(result.Success)
		suite.Equal(models.RunStatusSuccess, result.Status)
		suite.Equal(0, result.Processed)
		suite.client.AssertNotCalled(suite.T(), "Fetch", mock.Anything, mock.Anything, mock.Anything)
	})

	suite.Run("falls back to a full fetch when delta is disabled", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntityEquipment)
		cfg.DeltaEnabled = false
		suite.stubChanges()
		suite.source.On("FindChangedAfterID", mock.Anything, models.EntityEquipment, int64(0), 5000).
			Return([]map[string]interface{}{}, nil)

		result, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.Equal(0, result.Processed)
		suite.source.AssertExpectations(suite.T())
	})

	suite.Run("raises when the full fetch itself fails", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntityEquipment)
		cfg.DeltaEnabled = false
		suite.stubChanges()
		suite.source.On("FindChangedAfterID", mock.Anything, models.EntityEquipment, int64(0), 5000).
			Return(nil, repository.ErrDatabaseUnavailable)

		_, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.ErrorIs(err, repository.ErrDatabaseUnavailable)
	})
}

func (suite *AdapterTestSuite) TestSync_RecordOutcomes() {
	suite.Run("creates records the remote system has never seen", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntityEquipment)
		record := map[string]interface{}{"id": int64(7), "name": "CNC mill"}
		suite.stubChanges(record)
		suite.client.On("Fetch", mock.Anything, models.EntityEquipment, "7").Return(nil, remote.ErrRecordNotFound)
		suite.client.On("Push", mock.Anything, models.EntityEquipment, "7", record).Return(nil)

		result, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.True(result.Success)
		suite.Equal(1, result.Processed)
		suite.Equal(1, result.Created)
		suite.Equal(0, result.Updated)
	})

	suite.Run("updates records that agree with the remote copy", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntityEquipment)
		record := map[string]interface{}{"id": int64(8), "name": "lathe"}
		suite.stubChanges(record)
		suite.client.On("Fetch", mock.Anything, models.EntityEquipment, "8").
			Return(map[string]interface{}{"id": "8", "name": "lathe"}, nil)
		suite.client.On("Push", mock.Anything, models.EntityEquipment, "8", record).Return(nil)

		result, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.Equal(1, result.Updated)
		suite.Equal(0, result.Conflicted)
	})

	suite.Run("raises a conflict instead of pushing when the remote copy disagrees", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntityEquipment)
		record := map[string]interface{}{"id": int64(9), "name": "lathe", "status": "active"}
		suite.stubChanges(record)
		suite.client.On("Fetch", mock.Anything, models.EntityEquipment, "9").
			Return(map[string]interface{}{"id": "9", "name": "lathe", "status": "retired"}, nil)
		suite.conflicts.On("Create", mock.Anything, mock.MatchedBy(func(c *models.SyncConflict) bool {
			return c.EntityID == "9" &&
				c.FieldName == "status" &&
				c.Status == models.ConflictUnresolved &&
				c.RequiresManualReview
		})).Return(&models.SyncConflict{ID: 1}, nil)
		notified := suite.expectConflictNotifications(1)

		result, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.Equal(1, result.Conflicted)
		suite.Equal(models.RunStatusSuccess, result.Status)
		suite.client.AssertNotCalled(suite.T(), "Push", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		suite.conflicts.AssertExpectations(suite.T())

		reported := suite.collectNotifications(notified, 1)
		suite.Equal(int64(1), reported[0].ID)
		suite.notifier.AssertExpectations(suite.T())
	})

	suite.Run("records disagreeing fields in stable order", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntityEquipment)
		record := map[string]interface{}{"id": int64(10), "status": "active", "location": "hall B", "name": "press"}
		suite.stubChanges(record)
		suite.client.On("Fetch", mock.Anything, models.EntityEquipment, "10").
			Return(map[string]interface{}{"id": "10", "status": "retired", "location": "hall A", "name": "press"}, nil)

		var createdFields []string
		suite.conflicts.On("Create", mock.Anything, mock.AnythingOfType("*models.SyncConflict")).
			Run(func(args mock.Arguments) {
				createdFields = append(createdFields, args.Get(1).(*models.SyncConflict).FieldName)
			}).
			Return(&models.SyncConflict{ID: 2}, nil)
		notified := suite.expectConflictNotifications(2)

		result, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.Equal(1, result.Conflicted)
		suite.Equal([]string{"location", "status"}, createdFields)
		suite.collectNotifications(notified, 2)
	})

	suite.Run("keeps the change set untouched when the transport mutates its payload", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntityEquipment)
		record := map[string]interface{}{"id": int64(11), "name": "CNC mill"}
		suite.stubChanges(record)
		suite.client.On("Fetch", mock.Anything, models.EntityEquipment, "11").Return(nil, remote.ErrRecordNotFound)
		suite.client.On("Push", mock.Anything, models.EntityEquipment, "11", record).
			Run(func(args mock.Arguments) {
				args.Get(3).(map[string]interface{})["name"] = "mangled by transport"
			}).
			Return(nil)

		result, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.Equal(1, result.Created)
		suite.Equal("CNC mill", record["name"])
	})

	suite.Run("derives a partial status when only some records fail", func() {
		cfg := suite.newConfiguration(models.SystemTypeMES, models.EntityInspections)
		good := map[string]interface{}{"id": int64(1), "result": "pass"}
		bad := map[string]interface{}{"id": int64(2), "result": "fail"}
		suite.stubChanges(good, bad)
		suite.client.On("Fetch", mock.Anything, models.EntityInspections, "1").Return(nil, remote.ErrRecordNotFound)
		suite.client.On("Push", mock.Anything, models.EntityInspections, "1", good).Return(nil)
		suite.client.On("Fetch", mock.Anything, models.EntityInspections, "2").Return(nil, errors.New("mes 500"))

		result, err := suite.newMESAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.Equal(models.RunStatusPartial, result.Status)
		suite.False(result.Success)
		suite.Equal(2, result.Processed)
		suite.Equal(1, result.Created)
		suite.Equal(1, result.Failed)
		suite.Len(result.Errors, 1)
	})

	suite.Run("derives a failed status when every record fails", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntitySuppliers)
		record := map[string]interface{}{"id": int64(3), "name": "Acme"}
		suite.stubChanges(record)
		suite.client.On("Fetch", mock.Anything, models.EntitySuppliers, "3").Return(nil, remote.ErrRecordNotFound)
		suite.client.On("Push", mock.Anything, models.EntitySuppliers, "3", record).Return(errors.New("erp rejected payload"))

		result, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.Equal(models.RunStatusFailed, result.Status)
		suite.Equal(1, result.Failed)
	})

	suite.Run("counts a record without a usable id as failed", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntityEquipment)
		suite.stubChanges(map[string]interface{}{"name": "no id at all"})

		result, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.Equal(1, result.Failed)
		suite.Equal(models.RunStatusFailed, result.Status)
		suite.client.AssertNotCalled(suite.T(), "Fetch", mock.Anything, mock.Anything, mock.Anything)
	})
}

func (suite *AdapterTestSuite) TestSync_NotImplementedRoutines() {
	suite.Run("reports order sync as failed for MES without raising", func() {
		cfg := suite.newConfiguration(models.SystemTypeMES, models.EntityOrders)

		result, err := suite.newMESAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.False(result.Success)
		suite.Equal(models.RunStatusFailed, result.Status)
		suite.Contains(result.Message, "not implemented")
		suite.detector.AssertNotCalled(suite.T(), "DetectChanges", mock.Anything, mock.Anything)
	})

	suite.Run("reports inspection sync as failed for ERP without raising", func() {
		cfg := suite.newConfiguration(models.SystemTypeERP, models.EntityInspections)

		result, err := suite.newERPAdapter().Sync(suite.ctx, cfg, suite.runID)

		suite.NoError(err)
		suite.Equal(models.RunStatusFailed, result.Status)
		suite.Contains(result.Errors[0], "not implemented")
	})
}

func (suite *AdapterTestSuite) TestRegistry() {
	suite.Run("dispatches by system type", func() {
		erp := suite.newERPAdapter()
		mes := suite.newMESAdapter()
		registry := NewRegistry(erp, mes)

		found, err := registry.Lookup(models.SystemTypeMES)

		suite.NoError(err)
		suite.Equal(mes, found)
	})

	suite.Run("rejects a system type with no adapter", func() {
		registry := NewRegistry(suite.newERPAdapter())

		_, err := registry.Lookup(models.SystemTypeMES)

		suite.ErrorIs(err, ErrUnsupportedSystemType)
	})
}
