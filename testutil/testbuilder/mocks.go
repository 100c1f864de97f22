package testbuilder

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"qms-sync/internal/delta"
	"qms-sync/internal/models"
	"qms-sync/internal/repository"
)

// ********
//
// MockConfigurationRepository is a mock implementation of the
// ConfigurationRepository interface
//
// ********
type MockConfigurationRepository struct {
	mock.Mock
}

func (m *MockConfigurationRepository) Create(ctx context.Context, cfg *models.SyncConfiguration) (*models.SyncConfiguration, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncConfiguration), args.Error(1)
}

func (m *MockConfigurationRepository) FindByID(ctx context.Context, id int64) (*models.SyncConfiguration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncConfiguration), args.Error(1)
}

func (m *MockConfigurationRepository) FindAll(ctx context.Context, filter repository.ConfigurationFilter) ([]*models.SyncConfiguration, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncConfiguration), args.Error(1)
}

func (m *MockConfigurationRepository) Update(ctx context.Context, cfg *models.SyncConfiguration) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockConfigurationRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConfigurationRepository) FindDueForSync(ctx context.Context, now time.Time) ([]*models.SyncConfiguration, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncConfiguration), args.Error(1)
}

func (m *MockConfigurationRepository) UpdateSyncStats(ctx context.Context, id int64, update repository.StatsUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockConfigurationRepository) MarkRunning(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// ********
//
// MockRunRepository is a mock implementation of the RunRepository interface
//
// ********
type MockRunRepository struct {
	mock.Mock
}

// Create echoes the input run back when the expectation returns a nil run,
// matching the store's INSERT ... RETURNING behaviour.
func (m *MockRunRepository) Create(ctx context.Context, run *models.SyncRun) (*models.SyncRun, error) {
	args := m.Called(ctx, run)
	if args.Get(0) == nil {
		if args.Error(1) != nil {
			return nil, args.Error(1)
		}
		return run, nil
	}
	return args.Get(0).(*models.SyncRun), args.Error(1)
}

func (m *MockRunRepository) FindByID(ctx context.Context, id int64) (*models.SyncRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncRun), args.Error(1)
}

func (m *MockRunRepository) Complete(ctx context.Context, id int64, completion repository.RunCompletion) error {
	args := m.Called(ctx, id, completion)
	return args.Error(0)
}

func (m *MockRunRepository) MarkCancelled(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockRunRepository) FindRecentByConfiguration(ctx context.Context, configurationID int64, limit int) ([]*models.SyncRun, error) {
	args := m.Called(ctx, configurationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncRun), args.Error(1)
}

func (m *MockRunRepository) StatsByConfiguration(ctx context.Context, configurationID int64) (*models.RunStatistics, error) {
	args := m.Called(ctx, configurationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RunStatistics), args.Error(1)
}

// ********
//
// MockConflictRepository is a mock implementation of the
// ConflictRepository interface
//
// ********
type MockConflictRepository struct {
	mock.Mock
}

func (m *MockConflictRepository) Create(ctx context.Context, conflict *models.SyncConflict) (*models.SyncConflict, error) {
	args := m.Called(ctx, conflict)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncConflict), args.Error(1)
}

func (m *MockConflictRepository) FindByID(ctx context.Context, id int64) (*models.SyncConflict, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncConflict), args.Error(1)
}

func (m *MockConflictRepository) FindByConfigurationID(ctx context.Context, configurationID int64, filter repository.ConflictFilter) ([]*models.SyncConflict, error) {
	args := m.Called(ctx, configurationID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncConflict), args.Error(1)
}

func (m *MockConflictRepository) Resolve(ctx context.Context, id int64, resolution models.ConflictResolution) (*models.SyncConflict, error) {
	args := m.Called(ctx, id, resolution)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncConflict), args.Error(1)
}

// ********
//
// MockChangeSource is a mock implementation of the ChangeSource interface
//
// ********
type MockChangeSource struct {
	mock.Mock
}

func (m *MockChangeSource) FindChangedSince(ctx context.Context, entity models.EntityType, since time.Time, limit int) ([]map[string]interface{}, error) {
	args := m.Called(ctx, entity, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

func (m *MockChangeSource) FindChangedAfterID(ctx context.Context, entity models.EntityType, afterID int64, limit int) ([]map[string]interface{}, error) {
	args := m.Called(ctx, entity, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

// ********
//
// MockDetector is a mock implementation of the delta Detector interface
//
// ********
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) DetectChanges(ctx context.Context, cfg *models.SyncConfiguration) *delta.ChangeSet {
	args := m.Called(ctx, cfg)
	return args.Get(0).(*delta.ChangeSet)
}

// ********
//
// MockRemoteClient is a mock implementation of the remote Client interface
//
// ********
type MockRemoteClient struct {
	mock.Mock
}

func (m *MockRemoteClient) Fetch(ctx context.Context, entity models.EntityType, id string) (map[string]interface{}, error) {
	args := m.Called(ctx, entity, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockRemoteClient) Push(ctx context.Context, entity models.EntityType, id string, record map[string]interface{}) error {
	args := m.Called(ctx, entity, id, record)
	return args.Error(0)
}

// ********
//
// MockSystemAdapter is a mock implementation of the SystemAdapter interface
//
// ********
type MockSystemAdapter struct {
	mock.Mock

	System models.SystemType
}

func (m *MockSystemAdapter) SystemType() models.SystemType {
	return m.System
}

func (m *MockSystemAdapter) Sync(ctx context.Context, cfg *models.SyncConfiguration, runID string) (*models.SyncResult, error) {
	args := m.Called(ctx, cfg, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncResult), args.Error(1)
}

// ********
//
// MockNotifier is a mock implementation of the audit.Notifier interface
//
// ********
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) RunCompleted(ctx context.Context, run *models.SyncRun) {
	m.Called(ctx, run)
}

func (m *MockNotifier) ConflictDetected(ctx context.Context, conflict *models.SyncConflict) {
	m.Called(ctx, conflict)
}
