package testbuilder

import (
	"github.com/stretchr/testify/mock"

	"qms-sync/internal/models"
	"qms-sync/testutil"
)

// SyncScenario bundles the mocks a sync-service test needs.
type SyncScenario struct {
	Configs   *MockConfigurationRepository
	Runs      *MockRunRepository
	Conflicts *MockConflictRepository
	Detector  *MockDetector
	Adapter   *MockSystemAdapter
}

func (s *SyncScenario) AssertExpectations(t mock.TestingT) {
	s.Configs.AssertExpectations(t)
	s.Runs.AssertExpectations(t)
	s.Conflicts.AssertExpectations(t)
	s.Detector.AssertExpectations(t)
	s.Adapter.AssertExpectations(t)
}

// SyncScenarioBuilder provides a fluent way of wiring the common mock
// expectations of a sync run.
type SyncScenarioBuilder struct {
	scenario *SyncScenario
}

func NewSyncScenario(systemType models.SystemType) *SyncScenarioBuilder {
	return &SyncScenarioBuilder{
		scenario: &SyncScenario{
			Configs:   &MockConfigurationRepository{},
			Runs:      &MockRunRepository{},
			Conflicts: &MockConflictRepository{},
			Detector:  &MockDetector{},
			Adapter:   &MockSystemAdapter{System: systemType},
		},
	}
}

// WithConfiguration serves a snapshot of the configuration, so a test can
// keep mutating its own fixture without changing what the store returns.
func (b *SyncScenarioBuilder) WithConfiguration(cfg *models.SyncConfiguration) *SyncScenarioBuilder {
	b.scenario.Configs.On("FindByID", mock.Anything, cfg.ID).Return(testutil.CopyStruct(cfg), nil)
	return b
}

func (b *SyncScenarioBuilder) WithConfigurationError(id int64, err error) *SyncScenarioBuilder {
	b.scenario.Configs.On("FindByID", mock.Anything, id).Return(nil, err)
	return b
}

// WithRunCreation expects the in-progress run row to be written and echoes
// it back with the given database id, the way the real store does.
func (b *SyncScenarioBuilder) WithRunCreation(dbID int64) *SyncScenarioBuilder {
	b.scenario.Runs.On("Create", mock.Anything, mock.AnythingOfType("*models.SyncRun")).
		Return(nil, nil).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.SyncRun).ID = dbID
		})
	b.scenario.Configs.On("MarkRunning", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return b
}

func (b *SyncScenarioBuilder) WithAdapterResult(result *models.SyncResult) *SyncScenarioBuilder {
	b.scenario.Adapter.On("Sync", mock.Anything, mock.Anything, mock.Anything).Return(result, nil)
	return b
}

func (b *SyncScenarioBuilder) WithAdapterError(err error) *SyncScenarioBuilder {
	b.scenario.Adapter.On("Sync", mock.Anything, mock.Anything, mock.Anything).Return(nil, err)
	return b
}

func (b *SyncScenarioBuilder) WithRunCompletion() *SyncScenarioBuilder {
	b.scenario.Runs.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	b.scenario.Configs.On("UpdateSyncStats", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return b
}

func (b *SyncScenarioBuilder) Build() *SyncScenario {
	return b.scenario
}
