package core

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"qms-sync/internal/adapter"
	"qms-sync/internal/audit"
	"qms-sync/internal/config"
	"qms-sync/internal/delta"
	"qms-sync/internal/remote"
	"qms-sync/internal/repository"
	psqlRepo "qms-sync/internal/repository/postgres"
	"qms-sync/internal/service/orchestrator"
	"qms-sync/pkg/db"
	"qms-sync/pkg/db/migrations"
	"qms-sync/pkg/log"
)

// Wiring is the composition root: every collaborator is constructed here and
// injected explicitly, so tests can substitute any piece.
type Wiring struct {
	config *config.Config
	logger zerolog.Logger

	datastoreOnce sync.Once
	datastore     *db.PostgresDatastore
}

func NewWiring(cfg *config.Config) *Wiring {
	return &Wiring{
		config: cfg,
		logger: log.Logger.With().Str("component", "wiring").Logger(),
	}
}

func (w *Wiring) GetConfig() *config.Config {
	return w.config
}

func (w *Wiring) InitPostgresDatastore() *db.PostgresDatastore {
	w.datastoreOnce.Do(func() {
		var err error
		w.datastore, err = db.NewPostgresDatastore(&w.config.Postgres, migrations.NewPostgresMigration())
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to create Postgres datastore")
			os.Exit(-1)
		}
	})
	return w.datastore
}

func (w *Wiring) InitConfigurationRepository() repository.ConfigurationRepository {
	return psqlRepo.NewConfigurationRepository(w.InitPostgresDatastore())
}

func (w *Wiring) InitRunRepository() repository.RunRepository {
	return psqlRepo.NewRunRepository(w.InitPostgresDatastore())
}

func (w *Wiring) InitConflictRepository() repository.ConflictRepository {
	return psqlRepo.NewConflictRepository(w.InitPostgresDatastore())
}

func (w *Wiring) InitChangeSource() repository.ChangeSource {
	return psqlRepo.NewChangeSource(w.InitPostgresDatastore())
}

func (w *Wiring) InitDeltaDetector() delta.Detector {
	return delta.NewChangeDetector(w.InitChangeSource())
}

func (w *Wiring) InitAuditNotifier() audit.Notifier {
	return audit.NewLogNotifier()
}

func (w *Wiring) InitAdapterRegistry() *adapter.Registry {
	detector := w.InitDeltaDetector()
	source := w.InitChangeSource()
	conflicts := w.InitConflictRepository()
	notifier := w.InitAuditNotifier()

	erpClient := remote.NewHTTPClient("erp", w.config.ERP)
	mesClient := remote.NewHTTPClient("mes", w.config.MES)

	return adapter.NewRegistry(
		adapter.NewERPAdapter(detector, source, erpClient, conflicts, notifier),
		adapter.NewMESAdapter(detector, source, mesClient, conflicts, notifier),
	)
}

func (w *Wiring) InitSyncService() *orchestrator.SyncService {
	return orchestrator.NewSyncService(
		w.InitConfigurationRepository(),
		w.InitRunRepository(),
		w.InitConflictRepository(),
		w.InitDeltaDetector(),
		w.InitAdapterRegistry(),
		w.InitAuditNotifier(),
		time.Duration(w.config.Sync.RunTimeoutMinutes)*time.Minute,
		w.config.Sync.DefaultMaxRetries,
	)
}
