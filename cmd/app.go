package cmd

import (
	"fmt"
	"net/http"

	"channel-manager/core/config"
	"channel-manager/core/database"
	"channel-manager/core/logger"
	"channel-manager/core/provider"
	"channel-manager/core/secret"
	"channel-manager/core/storage"
	"channel-manager/feature/bootstrap"
	"channel-manager/feature/channelsync"
	"channel-manager/feature/connection"
	"channel-manager/feature/inventory"
	"channel-manager/feature/ledger"
	"channel-manager/feature/mapping"
	"channel-manager/feature/pms/models"
	"channel-manager/feature/token"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app wires the services shared by the server and the CLI commands.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	client  *provider.Client
	secrets *secret.Store
	conns   *connection.Store
	tokens  *token.Manager
	maps    *mapping.Store
	engine  *inventory.Engine
	ledger  *ledger.Ledger
	states  *ledger.States
	boot    *bootstrap.Service
	sync    *channelsync.Service
	archive *storage.Archiver
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection required: %w", err)
	}

	sealer, err := secret.NewSealer(cfg.Secret.Key)
	if err != nil {
		return nil, err
	}

	var archiver *storage.Archiver
	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		archiver = storage.NewArchiver(client, cfg.Storage.Bucket, cfg.Storage.Region)
	}

	a := &app{
		cfg:     cfg,
		log:     logg,
		db:      db,
		client:  provider.NewClient(cfg.Provider),
		secrets: secret.NewStore(db, sealer),
		conns:   connection.NewStore(db),
		maps:    mapping.NewStore(db, logg),
		engine:  inventory.NewEngine(db, logg),
		ledger:  ledger.NewLedger(db, logg),
		states:  ledger.NewStates(db),
		archive: archiver,
	}
	a.tokens = token.NewManager(token.NewStore(db, sealer), a.secrets, a.conns,
		&token.OAuthRefresher{
			TokenURL:   cfg.Provider.TokenURL,
			HTTPClient: &http.Client{Timeout: cfg.Provider.Timeout()},
		}, logg,
		token.WithBuffer(cfg.Sync.RefreshBuffer()))

	a.boot = bootstrap.NewService(bootstrap.Deps{
		DB:       db,
		Client:   a.client,
		Tokens:   a.tokens,
		Conns:    a.conns,
		Mappings: a.maps,
		Engine:   a.engine,
		Ledger:   a.ledger,
		States:   a.states,
		Archiver: archiver,
		Logger:   logg,
	}, cfg.Sync.CalendarDays)

	a.sync = channelsync.NewService(channelsync.Deps{
		DB:       db,
		Client:   a.client,
		Tokens:   a.tokens,
		Conns:    a.conns,
		Mappings: a.maps,
		Engine:   a.engine,
		Ledger:   a.ledger,
		States:   a.states,
		Archiver: archiver,
		Logger:   logg,
	}, channelsync.Config{
		DefaultPullDays:        cfg.Sync.DefaultPullDays,
		AllowOverbookingOnPull: cfg.Sync.AllowOverbookingOnPull,
	})
	return a, nil
}

// schema lists every table the engine owns.
func schema() []any {
	return append(models.All(),
		&secret.Secret{},
		&connection.Connection{},
		&token.Token{},
		&mapping.ExternalMapping{},
		&ledger.AuditRecord{},
		&ledger.SyncState{},
	)
}
