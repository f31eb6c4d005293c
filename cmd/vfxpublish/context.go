package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"vfxpublish/internal/config"
	"vfxpublish/internal/events"
	"vfxpublish/internal/logging"
	"vfxpublish/internal/repository"
	"vfxpublish/internal/service"
	"vfxpublish/internal/service/s3"
	"vfxpublish/internal/service/versioning"
	"vfxpublish/internal/usd"
)

type commandContext struct {
	configFlag   *string
	s3ConfigFlag *string

	configOnce sync.Once
	config     *config.Config
	logger     *zap.Logger
	configErr  error
}

func newCommandContext(configFlag, s3ConfigFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		s3ConfigFlag: s3ConfigFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, *zap.Logger, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.NewConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg.Log)
		if err != nil {
			c.configErr = err
			return
		}
		c.config, c.logger = cfg, logger
	})
	return c.config, c.logger, c.configErr
}

// app is the wired service graph shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *repository.DB
	folderDB  *repository.FolderRepository
	entities  *repository.EntityRepository
	folders   *service.FolderService
	publisher *service.PublishService
	mirror    *s3.Client

	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.logger.Sync() //nolint:errcheck
	return errors.Join(errs...)
}

// openDB connects to the configured database and applies migrations.
func (c *commandContext) openDB(ctx context.Context) (*repository.DB, error) {
	cfg, logger, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	opts := repository.Options{Driver: cfg.Database.Driver}
	switch cfg.Database.Driver {
	case repository.DriverSQLite:
		opts.DSN = repository.SQLiteDSN(cfg.Database.Path)
	default:
		opts.DSN = cfg.Database.GetDSN()
	}

	db, err := repository.Open(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openApp wires repositories and services. The S3 mirror and the Kafka
// notifier are attached when configured.
func (c *commandContext) openApp(ctx context.Context) (*app, error) {
	cfg, logger, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := c.openDB(ctx)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db}
	a.closers = append(a.closers, db.Close)

	if err := c.wire(ctx, a); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (c *commandContext) wire(ctx context.Context, a *app) error {
	anatomy, err := a.cfg.Publish.Anatomy()
	if err != nil {
		return err
	}
	pattern := anatomy.VersionPattern
	if pattern == "" {
		pattern = versioning.DefaultPattern
	}
	scanner, err := versioning.NewScanner(pattern)
	if err != nil {
		return fmt.Errorf("invalid version pattern: %w", err)
	}

	a.folderDB = repository.NewFolderRepository(a.db)
	a.entities = repository.NewEntityRepository(a.db, a.logger)
	reconciler := service.NewReconciler(a.entities, a.entities, repository.NewAttributeRepository(a.db), a.logger)
	a.folders = service.NewFolderService(a.folderDB, a.logger)

	var opts []service.PublishOption
	if c.s3ConfigFlag != nil && *c.s3ConfigFlag != "" {
		s3Config, err := s3.NewConfig(*c.s3ConfigFlag)
		if err != nil {
			return fmt.Errorf("failed to load S3 config: %w", err)
		}
		s3Client, err := s3.NewClient(ctx, s3Config, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		a.mirror = s3Client
		opts = append(opts, service.WithMirror(s3Client))
	}
	if a.cfg.Kafka.Enabled() {
		writer := events.NewWriter(events.Config{Brokers: a.cfg.Kafka.Brokers, Topic: a.cfg.Kafka.Topic})
		emitter := events.NewEmitter(writer, a.cfg.Kafka.Topic, a.logger)
		a.closers = append(a.closers, emitter.Close)
		opts = append(opts, service.WithNotifier(emitter))
	}

	a.publisher, err = service.NewPublishService(
		a.folderDB,
		reconciler,
		scanner,
		usd.NewFileWriter(),
		service.PublishSettings{
			Roots:              anatomy.Roots,
			DirTemplate:        anatomy.Templates.Dir,
			FileTemplate:       anatomy.Templates.File,
			ProductName:        a.cfg.Publish.ProductName,
			RepresentationName: a.cfg.Publish.RepresentationName,
		},
		a.logger,
		opts...,
	)
	return err
}
