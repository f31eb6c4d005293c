package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"vfxpublish/internal/domain"
	"vfxpublish/internal/metrics"
	"vfxpublish/internal/service/pathtemplate"
	"vfxpublish/internal/service/versioning"
	"vfxpublish/internal/usd"
)

const (
	DefaultDirTemplate        = "{root[work]}/{project[name]}/{hierarchy}/{folder[name]}/publish/usd"
	DefaultFileTemplate       = DefaultDirTemplate + "/{folder[name]}_USD_v{version:0>5}.usda"
	DefaultProductName        = "usd_root"
	DefaultRepresentationName = "usd"

	timeLayout = "20060102T150405Z"
)

// RootWriter persists the rendered root layer.
type RootWriter interface {
	WriteRoot(ctx context.Context, path string, content []byte) error
}

// Mirror copies the root layer to secondary storage and returns its location.
type Mirror interface {
	MirrorRoot(ctx context.Context, key string, content []byte) (string, error)
}

// Notifier announces committed versions.
type Notifier interface {
	VersionPublished(ctx context.Context, result *domain.PublishResult) error
}

type PublishSettings struct {
	// Roots are the named storage roots, "work" at least.
	Roots              map[string]string
	DirTemplate        string
	FileTemplate       string
	ProductName        string
	RepresentationName string
}

type PublishOption func(*PublishService)

func WithMirror(m Mirror) PublishOption {
	return func(s *PublishService) {
		s.mirror = m
	}
}

func WithNotifier(n Notifier) PublishOption {
	return func(s *PublishService) {
		s.notifier = n
	}
}

// WithClock replaces the clock used for requests without a publish time.
func WithClock(now func() time.Time) PublishOption {
	return func(s *PublishService) {
		s.now = now
	}
}

// PublishService turns a finished artifact set into a committed version: it
// resolves the root layer path, derives the next version from disk,
// reconciles the entities and writes the root layer.
type PublishService struct {
	folders      FolderLookup
	reconciler   *Reconciler
	scanner      *versioning.Scanner
	writer       RootWriter
	mirror       Mirror
	notifier     Notifier
	validate     *validator.Validate
	roots        map[string]string
	dirTemplate  *pathtemplate.Template
	fileTemplate *pathtemplate.Template
	productName  string
	repreName    string
	logger       *zap.Logger
	now          func() time.Time
}

func NewPublishService(
	folders FolderLookup,
	reconciler *Reconciler,
	scanner *versioning.Scanner,
	writer RootWriter,
	settings PublishSettings,
	logger *zap.Logger,
	opts ...PublishOption,
) (*PublishService, error) {
	if settings.DirTemplate == "" {
		settings.DirTemplate = DefaultDirTemplate
	}
	if settings.FileTemplate == "" {
		settings.FileTemplate = DefaultFileTemplate
	}
	if settings.ProductName == "" {
		settings.ProductName = DefaultProductName
	}
	if settings.RepresentationName == "" {
		settings.RepresentationName = DefaultRepresentationName
	}

	dirTemplate, err := pathtemplate.Parse(settings.DirTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid publish directory template: %w", err)
	}
	fileTemplate, err := pathtemplate.Parse(settings.FileTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid root file template: %w", err)
	}

	s := &PublishService{
		folders:      folders,
		reconciler:   reconciler,
		scanner:      scanner,
		writer:       writer,
		validate:     validator.New(),
		roots:        settings.Roots,
		dirTemplate:  dirTemplate,
		fileTemplate: fileTemplate,
		productName:  settings.ProductName,
		repreName:    settings.RepresentationName,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Publish integrates one artifact set. A request without published files is
// skipped without touching the store. The root layer is written only after
// both commits succeeded; a failed run can be retried with the same request
// and resolves to the same version. The retry only reconciles to a no-op when
// the request carries its own Time: without it each run stamps the clock and
// the version's time is updated.
func (s *PublishService) Publish(ctx context.Context, req *domain.PublishRequest) (*domain.PublishResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "service.PublishService.Publish")
	defer span.End()

	result, err := s.publish(ctx, req)

	status := "published"
	switch {
	case err != nil:
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case result.Skipped:
		status = "skipped"
	}
	metrics.PublishesTotal.WithLabelValues(req.ProjectName, status).Inc()
	metrics.PublishDuration.WithLabelValues(req.ProjectName).Observe(time.Since(start).Seconds())
	return result, err
}

func (s *PublishService) publish(ctx context.Context, req *domain.PublishRequest) (*domain.PublishResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	log := s.logger.With(
		zap.String("project", req.ProjectName),
		zap.String("folder", req.FolderPath))
	result := &domain.PublishResult{ProjectName: req.ProjectName}

	files := req.PublishedFiles()
	if len(files) == 0 {
		log.Info("No published files found, skipping publish")
		result.Skipped = true
		return result, nil
	}
	log.Info("Processing published files", zap.Strings("files", files))

	folder, err := s.folders.GetByPath(ctx, req.ProjectName, req.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve folder %s: %w", req.FolderPath, err)
	}
	if folder == nil {
		return nil, fmt.Errorf("%w: %s%s", ErrFolderNotFound, req.ProjectName, domain.NormalizeFolderPath(req.FolderPath))
	}
	result.FolderID = folder.ID

	data := s.templateData(req, folder)
	dir, err := s.dirTemplate.Format(data)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve publish directory: %w", err)
	}
	dir = filepath.Clean(dir)
	log.Info("Resolved root layer directory", zap.String("dir", dir))

	version, err := s.scanner.NextVersion(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to derive next version: %w", err)
	}
	data["version"] = version

	rootPath, err := s.fileTemplate.Format(data)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root layer path: %w", err)
	}
	rootPath = filepath.Clean(rootPath)
	log = log.With(zap.Int("version", version), zap.String("root_path", rootPath))
	log.Info("Resolved root layer path")

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("project", req.ProjectName),
		attribute.String("root_path", rootPath),
		attribute.Int("version", version),
	)

	plan := s.buildPlan(req, folder, data, version, rootPath)
	reconciled, err := s.reconciler.Reconcile(ctx, plan)
	if err != nil {
		var storeErr *StoreError
		if errors.As(err, &storeErr) {
			metrics.StoreErrorsTotal.WithLabelValues(string(storeErr.Phase)).Inc()
		}
		return nil, fmt.Errorf("failed to reconcile %s v%03d: %w", plan.Product.Name, version, err)
	}
	recordOperations(reconciled)

	result.ProductID = reconciled.Product.ID()
	result.ProductName = plan.Product.Name
	result.VersionID = reconciled.Version.ID()
	result.Version = version
	result.RootPath = rootPath
	result.Created = reconciled.Created
	result.Updated = reconciled.Updated
	result.RepresentationIDs = make(map[string]string, len(reconciled.Representations))
	for _, repre := range reconciled.Representations {
		result.RepresentationIDs[repre.String(domain.FieldName)] = repre.ID()
	}

	content := usd.RootLayer{DefaultPrim: folder.Name, Sublayers: files}.Render()
	if err := s.writer.WriteRoot(ctx, rootPath, content); err != nil {
		return nil, fmt.Errorf("failed to write root layer %s for committed version %s: %w", rootPath, result.VersionID, err)
	}
	metrics.LatestVersion.WithLabelValues(req.ProjectName).Set(float64(version))

	if s.mirror != nil {
		key := path.Join(req.ProjectName, folder.Path, filepath.Base(rootPath))
		location, err := s.mirror.MirrorRoot(ctx, key, content)
		if err != nil {
			metrics.MirrorUploadsTotal.WithLabelValues("error").Inc()
			log.Warn("Failed to mirror root layer", zap.String("key", key), zap.Error(err))
		} else {
			metrics.MirrorUploadsTotal.WithLabelValues("success").Inc()
			result.Mirrored = location
		}
	}

	if s.notifier != nil {
		if err := s.notifier.VersionPublished(ctx, result); err != nil {
			log.Warn("Failed to notify version published", zap.Error(err))
		}
	}

	log.Info("Published version",
		zap.String("product_id", result.ProductID),
		zap.String("version_id", result.VersionID))
	return result, nil
}

// templateData builds the context shared by the path templates and stored
// with the representation.
func (s *PublishService) templateData(req *domain.PublishRequest, folder *domain.Folder) pathtemplate.Data {
	data := pathtemplate.Data{
		"root":    s.roots,
		"project": map[string]any{"name": req.ProjectName},
		"folder": map[string]any{
			"id":   folder.ID,
			"name": folder.Name,
			"path": folder.Path,
		},
		"hierarchy":      folder.Hierarchy(),
		"product":        map[string]any{"name": s.productName, "type": req.ProductType},
		"representation": s.repreName,
		"ext":            "usda",
	}
	if req.TaskName != "" || req.TaskID != "" {
		data["task"] = map[string]any{"id": req.TaskID, "name": req.TaskName}
	}
	return data
}

func (s *PublishService) buildPlan(
	req *domain.PublishRequest,
	folder *domain.Folder,
	data pathtemplate.Data,
	version int,
	rootPath string,
) *ReconcilePlan {
	family := familyOf(req)

	repreData := make(map[string]any, len(req.RepresentationData)+1)
	for key, value := range req.RepresentationData {
		repreData[key] = value
	}
	repreData["context"] = representationContext(data)

	return &ReconcilePlan{
		Project: req.ProjectName,
		Product: ProductPlan{
			Name:     s.productName,
			Type:     req.ProductType,
			FolderID: folder.ID,
			Families: []string{family},
			Group:    req.ProductGroup,
		},
		Version: VersionPlan{
			Number: version,
			TaskID: req.TaskID,
			Data:   s.versionData(req, rootPath),
		},
		Representations: []RepresentationPlan{{
			Name:  s.repreName,
			Files: []domain.File{{Name: filepath.Base(rootPath), Path: rootPath}},
			Attrib: map[string]any{
				"path":     rootPath,
				"template": s.fileTemplate.String(),
			},
			Data: repreData,
		}},
	}
}

func (s *PublishService) versionData(req *domain.PublishRequest, rootPath string) map[string]any {
	publishTime := req.Time
	if publishTime == "" {
		publishTime = s.now().UTC().Format(timeLayout)
	}

	data := map[string]any{
		"families": []string{familyOf(req)},
		"time":     publishTime,
		"author":   req.Author,
		"source":   rootPath,
		"comment":  req.Comment,
	}
	if req.Machine != "" {
		data["machine"] = req.Machine
	}
	if req.FPS != nil {
		data["fps"] = *req.FPS
	}
	if intent := intentValue(req.Intent); intent != nil {
		data["intent"] = intent
	}

	for key, value := range map[string]*int{
		"frameStart":  req.FrameStart,
		"frameEnd":    req.FrameEnd,
		"step":        req.Step,
		"handleStart": req.HandleStart,
		"handleEnd":   req.HandleEnd,
	} {
		if value != nil {
			data[key] = *value
		}
	}
	if len(req.SourceHashes) > 0 {
		data["sourceHashes"] = req.SourceHashes
	}

	for key, value := range req.VersionData {
		data[key] = value
	}
	return data
}

func familyOf(req *domain.PublishRequest) string {
	if req.Family != "" {
		return req.Family
	}
	return req.ProductType
}

// intentValue unwraps {"value": x} intents and drops empty ones.
func intentValue(intent any) any {
	if m, ok := intent.(map[string]any); ok {
		intent = m["value"]
	}
	switch v := intent.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
	}
	return intent
}

func representationContext(data pathtemplate.Data) map[string]any {
	ctx := make(map[string]any, len(data))
	for key, value := range data {
		if key == "root" {
			continue
		}
		ctx[key] = value
	}
	return ctx
}

func recordOperations(result *ReconcileResult) {
	for kind, n := range result.Created {
		metrics.EntityOperationsTotal.WithLabelValues(string(kind), "create").Add(float64(n))
	}
	for kind, n := range result.Updated {
		metrics.EntityOperationsTotal.WithLabelValues(string(kind), "update").Add(float64(n))
	}
}
