package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"vfxpublish/internal/domain"
)

var tracer = otel.Tracer("vfxpublish/internal/service")

const attribProductGroup = "productGroup"

type ProductPlan struct {
	Name     string
	Type     string
	FolderID string
	Families []string
	// Group overrides the stored productGroup when set.
	Group string
}

type VersionPlan struct {
	Number int
	TaskID string
	// Data is split into attributes and data by the version schema.
	Data map[string]any
}

type RepresentationPlan struct {
	Name  string
	Files []domain.File
	// Attrib is always stored as attributes (path, template).
	Attrib map[string]any
	// Data is split into attributes and data by the representation schema.
	Data map[string]any
}

// ReconcilePlan is the fully resolved description of one publish.
type ReconcilePlan struct {
	Project         string
	Product         ProductPlan
	Version         VersionPlan
	Representations []RepresentationPlan
}

type ReconcileResult struct {
	Product         domain.Entity
	Version         domain.Entity
	Representations []domain.Entity
	Created         map[domain.EntityKind]int
	Updated         map[domain.EntityKind]int
}

func (r *ReconcileResult) created(kind domain.EntityKind) {
	r.Created[kind]++
}

func (r *ReconcileResult) updated(kind domain.EntityKind) {
	r.Updated[kind]++
}

// Reconciler creates or updates the product, version and representations of
// a publish in two committed phases. Representations need the committed
// version identity, so they are only prepared after phase one succeeded.
type Reconciler struct {
	lookup   EntityLookup
	sessions SessionFactory
	schema   AttributeSchema
	logger   *zap.Logger
}

func NewReconciler(
	lookup EntityLookup,
	sessions SessionFactory,
	schema AttributeSchema,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		lookup:   lookup,
		sessions: sessions,
		schema:   schema,
		logger:   logger,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, plan *ReconcilePlan) (*ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "service.Reconciler.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("project", plan.Project),
		attribute.String("product", plan.Product.Name),
		attribute.Int("version", plan.Version.Number),
	)

	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	log := r.logger.With(
		zap.String("project", plan.Project),
		zap.String("product", plan.Product.Name),
		zap.Int("version", plan.Version.Number),
	)
	attrs := newAttributeCache(r.schema)
	result := &ReconcileResult{
		Created: make(map[domain.EntityKind]int),
		Updated: make(map[domain.EntityKind]int),
	}

	session := r.sessions.NewSession(plan.Project)
	product, err := r.prepareProduct(ctx, session, plan, result)
	if err != nil {
		return nil, err
	}
	version, err := r.prepareVersion(ctx, session, attrs, plan, product, result)
	if err != nil {
		return nil, err
	}
	if err := session.Commit(ctx); err != nil {
		return nil, &StoreError{Phase: PhaseProductVersion, Op: "commit", Err: err}
	}
	result.Product, result.Version = product, version
	log.Debug("Committed product and version",
		zap.String("product_id", product.ID()),
		zap.String("version_id", version.ID()))

	existing, err := r.lookup.FindRepresentations(ctx, plan.Project, []string{version.ID()})
	if err != nil {
		return nil, &StoreError{Phase: PhaseRepresentation, Op: "find representations", Err: err}
	}
	existingByName := make(map[string]domain.Entity, len(existing))
	for _, repre := range existing {
		existingByName[domain.RepresentationKey(repre.String(domain.FieldName))] = repre
	}

	session = r.sessions.NewSession(plan.Project)
	for i := range plan.Representations {
		repre, err := r.prepareRepresentation(ctx, session, attrs, &plan.Representations[i], version, existingByName, result)
		if err != nil {
			return nil, err
		}
		result.Representations = append(result.Representations, repre)
	}
	if err := session.Commit(ctx); err != nil {
		return nil, &StoreError{Phase: PhaseRepresentation, Op: "commit", Err: err}
	}

	log.Info("Reconciled publish",
		zap.Any("created", result.Created),
		zap.Any("updated", result.Updated))
	return result, nil
}

func validatePlan(plan *ReconcilePlan) error {
	if plan.Project == "" || plan.Product.Name == "" || plan.Product.FolderID == "" {
		return fmt.Errorf("reconcile plan requires project, product name and folder id")
	}
	if plan.Version.Number <= 0 {
		return fmt.Errorf("invalid version number %d", plan.Version.Number)
	}
	if len(plan.Representations) == 0 {
		return fmt.Errorf("reconcile plan for %s v%03d has no representations", plan.Product.Name, plan.Version.Number)
	}
	seen := make(map[string]struct{}, len(plan.Representations))
	for _, repre := range plan.Representations {
		key := domain.RepresentationKey(repre.Name)
		if key == "" {
			return fmt.Errorf("representation without a name in %s v%03d", plan.Product.Name, plan.Version.Number)
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q", errDuplicateRepre, repre.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (r *Reconciler) prepareProduct(
	ctx context.Context,
	session OperationSession,
	plan *ReconcilePlan,
	result *ReconcileResult,
) (domain.Entity, error) {
	p := plan.Product
	existing, err := r.lookup.FindProductByName(ctx, plan.Project, p.Name, p.FolderID)
	if err != nil {
		return nil, &StoreError{Phase: PhaseProductVersion, Op: "find product", Err: err}
	}

	attrib := map[string]any{}
	if p.Group != "" {
		attrib[attribProductGroup] = p.Group
	} else if existing != nil {
		// Keep the group a studio assigned earlier.
		if group, ok := existing.Attrib()[attribProductGroup]; ok && group != nil {
			attrib[attribProductGroup] = group
		}
	}
	families := p.Families
	if families == nil {
		families = []string{}
	}
	data := map[string]any{"families": families}

	var id string
	if existing != nil {
		id = existing.ID()
	}
	product := domain.NewProductEntity(p.Name, p.Type, p.FolderID, data, attrib, id)

	if existing == nil {
		r.logger.Info("Product not found, creating",
			zap.String("product", p.Name),
			zap.String("folder_id", p.FolderID))
		product[domain.FieldID] = session.CreateEntity(domain.KindProduct, product)
		result.created(domain.KindProduct)
		return product, nil
	}

	if changes := Diff(existing, product); len(changes) > 0 {
		session.UpdateEntity(domain.KindProduct, id, changes)
		result.updated(domain.KindProduct)
	}
	return product, nil
}

func (r *Reconciler) prepareVersion(
	ctx context.Context,
	session OperationSession,
	attrs *attributeCache,
	plan *ReconcilePlan,
	product domain.Entity,
	result *ReconcileResult,
) (domain.Entity, error) {
	v := plan.Version
	existing, err := r.lookup.FindVersionByNumber(ctx, plan.Project, v.Number, product.ID())
	if err != nil {
		return nil, &StoreError{Phase: PhaseProductVersion, Op: "find version", Err: err}
	}
	schema, err := attrs.forKind(ctx, domain.KindVersion)
	if err != nil {
		return nil, &StoreError{Phase: PhaseProductVersion, Op: "attribute schema", Err: err}
	}
	attrib, data := partition(v.Data, schema)

	var id string
	if existing != nil {
		id = existing.ID()
	}
	version := domain.NewVersionEntity(v.Number, product.ID(), v.TaskID, data, attrib, id)

	if existing == nil {
		r.logger.Debug("Creating new version", zap.Int("version", v.Number))
		version[domain.FieldID] = session.CreateEntity(domain.KindVersion, version)
		result.created(domain.KindVersion)
		return version, nil
	}

	r.logger.Debug("Updating existing version", zap.Int("version", v.Number))
	if changes := Diff(existing, version); len(changes) > 0 {
		session.UpdateEntity(domain.KindVersion, id, changes)
		result.updated(domain.KindVersion)
	}
	return version, nil
}

func (r *Reconciler) prepareRepresentation(
	ctx context.Context,
	session OperationSession,
	attrs *attributeCache,
	plan *RepresentationPlan,
	version domain.Entity,
	existingByName map[string]domain.Entity,
	result *ReconcileResult,
) (domain.Entity, error) {
	schema, err := attrs.forKind(ctx, domain.KindRepresentation)
	if err != nil {
		return nil, &StoreError{Phase: PhaseRepresentation, Op: "attribute schema", Err: err}
	}
	extraAttrib, data := partition(plan.Data, schema)
	attrib := make(map[string]any, len(plan.Attrib)+len(extraAttrib))
	for key, value := range plan.Attrib {
		attrib[key] = value
	}
	for key, value := range extraAttrib {
		attrib[key] = value
	}

	existing := existingByName[domain.RepresentationKey(plan.Name)]
	var id string
	if existing != nil {
		id = existing.ID()
	}
	repre := domain.NewRepresentationEntity(plan.Name, version.ID(), plan.Files, data, attrib, id)

	if existing == nil {
		repre[domain.FieldID] = session.CreateEntity(domain.KindRepresentation, repre)
		result.created(domain.KindRepresentation)
		return repre, nil
	}
	if changes := Diff(existing, repre); len(changes) > 0 {
		session.UpdateEntity(domain.KindRepresentation, id, changes)
		result.updated(domain.KindRepresentation)
	}
	return repre, nil
}
