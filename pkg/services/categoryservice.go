package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"khoomi-api-io/catalog/internal/common"
	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"

	"github.com/go-playground/validator/v10"
	slug2 "github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// rollbackTimeout bounds compensating writes that outlive the request context.
const rollbackTimeout = 5 * time.Second

const (
	CacheInvalidateCategory     = "category.invalidate"
	CacheInvalidateCategoryTree = "category.tree.invalidate"
)

// CategoryService owns every structural change to the category hierarchy and
// keeps each parent's children list in step with its children's parent pointer.
// It holds no state between calls; every operation re-reads the store.
type CategoryService struct {
	store   CategoryStore
	builder *TreeBuilder
	deleter *TreeDeleter
	gate    Authorizer
	cache   CachePublisher
	media   MediaUploader
	logger  *zap.Logger
}

type CategoryServiceOption func(*CategoryService)

func WithTreeStrategy(strategy TreeStrategy) CategoryServiceOption {
	return func(s *CategoryService) {
		s.builder = NewTreeBuilder(s.store, strategy)
	}
}

func WithCachePublisher(publisher CachePublisher) CategoryServiceOption {
	return func(s *CategoryService) { s.cache = publisher }
}

func WithMediaUploader(uploader MediaUploader) CategoryServiceOption {
	return func(s *CategoryService) { s.media = uploader }
}

func WithLogger(logger *zap.Logger) CategoryServiceOption {
	return func(s *CategoryService) { s.logger = logger }
}

func NewCategoryService(store CategoryStore, gate Authorizer, opts ...CategoryServiceOption) *CategoryService {
	s := &CategoryService{
		store:   store,
		builder: NewTreeBuilder(store, TreeBulk),
		deleter: NewTreeDeleter(store),
		gate:    gate,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CategorySlug derives the URL slug stored with a category name.
func CategorySlug(name string) string {
	return slug2.Make(strings.ToLower(strings.Replace(name, "'", "", -1)))
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return errs.Wrap(err, errs.Validation, "invalid request")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errs.Wrap(err, errs.Validation, "%s", strings.Join(msgs, "; "))
}

func parseParent(hex string) (*primitive.ObjectID, error) {
	if hex == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, errs.Wrap(err, errs.Validation, "invalid parent id %q", hex)
	}
	return &id, nil
}

func (s *CategoryService) publish(ctx context.Context, messageType string, id primitive.ObjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Publish(ctx, messageType, id.Hex()); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("type", messageType), zap.Error(err))
	}
}

// CreateCategory inserts a category and registers it with its parent.
// The parent is resolved before the insert, so a missing parent leaves no orphan.
func (s *CategoryService) CreateCategory(ctx context.Context, actor models.Actor, req models.CreateCategoryRequest) (*models.Category, error) {
	if err := s.gate.Authorize(actor, CapabilityAdmin); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := common.Validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	count, err := s.store.CountByName(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errs.E(errs.DuplicateName, "category exists with the name %q", req.Name)
	}

	parentID, err := parseParent(req.Parent)
	if err != nil {
		return nil, err
	}
	if parentID != nil {
		if _, err := s.store.FindByID(ctx, *parentID); err != nil {
			if errs.Is(err, errs.NotFound) {
				return nil, errs.E(errs.ParentNotFound, "parent category %s not found", parentID.Hex())
			}
			return nil, err
		}
	}

	status := true
	if req.Status != nil {
		status = *req.Status
	}
	created, err := s.store.Insert(ctx, &models.Category{
		Name:        req.Name,
		Slug:        CategorySlug(req.Name),
		Description: req.Description,
		Status:      status,
		Parent:      parentID,
		Children:    []primitive.ObjectID{},
	})
	if err != nil {
		return nil, err
	}

	if parentID != nil {
		if err := s.store.AppendChild(ctx, *parentID, created.ID); err != nil {
			if !errs.Is(err, errs.NotFound) {
				s.logger.Error("child inserted but parent not updated",
					zap.String("category", created.ID.Hex()),
					zap.String("parent", parentID.Hex()),
					zap.Error(err))
				return nil, err
			}
			// parent deleted since the check above
			rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
			delErr := s.store.Delete(rollbackCtx, created.ID)
			cancel()
			if delErr != nil {
				s.logger.Error("rollback of orphaned category failed",
					zap.String("category", created.ID.Hex()), zap.Error(delErr))
			}
			return nil, errs.E(errs.ParentNotFound, "parent category %s not found", parentID.Hex())
		}
	}

	s.publish(ctx, CacheInvalidateCategoryTree, created.ID)
	return created, nil
}

// UpdateCategory changes name, description or status. Structure is untouched.
func (s *CategoryService) UpdateCategory(ctx context.Context, actor models.Actor, id primitive.ObjectID, req models.UpdateCategoryRequest) (*models.Category, error) {
	if err := s.gate.Authorize(actor, CapabilityAdmin); err != nil {
		return nil, err
	}
	if err := common.Validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	fields := models.CategoryFields{Description: req.Description, Status: req.Status}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errs.E(errs.Validation, "name must not be empty")
		}
		current, err := s.store.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if name != current.Name {
			count, err := s.store.CountByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, errs.E(errs.DuplicateName, "category exists with the name %q", name)
			}
		}
		slug := CategorySlug(name)
		fields.Name, fields.Slug = &name, &slug
	}

	updated, err := s.store.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, CacheInvalidateCategory, id)
	return updated, nil
}

// DeleteCategory removes the category and its whole subtree, then detaches it
// from its former parent. Deleting an id that no longer exists succeeds with
// Removed == 0, so a failed delete can simply be retried.
func (s *CategoryService) DeleteCategory(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.DeleteResult, error) {
	if err := s.gate.Authorize(actor, CapabilityAdmin); err != nil {
		return nil, err
	}

	result := &models.DeleteResult{ID: id}
	category, err := s.store.FindByID(ctx, id)
	if errs.Is(err, errs.NotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	removed, err := s.deleter.DeleteDescendants(ctx, id)
	result.Removed = removed
	if err != nil {
		s.logger.Error("subtree delete interrupted",
			zap.String("category", id.Hex()), zap.Int("removed", removed), zap.Error(err))
		return nil, err
	}

	if !category.IsRoot() {
		if err := s.store.RemoveChild(ctx, *category.Parent, id); err != nil && !errs.Is(err, errs.NotFound) {
			return nil, err
		}
	}

	switch err := s.store.Delete(ctx, id); {
	case err == nil:
		result.Removed++
	case !errs.Is(err, errs.NotFound):
		return nil, err
	}

	s.logger.Info("category deleted", zap.String("category", id.Hex()), zap.Int("removed", result.Removed))
	s.publish(ctx, CacheInvalidateCategoryTree, id)
	return result, nil
}

// MoveCategory reparents a category. Moving a category below itself or one
// of its descendants is rejected.
func (s *CategoryService) MoveCategory(ctx context.Context, actor models.Actor, id primitive.ObjectID, req models.MoveCategoryRequest) (*models.Category, error) {
	if err := s.gate.Authorize(actor, CapabilityAdmin); err != nil {
		return nil, err
	}
	if err := common.Validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	category, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	newParent, err := parseParent(req.Parent)
	if err != nil {
		return nil, err
	}
	if newParent != nil {
		if err := s.checkAcyclic(ctx, id, *newParent); err != nil {
			return nil, err
		}
	}

	oldParent := category.Parent
	if category.IsRoot() {
		oldParent = nil
	}
	if sameParent(oldParent, newParent) {
		return category, nil
	}

	if err := s.store.SetParent(ctx, id, newParent); err != nil {
		return nil, err
	}
	if newParent != nil {
		if err := s.store.AppendChild(ctx, *newParent, id); err != nil {
			return nil, err
		}
	}
	if oldParent != nil {
		if err := s.store.RemoveChild(ctx, *oldParent, id); err != nil && !errs.Is(err, errs.NotFound) {
			return nil, err
		}
	}

	s.publish(ctx, CacheInvalidateCategoryTree, id)
	return s.store.FindByID(ctx, id)
}

func sameParent(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// checkAcyclic walks up from candidate and fails if id is met on the way.
func (s *CategoryService) checkAcyclic(ctx context.Context, id, candidate primitive.ObjectID) error {
	seen := make(map[primitive.ObjectID]bool)
	current := candidate
	for {
		if current == id {
			return errs.E(errs.Validation, "category %s cannot be placed under itself or a descendant", id.Hex())
		}
		if seen[current] {
			return nil
		}
		seen[current] = true

		category, err := s.store.FindByID(ctx, current)
		if err != nil {
			if errs.Is(err, errs.NotFound) && current == candidate {
				return errs.E(errs.ParentNotFound, "parent category %s not found", candidate.Hex())
			}
			if errs.Is(err, errs.NotFound) {
				return nil
			}
			return err
		}
		if category.IsRoot() {
			return nil
		}
		current = *category.Parent
	}
}

// SetCategoryImages uploads new image and/or banner files. Nil readers are skipped.
func (s *CategoryService) SetCategoryImages(ctx context.Context, actor models.Actor, id primitive.ObjectID, image, banner io.Reader) (*models.Category, error) {
	if err := s.gate.Authorize(actor, CapabilityAdmin); err != nil {
		return nil, err
	}
	if s.media == nil {
		return nil, errs.E(errs.Internal, "media uploads are not configured")
	}
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, err
	}

	var fields models.CategoryFields
	if image != nil {
		url, err := s.media.Upload(ctx, image)
		if err != nil {
			return nil, errs.Wrap(err, errs.Internal, "image upload failed")
		}
		fields.ImageURL = &url
	}
	if banner != nil {
		url, err := s.media.Upload(ctx, banner)
		if err != nil {
			return nil, errs.Wrap(err, errs.Internal, "banner upload failed")
		}
		fields.BannerURL = &url
	}
	if fields.Empty() {
		return nil, errs.E(errs.Validation, "an image or banner file is required")
	}

	updated, err := s.store.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, CacheInvalidateCategory, id)
	return updated, nil
}

func (s *CategoryService) GetCategory(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	return s.store.FindByID(ctx, id)
}

func (s *CategoryService) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return s.store.FindBySlug(ctx, slug)
}

// ListCategories returns the whole forest, rebuilt from the store on every call.
func (s *CategoryService) ListCategories(ctx context.Context) ([]*models.TreeNode, error) {
	return s.builder.Build(ctx, nil)
}

// GetSubtree returns the tree below id, failing with NotFound for an unknown id.
func (s *CategoryService) GetSubtree(ctx context.Context, id primitive.ObjectID) ([]*models.TreeNode, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.builder.Build(ctx, &id)
}

func (s *CategoryService) GetCategoryChildren(ctx context.Context, id primitive.ObjectID) ([]*models.Category, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.FindByParent(ctx, &id)
}

// GetCategoryAncestors returns the chain from the root down to id's parent.
// The walk stops early at a dangling parent reference.
func (s *CategoryService) GetCategoryAncestors(ctx context.Context, id primitive.ObjectID) ([]*models.Category, error) {
	category, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ancestors := []*models.Category{}
	seen := map[primitive.ObjectID]bool{id: true}
	for !category.IsRoot() {
		parentID := *category.Parent
		if seen[parentID] {
			s.logger.Warn("category parent cycle detected", zap.String("category", id.Hex()))
			break
		}
		seen[parentID] = true

		parent, err := s.store.FindByID(ctx, parentID)
		if errs.Is(err, errs.NotFound) {
			s.logger.Warn("dangling parent reference",
				zap.String("category", category.ID.Hex()), zap.String("parent", parentID.Hex()))
			break
		}
		if err != nil {
			return nil, err
		}
		ancestors = append([]*models.Category{parent}, ancestors...)
		category = parent
	}
	return ancestors, nil
}

func (s *CategoryService) SearchCategories(ctx context.Context, query string) ([]*models.Category, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.E(errs.Validation, "search query is required")
	}
	return s.store.Search(ctx, query)
}

// Repair reconciles parent pointers with children lists after partial failures:
// it restores missing back-references, drops children entries that point at
// missing or foreign records, collapses duplicate entries, and turns categories
// with a missing parent into roots.
func (s *CategoryService) Repair(ctx context.Context, actor models.Actor) (*models.RepairReport, error) {
	if err := s.gate.Authorize(actor, CapabilityAdmin); err != nil {
		return nil, err
	}

	all, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	report := &models.RepairReport{
		Scanned:             len(all),
		RestoredBackRefs:    []primitive.ObjectID{},
		DroppedChildRefs:    []primitive.ObjectID{},
		DetachedFromMissing: []primitive.ObjectID{},
		DedupedChildRefs:    []primitive.ObjectID{},
	}
	byID := make(map[primitive.ObjectID]*models.Category, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}

	for _, c := range all {
		if c.IsRoot() {
			continue
		}
		parent, ok := byID[*c.Parent]
		if !ok {
			if err := s.store.SetParent(ctx, c.ID, nil); err != nil {
				return report, err
			}
			c.Parent = nil
			report.DetachedFromMissing = append(report.DetachedFromMissing, c.ID)
			continue
		}
		if !parent.HasChild(c.ID) {
			if err := s.store.AppendChild(ctx, parent.ID, c.ID); err != nil {
				return report, err
			}
			parent.Children = append(parent.Children, c.ID)
			report.RestoredBackRefs = append(report.RestoredBackRefs, c.ID)
		}
	}

	for _, p := range all {
		listed := make(map[primitive.ObjectID]int, len(p.Children))
		for _, childID := range p.Children {
			listed[childID]++
		}
		for _, childID := range p.Children {
			count, pending := listed[childID]
			if !pending {
				continue
			}
			delete(listed, childID)

			child, ok := byID[childID]
			if !ok || child.IsRoot() || *child.Parent != p.ID {
				if err := s.store.RemoveChild(ctx, p.ID, childID); err != nil {
					return report, err
				}
				report.DroppedChildRefs = append(report.DroppedChildRefs, childID)
				continue
			}
			if count > 1 {
				// $pull drops every copy, so add the child back once
				if err := s.store.RemoveChild(ctx, p.ID, childID); err != nil {
					return report, err
				}
				if err := s.store.AppendChild(ctx, p.ID, childID); err != nil {
					return report, err
				}
				report.DedupedChildRefs = append(report.DedupedChildRefs, childID)
			}
		}
	}

	if report.Changed() {
		s.logger.Info("category repair applied",
			zap.Int("restored", len(report.RestoredBackRefs)),
			zap.Int("dropped", len(report.DroppedChildRefs)),
			zap.Int("deduped", len(report.DedupedChildRefs)),
			zap.Int("detached", len(report.DetachedFromMissing)))
		s.publish(ctx, CacheInvalidateCategoryTree, primitive.NilObjectID)
	}
	return report, nil
}
