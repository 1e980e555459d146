package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryCategoryStore keeps categories in process memory in insertion order.
// It backs local development (STORE_DRIVER=memory) and the package tests.
type MemoryCategoryStore struct {
	mu    sync.RWMutex
	order []primitive.ObjectID
	items map[primitive.ObjectID]*models.Category

	// failOn makes the named operation fail with StoreUnavailable, for tests.
	failOn map[string]error
}

func NewMemoryCategoryStore() *MemoryCategoryStore {
	return &MemoryCategoryStore{
		items:  make(map[primitive.ObjectID]*models.Category),
		failOn: make(map[string]error),
	}
}

// FailOn injects err into every later call of op until cleared with a nil err.
func (s *MemoryCategoryStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

func (s *MemoryCategoryStore) injected(op string) error {
	if err, ok := s.failOn[op]; ok {
		return errs.Wrap(err, errs.StoreUnavailable, "%s", op)
	}
	return nil
}

// Len reports the number of stored categories.
func (s *MemoryCategoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func cloneCategory(c *models.Category) *models.Category {
	out := *c
	if c.Parent != nil {
		parent := *c.Parent
		out.Parent = &parent
	}
	out.Children = append([]primitive.ObjectID{}, c.Children...)
	return &out
}

func (s *MemoryCategoryStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.injected("FindByID"); err != nil {
		return nil, err
	}
	c, ok := s.items[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "category %s not found", id.Hex())
	}
	return cloneCategory(c), nil
}

func (s *MemoryCategoryStore) FindByParent(ctx context.Context, parent *primitive.ObjectID) ([]*models.Category, error) {
	return s.filter("FindByParent", func(c *models.Category) bool {
		if parent == nil {
			return c.IsRoot()
		}
		return !c.IsRoot() && *c.Parent == *parent
	})
}

func (s *MemoryCategoryStore) FindAll(ctx context.Context) ([]*models.Category, error) {
	return s.filter("FindAll", func(*models.Category) bool { return true })
}

func (s *MemoryCategoryStore) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	found, err := s.filter("FindBySlug", func(c *models.Category) bool { return c.Slug == slug })
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, errs.E(errs.NotFound, "category %q not found", slug)
	}
	return found[0], nil
}

func (s *MemoryCategoryStore) Search(ctx context.Context, query string) ([]*models.Category, error) {
	q := strings.ToLower(query)
	return s.filter("Search", func(c *models.Category) bool {
		return strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Description), q)
	})
}

func (s *MemoryCategoryStore) CountByName(ctx context.Context, name string) (int64, error) {
	found, err := s.filter("CountByName", func(c *models.Category) bool { return c.Name == name })
	return int64(len(found)), err
}

func (s *MemoryCategoryStore) filter(op string, keep func(*models.Category) bool) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.injected(op); err != nil {
		return nil, err
	}
	result := []*models.Category{}
	for _, id := range s.order {
		if c := s.items[id]; keep(c) {
			result = append(result, cloneCategory(c))
		}
	}
	return result, nil
}

func (s *MemoryCategoryStore) Insert(ctx context.Context, category *models.Category) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Insert"); err != nil {
		return nil, err
	}
	for _, existing := range s.items {
		if existing.Name == category.Name {
			return nil, errs.E(errs.DuplicateName, "category %q already exists", category.Name)
		}
	}

	c := cloneCategory(category)
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.items[c.ID] = c
	s.order = append(s.order, c.ID)
	return cloneCategory(c), nil
}

func (s *MemoryCategoryStore) Update(ctx context.Context, id primitive.ObjectID, fields models.CategoryFields) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Update"); err != nil {
		return nil, err
	}
	c, ok := s.items[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "category %s not found", id.Hex())
	}
	if fields.Name != nil {
		for otherID, other := range s.items {
			if otherID != id && other.Name == *fields.Name {
				return nil, errs.E(errs.DuplicateName, "category %q already exists", *fields.Name)
			}
		}
		c.Name = *fields.Name
	}
	if fields.Slug != nil {
		c.Slug = *fields.Slug
	}
	if fields.Description != nil {
		c.Description = *fields.Description
	}
	if fields.Status != nil {
		c.Status = *fields.Status
	}
	if fields.ImageURL != nil {
		c.ImageURL = *fields.ImageURL
	}
	if fields.BannerURL != nil {
		c.BannerURL = *fields.BannerURL
	}
	c.UpdatedAt = time.Now()
	return cloneCategory(c), nil
}

func (s *MemoryCategoryStore) SetParent(ctx context.Context, id primitive.ObjectID, parent *primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("SetParent"); err != nil {
		return err
	}
	c, ok := s.items[id]
	if !ok {
		return errs.E(errs.NotFound, "category %s not found", id.Hex())
	}
	if parent == nil {
		c.Parent = nil
	} else {
		p := *parent
		c.Parent = &p
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryCategoryStore) AppendChild(ctx context.Context, parent, child primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("AppendChild"); err != nil {
		return err
	}
	p, ok := s.items[parent]
	if !ok {
		return errs.E(errs.NotFound, "category %s not found", parent.Hex())
	}
	if !p.HasChild(child) {
		p.Children = append(p.Children, child)
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryCategoryStore) RemoveChild(ctx context.Context, parent, child primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("RemoveChild"); err != nil {
		return err
	}
	p, ok := s.items[parent]
	if !ok {
		return errs.E(errs.NotFound, "category %s not found", parent.Hex())
	}
	kept := p.Children[:0]
	for _, id := range p.Children {
		if id != child {
			kept = append(kept, id)
		}
	}
	p.Children = kept
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryCategoryStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("Delete"); err != nil {
		return err
	}
	if _, ok := s.items[id]; !ok {
		return errs.E(errs.NotFound, "category %s not found", id.Hex())
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
