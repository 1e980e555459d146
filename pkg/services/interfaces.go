package services

import (
	"context"
	"io"

	"khoomi-api-io/catalog/pkg/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CategoryStore is the persistence contract the category core relies on.
// Each call touches a single document; no transaction spans two calls.
// Lookups of a missing id return an errs.NotFound error and driver failures
// are reported as errs.StoreUnavailable.
type CategoryStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error)
	// FindByParent returns the direct children of parent in natural order.
	// A nil parent selects the roots.
	FindByParent(ctx context.Context, parent *primitive.ObjectID) ([]*models.Category, error)
	FindAll(ctx context.Context) ([]*models.Category, error)
	FindBySlug(ctx context.Context, slug string) (*models.Category, error)
	Search(ctx context.Context, query string) ([]*models.Category, error)
	CountByName(ctx context.Context, name string) (int64, error)

	Insert(ctx context.Context, category *models.Category) (*models.Category, error)
	Update(ctx context.Context, id primitive.ObjectID, fields models.CategoryFields) (*models.Category, error)
	SetParent(ctx context.Context, id primitive.ObjectID, parent *primitive.ObjectID) error
	// AppendChild and RemoveChild edit the parent's children list atomically.
	AppendChild(ctx context.Context, parent, child primitive.ObjectID) error
	RemoveChild(ctx context.Context, parent, child primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Capability names an operation class guarded by the Authorizer.
type Capability string

const CapabilityAdmin Capability = "admin"

// Authorizer decides whether an actor may exercise a capability.
type Authorizer interface {
	Authorize(actor models.Actor, capability Capability) error
}

// CachePublisher broadcasts invalidation messages to downstream caches.
type CachePublisher interface {
	Publish(ctx context.Context, messageType string, payload string) error
}

// MediaUploader stores an image and returns its public URL.
type MediaUploader interface {
	Upload(ctx context.Context, file io.Reader) (string, error)
}
