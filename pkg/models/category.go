package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is a single node of the category hierarchy as persisted.
// Parent and Children mirror each other: a category listed in Children
// always points back through its Parent.
type Category struct {
	ID          primitive.ObjectID   `bson:"_id" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Slug        string               `bson:"slug" json:"slug"`
	Description string               `bson:"description" json:"description"`
	Status      bool                 `bson:"status" json:"status"`
	Parent      *primitive.ObjectID  `bson:"parent" json:"parent"`
	Children    []primitive.ObjectID `bson:"children" json:"children"`
	ImageURL    string               `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	BannerURL   string               `bson:"banner_url,omitempty" json:"bannerUrl,omitempty"`
	CreatedAt   time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updated_at" json:"updatedAt"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.Parent == nil || c.Parent.IsZero()
}

// HasChild reports whether id is present in the children list.
func (c *Category) HasChild(id primitive.ObjectID) bool {
	for _, child := range c.Children {
		if child == id {
			return true
		}
	}
	return false
}

// TreeNode is the nested read model returned by tree queries.
type TreeNode struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description string             `json:"description"`
	Status      bool               `json:"status"`
	ImageURL    string             `json:"imageUrl,omitempty"`
	BannerURL   string             `json:"bannerUrl,omitempty"`
	Children    []*TreeNode        `json:"children"`
}

func NewTreeNode(c *Category) *TreeNode {
	return &TreeNode{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Status:      c.Status,
		ImageURL:    c.ImageURL,
		BannerURL:   c.BannerURL,
		Children:    []*TreeNode{},
	}
}

// CategoryFields is the partial update applied by the store. Nil fields are left untouched.
type CategoryFields struct {
	Name        *string
	Slug        *string
	Description *string
	Status      *bool
	ImageURL    *string
	BannerURL   *string
}

func (f CategoryFields) Empty() bool {
	return f.Name == nil && f.Slug == nil && f.Description == nil && f.Status == nil &&
		f.ImageURL == nil && f.BannerURL == nil
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=120,category_name"`
	Description string `json:"description" validate:"max=2000"`
	Status      *bool  `json:"status"`
	Parent      string `json:"parent" validate:"omitempty,len=24,hexadecimal"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=120,category_name"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Status      *bool   `json:"status"`
}

type MoveCategoryRequest struct {
	Parent string `json:"parent" validate:"omitempty,len=24,hexadecimal"`
}

// DeleteResult reports how many records a cascading delete removed.
// Removed is zero when the category was already gone.
type DeleteResult struct {
	ID      primitive.ObjectID `json:"id"`
	Removed int                `json:"removed"`
}

// RepairReport summarises what a reconciliation pass changed.
type RepairReport struct {
	Scanned             int                  `json:"scanned"`
	RestoredBackRefs    []primitive.ObjectID `json:"restoredBackRefs"`
	DroppedChildRefs    []primitive.ObjectID `json:"droppedChildRefs"`
	DetachedFromMissing []primitive.ObjectID `json:"detachedFromMissing"`
	DedupedChildRefs    []primitive.ObjectID `json:"dedupedChildRefs"`
}

func (r *RepairReport) Changed() bool {
	return len(r.RestoredBackRefs)+len(r.DroppedChildRefs)+len(r.DetachedFromMissing)+
		len(r.DedupedChildRefs) > 0
}
