package services

import (
	"context"
	"regexp"
	"time"

	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CategoryCollectionName = "Category"

// MongoCategoryStore persists categories as one document each.
type MongoCategoryStore struct {
	categoryCollection *mongo.Collection
}

func NewMongoCategoryStore(collection *mongo.Collection) *MongoCategoryStore {
	return &MongoCategoryStore{categoryCollection: collection}
}

// natural order: ObjectIDs grow with insertion time
var naturalOrder = bson.D{{Key: "_id", Value: 1}}

func (s *MongoCategoryStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	var category models.Category
	err := s.categoryCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&category)
	if err == mongo.ErrNoDocuments {
		return nil, errs.E(errs.NotFound, "category %s not found", id.Hex())
	}
	if err != nil {
		return nil, errs.Store(err, "find category by id")
	}
	return &category, nil
}

func (s *MongoCategoryStore) FindByParent(ctx context.Context, parent *primitive.ObjectID) ([]*models.Category, error) {
	// a zero ObjectID parent counts as a root, same as Category.IsRoot
	filter := bson.M{"parent": bson.M{"$in": bson.A{nil, primitive.NilObjectID}}}
	if parent != nil {
		filter = bson.M{"parent": *parent}
	}
	return s.find(ctx, filter, "find categories by parent")
}

func (s *MongoCategoryStore) FindAll(ctx context.Context) ([]*models.Category, error) {
	return s.find(ctx, bson.D{}, "find all categories")
}

func (s *MongoCategoryStore) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	opts := options.FindOne().SetSort(naturalOrder)
	err := s.categoryCollection.FindOne(ctx, bson.M{"slug": slug}, opts).Decode(&category)
	if err == mongo.ErrNoDocuments {
		return nil, errs.E(errs.NotFound, "category %q not found", slug)
	}
	if err != nil {
		return nil, errs.Store(err, "find category by slug")
	}
	return &category, nil
}

func (s *MongoCategoryStore) Search(ctx context.Context, query string) ([]*models.Category, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"$or": []bson.M{
			{"name": bson.M{"$regex": pattern}},
			{"description": bson.M{"$regex": pattern}},
		},
	}
	return s.find(ctx, filter, "search categories")
}

func (s *MongoCategoryStore) find(ctx context.Context, filter any, op string) ([]*models.Category, error) {
	cursor, err := s.categoryCollection.Find(ctx, filter, options.Find().SetSort(naturalOrder))
	if err != nil {
		return nil, errs.Store(err, op)
	}
	defer cursor.Close(ctx)

	categories := []*models.Category{}
	if err = cursor.All(ctx, &categories); err != nil {
		return nil, errs.Store(err, op)
	}
	return categories, nil
}

func (s *MongoCategoryStore) CountByName(ctx context.Context, name string) (int64, error) {
	count, err := s.categoryCollection.CountDocuments(ctx, bson.M{"name": name})
	if err != nil {
		return 0, errs.Store(err, "count categories by name")
	}
	return count, nil
}

func (s *MongoCategoryStore) Insert(ctx context.Context, category *models.Category) (*models.Category, error) {
	doc := *category
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.Children == nil {
		// $addToSet and $pull need an array, not null
		doc.Children = []primitive.ObjectID{}
	}
	now := time.Now()
	doc.CreatedAt, doc.UpdatedAt = now, now

	if _, err := s.categoryCollection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errs.Wrap(err, errs.DuplicateName, "category %q already exists", doc.Name)
		}
		return nil, errs.Store(err, "insert category")
	}
	return &doc, nil
}

func (s *MongoCategoryStore) Update(ctx context.Context, id primitive.ObjectID, fields models.CategoryFields) (*models.Category, error) {
	set := bson.M{"updated_at": time.Now()}
	if fields.Name != nil {
		set["name"] = *fields.Name
	}
	if fields.Slug != nil {
		set["slug"] = *fields.Slug
	}
	if fields.Description != nil {
		set["description"] = *fields.Description
	}
	if fields.Status != nil {
		set["status"] = *fields.Status
	}
	if fields.ImageURL != nil {
		set["image_url"] = *fields.ImageURL
	}
	if fields.BannerURL != nil {
		set["banner_url"] = *fields.BannerURL
	}

	var category models.Category
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.categoryCollection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&category)
	if err == mongo.ErrNoDocuments {
		return nil, errs.E(errs.NotFound, "category %s not found", id.Hex())
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errs.Wrap(err, errs.DuplicateName, "category name already in use")
		}
		return nil, errs.Store(err, "update category")
	}
	return &category, nil
}

func (s *MongoCategoryStore) SetParent(ctx context.Context, id primitive.ObjectID, parent *primitive.ObjectID) error {
	var value any
	if parent != nil {
		value = *parent
	}
	update := bson.M{"$set": bson.M{"parent": value, "updated_at": time.Now()}}
	return s.updateOne(ctx, id, update, "set category parent")
}

func (s *MongoCategoryStore) AppendChild(ctx context.Context, parent, child primitive.ObjectID) error {
	update := bson.M{
		"$addToSet": bson.M{"children": child},
		"$set":      bson.M{"updated_at": time.Now()},
	}
	return s.updateOne(ctx, parent, update, "append category child")
}

func (s *MongoCategoryStore) RemoveChild(ctx context.Context, parent, child primitive.ObjectID) error {
	update := bson.M{
		"$pull": bson.M{"children": child},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	return s.updateOne(ctx, parent, update, "remove category child")
}

func (s *MongoCategoryStore) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M, op string) error {
	res, err := s.categoryCollection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return errs.Store(err, op)
	}
	if res.MatchedCount == 0 {
		return errs.E(errs.NotFound, "category %s not found", id.Hex())
	}
	return nil
}

func (s *MongoCategoryStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.categoryCollection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errs.Store(err, "delete category")
	}
	if res.DeletedCount == 0 {
		return errs.E(errs.NotFound, "category %s not found", id.Hex())
	}
	return nil
}
