package indexer

import (
	"context"
	"fmt"

	"khoomi-api-io/catalog/pkg/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CategoryIndexes are the indexes the category store relies on: unique names,
// the children-by-parent lookup and slug reads.
func CategoryIndexes(collection string) []IndexDefinition {
	return []IndexDefinition{
		{
			Collection: collection,
			Index: mongo.IndexModel{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetName("category_name_unique").SetUnique(true),
			},
		},
		{
			Collection: collection,
			Index: mongo.IndexModel{
				Keys:    bson.D{{Key: "parent", Value: 1}, {Key: "_id", Value: 1}},
				Options: options.Index().SetName("category_parent"),
			},
		},
		{
			Collection: collection,
			Index: mongo.IndexModel{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetName("category_slug"),
			},
		},
	}
}

// CategoryMigrations bring documents written by older releases up to the
// current shape.
func CategoryMigrations(collection string) []Migration {
	return []Migration{
		{
			Version:     "20240101_001",
			Description: "default missing category status to active",
			Up: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(collection).UpdateMany(ctx,
					bson.M{"status": bson.M{"$exists": false}},
					bson.M{"$set": bson.M{"status": true}})
				return err
			},
		},
		{
			Version:     "20240101_002",
			Description: "replace missing or null children lists with an empty array",
			Up: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(collection).UpdateMany(ctx,
					bson.M{"children": nil},
					bson.M{"$set": bson.M{"children": bson.A{}}})
				return err
			},
		},
		{
			Version:     "20240101_003",
			Description: "normalise missing parent to null",
			Up: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(collection).UpdateMany(ctx,
					bson.M{"parent": bson.M{"$exists": false}},
					bson.M{"$set": bson.M{"parent": nil}})
				return err
			},
		},
		{
			Version:     "20240101_004",
			Description: "backfill category slugs from names",
			Up:          backfillSlugs(collection),
			Down: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(collection).UpdateMany(ctx, bson.M{},
					bson.M{"$unset": bson.M{"slug": ""}})
				return err
			},
		},
		{
			Version:     "20240315_001",
			Description: "turn zero ObjectID parents into null roots",
			Up: func(ctx context.Context, db *mongo.Database) error {
				_, err := db.Collection(collection).UpdateMany(ctx,
					bson.M{"parent": primitive.NilObjectID},
					bson.M{"$set": bson.M{"parent": nil}})
				return err
			},
		},
	}
}

func backfillSlugs(collection string) func(context.Context, *mongo.Database) error {
	return func(ctx context.Context, db *mongo.Database) error {
		coll := db.Collection(collection)
		filter := bson.M{"$or": bson.A{
			bson.M{"slug": bson.M{"$exists": false}},
			bson.M{"slug": ""},
		}}
		cursor, err := coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"name": 1}))
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		var docs []struct {
			ID   any    `bson:"_id"`
			Name string `bson:"name"`
		}
		if err := cursor.All(ctx, &docs); err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}

		writes := make([]mongo.WriteModel, 0, len(docs))
		for _, doc := range docs {
			writes = append(writes, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"_id": doc.ID}).
				SetUpdate(bson.M{"$set": bson.M{"slug": services.CategorySlug(doc.Name)}}))
		}
		if _, err := coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
			return fmt.Errorf("backfill slugs: %w", err)
		}
		return nil
	}
}
