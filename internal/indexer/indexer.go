package indexer

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func indexName(def IndexDefinition) string {
	if def.Index.Options != nil && def.Index.Options.Name != nil {
		return *def.Index.Options.Name
	}
	return ""
}

func (m *Manager) Create(ctx context.Context) (*Result, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	log := m.options.Logger
	start := time.Now()
	result := &Result{
		Failures: []FailureDetail{},
	}

	for _, def := range m.indexes {
		name := indexName(def)
		if m.options.SkipIfExists && name != "" {
			exists, err := m.indexExists(ctx, def.Collection, name)
			if err == nil && exists {
				log.Info("index already exists, skipping", zap.String("index", name), zap.String("collection", def.Collection))
				result.SuccessCount++
				continue
			}
		}

		collection := m.db.Collection(def.Collection)
		created, err := collection.Indexes().CreateOne(ctx, def.Index)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				log.Warn("cannot create unique index due to duplicate data",
					zap.String("index", name), zap.String("collection", def.Collection))
			} else {
				log.Error("failed to create index",
					zap.String("index", name), zap.String("collection", def.Collection), zap.Error(err))
			}

			result.FailedCount++
			result.Failures = append(result.Failures, FailureDetail{
				Collection: def.Collection,
				IndexName:  name,
				Error:      err.Error(),
			})

			if !m.options.ContinueOnError {
				result.Duration = time.Since(start)
				return result, err
			}
			continue
		}

		log.Info("created index", zap.String("index", created), zap.String("collection", def.Collection))
		result.SuccessCount++
	}

	result.Duration = time.Since(start)

	if result.FailedCount > 0 {
		return result, fmt.Errorf("%d indexes failed to create", result.FailedCount)
	}

	return result, nil
}

// Drop removes every non-_id index of the given collections, or of every
// registered collection when none are given.
func (m *Manager) Drop(ctx context.Context, collections ...string) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	targetCollections := collections
	if len(targetCollections) == 0 {
		targetCollections = m.Collections()
	}

	for _, collName := range targetCollections {
		collection := m.db.Collection(collName)
		if _, err := collection.Indexes().DropAll(ctx); err != nil {
			if !m.options.ContinueOnError {
				return fmt.Errorf("failed to drop indexes for %s: %w", collName, err)
			}
			m.options.Logger.Error("failed to drop indexes", zap.String("collection", collName), zap.Error(err))
		} else {
			m.options.Logger.Info("dropped all indexes", zap.String("collection", collName))
		}
	}

	return nil
}

func (m *Manager) List(ctx context.Context, collection string) ([]bson.M, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	coll := m.db.Collection(collection)
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var indexes []bson.M
	if err = cursor.All(ctx, &indexes); err != nil {
		return nil, err
	}

	return indexes, nil
}

func (m *Manager) indexExists(ctx context.Context, collection string, name string) (bool, error) {
	indexes, err := m.List(ctx, collection)
	if err != nil {
		return false, err
	}

	for _, idx := range indexes {
		if existing, ok := idx["name"].(string); ok && existing == name {
			return true, nil
		}
	}

	return false, nil
}
