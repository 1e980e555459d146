package indexer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const migrationCollection = "_index_migrations"

type MigrationManager struct {
	db         *mongo.Database
	migrations []Migration
	logger     *zap.Logger
}

func NewMigrationManager(db *mongo.Database, logger *zap.Logger) *MigrationManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MigrationManager{
		db:         db,
		migrations: []Migration{},
		logger:     logger,
	}
}

func (mm *MigrationManager) AddMigration(migrations ...Migration) *MigrationManager {
	mm.migrations = append(mm.migrations, migrations...)
	return mm
}

// Ordered returns the registered migrations in ascending version order.
func (mm *MigrationManager) Ordered() []Migration {
	ordered := append([]Migration{}, mm.migrations...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Version < ordered[j].Version
	})
	return ordered
}

// Run applies every migration not yet recorded as successful, oldest first,
// and stops at the first failure.
func (mm *MigrationManager) Run(ctx context.Context) error {
	coll := mm.db.Collection(migrationCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create migration index: %w", err)
	}

	for _, migration := range mm.Ordered() {
		applied, err := mm.isApplied(ctx, migration.Version)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", migration.Version, err)
		}

		if applied {
			mm.logger.Info("migration already applied, skipping", zap.String("version", migration.Version))
			continue
		}

		mm.logger.Info("running migration",
			zap.String("version", migration.Version), zap.String("description", migration.Description))

		start := time.Now()
		err = migration.Up(ctx, mm.db)
		duration := time.Since(start)

		status := MigrationStatus{
			Version:   migration.Version,
			AppliedAt: time.Now(),
			Success:   err == nil,
		}
		if err != nil {
			status.Error = err.Error()
		}

		// a failed attempt replaces any earlier failed record for the version
		filter := bson.M{"version": migration.Version}
		upsert := options.Replace().SetUpsert(true)
		if _, saveErr := coll.ReplaceOne(ctx, filter, status, upsert); saveErr != nil {
			if err == nil {
				return fmt.Errorf("failed to save migration status: %w", saveErr)
			}
			mm.logger.Error("failed to save migration status", zap.Error(saveErr))
		}

		if err != nil {
			mm.logger.Error("migration failed",
				zap.String("version", migration.Version), zap.Duration("duration", duration), zap.Error(err))
			return fmt.Errorf("migration %s failed: %w", migration.Version, err)
		}

		mm.logger.Info("migration completed",
			zap.String("version", migration.Version), zap.Duration("duration", duration))
	}

	return nil
}

// Rollback reverts applied migrations newer than targetVersion, newest first.
func (mm *MigrationManager) Rollback(ctx context.Context, targetVersion string) error {
	coll := mm.db.Collection(migrationCollection)
	ordered := mm.Ordered()

	for i := len(ordered) - 1; i >= 0; i-- {
		migration := ordered[i]
		if migration.Version <= targetVersion {
			break
		}

		applied, err := mm.isApplied(ctx, migration.Version)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", migration.Version, err)
		}

		if !applied {
			continue
		}

		if migration.Down == nil {
			return fmt.Errorf("migration %s does not support rollback", migration.Version)
		}

		mm.logger.Info("rolling back migration", zap.String("version", migration.Version))

		if err := migration.Down(ctx, mm.db); err != nil {
			return fmt.Errorf("rollback of migration %s failed: %w", migration.Version, err)
		}

		if _, err := coll.DeleteOne(ctx, bson.M{"version": migration.Version}); err != nil {
			return fmt.Errorf("failed to remove migration status: %w", err)
		}
	}

	return nil
}

func (mm *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	coll := mm.db.Collection(migrationCollection)
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query migration status: %w", err)
	}
	defer cursor.Close(ctx)

	statuses := []MigrationStatus{}
	if err = cursor.All(ctx, &statuses); err != nil {
		return nil, fmt.Errorf("failed to decode migration statuses: %w", err)
	}

	return statuses, nil
}

func (mm *MigrationManager) isApplied(ctx context.Context, version string) (bool, error) {
	coll := mm.db.Collection(migrationCollection)
	count, err := coll.CountDocuments(ctx, bson.M{"version": version, "success": true})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
