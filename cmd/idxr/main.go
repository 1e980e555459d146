package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"khoomi-api-io/catalog/config"
	"khoomi-api-io/catalog/internal/indexer"
	"khoomi-api-io/catalog/pkg/models"
	"khoomi-api-io/catalog/pkg/services"
	"khoomi-api-io/catalog/pkg/util"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const actions = "create, drop, list, stats, migrate, status, rollback, repair"

func main() {
	var (
		action      = flag.String("action", "create", "Action: "+actions)
		uri         = flag.String("uri", "", "MongoDB URI (defaults to env DATABASE_URL)")
		dbName      = flag.String("db", "", "Database name (defaults to env DB_NAME)")
		collection  = flag.String("collection", "", "Category collection (defaults to env CATEGORY_COLLECTION)")
		target      = flag.String("target", "", "Migration version to roll back to")
		timeout     = flag.Duration("timeout", 60*time.Second, "Operation timeout")
		continueErr = flag.Bool("continue-on-error", true, "Continue on error")
		skipExists  = flag.Bool("skip-if-exists", true, "Skip existing indexes")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
	)
	flag.Parse()

	cfg, err := config.Read()
	if err != nil {
		log.Fatal("Failed to read configuration: ", err)
	}
	if *uri != "" {
		cfg.DatabaseURL = *uri
	}
	if *dbName != "" {
		cfg.DBName = *dbName
	}
	if *collection != "" {
		cfg.Collection = *collection
	}

	level := cfg.LogLevel
	if *jsonOutput && level == "" {
		level = "warn"
	}
	logger, err := util.InitLogger(cfg.GinMode, level)
	if err != nil {
		log.Fatal("Failed to initialise logger: ", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := util.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect", zap.Error(err))
		}
	}()

	db := client.Database(cfg.DBName)
	manager := indexer.NewManager(db, &indexer.Options{
		Timeout:         *timeout,
		ContinueOnError: *continueErr,
		SkipIfExists:    *skipExists,
		Logger:          logger,
	}).LoadFromDefinitions(indexer.CategoryIndexes(cfg.Collection))
	migrations := indexer.NewMigrationManager(db, logger).
		AddMigration(indexer.CategoryMigrations(cfg.Collection)...)

	var runErr error
	switch *action {
	case "create":
		runErr = create(ctx, manager, cfg.DBName, *jsonOutput)
	case "drop":
		runErr = manager.Drop(ctx, flag.Args()...)
		report(*jsonOutput, map[string]any{"success": runErr == nil, "error": errorString(runErr)},
			"Indexes dropped successfully")
	case "list":
		runErr = list(ctx, manager, cfg.Collection, *jsonOutput)
	case "stats":
		runErr = stats(ctx, manager, *jsonOutput)
	case "migrate":
		runErr = migrations.Run(ctx)
		report(*jsonOutput, map[string]any{"success": runErr == nil, "error": errorString(runErr)},
			"Migrations applied")
	case "status":
		runErr = status(ctx, migrations, *jsonOutput)
	case "rollback":
		if *target == "" {
			logger.Fatal("Target version required for rollback (-target flag)")
		}
		runErr = migrations.Rollback(ctx, *target)
		report(*jsonOutput, map[string]any{"success": runErr == nil, "error": errorString(runErr)},
			"Rolled back to "+*target)
	case "repair":
		runErr = repair(ctx, util.GetCollection(client, cfg.DBName, cfg.Collection), logger, *jsonOutput)
	default:
		fmt.Printf("Unknown action: %s\n", *action)
		fmt.Println("Available actions: " + actions)
		os.Exit(1)
	}

	if runErr != nil {
		logger.Fatal("Action failed", zap.String("action", *action), zap.Error(runErr))
	}
}

func create(ctx context.Context, manager *indexer.Manager, database string, jsonOutput bool) error {
	if !jsonOutput {
		fmt.Printf("Creating indexes in database: %s\n", database)
	}

	result, err := manager.Create(ctx)
	if jsonOutput {
		outputJSON(map[string]any{
			"success": err == nil,
			"result":  result,
			"error":   errorString(err),
		})
		return err
	}

	fmt.Printf("\nResults:\n")
	fmt.Printf("  Success: %d\n", result.SuccessCount)
	fmt.Printf("  Failed: %d\n", result.FailedCount)
	fmt.Printf("  Duration: %v\n", result.Duration)

	if len(result.Failures) > 0 {
		fmt.Printf("\nFailures:\n")
		for _, f := range result.Failures {
			fmt.Printf("  - %s.%s: %s\n", f.Collection, f.IndexName, f.Error)
		}
	}
	return err
}

func list(ctx context.Context, manager *indexer.Manager, collection string, jsonOutput bool) error {
	indexes, err := manager.List(ctx, collection)
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(indexes)
		return nil
	}
	fmt.Printf("Indexes for collection %s:\n", collection)
	for _, idx := range indexes {
		if name, ok := idx["name"].(string); ok {
			fmt.Printf("  - %s\n", name)
			if key, ok := idx["key"]; ok {
				fmt.Printf("    Keys: %v\n", key)
			}
			if unique, ok := idx["unique"].(bool); ok && unique {
				fmt.Printf("    Unique: true\n")
			}
		}
	}
	return nil
}

func stats(ctx context.Context, manager *indexer.Manager, jsonOutput bool) error {
	all, err := manager.StatsAll(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(all)
		return nil
	}
	for coll, collStats := range all {
		fmt.Printf("\n=== %s ===\n", coll)
		for _, stat := range collStats {
			fmt.Printf("  %s:\n", stat.Name)
			fmt.Printf("    Accesses: %d\n", stat.Accesses)
			fmt.Printf("    Since: %v\n", stat.Since)
			if stat.Building {
				fmt.Printf("    Status: BUILDING\n")
			}
		}
	}
	return nil
}

func status(ctx context.Context, migrations *indexer.MigrationManager, jsonOutput bool) error {
	statuses, err := migrations.Status(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(statuses)
		return nil
	}
	applied := make(map[string]indexer.MigrationStatus, len(statuses))
	for _, s := range statuses {
		applied[s.Version] = s
	}
	for _, m := range migrations.Ordered() {
		state := "pending"
		if s, ok := applied[m.Version]; ok {
			state = "failed"
			if s.Success {
				state = "applied " + s.AppliedAt.Format(time.RFC3339)
			}
		}
		fmt.Printf("  %s  %-40s %s\n", m.Version, m.Description, state)
	}
	return nil
}

// repair reconciles parent and children references with the same pass the API exposes.
func repair(ctx context.Context, collection *mongo.Collection, logger *zap.Logger, jsonOutput bool) error {
	service := services.NewCategoryService(
		services.NewMongoCategoryStore(collection),
		services.NewRoleGate(models.RoleAdmin),
		services.WithLogger(logger),
	)

	result, err := service.Repair(ctx, models.System)
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(result)
		return nil
	}
	fmt.Printf("Scanned: %d\n", result.Scanned)
	fmt.Printf("  Restored back-references: %d\n", len(result.RestoredBackRefs))
	fmt.Printf("  Dropped child references: %d\n", len(result.DroppedChildRefs))
	fmt.Printf("  Detached from missing parents: %d\n", len(result.DetachedFromMissing))
	fmt.Printf("  Duplicate children collapsed:  %d\n", len(result.DedupedChildRefs))
	return nil
}

func report(jsonOutput bool, data map[string]any, message string) {
	if jsonOutput {
		outputJSON(data)
		return
	}
	if data["success"] == true {
		fmt.Println(message)
	}
}

func outputJSON(data any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		log.Fatal("Failed to encode JSON:", err)
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
