package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/shepherrrd/migrasafe/internal/config"
	"github.com/shepherrrd/migrasafe/internal/dbcontext"
	"github.com/shepherrrd/migrasafe/internal/drivers"
	"github.com/shepherrrd/migrasafe/internal/migrations"
	"github.com/shepherrrd/migrasafe/internal/models"
	"github.com/shepherrrd/migrasafe/internal/parser"
	"github.com/shepherrrd/migrasafe/internal/report"
	"github.com/shepherrrd/migrasafe/internal/risk"
	"github.com/shepherrrd/migrasafe/internal/source"
	"github.com/shepherrrd/migrasafe/internal/validator"
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch command := os.Args[1]; command {
	case "migration":
		err = handleMigrationCommands(ctx, os.Args[2:])
	case "database":
		err = handleDatabaseCommands(ctx, os.Args[2:])
	case "help", "--help", "-h":
		showUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		showUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

func handleMigrationCommands(ctx context.Context, args []string) error {
	if len(args) == 0 {
		showMigrationUsage()
		return fmt.Errorf("migration command requires a subcommand")
	}

	switch args[0] {
	case "list", "status":
		return listMigrations(ctx, args[1:])
	case "validate":
		return validateMigrations(ctx, args[1:])
	default:
		showMigrationUsage()
		return fmt.Errorf("unknown migration subcommand: %s", args[0])
	}
}

func handleDatabaseCommands(ctx context.Context, args []string) error {
	if len(args) == 0 {
		showDatabaseUsage()
		return fmt.Errorf("database command requires a subcommand")
	}

	switch args[0] {
	case "update":
		return updateDatabase(ctx, args[1:])
	case "rollback":
		return rollbackDatabase(ctx, args[1:])
	default:
		showDatabaseUsage()
		return fmt.Errorf("unknown database subcommand: %s", args[0])
	}
}

// session is what every subcommand needs: configuration, the parsed
// migrations and, once connected, a database context.
type session struct {
	cfg        *config.Config
	logger     hclog.Logger
	migrations []models.Migration
	db         *dbcontext.DbContext
}

func openSession(configPath string, connect bool) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "migrasafe",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: os.Stderr,
	})

	sources, err := source.Load(os.DirFS(cfg.MigrationsDir))
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if err := parser.ValidateMigrationName(src.Filename); err != nil {
			logger.Warn("migration file name is not well formed", "file", src.Filename, "error", err)
		}
	}
	all, err := parser.ParseAll(sources)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations in %s: %w", cfg.MigrationsDir, err)
	}

	s := &session{cfg: cfg, logger: logger, migrations: all}
	if !connect {
		return s, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver, err := drivers.NewDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	s.db, err = dbcontext.NewDbContext(dbcontext.DbContextOptions{
		ConnectionString: cfg.DatabaseURL,
		Driver:           driver,
		LogLevel:         cfg.LogLevel,
		HistoryTable:     cfg.HistoryTable,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *session) manager() *migrations.MigrationManager {
	return migrations.NewMigrationManager(s.db, s.logger)
}

func listMigrations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migration list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (default migrasafe.yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("📋 Listing migrations...")

	s, err := openSession(*configPath, true)
	if err != nil {
		return err
	}
	defer s.Close()

	status, err := s.manager().Status(ctx, s.migrations)
	if err != nil {
		return err
	}

	fmt.Print(report.RenderStatus(status))
	return nil
}

func validateMigrations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migration validate", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (default migrasafe.yaml)")
	discover := fs.Bool("discover-hot-tables", false, "Ask the database which tables are large")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("🔍 Validating migrations...")

	s, err := openSession(*configPath, *discover)
	if err != nil {
		return err
	}
	defer s.Close()

	hot := append([]string(nil), s.cfg.HotTables...)
	if len(hot) == 0 {
		hot = append(hot, risk.DefaultHotTables...)
	}
	if *discover {
		found, err := s.db.DiscoverHotTables(ctx, s.cfg.HotTableMinRows)
		if err != nil {
			return err
		}
		hot = append(hot, found...)
	}

	invalid := 0
	for _, m := range s.migrations {
		result := validator.Validate(m)
		if !result.IsValid {
			invalid++
		}
		fmt.Print(report.RenderValidation(m, result, risk.EstimateLockRisk(m.ForwardScript, hot)))
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d migrations failed validation", invalid, len(s.migrations))
	}
	fmt.Printf("✅ %d migrations validated\n", len(s.migrations))
	return nil
}

// commandArgs is what database update and rollback parse from their
// arguments.
type commandArgs struct {
	configPath string
	run        migrations.RunOptions
	rollback   migrations.RollbackOptions
}

func parseUpdateArgs(args []string) (commandArgs, error) {
	var parsed commandArgs

	fs := flag.NewFlagSet("database update", flag.ContinueOnError)
	fs.StringVar(&parsed.configPath, "config", "", "Path to config file (default migrasafe.yaml)")
	fs.BoolVar(&parsed.run.DryRun, "dry-run", false, "Validate and report without executing")
	fs.BoolVar(&parsed.run.Force, "force", false, "Apply migrations with warnings or non-blocking errors")
	fs.BoolVar(&parsed.run.Verbose, "verbose", false, "Log every migration")
	target := fs.Int("target", 0, "Apply up to and including this version")
	if err := fs.Parse(args); err != nil {
		return commandArgs{}, err
	}
	if fs.NArg() > 0 {
		return commandArgs{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if *target > 0 {
		parsed.run.TargetVersion = migrations.Version(*target)
	}
	return parsed, nil
}

// parseRollbackArgs accepts an optional step count before the flags. A
// --target of 0 rolls back everything; leaving it out uses the step count.
func parseRollbackArgs(args []string) (commandArgs, error) {
	var parsed commandArgs
	parsed.rollback.Steps = 1

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return commandArgs{}, fmt.Errorf("rollback steps must be a positive number, got %q", args[0])
		}
		parsed.rollback.Steps = n
		args = args[1:]
	}

	fs := flag.NewFlagSet("database rollback", flag.ContinueOnError)
	fs.StringVar(&parsed.configPath, "config", "", "Path to config file (default migrasafe.yaml)")
	fs.BoolVar(&parsed.rollback.DryRun, "dry-run", false, "Report without executing")
	fs.BoolVar(&parsed.rollback.Verbose, "verbose", false, "Log every migration")
	target := fs.Int("target", -1, "Roll back every migration above this version")
	if err := fs.Parse(args); err != nil {
		return commandArgs{}, err
	}
	if fs.NArg() > 0 {
		return commandArgs{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if *target >= 0 {
		parsed.rollback.TargetVersion = migrations.Version(*target)
	}
	return parsed, nil
}

func updateDatabase(ctx context.Context, args []string) error {
	parsed, err := parseUpdateArgs(args)
	if err != nil {
		return err
	}

	fmt.Println("🔄 Updating database...")

	s, err := openSession(parsed.configPath, true)
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.manager().UpdateDatabase(ctx, s.migrations, parsed.run)
	fmt.Print(report.RenderRunResults(results))
	if err != nil {
		return err
	}
	if failed := countStatus(results, models.StatusFailed); failed > 0 {
		return fmt.Errorf("%d migration(s) failed", failed)
	}

	fmt.Println("✅ Database updated successfully!")
	return nil
}

func rollbackDatabase(ctx context.Context, args []string) error {
	parsed, err := parseRollbackArgs(args)
	if err != nil {
		return err
	}

	if target := parsed.rollback.TargetVersion; target != nil {
		fmt.Printf("↩️  Rolling back to version %d...\n", *target)
	} else {
		fmt.Printf("↩️  Rolling back %d migration(s)...\n", parsed.rollback.Steps)
	}

	s, err := openSession(parsed.configPath, true)
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.manager().RollbackDatabase(ctx, s.migrations, parsed.rollback)
	fmt.Print(report.RenderRunResults(results))
	if err != nil {
		return err
	}
	if failed := countStatus(results, models.StatusFailed); failed > 0 {
		return fmt.Errorf("rollback stopped after a failure")
	}

	fmt.Printf("✅ Rolled back %d migration(s) successfully!\n", countStatus(results, models.StatusRolledBack))
	return nil
}

func countStatus(results []models.RunResult, status models.RunStatus) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}

func showUsage() {
	fmt.Println("🚀 migrasafe - safe SQL schema migrations")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrasafe <command> [arguments]")
	fmt.Println()
	showMigrationUsage()
	fmt.Println()
	showDatabaseUsage()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrasafe migration validate")
	fmt.Println("  migrasafe database update --dry-run")
	fmt.Println("  migrasafe database update --target 5 --force")
	fmt.Println("  migrasafe database rollback 2")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  DATABASE_URL            Database connection string")
	fmt.Println("  MIGRASAFE_DRIVER        postgres, mysql or sqlite (default postgres)")
	fmt.Println("  MIGRASAFE_DIR           Directory of NNN_name.sql files (default migrations)")
	fmt.Println("  MIGRASAFE_HOT_TABLES    Comma separated list of large or busy tables")
	fmt.Println("  MIGRASAFE_LOG_LEVEL     trace, debug, info, warn or error")
	fmt.Println()
}

func showMigrationUsage() {
	fmt.Println("Migration Commands:")
	fmt.Println("  migration list          Show applied, pending and changed migrations")
	fmt.Println("  migration validate      Check every migration for destructive or locking SQL")
}

func showDatabaseUsage() {
	fmt.Println("Database Commands:")
	fmt.Println("  database update         Apply pending migrations")
	fmt.Println("  database rollback [n]   Roll back n migrations (default: 1)")
}
