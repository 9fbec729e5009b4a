package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/infrastructure/config"
	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/infrastructure/migration"
	"github.com/marketsync/backend/migrations"
)

const defaultMigrationsDir = "migrations"

// schemaCommand runs against the configured database. args excludes the
// command name.
type schemaCommand struct {
	usage string
	run   func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var schemaCommands = map[string]schemaCommand{
	"up": {"up", func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Up()
	}},
	"down": {"down", func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Down()
	}},
	"step": {"step <n>", func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(n)
	}},
	"force": {"force <version>", func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	}},
	"version": {"version", func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
}

func main() {
	dir := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	command, rest := args[0], args[1:]

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	switch command {
	case "create":
		err = create(*dir, rest, log)
	case "list":
		err = list(*dir)
	default:
		cmd, ok := schemaCommands[command]
		if !ok {
			log.Error("Unknown command", zap.String("command", command))
			printUsage()
			os.Exit(2)
		}
		err = runSchema(cmd, *dir, rest, log)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

func runSchema(cmd schemaCommand, dir string, args []string, log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database %s: %w", cfg.Database.DBName, err)
	}

	source := dir
	if source == "" {
		source = "embedded"
	}
	log.Info("Running migration command",
		zap.String("command", cmd.usage),
		zap.String("source", source),
		zap.String("database", cfg.Database.DBName),
	)

	m, err := migration.New(db, dir, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	// closes db as well
	defer m.Close()
	return cmd.run(m, args, log)
}

func create(dir string, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: migrate create <name> [description]")
	}
	if dir == "" {
		dir = defaultMigrationsDir
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func list(dir string) error {
	var fsys fs.FS = migrations.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	}
	all, err := migration.ListMigrations(fsys)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("No migrations found")
		return nil
	}
	for _, mg := range all {
		suffix := ""
		if !mg.HasDown {
			suffix = " (no down)"
		}
		fmt.Printf("  %06d %s%s\n", mg.Version, mg.Name, suffix)
	}
	return nil
}

func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing numeric argument")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return n, nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `MarketSync schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative n rolls back)
  version               Show the applied schema version
  force <version>       Record version as applied and clear the dirty flag
  create <name> [desc]  Write a new up/down migration pair
  list                  List available migrations

Flags:
  -path string          Migrations directory (default: the set embedded in the binary)
  -log-level string     debug, info, warn or error (default: info)

Database settings come from config.toml or MSYNC_DATABASE_* variables.
`)
}
