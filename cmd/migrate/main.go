package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/db"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up             apply all pending migrations
  down           revert the latest migration
  to <version>   migrate up or down to version
  status         list migrations and whether they are applied
  create <name>  write a new migration into -dir
  validate       check migration file names and goose markers
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage); flag.PrintDefaults() }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "command", command)

	var fsys fs.FS
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}

	switch command {
	case "create":
		if len(args) != 1 {
			fail(ctx, logg, "create needs exactly one name", nil)
		}
		target := *dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.Create(target, args[0], time.Now())
		if err != nil {
			fail(ctx, logg, "create migration", err)
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		return
	case "validate":
		if fsys == nil {
			fsys = migrate.Migrations()
		}
		if err := migrate.Validate(fsys); err != nil {
			fail(ctx, logg, "migrations invalid", err)
		}
		logg.Info(ctx, "migrations valid")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fail(ctx, logg, "load config", err)
	}
	logg = logger.New(logger.Options{ServiceName: "migrate", Level: logger.ParseLevel(cfg.App.LogLevel)})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "command": command})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "connect database", err)
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		fail(ctx, logg, "unwrap database", err)
	}
	runner, err := migrate.NewRunner(sqlDB, fsys)
	if err != nil {
		fail(ctx, logg, "load migrations", err)
	}

	var results []migrate.Result
	switch command {
	case "up":
		results, err = runner.Up(ctx)
	case "down":
		results, err = runner.Down(ctx)
	case "to":
		if len(args) != 1 {
			fail(ctx, logg, "to needs a target version", nil)
		}
		target, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			fail(ctx, logg, "target version must be YYYYMMDDHHMMSS", perr)
		}
		results, err = runner.To(ctx, target)
	case "status":
		statuses, serr := runner.Status(ctx)
		if serr != nil {
			fail(ctx, logg, "read status", serr)
		}
		for _, st := range statuses {
			applied := "pending"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%-14d %-25s %s\n", st.Source.Version, applied, st.Source.Path)
		}
		return
	default:
		flag.Usage()
		os.Exit(2)
	}

	for _, r := range results {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": r.Version, "path": r.Path, "direction": r.Direction}), "migration applied")
	}
	if err != nil {
		fail(ctx, logg, command+" failed", err)
	}
	logg.Info(logg.WithField(ctx, "count", len(results)), "migrate finished")
}

func fail(ctx context.Context, logg *logger.Logger, msg string, err error) {
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
