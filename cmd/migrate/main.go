package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/bagfinder/internal/pkg/config"
	"github.com/samirrijal/bagfinder/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("bagfinder-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		run(ctx, pool, "*.up.sql", false)
	case "down":
		run(ctx, pool, "*.down.sql", true)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// run executes the embedded files matching pattern in name order, or in
// reverse order when rolling back.
func run(ctx context.Context, pool *pgxpool.Pool, pattern string, reverse bool) {
	files, err := fs.Glob(migrations.FS, pattern)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	slices.Sort(files)
	if reverse {
		slices.Reverse(files)
	}

	for _, f := range files {
		data, err := migrations.FS.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}
		fmt.Printf("OK  %s\n", f)
	}

	log.Printf("%d migrations applied", len(files))
}
