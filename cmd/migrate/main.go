/**
 * @description
 * Deploy-time migration runner. It applies the embedded SQL files in
 * lexicographic order and records each applied file in schema_migrations so
 * reruns are no-ops. The service itself never touches the schema at runtime.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/config, migrations: Configuration loading and the embedded schema files.
 */

package main

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackkaliboi/ofs-sub001/internal/config"
	"github.com/hackkaliboi/ofs-sub001/migrations"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=migrate msg=\"config load failed\" err=%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=migrate msg=\"database connection failed\" err=%v", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		log.Fatalf("level=fatal component=migrate msg=\"migration ledger init failed\" err=%v", err)
	}

	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		log.Fatalf("level=fatal component=migrate msg=\"reading embedded migrations failed\" err=%v", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var applied bool
		if err := conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, file,
		).Scan(&applied); err != nil {
			log.Fatalf("level=fatal component=migrate msg=\"migration ledger check failed\" file=%s err=%v", file, err)
		}
		if applied {
			log.Printf("level=info component=migrate msg=\"already applied\" file=%s", file)
			continue
		}

		sql, err := migrations.FS.ReadFile(file)
		if err != nil {
			log.Fatalf("level=fatal component=migrate msg=\"reading migration failed\" file=%s err=%v", file, err)
		}

		tx, err := conn.Begin(ctx)
		if err != nil {
			log.Fatalf("level=fatal component=migrate msg=\"transaction begin failed\" file=%s err=%v", file, err)
		}
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			_ = tx.Rollback(ctx)
			log.Fatalf("level=fatal component=migrate msg=\"migration failed\" file=%s err=%v", file, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, file,
		); err != nil {
			_ = tx.Rollback(ctx)
			log.Fatalf("level=fatal component=migrate msg=\"migration ledger update failed\" file=%s err=%v", file, err)
		}
		if err := tx.Commit(ctx); err != nil {
			log.Fatalf("level=fatal component=migrate msg=\"commit failed\" file=%s err=%v", file, err)
		}
		log.Printf("level=info component=migrate msg=\"applied\" file=%s", file)
	}

	log.Println("level=info component=migrate msg=\"migrations complete\"")
}
