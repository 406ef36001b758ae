// Command migrate applies or rolls back the schema in migrations/ against
// DATABASE_URL, tracking applied versions via golang-migrate's
// schema_migrations table rather than the no-tracking embedded runner
// internal/platform/migrations uses at service startup.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/moonzip/launchd/internal/config"
	"github.com/moonzip/launchd/internal/platform/migrations"
)

func main() {
	direction := flag.String("direction", "up", "up or down")
	steps := flag.Int("steps", 0, "number of steps to apply (0 = all)")
	embedded := flag.Bool("embedded", false, "apply via the no-tracking embedded runner instead of golang-migrate (fresh databases only)")
	flag.Parse()

	profile := config.MustLoad()

	if *embedded {
		db, err := sql.Open("postgres", profile.DatabaseURL)
		if err != nil {
			log.Fatalf("migrate: open database: %v", err)
		}
		defer db.Close()
		if err := migrations.Apply(context.Background(), db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		fmt.Println("migrate: done")
		return
	}

	m, err := migrate.New("file://migrations", profile.DatabaseURL)
	if err != nil {
		log.Fatalf("migrate: open: %v", err)
	}
	defer m.Close()

	var runErr error
	switch *direction {
	case "up":
		if *steps == 0 {
			runErr = m.Up()
		} else {
			runErr = m.Steps(*steps)
		}
	case "down":
		if *steps == 0 {
			runErr = m.Down()
		} else {
			runErr = m.Steps(-*steps)
		}
	default:
		log.Fatalf("migrate: unknown direction %q", *direction)
	}

	if runErr != nil && !errors.Is(runErr, migrate.ErrNoChange) {
		log.Fatalf("migrate: %v", runErr)
	}
	fmt.Println("migrate: done")
}
