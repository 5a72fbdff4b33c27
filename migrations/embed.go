// Package migrations embeds SQL migration files into the binary.
//
// Importing this package registers the playout schema with the database
// package, so Migrate works without SQL files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.RegisterMigrations(migrationsFS)
}
