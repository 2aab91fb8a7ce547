package service

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"

	"github.com/rs/zerolog"
)

//go:embed schema.sql
var schemaSQL string

type seedService struct {
	name     string
	desc     string
	price    float64
	minutes  int
	category string
}

var defaultServices = []seedService{
	{"General Checkup", "Routine oral examination", 50, 30, "general"},
	{"Teeth Cleaning", "Scaling and polishing", 80, 45, "preventive"},
	{"Tooth Filling", "Composite restoration", 120, 45, "restorative"},
	{"Root Canal", "Endodontic treatment", 400, 90, "endodontics"},
	{"Tooth Extraction", "Simple or surgical extraction", 150, 45, "surgery"},
	{"Teeth Whitening", "In-office bleaching", 300, 60, "cosmetic"},
	{"Orthodontics", "Braces consultation and fitting", 1500, 60, "orthodontics"},
	{"Dental Implants", "Implant placement", 2000, 120, "surgery"},
}

// Statements of the rendered schema. The schema file holds no literal
// semicolons, so splitting on them is safe.
func schemaStatements(d Dialect) []string {
	var out []string
	for _, stmt := range strings.Split(d.RenderSchema(schemaSQL), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Migrate creates every table and index that is missing and seeds the
// service catalogue when it is empty. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *DB, log zerolog.Logger) error {
	stmts := schemaStatements(db.Dialect)
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return engineErr("apply schema", err)
			}
		}

		var n int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM services`).Scan(&n); err != nil {
			return engineErr("count services", err)
		}
		if n > 0 {
			return nil
		}
		insert := db.Rebind(`INSERT INTO services (name, description, price, duration_minutes, category) VALUES (?, ?, ?, ?, ?)`)
		for _, s := range defaultServices {
			if _, err := tx.ExecContext(ctx, insert, s.name, s.desc, s.price, s.minutes, s.category); err != nil {
				return engineErr("seed services", err)
			}
		}
		log.Info().Int("services", len(defaultServices)).Msg("seeded service catalogue")
		return nil
	})
}
