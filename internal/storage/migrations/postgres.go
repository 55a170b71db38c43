package migrations

import (
	"context"
	"fmt"

	"alert-backtest-lab/internal/storage/postgres"
)

// ApplyPostgres creates the alerts and trade_results tables.
// Every script uses IF NOT EXISTS, so repeated runs are no-ops.
func ApplyPostgres(ctx context.Context, pool *postgres.Pool) error {
	scripts, err := loadScripts(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	// Exec without arguments uses the simple protocol, which accepts multi-statement scripts.
	for _, s := range scripts {
		if _, err := pool.Exec(ctx, s.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", s.Name, err)
		}
	}
	return nil
}
