package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tharunsai190/classy-commerce-storefront/internal/database"
	"github.com/tharunsai190/classy-commerce-storefront/internal/database/dbtest"
)

func TestHealth_Up(t *testing.T) {
	db := dbtest.Postgres(t)
	svc := database.New(db, "storefront")

	stats := svc.Health(context.Background())
	assert.Equal(t, "up", stats["status"])
	assert.Equal(t, "storefront", stats["database"])
	assert.Contains(t, stats, "open_connections")

	assert.Same(t, db, svc.DB())
	var one int
	require.NoError(t, svc.DB().QueryRowContext(context.Background(), "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestHealth_DownAfterClose(t *testing.T) {
	db := dbtest.Postgres(t)
	svc := database.New(db, "storefront")
	require.NoError(t, svc.Close())

	stats := svc.Health(context.Background())
	assert.Equal(t, "down", stats["status"])
	assert.NotEmpty(t, stats["error"])
}

func TestMigrate_CreatesSchema(t *testing.T) {
	db := dbtest.Postgres(t)

	var tables int
	err := db.QueryRowContext(context.Background(),
		`SELECT count(*) FROM information_schema.tables
		 WHERE table_name IN ('products', 'orders', 'order_lines', 'outbox')`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 4, tables)
}
