package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("successful ping", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectPing()

		assert.NoError(t, db.Ping(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed ping", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		assert.Error(t, db.Ping(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, stats.InUse)
}

func TestGormCatalogGateway_DriverFailure(t *testing.T) {
	t.Run("lookup many keeps driver error", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "catalog_items" WHERE id IN`).
			WillReturnError(errors.New("connection reset by peer"))

		_, err := NewGormCatalogGateway(db.DB).LookupMany(context.Background(), []cart.ItemID{100})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset by peer")
		assert.Contains(t, err.Error(), "catalog lookup of 1 items")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup many wraps driver error", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "catalog_items" WHERE id IN`).
			WillReturnError(errors.New("canceling statement due to statement timeout"))

		views, err := NewGormCatalogGateway(db.DB).LookupMany(context.Background(), []cart.ItemID{1, 2})
		require.Error(t, err)
		assert.Nil(t, views)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup many issues one query", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "catalog_items" WHERE id IN \(\$1,\$2\)`).
			WithArgs(int64(1), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "image", "stock", "status"}).
				AddRow(1, "Mug", "9.5000", "mug.png", 3, "active"))

		views, err := NewGormCatalogGateway(db.DB).LookupMany(context.Background(), []cart.ItemID{2, 1, 2})
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "Mug", views[1].Name)
		assert.True(t, views[1].Available)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
