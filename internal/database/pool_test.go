package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	// gorm.Open pings the connection; with ping monitoring enabled that
	// call must be expected or sqlmock rejects it.
	mock.ExpectPing()

	dialector := postgres.New(postgres.Config{Conn: mockDB})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	return mockDB, mock, gormDB
}

func newTestPool(t *testing.T, gormDB *gorm.DB) *PoolManager {
	t.Helper()
	manager, err := NewPoolManager(gormDB, PoolConfig{
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}, zap.NewNop())
	require.NoError(t, err)
	return manager
}

func TestNewPoolManager(t *testing.T) {
	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()

	config := PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	manager, err := NewPoolManager(gormDB, config, zap.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, manager)
	assert.Equal(t, config, manager.config)
	assert.Equal(t, gormDB, manager.DB())
}

func TestNewPoolManagerNilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), zap.NewNop())
	assert.Error(t, err)
}

func TestPoolManager_Ping(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager := newTestPool(t, gormDB)

	mock.ExpectPing()
	assert.NoError(t, manager.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_PingFailed(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager := newTestPool(t, gormDB)

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, manager.Ping(context.Background()))
}

func TestPoolManager_Stats(t *testing.T) {
	mockDB, _, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager := newTestPool(t, gormDB)

	stats := manager.Stats()
	assert.GreaterOrEqual(t, stats.MaxOpenConnections, 0)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
}

func TestPoolManager_WithTransaction(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager := newTestPool(t, gormDB)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := manager.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return nil
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRollback(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager := newTestPool(t, gormDB)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := manager.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return assert.AnError
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRetryNonRetryable(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)
	defer mockDB.Close()

	manager := newTestPool(t, gormDB)

	// A plain application error must not be retried.
	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	err := manager.WithTransactionRetry(context.Background(), 3, func(tx *gorm.DB) error {
		calls++
		return assert.AnError
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPoolManager_Close(t *testing.T) {
	mockDB, mock, gormDB := setupTestDB(t)

	manager := newTestPool(t, gormDB)

	mock.ExpectClose()
	assert.NoError(t, manager.Close())
	assert.NoError(t, manager.Close())
	assert.Error(t, manager.Ping(context.Background()))
	_ = mockDB
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "x"}, zap.NewNop())
	assert.Error(t, err)
}

func TestIsRetryableError(t *testing.T) {
	retryable := []string{
		"deadlock detected",
		"serialization failure",
		"ERROR: could not serialize access (SQLSTATE 40001)",
		"connection reset by peer",
		"driver: bad connection",
		"lock wait timeout exceeded",
	}
	for _, msg := range retryable {
		assert.True(t, isRetryableError(errorString(msg)), msg)
	}
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(errorString("unique constraint violation")))
}

type errorString string

func (e errorString) Error() string { return string(e) }
