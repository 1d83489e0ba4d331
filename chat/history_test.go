package chat

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vakeel/vakeel/internal/database"
)

func setupHistoryTest(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *HistoryStore) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	pool, err := database.NewPoolManager(gormDB, database.PoolConfig{
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}, zap.NewNop())
	require.NoError(t, err)

	return mockDB, mock, NewHistoryStore(pool, zap.NewNop())
}

func historyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "session_id", "question", "answer", "category", "confidence", "sources", "created_at",
	})
}

func TestHistorySave(t *testing.T) {
	mockDB, mock, store := setupHistoryTest(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "legal_chat_history"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record := &Record{
		Question:   "What is anticipatory bail?",
		Answer:     "A pre-arrest bail direction.",
		Category:   "Criminal",
		Confidence: 0.8,
	}
	err := store.Save(context.Background(), record, []Source{
		{Source: "postgres:legal_document_chunks:d1:1", Preview: "Bail text"},
	})
	require.NoError(t, err)

	// Defaults filled in.
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "default", record.SessionID)
	assert.False(t, record.CreatedAt.IsZero())
	assert.NotEmpty(t, record.Sources)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRecent(t *testing.T) {
	mockDB, mock, store := setupHistoryTest(t)
	defer mockDB.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "legal_chat_history" WHERE session_id =`)).
		WithArgs("s1", 2).
		WillReturnRows(historyRows().
			AddRow("id2", "s1", "second question", "second answer", "Civil", 0.7, nil, now).
			AddRow("id1", "s1", "first question", "first answer", "Criminal", 0.8, nil, now.Add(-time.Minute)))

	records, err := store.Recent(context.Background(), "s1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second question", records[0].Question)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryMemoryFormatsOldestFirst(t *testing.T) {
	mockDB, mock, store := setupHistoryTest(t)
	defer mockDB.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "legal_chat_history"`)).
		WithArgs("s1", MemoryTurns).
		WillReturnRows(historyRows().
			AddRow("id2", "s1", "newer q", "newer a", "", 0.5, nil, now).
			AddRow("id1", "s1", "older q", "older a", "", 0.5, nil, now.Add(-time.Minute)))

	memory := store.Memory(context.Background(), "s1")
	assert.Contains(t, memory, "Recent conversation history:")
	assert.Contains(t, memory, "User: older q\nBot: older a")
	assert.Contains(t, memory, "User: newer q\nBot: newer a")
	assert.Less(t,
		strings.Index(memory, "older q"), strings.Index(memory, "newer q"),
		"memory must read oldest to newest")
}

func TestHistoryMemoryEmptySession(t *testing.T) {
	mockDB, _, store := setupHistoryTest(t)
	defer mockDB.Close()

	assert.Equal(t, "", store.Memory(context.Background(), ""))
}

func TestHistoryMemoryDegradesOnError(t *testing.T) {
	mockDB, mock, store := setupHistoryTest(t)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "legal_chat_history"`)).
		WillReturnError(sql.ErrConnDone)

	assert.Equal(t, "", store.Memory(context.Background(), "s1"))
}
