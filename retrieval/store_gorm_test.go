package retrieval

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupStoreTest(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *GormStore) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{Conn: mockDB})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	store, err := NewGormStore(gormDB, "legal_document_chunks", zap.NewNop())
	require.NoError(t, err)

	return mockDB, mock, store
}

func chunkRows(withRank bool) *sqlmock.Rows {
	cols := []string{"doc_id", "chunk_id", "text", "predicted_label", "metadata"}
	if withRank {
		cols = append(cols, "rank")
	}
	return sqlmock.NewRows(cols)
}

func TestNewGormStoreValidatesInput(t *testing.T) {
	_, err := NewGormStore(nil, "t", zap.NewNop())
	assert.Error(t, err)

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	_, err = NewGormStore(gormDB, "bad table; DROP", zap.NewNop())
	assert.Error(t, err, "table names must be plain identifiers")

	store, err := NewGormStore(gormDB, "", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkTable, store.Table())
}

func TestGormStoreSearchFullText(t *testing.T) {
	mockDB, mock, store := setupStoreTest(t)
	defer mockDB.Close()

	rows := chunkRows(true).
		AddRow("doc1", 3, "Section 420 IPC covers cheating.", "criminal", []byte(`{"page_number": 12}`), 0.61).
		AddRow("doc2", 1, "Dishonest inducement of property.", nil, nil, 0.42)

	mock.ExpectQuery(regexp.QuoteMeta("ts_rank(to_tsvector('english', text)")).
		WithArgs("cheating", "cheating", 15).
		WillReturnRows(rows)

	chunks, err := store.SearchFullText(context.Background(), "cheating", 15)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "doc1", chunks[0].DocID)
	assert.Equal(t, 3, chunks[0].ChunkID)
	assert.Equal(t, "criminal", chunks[0].PredictedLabel)
	assert.Equal(t, float64(12), chunks[0].Metadata["page_number"])
	assert.InDelta(t, 0.61, chunks[0].Rank, 1e-9)
	assert.Equal(t, "postgres:legal_document_chunks:doc1:3", chunks[0].Source)

	assert.Empty(t, chunks[1].PredictedLabel)
	assert.Nil(t, chunks[1].Metadata)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreSearchFullTextAny(t *testing.T) {
	mockDB, mock, store := setupStoreTest(t)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("to_tsquery('english'")).
		WithArgs("mukhtar | singh | mukhtiar", "mukhtar | singh | mukhtiar", 15).
		WillReturnRows(chunkRows(true).
			AddRow("doc7", 1, "Mukhtiar Singh filed a revision petition.", nil, nil, 0.3))

	chunks, err := store.SearchFullTextAny(context.Background(), []string{"mukhtar", "singh", "mukhtiar"}, 15)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.InDelta(t, 0.3, chunks[0].Rank, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreSearchFullTextAnySanitizesTerms(t *testing.T) {
	mockDB, mock, store := setupStoreTest(t)
	defer mockDB.Close()

	// Operator characters must not survive into the tsquery position.
	mock.ExpectQuery(regexp.QuoteMeta("to_tsquery('english'")).
		WithArgs("bail | b | c", "bail | b | c", 5).
		WillReturnRows(chunkRows(true))

	_, err := store.SearchFullTextAny(context.Background(), []string{"bail", "b&!c"}, 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// All-junk terms produce no query at all.
	chunks, err := store.SearchFullTextAny(context.Background(), []string{"&&", "!!"}, 5)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestGormStoreSearchSubstring(t *testing.T) {
	mockDB, mock, store := setupStoreTest(t)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE text ILIKE")).
		WithArgs("%bail%", 10).
		WillReturnRows(chunkRows(false).
			AddRow("doc9", 2, "Bail conditions under CrPC.", "criminal", nil))

	chunks, err := store.SearchSubstring(context.Background(), "bail", 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Zero(t, chunks[0].Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreSearchLabelMeta(t *testing.T) {
	mockDB, mock, store := setupStoreTest(t)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE predicted_label ILIKE")).
		WithArgs("%property%", "%property%", 10).
		WillReturnRows(chunkRows(false).
			AddRow("doc4", 1, "Possession and ownership disputes.", "property", []byte(`{"court":"high court"}`)))

	chunks, err := store.SearchLabelMeta(context.Background(), "property", 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "high court", chunks[0].Metadata["court"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreSample(t *testing.T) {
	mockDB, mock, store := setupStoreTest(t)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE text IS NOT NULL AND length(text) > 0")).
		WithArgs(5000).
		WillReturnRows(chunkRows(false).
			AddRow("doc1", 1, "chunk one", nil, nil).
			AddRow("doc1", 2, "chunk two", nil, nil))

	chunks, err := store.Sample(context.Background(), 5000)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreMalformedMetadataKeepsChunk(t *testing.T) {
	mockDB, mock, store := setupStoreTest(t)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE text ILIKE")).
		WithArgs("%bail%", 10).
		WillReturnRows(chunkRows(false).
			AddRow("doc1", 1, "Bail text.", nil, []byte("{not json")))

	chunks, err := store.SearchSubstring(context.Background(), "bail", 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Nil(t, chunks[0].Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreQueryError(t *testing.T) {
	mockDB, mock, store := setupStoreTest(t)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE text ILIKE")).
		WithArgs("%bail%", 10).
		WillReturnError(sql.ErrConnDone)

	_, err := store.SearchSubstring(context.Background(), "bail", 10)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreCoverage(t *testing.T) {
	mockDB, mock, store := setupStoreTest(t)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM legal_document_chunks WHERE to_tsvector")).
		WithArgs("bail").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM legal_document_chunks WHERE text ILIKE")).
		WithArgs("%bail%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(9)))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE predicted_label ILIKE")).
		WithArgs("%bail%", "%bail%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE text ILIKE")).
		WithArgs("%bail%", 3).
		WillReturnRows(chunkRows(false).
			AddRow("doc1", 1, "Bail conditions.", nil, nil))

	report, err := store.Coverage(context.Background(), "bail", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), report.FullTextMatches)
	assert.Equal(t, int64(9), report.SubstringMatches)
	assert.Equal(t, int64(2), report.MetadataMatches)
	assert.Len(t, report.Previews, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
