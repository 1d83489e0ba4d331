package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultChunkTable is the table the ingestion pipeline writes to.
const DefaultChunkTable = "legal_document_chunks"

// validTableName guards against injecting anything but a plain identifier
// into the interpolated table position.
var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// GormStore implements ChunkStore on a PostgreSQL table accessed through
// GORM. The ranked full-text strategy relies on to_tsvector/ts_rank and is
// therefore Postgres-only; the remaining strategies are plain SQL.
type GormStore struct {
	db     *gorm.DB
	table  string
	logger *zap.Logger
}

// NewGormStore creates a chunk store bound to the given table.
func NewGormStore(db *gorm.DB, table string, logger *zap.Logger) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if table == "" {
		table = DefaultChunkTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid chunk table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		db:     db,
		table:  table,
		logger: logger.With(zap.String("component", "chunk_store"), zap.String("table", table)),
	}, nil
}

// Table returns the configured chunk table name.
func (s *GormStore) Table() string { return s.table }

const chunkColumns = "doc_id, chunk_id, text, predicted_label, metadata"

// SearchFullText runs the ranked full-text strategy.
func (s *GormStore) SearchFullText(ctx context.Context, query string, limit int) ([]Chunk, error) {
	q := fmt.Sprintf(`
		SELECT %s, ts_rank(to_tsvector('english', text), plainto_tsquery('english', ?)) AS rank
		FROM %s
		WHERE to_tsvector('english', text) @@ plainto_tsquery('english', ?)
		ORDER BY rank DESC
		LIMIT ?`, chunkColumns, s.table)
	return s.scanChunks(ctx, true, q, query, query, limit)
}

// SearchFullTextAny runs the ranked full-text strategy with OR semantics
// over the given terms: a chunk matches when any single term does.
func (s *GormStore) SearchFullTextAny(ctx context.Context, terms []string, limit int) ([]Chunk, error) {
	// Terms reach the tsquery position verbatim, so only plain word
	// tokens may pass.
	branches := make([]string, 0, len(terms))
	for _, term := range terms {
		for _, tok := range Tokenize(term) {
			branches = append(branches, tok)
		}
	}
	if len(branches) == 0 {
		return nil, nil
	}
	tsquery := strings.Join(branches, " | ")

	q := fmt.Sprintf(`
		SELECT %s, ts_rank(to_tsvector('english', text), to_tsquery('english', ?)) AS rank
		FROM %s
		WHERE to_tsvector('english', text) @@ to_tsquery('english', ?)
		ORDER BY rank DESC
		LIMIT ?`, chunkColumns, s.table)
	return s.scanChunks(ctx, true, q, tsquery, tsquery, limit)
}

// SearchSubstring runs the case-insensitive substring strategy.
func (s *GormStore) SearchSubstring(ctx context.Context, query string, limit int) ([]Chunk, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE text ILIKE ? LIMIT ?`, chunkColumns, s.table)
	return s.scanChunks(ctx, false, q, "%"+query+"%", limit)
}

// SearchLabelMeta matches the predicted label or the serialized metadata.
func (s *GormStore) SearchLabelMeta(ctx context.Context, query string, limit int) ([]Chunk, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE predicted_label ILIKE ? OR metadata::text ILIKE ? LIMIT ?`,
		chunkColumns, s.table)
	pattern := "%" + query + "%"
	return s.scanChunks(ctx, false, q, pattern, pattern, limit)
}

// Sample fetches up to limit chunks that carry text, with no other filter.
func (s *GormStore) Sample(ctx context.Context, limit int) ([]Chunk, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE text IS NOT NULL AND length(text) > 0 LIMIT ?`,
		chunkColumns, s.table)
	return s.scanChunks(ctx, false, q, limit)
}

// scanChunks executes a chunk query and materializes the rows. withRank
// tells it to expect a trailing rank column.
func (s *GormStore) scanChunks(ctx context.Context, withRank bool, query string, args ...any) ([]Chunk, error) {
	rows, err := s.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("chunk query: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			c       Chunk
			label   sql.NullString
			rawMeta []byte
		)
		dest := []any{&c.DocID, &c.ChunkID, &c.Text, &label, &rawMeta}
		if withRank {
			dest = append(dest, &c.Rank)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		if label.Valid {
			c.PredictedLabel = label.String
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &c.Metadata); err != nil {
				// Metadata is advisory; a malformed blob must not lose the chunk.
				s.logger.Warn("unparsable chunk metadata",
					zap.String("doc_id", c.DocID),
					zap.Int("chunk_id", c.ChunkID),
					zap.Error(err))
				c.Metadata = nil
			}
		}
		c.Source = fmt.Sprintf("postgres:%s:%s:%d", s.table, c.DocID, c.ChunkID)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return chunks, nil
}

// CoverageReport counts how many chunks each strategy matches for a term.
// It backs the operator-facing coverage subcommand and is not part of the
// retrieval path.
type CoverageReport struct {
	Term             string
	FullTextMatches  int64
	SubstringMatches int64
	MetadataMatches  int64
	Previews         []Chunk
}

// Coverage runs the three strategy predicates as COUNT queries plus a short
// preview listing.
func (s *GormStore) Coverage(ctx context.Context, term string, previewLimit int) (*CoverageReport, error) {
	report := &CoverageReport{Term: term}
	pattern := "%" + term + "%"

	counts := []struct {
		dest  *int64
		query string
		args  []any
	}{
		{
			&report.FullTextMatches,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE to_tsvector('english', text) @@ plainto_tsquery('english', ?)`, s.table),
			[]any{term},
		},
		{
			&report.SubstringMatches,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE text ILIKE ?`, s.table),
			[]any{pattern},
		},
		{
			&report.MetadataMatches,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE predicted_label ILIKE ? OR metadata::text ILIKE ?`, s.table),
			[]any{pattern, pattern},
		},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Raw(c.query, c.args...).Scan(c.dest).Error; err != nil {
			return nil, fmt.Errorf("coverage count: %w", err)
		}
	}

	previews, err := s.SearchSubstring(ctx, term, previewLimit)
	if err != nil {
		return nil, err
	}
	report.Previews = previews
	return report, nil
}
