package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vakeel/vakeel/internal/database"
)

// MemoryTurns is how many past exchanges feed the prompt context.
const MemoryTurns = 3

// Record is one persisted question/answer exchange.
type Record struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	SessionID  string    `gorm:"column:session_id" json:"session_id"`
	Question   string    `gorm:"column:question" json:"question"`
	Answer     string    `gorm:"column:answer" json:"answer"`
	Category   string    `gorm:"column:category" json:"category"`
	Confidence float64   `gorm:"column:confidence" json:"confidence"`
	Sources    []byte    `gorm:"column:sources;type:jsonb" json:"-"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName maps Record to the history table.
func (Record) TableName() string {
	return "legal_chat_history"
}

// HistoryStore persists chat exchanges and serves conversation memory.
// Every read degrades to empty output on failure; the chat pipeline
// never stalls on history.
type HistoryStore struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewHistoryStore creates a store over the managed pool.
func NewHistoryStore(pool *database.PoolManager, logger *zap.Logger) *HistoryStore {
	return &HistoryStore{
		pool:   pool,
		logger: logger.With(zap.String("component", "chat_history")),
	}
}

// Save persists the exchange, retrying transient database failures.
func (s *HistoryStore) Save(ctx context.Context, record *Record, sources []Source) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SessionID == "" {
		record.SessionID = "default"
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if len(sources) > 0 {
		data, err := json.Marshal(sources)
		if err != nil {
			return fmt.Errorf("marshal sources: %w", err)
		}
		record.Sources = data
	}

	return s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Create(record).Error
	})
}

// Recent returns the session's latest exchanges, newest first.
func (s *HistoryStore) Recent(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []Record
	err := s.pool.DB().WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	return records, nil
}

// Memory formats the last few exchanges for the prompt, oldest first.
// Returns "" when the session has no history or the read fails.
func (s *HistoryStore) Memory(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return ""
	}

	records, err := s.Recent(ctx, sessionID, MemoryTurns)
	if err != nil {
		s.logger.Warn("memory fetch failed", zap.String("session_id", sessionID), zap.Error(err))
		return ""
	}
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Recent conversation history:\n")
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		fmt.Fprintf(&b, "User: %s\nBot: %s", r.Question, r.Answer)
		if i > 0 {
			b.WriteString("\n\n")
		}
	}
	b.WriteString("\n\n")
	return b.String()
}
