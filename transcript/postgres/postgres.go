// Package postgres provides a transcript.Writer that persists finished
// conversations to PostgreSQL via GORM.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/transcript"
)

// Compile time check to ensure Writer satisfies the transcript.Writer interface.
var _ transcript.Writer = (*Writer)(nil)

type conversationModel struct {
	ID               uint      `gorm:"primaryKey"`
	SessionID        string    `gorm:"uniqueIndex;size:64;not null"`
	CustomerEmail    string    `gorm:"size:255"`
	CustomerID       string    `gorm:"size:64"`
	Status           string    `gorm:"size:16;not null"`
	CurrentSentiment string    `gorm:"size:16"`
	CurrentIntent    string    `gorm:"size:64"`
	IntentConfidence float64   `gorm:""`
	EscalationReason string    `gorm:"size:128"`
	OperatorID       string    `gorm:"size:64"`
	EndReason        string    `gorm:"size:64"`
	Entities         []byte    `gorm:"type:jsonb"`
	StartedAt        time.Time `gorm:"not null"`
	EndedAt          time.Time `gorm:"not null"`
}

func (conversationModel) TableName() string { return "completed_conversations" }

type messageModel struct {
	ID             uint   `gorm:"primaryKey"`
	SessionID      string `gorm:"index;size:64;not null"`
	Seq            int    `gorm:"not null"`
	Sender         string `gorm:"size:8;not null"`
	Text           string `gorm:"type:text;not null"`
	SentimentLabel string `gorm:"size:16"`
	IntentLabel    string `gorm:"size:64"`
	Entities       []byte `gorm:"type:jsonb"`
	AgentAction    []byte `gorm:"type:jsonb"`
	SentAt         time.Time
}

func (messageModel) TableName() string { return "completed_messages" }

// Writer persists conversation snapshots to PostgreSQL. One conversation row
// plus one row per message, written in a single transaction.
type Writer struct {
	db *gorm.DB
}

// Connect opens a GORM connection, verifies it with a ping and migrates the
// transcript tables.
func Connect(dsn string) (*Writer, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.AutoMigrate(&conversationModel{}, &messageModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate transcript tables: %w", err)
	}

	return &Writer{db: db}, nil
}

// NewWriterFromDB wraps an existing GORM handle without migrating.
func NewWriterFromDB(db *gorm.DB) *Writer { return &Writer{db: db} }

// Write implements transcript.Writer.
func (w *Writer) Write(ctx context.Context, snapshot core.Snapshot, endReason string) error {
	row, messages, err := rowsFromSnapshot(snapshot, endReason)
	if err != nil {
		return err
	}

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert conversation %s: %w", snapshot.SessionID, err)
		}
		if len(messages) == 0 {
			return nil
		}
		if err := tx.Create(&messages).Error; err != nil {
			return fmt.Errorf("insert messages for %s: %w", snapshot.SessionID, err)
		}
		return nil
	})
}

// Close releases the underlying connection pool.
func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	sqlDB, err := w.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func rowsFromSnapshot(snapshot core.Snapshot, endReason string) (conversationModel, []messageModel, error) {
	entities, err := marshalMap(snapshot.Entities)
	if err != nil {
		return conversationModel{}, nil, err
	}

	row := conversationModel{
		SessionID:        snapshot.SessionID,
		CustomerEmail:    snapshot.CustomerEmail,
		CustomerID:       snapshot.CustomerID,
		Status:           string(snapshot.Status),
		CurrentSentiment: snapshot.CurrentSentiment,
		CurrentIntent:    snapshot.CurrentIntent,
		IntentConfidence: snapshot.IntentConfidence,
		EscalationReason: snapshot.EscalationReason,
		OperatorID:       snapshot.OperatorID,
		EndReason:        endReason,
		Entities:         entities,
		StartedAt:        snapshot.StartTime,
		EndedAt:          time.Now().UTC(),
	}

	messages := make([]messageModel, 0, len(snapshot.Messages))
	for i, m := range snapshot.Messages {
		msgEntities, err := marshalMap(m.Entities)
		if err != nil {
			return conversationModel{}, nil, err
		}
		agentAction, err := marshalMap(m.AgentAction)
		if err != nil {
			return conversationModel{}, nil, err
		}
		messages = append(messages, messageModel{
			SessionID:      snapshot.SessionID,
			Seq:            i,
			Sender:         string(m.Sender),
			Text:           m.Text,
			SentimentLabel: m.SentimentLabel,
			IntentLabel:    m.IntentLabel,
			Entities:       msgEntities,
			AgentAction:    agentAction,
			SentAt:         m.Timestamp,
		})
	}
	return row, messages, nil
}

func marshalMap(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message metadata: %w", err)
	}
	return data, nil
}
