package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchly/payments/internal/infrastructure/persistence"
)

// RemarkStore appends human-readable audit remarks to a payment.
type RemarkStore struct {
	db persistence.Executor
}

func NewRemarkStore(db persistence.Executor) *RemarkStore {
	return &RemarkStore{db: db}
}

func (s *RemarkStore) AddRemark(ctx context.Context, paymentID uuid.UUID, text string) error {
	query := `
		INSERT INTO payment_remarks (id, payment_id, remark, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := s.db.Exec(ctx, query, uuid.New(), paymentID, text, time.Now().UTC()); err != nil {
		return fmt.Errorf("add payment remark: %w", err)
	}
	return nil
}
