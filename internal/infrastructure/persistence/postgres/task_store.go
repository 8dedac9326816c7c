package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskStore gives the materializer its view of the delivery-task tables.
type TaskStore struct {
	db *pgxpool.Pool
}

func NewTaskStore(db *pgxpool.Pool) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) TaskExistsForPayment(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM tasks WHERE payment_id = $1)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, paymentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check task existence: %w", err)
	}
	return exists, nil
}

// CreateTaskFromSnapshot inserts a task from the payload serialized at
// checkout time and links it to the payment. Snapshot tasks go straight to
// published: the payment settling is what releases them.
func (s *TaskStore) CreateTaskFromSnapshot(ctx context.Context, paymentID uuid.UUID, snapshot []byte) (uuid.UUID, error) {
	query := `
		INSERT INTO tasks (id, payment_id, snapshot, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'published', $4, $4)
	`

	taskID := uuid.New()
	now := time.Now().UTC()
	if _, err := s.db.Exec(ctx, query, taskID, paymentID, snapshot, now); err != nil {
		return uuid.Nil, fmt.Errorf("create task from snapshot: %w", err)
	}
	return taskID, nil
}

// AttachPaymentToTasks links cart tasks to the payment that settled them. Runs
// in one transaction with a sanity check that every referenced task exists.
func (s *TaskStore) AttachPaymentToTasks(ctx context.Context, paymentID uuid.UUID, taskIDs []uuid.UUID) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		query := `
			UPDATE tasks
			SET payment_id = $1, updated_at = $2
			WHERE id = ANY($3) AND payment_id IS NULL
		`

		result, err := tx.Exec(ctx, query, paymentID, time.Now().UTC(), taskIDs)
		if err != nil {
			return fmt.Errorf("attach payment to tasks: %w", err)
		}
		if int(result.RowsAffected()) != len(taskIDs) {
			return fmt.Errorf("attached %d of %d tasks for payment %s", result.RowsAffected(), len(taskIDs), paymentID)
		}
		return nil
	})
}

func (s *TaskStore) PublishTasks(ctx context.Context, taskIDs []uuid.UUID) error {
	query := `
		UPDATE tasks
		SET status = 'published', updated_at = $1
		WHERE id = ANY($2) AND status = 'draft'
	`

	if _, err := s.db.Exec(ctx, query, time.Now().UTC(), taskIDs); err != nil {
		return fmt.Errorf("publish tasks: %w", err)
	}
	return nil
}
