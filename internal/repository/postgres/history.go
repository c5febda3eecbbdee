package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
)

// historyRow is the archived copy of a delivery at terminal state. Rows are
// insert-only; there is no update path.
type historyRow struct {
	RowID            uuid.UUID      `db:"row_id"`
	DeliveryID       string         `db:"delivery_id"`
	SenderID         string         `db:"sender_id"`
	SenderName       string         `db:"sender_name"`
	ReceiverID       string         `db:"receiver_id"`
	ReceiverName     string         `db:"receiver_name"`
	Pickup           int            `db:"pickup"`
	Destination      int            `db:"destination"`
	Compartment      int            `db:"compartment"`
	Category         string         `db:"category"`
	Message          string         `db:"message"`
	VerificationCode string         `db:"verification_code"`
	Status           string         `db:"status"`
	ProgressStage    int            `db:"progress_stage"`
	CreatedAt        time.Time      `db:"created_at"`
	ArrivedAt        sql.NullTime   `db:"arrived_at"`
	CompletedAt      sql.NullTime   `db:"completed_at"`
	ArchivedAt       time.Time      `db:"archived_at"`
}

type historyRepository struct {
	db *sqlx.DB
}

func NewHistoryRepository(db *sqlx.DB) repository.HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Archive(ctx context.Context, delivery *model.Delivery) error {
	row := toRow(delivery)

	query := `
		INSERT INTO delivery_history (
			row_id, delivery_id, sender_id, sender_name, receiver_id, receiver_name,
			pickup, destination, compartment, category, message, verification_code,
			status, progress_stage, created_at, arrived_at, completed_at, archived_at
		) VALUES (
			:row_id, :delivery_id, :sender_id, :sender_name, :receiver_id, :receiver_name,
			:pickup, :destination, :compartment, :category, :message, :verification_code,
			:status, :progress_stage, :created_at, :arrived_at, :completed_at, :archived_at
		)
		ON CONFLICT (delivery_id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to archive delivery: %w", err)
	}
	return nil
}

func (r *historyRepository) Get(ctx context.Context, id string) (*model.Delivery, error) {
	var row historyRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM delivery_history WHERE delivery_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("history record")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}
	return fromRow(&row), nil
}

func (r *historyRepository) ListForUser(ctx context.Context, userID string) ([]*model.Delivery, error) {
	var rows []historyRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM delivery_history
		 WHERE sender_id = $1 OR receiver_id = $1
		 ORDER BY archived_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	deliveries := make([]*model.Delivery, 0, len(rows))
	for i := range rows {
		deliveries = append(deliveries, fromRow(&rows[i]))
	}
	return deliveries, nil
}

func (r *historyRepository) List(ctx context.Context) ([]*model.Delivery, error) {
	var rows []historyRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM delivery_history ORDER BY archived_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	deliveries := make([]*model.Delivery, 0, len(rows))
	for i := range rows {
		deliveries = append(deliveries, fromRow(&rows[i]))
	}
	return deliveries, nil
}

func toRow(d *model.Delivery) *historyRow {
	row := &historyRow{
		RowID:            uuid.New(),
		DeliveryID:       d.ID,
		SenderID:         d.SenderID,
		SenderName:       d.SenderName,
		ReceiverID:       d.ReceiverID,
		ReceiverName:     d.ReceiverName,
		Pickup:           d.PickupLocation,
		Destination:      d.DestinationLocation,
		Compartment:      d.Compartment,
		Category:         d.Category,
		Message:          d.Message,
		VerificationCode: d.VerificationCode,
		Status:           string(d.Status),
		ProgressStage:    d.ProgressStage,
		CreatedAt:        d.CreatedAt,
		ArchivedAt:       time.Now().UTC(),
	}
	if d.ArrivedAt != nil {
		row.ArrivedAt = sql.NullTime{Time: *d.ArrivedAt, Valid: true}
	}
	if d.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: *d.CompletedAt, Valid: true}
	}
	return row
}

func fromRow(row *historyRow) *model.Delivery {
	d := &model.Delivery{
		ID:                  row.DeliveryID,
		SenderID:            row.SenderID,
		SenderName:          row.SenderName,
		ReceiverID:          row.ReceiverID,
		ReceiverName:        row.ReceiverName,
		PickupLocation:      row.Pickup,
		DestinationLocation: row.Destination,
		Compartment:         row.Compartment,
		Category:            row.Category,
		Message:             row.Message,
		VerificationCode:    row.VerificationCode,
		Status:              model.DeliveryStatus(row.Status),
		ProgressStage:       row.ProgressStage,
		CreatedAt:           row.CreatedAt,
	}
	if row.ArrivedAt.Valid {
		t := row.ArrivedAt.Time
		d.ArrivedAt = &t
	}
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time
		d.CompletedAt = &t
	}
	return d
}
