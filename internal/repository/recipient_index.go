package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/model"
)

// RecipientIndexRepository — указатель "последняя запись получателя".
type RecipientIndexRepository interface {
	// Upsert сохраняет указатель, если его Timestamp не меньше
	// сохранённого: при равном времени побеждает последний коммит.
	// Возвращает true, если указатель записан.
	Upsert(ctx context.Context, p *model.RecipientPointer) (bool, error)
	// Get возвращает указатель получателя или ErrNotFound.
	Get(ctx context.Context, recipient model.Identity) (*model.RecipientPointer, error)
}

// recipientIndexRepo — реализация RecipientIndexRepository на PostgreSQL.
type recipientIndexRepo struct {
	db DBTX
}

// NewRecipientIndexRepository создаёт репозиторий индекса получателей.
func NewRecipientIndexRepository(db DBTX) RecipientIndexRepository {
	return &recipientIndexRepo{db: db}
}

func (r *recipientIndexRepo) Upsert(ctx context.Context, p *model.RecipientPointer) (bool, error) {
	if p.Sequence > math.MaxInt64 {
		return false, fmt.Errorf("sequence %d вне диапазона BIGINT", p.Sequence)
	}
	if p.Timestamp > math.MaxInt64 {
		return false, fmt.Errorf("created_at %d вне диапазона BIGINT", p.Timestamp)
	}

	query := `
		INSERT INTO recipient_index (recipient, namespace, record_address, sequence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (recipient) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			record_address = EXCLUDED.record_address,
			sequence = EXCLUDED.sequence,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		WHERE recipient_index.created_at <= EXCLUDED.created_at`

	tag, err := r.db.Exec(ctx, query,
		p.Recipient.String(), p.Namespace, p.RecordAddress.String(), int64(p.Sequence), int64(p.Timestamp),
	)
	if err != nil {
		return false, fmt.Errorf("ошибка обновления recipient_index: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *recipientIndexRepo) Get(ctx context.Context, recipient model.Identity) (*model.RecipientPointer, error) {
	query := `
		SELECT recipient, namespace, record_address, sequence, created_at, updated_at
		FROM recipient_index
		WHERE recipient = $1`

	var (
		p             model.RecipientPointer
		rcpt, address string
		sequence      int64
		createdAt     int64
	)
	err := r.db.QueryRow(ctx, query, recipient.String()).Scan(
		&rcpt, &p.Namespace, &address, &sequence, &createdAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения recipient_index: %w", err)
	}

	if p.Recipient, err = model.ParseIdentity(rcpt); err != nil {
		return nil, fmt.Errorf("recipient_index.recipient: %w", err)
	}
	if p.RecordAddress, err = model.ParseIdentity(address); err != nil {
		return nil, fmt.Errorf("recipient_index.record_address: %w", err)
	}
	p.Sequence = uint64(sequence)
	p.Timestamp = uint64(createdAt)
	return &p, nil
}

// noopRecipientIndex — индекс без хранилища, когда PostgreSQL не настроен.
type noopRecipientIndex struct{}

// NewNoopRecipientIndex создаёт отключённый индекс: Upsert ничего не
// делает, Get возвращает ErrDisabled.
func NewNoopRecipientIndex() RecipientIndexRepository {
	return noopRecipientIndex{}
}

func (noopRecipientIndex) Upsert(context.Context, *model.RecipientPointer) (bool, error) {
	return false, nil
}

func (noopRecipientIndex) Get(context.Context, model.Identity) (*model.RecipientPointer, error) {
	return nil, ErrDisabled
}
