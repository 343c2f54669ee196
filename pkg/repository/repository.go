package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"bean_wallet_back/models"
)

// Journal records submitted transfers. It never sees key material.
type Journal interface {
	RecordTransfer(ctx context.Context, log models.TransferLog) (int64, error)
	TransfersBySource(ctx context.Context, source string, limit int) ([]models.TransferLog, error)
}

type Repository struct {
	Journal
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		Journal: NewJournalPostgres(db),
	}
}

// NewNoopRepository is used when no database is configured.
func NewNoopRepository() *Repository {
	return &Repository{Journal: noopJournal{}}
}

type noopJournal struct{}

func (noopJournal) RecordTransfer(context.Context, models.TransferLog) (int64, error) { return 0, nil }

func (noopJournal) TransfersBySource(context.Context, string, int) ([]models.TransferLog, error) {
	return nil, nil
}
