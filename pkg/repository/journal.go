package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"bean_wallet_back/models"
)

type JournalPostgres struct {
	db *sqlx.DB
}

func NewJournalPostgres(db *sqlx.DB) *JournalPostgres {
	return &JournalPostgres{db: db}
}

func (r *JournalPostgres) RecordTransfer(ctx context.Context, log models.TransferLog) (int64, error) {
	var id int64
	query := `
        INSERT INTO transfers (kind, tx_hash, fee_tx_hash, source, dest, amount, fee)
        VALUES (:kind, :tx_hash, :fee_tx_hash, :source, :dest, :amount, :fee)
        RETURNING id
    `
	log.Source = strings.ToLower(log.Source)
	rows, err := r.db.NamedQueryContext(ctx, query, log)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if rows.Next() {
		err = rows.Scan(&id)
	}
	return id, err
}

func (r *JournalPostgres) TransfersBySource(ctx context.Context, source string, limit int) ([]models.TransferLog, error) {
	var logs []models.TransferLog
	query := `SELECT id, kind, tx_hash, fee_tx_hash, source, dest, amount, fee, created_at
        FROM transfers WHERE source = $1 ORDER BY created_at DESC LIMIT $2`
	err := r.db.SelectContext(ctx, &logs, query, strings.ToLower(source), limit)
	return logs, err
}
