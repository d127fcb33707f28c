package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"pixwebhook/internal/models"
)

// RecordSettlement writes a ledger row. A message already in the ledger is
// left untouched and reported with recorded=false.
func (db *DB) RecordSettlement(ctx context.Context, s *models.Settlement) (recorded bool, err error) {
	var txID sql.NullInt64
	if s.TransactionID != nil {
		txID = sql.NullInt64{Int64: *s.TransactionID, Valid: true}
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO settlements (message_sha256, reference, run_id, client_name, account_id, amount_cents, status, transaction_id, invoice_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_sha256) DO NOTHING
	`, s.MessageSHA256, s.Reference, s.RunID, s.ClientName, s.AccountID, s.AmountCents,
		s.Status, txID, joinIDs(s.InvoiceIDs))
	if err != nil {
		return false, fmt.Errorf("insert settlement: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	s.ID, _ = result.LastInsertId()
	return true, nil
}

// GetSettlementByMessage returns the ledger row for a message hash, or nil
func (db *DB) GetSettlementByMessage(ctx context.Context, sha string) (*models.Settlement, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, message_sha256, reference, run_id, client_name, account_id, amount_cents, status, transaction_id, invoice_ids, created_at
		FROM settlements
		WHERE message_sha256 = ?
	`, sha)

	s, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query settlement: %w", err)
	}
	return s, nil
}

// ListSettlements returns the most recent ledger rows first
func (db *DB) ListSettlements(ctx context.Context, limit int) ([]models.Settlement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, message_sha256, reference, run_id, client_name, account_id, amount_cents, status, transaction_id, invoice_ids, created_at
		FROM settlements
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query settlements: %w", err)
	}
	defer rows.Close()

	var out []models.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row scanner) (*models.Settlement, error) {
	var s models.Settlement
	var txID sql.NullInt64
	var invoiceIDs string
	err := row.Scan(&s.ID, &s.MessageSHA256, &s.Reference, &s.RunID, &s.ClientName, &s.AccountID,
		&s.AmountCents, &s.Status, &txID, &invoiceIDs, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if txID.Valid {
		id := txID.Int64
		s.TransactionID = &id
	}
	s.InvoiceIDs, err = splitIDs(invoiceIDs)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var ids []int64
	for _, p := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse invoice id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
