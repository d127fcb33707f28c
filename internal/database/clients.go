package database

import (
	"context"
	"database/sql"
	"fmt"

	"pixwebhook/internal/clients"
)

// ClientBackend stores client records in the clients table. It implements
// clients.Backend; each Update runs inside one immediate transaction.
type ClientBackend struct {
	db *DB
}

// NewClientBackend returns a client store backend over db
func NewClientBackend(db *DB) *ClientBackend {
	return &ClientBackend{db: db}
}

func (b *ClientBackend) Update(ctx context.Context, fn func(*clients.Set) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin transaction", err)
	}
	defer tx.Rollback()

	recs, err := loadClients(ctx, tx)
	if err != nil {
		return storeError("load clients", err)
	}

	set := clients.LoadSet(recs)
	if err := fn(set); err != nil {
		return err
	}
	if !set.Dirty() {
		return nil
	}

	for _, rec := range set.Changed() {
		var accountID sql.NullInt64
		if rec.AccountID != nil {
			accountID = sql.NullInt64{Int64: *rec.AccountID, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clients (name, name_key, account_id)
			VALUES (?, ?, ?)
			ON CONFLICT(name_key) DO UPDATE SET
				name = excluded.name,
				account_id = excluded.account_id,
				updated_at = CURRENT_TIMESTAMP
		`, rec.Name, clients.Key(rec.Name), accountID)
		if err != nil {
			return storeError("save client", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError("commit", err)
	}
	return nil
}

func loadClients(ctx context.Context, tx *sql.Tx) ([]clients.Record, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT name, account_id FROM clients ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []clients.Record
	for rows.Next() {
		var rec clients.Record
		var accountID sql.NullInt64
		if err := rows.Scan(&rec.Name, &accountID); err != nil {
			return nil, err
		}
		if accountID.Valid {
			id := accountID.Int64
			rec.AccountID = &id
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", clients.ErrStore, op, err)
}
