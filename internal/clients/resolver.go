package clients

import (
	"context"
	"errors"
	"fmt"

	"pixwebhook/internal/logger"
)

// Status is the outcome of resolving a payer name
type Status string

const (
	StatusFound       Status = "found"
	StatusFoundNoID   Status = "found_no_id"
	StatusCreated     Status = "created"
	StatusUpdated     Status = "updated"
	StatusDuplicateID Status = "duplicate_id"
	StatusStoreError  Status = "store_error"
)

// Resolution is what Resolve learned about a payer
type Resolution struct {
	Status    Status `json:"status"`
	Name      string `json:"name"`
	AccountID *int64 `json:"account_id,omitempty"`
	// ConflictName is the record already holding the learned id (DuplicateID only)
	ConflictName string `json:"conflict_name,omitempty"`
	// IgnoredID is a learned id that differed from the stored one and was not applied
	IgnoredID *int64 `json:"ignored_id,omitempty"`
}

// Settleable reports whether the resolution carries an account id to settle against
func (r Resolution) Settleable() bool {
	return (r.Status == StatusFound || r.Status == StatusUpdated) && r.AccountID != nil
}

// Resolver maps payer names to account ids, learning ids as they arrive
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver over the given repository
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve looks up name and, when the record has no id yet, applies learned.
// The whole read-check-write runs under the repository's exclusive lock.
// DuplicateID and StoreError outcomes are also returned as errors wrapping
// ErrDuplicateID and ErrStore.
func (r *Resolver) Resolve(ctx context.Context, name string, learned *int64) (Resolution, error) {
	l := logger.FromContext(ctx)
	res := Resolution{Name: name}

	err := r.repo.Update(ctx, func(set *Set) error {
		rec, found := set.Find(name)
		if !found {
			if err := set.Upsert(Record{Name: name}); err != nil {
				return err
			}
			res.Status = StatusCreated
			return nil
		}

		res.Name = rec.Name
		res.AccountID = rec.AccountID

		switch {
		case rec.HasID():
			res.Status = StatusFound
			if learned != nil && *learned != *rec.AccountID {
				ignored := *learned
				res.IgnoredID = &ignored
			}
			return nil
		case learned == nil:
			res.Status = StatusFoundNoID
			return nil
		}

		if holder, ok := set.FindByAccountID(*learned); ok {
			res.Status = StatusDuplicateID
			res.ConflictName = holder.Name
			return fmt.Errorf("%w: %d held by %q", ErrDuplicateID, *learned, holder.Name)
		}

		id := *learned
		rec.AccountID = &id
		if err := set.Upsert(rec); err != nil {
			return err
		}
		res.Status = StatusUpdated
		res.AccountID = &id
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrDuplicateID) {
			res.Status = StatusDuplicateID
			l.Warn("client_id_conflict",
				"client", res.Name,
				"account_id", *learned,
				"held_by", res.ConflictName)
			return res, fmt.Errorf("resolve %q: %w", name, err)
		}
		res.Status = StatusStoreError
		res.AccountID = nil
		if !errors.Is(err, ErrStore) {
			err = fmt.Errorf("%w: %w", ErrStore, err)
		}
		l.Error("client_store_error", "client", name, "error", err.Error())
		return res, fmt.Errorf("resolve %q: %w", name, err)
	}

	switch res.Status {
	case StatusCreated:
		l.Info("client_created", "client", res.Name)
	case StatusUpdated:
		l.Info("client_id_updated", "client", res.Name, "account_id", *res.AccountID)
	case StatusFound:
		if res.IgnoredID != nil {
			l.Warn("client_id_mismatch_ignored",
				"client", res.Name,
				"account_id", *res.AccountID,
				"learned_id", *res.IgnoredID)
		}
		l.Debug("client_found", "client", res.Name, "account_id", *res.AccountID)
	case StatusFoundNoID:
		l.Info("client_found_no_id", "client", res.Name)
	}
	return res, nil
}

// SetID assigns or corrects the account id of an existing record. It applies
// the same duplicate-id guard as Resolve.
func (r *Resolver) SetID(ctx context.Context, name string, id int64) (Resolution, error) {
	res := Resolution{Name: name}
	err := r.repo.Update(ctx, func(set *Set) error {
		rec, found := set.Find(name)
		if !found {
			return ErrNotFound
		}
		res.Name = rec.Name
		if holder, ok := set.FindByAccountID(id); ok && Key(holder.Name) != Key(rec.Name) {
			res.ConflictName = holder.Name
			return fmt.Errorf("%w: %d held by %q", ErrDuplicateID, id, holder.Name)
		}
		rec.AccountID = &id
		return set.Upsert(rec)
	})
	switch {
	case errors.Is(err, ErrDuplicateID):
		res.Status = StatusDuplicateID
		return res, fmt.Errorf("set id for %q: %w", name, err)
	case err != nil:
		return res, fmt.Errorf("set id for %q: %w", name, err)
	}

	res.Status = StatusUpdated
	res.AccountID = &id
	logger.FromContext(ctx).Info("client_id_set", "client", res.Name, "account_id", id)
	return res, nil
}
