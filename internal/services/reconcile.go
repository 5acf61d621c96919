package services

import (
	"context"
	"fmt"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

// Reconciler applies client-submitted lists to the store. Each call runs in
// exactly one transaction.
type Reconciler struct {
	store storage.Store
}

func NewReconciler(store storage.Store) *Reconciler {
	return &Reconciler{store: store}
}

// BatchUpsert writes full records, inserting new timestamps and overwriting
// existing ones.
func (r *Reconciler) BatchUpsert(ctx context.Context, records []core.Expense) (core.UpsertResult, error) {
	for _, e := range records {
		if err := e.Validate(); err != nil {
			return core.UpsertResult{}, fmt.Errorf("expense %d: %w", e.Timestamp, err)
		}
	}

	var res core.UpsertResult
	err := r.store.Update(ctx, func(tx storage.Tx) error {
		res = core.UpsertResult{}
		for _, e := range records {
			existed, err := tx.Upsert(ctx, e)
			if err != nil {
				return err
			}
			if existed {
				res.Updated++
			} else {
				res.Inserted++
			}
		}
		return nil
	})
	if err != nil {
		return core.UpsertResult{}, err
	}
	return res, nil
}

// Reconcile makes the stored records of one day equal to records. Stored
// keys missing from records are deleted, the rest are upserted with their
// date forced to the target day.
func (r *Reconciler) Reconcile(ctx context.Context, year, month, day string, records []core.Expense) (core.ReconcileResult, error) {
	key, err := core.NewDateKey(year, month, day)
	if err != nil {
		return core.ReconcileResult{}, err
	}
	date := key.String()

	incoming := make([]core.Expense, 0, len(records))
	newKeys := make(map[int64]struct{}, len(records))
	for _, e := range records {
		if _, dup := newKeys[e.Timestamp]; dup {
			return core.ReconcileResult{}, fmt.Errorf("%w: %d", core.ErrDuplicateTimestamp, e.Timestamp)
		}
		newKeys[e.Timestamp] = struct{}{}

		e.Date = date
		if err := e.Validate(); err != nil {
			return core.ReconcileResult{}, fmt.Errorf("expense %d: %w", e.Timestamp, err)
		}
		incoming = append(incoming, e)
	}

	var res core.ReconcileResult
	err = r.store.Update(ctx, func(tx storage.Tx) error {
		res = core.ReconcileResult{}

		old, err := tx.Find(ctx, storage.ForDay(key))
		if err != nil {
			return err
		}
		oldKeys := make(map[int64]struct{}, len(old))
		for _, e := range old {
			oldKeys[e.Timestamp] = struct{}{}
		}

		for _, e := range old {
			if _, keep := newKeys[e.Timestamp]; keep {
				res.Updated++
				continue
			}
			if err := tx.Delete(ctx, e.Timestamp); err != nil {
				return err
			}
			res.Deleted++
		}
		for ts := range newKeys {
			if _, ok := oldKeys[ts]; !ok {
				res.Inserted++
			}
		}

		if res.Updated+res.Deleted != len(old) || res.Updated+res.Inserted != len(incoming) {
			return fmt.Errorf("%w: day %s old=%d new=%d result=%+v", core.ErrInvariant, date, len(old), len(incoming), res)
		}

		for _, e := range incoming {
			existed, err := tx.Upsert(ctx, e)
			if err != nil {
				return err
			}
			// A timestamp stored under another date exists without being
			// one of this day's old keys; the upsert moves it here.
			_, wasOld := oldKeys[e.Timestamp]
			if wasOld && !existed {
				return fmt.Errorf("%w: expense %d vanished during reconcile of %s", core.ErrInvariant, e.Timestamp, date)
			}
		}
		return nil
	})
	if err != nil {
		return core.ReconcileResult{}, err
	}
	return res, nil
}
