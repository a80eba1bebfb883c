package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-authbridge/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PreferenceStore keeps namespaced key/value settings in one table. An edit is
// applied in a single transaction.
type PreferenceStore struct {
	db   *bun.DB
	repo repository.Repository[*preferenceRecord]
	now  func() time.Time
}

func NewPreferenceStore(db *bun.DB) (*PreferenceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*preferenceRecord](db, preferenceHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid preference repository wiring: %w", err)
		}
	}
	return &PreferenceStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *PreferenceStore) Get(ctx context.Context, namespace string, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("sqlstore: preference store is not configured")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" || strings.TrimSpace(key) == "" {
		return "", false, fmt.Errorf("sqlstore: preference namespace and key are required")
	}
	record, err := findPreference(ctx, s.db, namespace, key)
	if err != nil {
		return "", false, err
	}
	if record == nil {
		return "", false, nil
	}
	return record.Value, true, nil
}

func (s *PreferenceStore) GetAll(ctx context.Context, namespace string) (map[string]string, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: preference store is not configured")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return nil, fmt.Errorf("sqlstore: preference namespace is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("namespace", "=", namespace),
		repository.OrderBy("pref_key ASC"),
	)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		values[record.Key] = record.Value
	}
	return values, nil
}

func (s *PreferenceStore) Apply(ctx context.Context, edit core.PreferenceEdit) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: preference store is not configured")
	}
	if err := edit.Validate(); err != nil {
		return err
	}
	if edit.Empty() {
		return nil
	}
	namespace := strings.TrimSpace(edit.Namespace)
	now := s.now()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, key := range edit.SortedSetKeys() {
			value := edit.Set[key]
			record, err := findPreference(ctx, tx, namespace, key)
			if err != nil {
				return err
			}
			if record == nil {
				record = &preferenceRecord{
					ID:        uuid.NewString(),
					Namespace: namespace,
					Key:       key,
					Value:     value,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if _, err := s.repo.CreateTx(ctx, tx, record); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.NewUpdate().
				Model((*preferenceRecord)(nil)).
				Set("pref_value = ?", value).
				Set("updated_at = ?", now).
				Where("id = ?", record.ID).
				Exec(ctx); err != nil {
				return err
			}
		}
		if len(edit.Remove) == 0 {
			return nil
		}
		_, err := tx.NewDelete().
			Model((*preferenceRecord)(nil)).
			Where("namespace = ?", namespace).
			Where("pref_key IN (?)", bun.In(edit.Remove)).
			Exec(ctx)
		return err
	})
}

func findPreference(ctx context.Context, db bun.IDB, namespace string, key string) (*preferenceRecord, error) {
	record := &preferenceRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.namespace = ?", namespace).
		Where("?TableAlias.pref_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
