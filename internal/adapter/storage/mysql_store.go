package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/ldtran/home-inventory/internal/core/domain"
)

// MySQLStore keeps the collection in a MySQL table:
//
//	CREATE TABLE inventory_records (
//	    name     VARCHAR(255) NOT NULL,
//	    image    TEXT,
//	    quantity INT NOT NULL DEFAULT 0,
//	    notes    TEXT,
//	    date     VARCHAR(32),
//	    version  INT NOT NULL DEFAULT 1,
//	    UNIQUE KEY uniq_name (name)
//	);
//
// It implements port.TableStore with full-table semantics and, because
// MySQL can address rows, also port.RowStore: conditional writes keyed by
// (name, version) so the version check happens atomically in the store.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (m *MySQLStore) ReadAll(ctx context.Context) (domain.Collection, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT name, COALESCE(image, ''), quantity, COALESCE(notes, ''), COALESCE(date, ''), version
		FROM inventory_records`)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var coll domain.Collection
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(&rec.Name, &rec.Image, &rec.Quantity, &rec.Notes, &rec.Date, &rec.Version); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", domain.ErrStoreUnavailable, err)
		}
		coll = append(coll, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %v", domain.ErrStoreUnavailable, err)
	}
	return coll, nil
}

func (m *MySQLStore) WriteAll(ctx context.Context, c domain.Collection) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_records`); err != nil {
		return fmt.Errorf("%w: clear table: %v", domain.ErrStoreUnavailable, err)
	}

	for _, rec := range c {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_records (name, image, quantity, notes, date, version)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.Name, rec.Image, rec.Quantity, rec.Notes, rec.Date, rec.Version,
		)
		if err != nil {
			return fmt.Errorf("%w: insert %q: %v", domain.ErrStoreRejected, rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (m *MySQLStore) UpdateRow(ctx context.Context, rec domain.Record, expectedVersion int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE inventory_records
		SET image = ?, quantity = ?, notes = ?, date = ?, version = ?
		WHERE name = ? AND version = ?`,
		rec.Image, rec.Quantity, rec.Notes, rec.Date, rec.Version,
		rec.Name, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("%w: update %q: %v", domain.ErrStoreUnavailable, rec.Name, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return m.classifyMiss(ctx, rec.Name, expectedVersion)
	}
	return nil
}

func (m *MySQLStore) DeleteRow(ctx context.Context, name string, expectedVersion int) error {
	result, err := m.db.ExecContext(ctx, `
		DELETE FROM inventory_records
		WHERE name = ? AND version = ?`,
		name, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("%w: delete %q: %v", domain.ErrStoreUnavailable, name, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return m.classifyMiss(ctx, name, expectedVersion)
	}
	return nil
}

func (m *MySQLStore) InsertRow(ctx context.Context, rec domain.Record) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory_records (name, image, quantity, notes, date, version)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.Image, rec.Quantity, rec.Notes, rec.Date, rec.Version,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateName, rec.Name)
		}
		return fmt.Errorf("%w: insert %q: %v", domain.ErrStoreRejected, rec.Name, err)
	}
	return nil
}

// classifyMiss distinguishes a vanished record from a stale version after
// a conditional write matched nothing.
func (m *MySQLStore) classifyMiss(ctx context.Context, name string, expectedVersion int) error {
	var current int
	err := m.db.QueryRowContext(ctx, `
		SELECT version FROM inventory_records WHERE name = ?`, name,
	).Scan(&current)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", domain.ErrRecordNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("%w: query version of %q: %v", domain.ErrStoreUnavailable, name, err)
	}
	return fmt.Errorf("%w: %q is at version %d, caller expected %d",
		domain.ErrVersionConflict, name, current, expectedVersion)
}

// isDuplicateKey matches MySQL error 1062 (duplicate entry for a unique key).
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
