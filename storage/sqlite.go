package storage

import (
	"database/sql"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
	logger "github.com/sirupsen/logrus"
)

const createSwapsTable = `
CREATE TABLE IF NOT EXISTS swaps (
	payment_hash TEXT PRIMARY KEY,
	record BLOB NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore persists swap records in a single sqlite table.
type SQLiteStore struct {
	db    *sql.DB
	stmts *stmtCache
}

// NewSQLiteStore opens (and if needed creates) the swaps database. Use
// ":memory:" as path in tests.
func NewSQLiteStore(driver, path string) (*SQLiteStore, error) {
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(createSwapsTable); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:    db,
		stmts: newStmtCache(db),
	}, nil
}

func (s *SQLiteStore) Close() error {
	s.stmts.Clear()
	return s.db.Close()
}

func (s *SQLiteStore) LoadAll() (map[ethcommon.Hash][]byte, error) {
	rows, err := s.db.Query(`SELECT payment_hash, record FROM swaps`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[ethcommon.Hash][]byte)
	for rows.Next() {
		var hashHex string
		var record []byte
		if err := rows.Scan(&hashHex, &record); err != nil {
			return nil, err
		}
		out[ethcommon.HexToHash(hashHex)] = record
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{"count": len(out)}).Debug("loaded swap records")
	return out, nil
}

func (s *SQLiteStore) Save(paymentHash ethcommon.Hash, record []byte) error {
	stmt, err := s.stmts.Prepare(
		`INSERT INTO swaps (payment_hash, record, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(payment_hash) DO UPDATE SET record=excluded.record, updated_at=CURRENT_TIMESTAMP`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(paymentHash.Hex(), record)
	return err
}

func (s *SQLiteStore) SaveMany(records map[ethcommon.Hash][]byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	for hash, record := range records {
		if _, err := tx.Exec(
			`INSERT INTO swaps (payment_hash, record, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(payment_hash) DO UPDATE SET record=excluded.record, updated_at=CURRENT_TIMESTAMP`,
			hash.Hex(), record,
		); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Remove(paymentHash ethcommon.Hash) error {
	stmt, err := s.stmts.Prepare(`DELETE FROM swaps WHERE payment_hash = ?`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(paymentHash.Hex())
	return err
}
