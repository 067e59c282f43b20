package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/salvageiq/auctionmind/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local
// development and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS historical_sales (
	id        TEXT PRIMARY KEY,
	vin       TEXT NOT NULL,
	platform  TEXT NOT NULL,
	lot_id    INTEGER NOT NULL,
	sale_date DATETIME NOT NULL,
	price     REAL NOT NULL,
	damage    TEXT,
	status    TEXT
);

CREATE INDEX IF NOT EXISTS idx_historical_sales_vin ON historical_sales(vin);

CREATE TABLE IF NOT EXISTS analysis_audits (
	id             TEXT PRIMARY KEY,
	key            TEXT NOT NULL,
	vin            TEXT,
	lot_id         INTEGER,
	site           INTEGER,
	recommendation TEXT NOT NULL,
	confidence     REAL NOT NULL,
	degraded       TEXT,
	duration_ms    INTEGER NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analysis_audits_key ON analysis_audits(key);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SalesByVIN(ctx context.Context, vin string) ([]model.HistoricalSaleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, lot_id, sale_date, price, damage, status
		FROM historical_sales WHERE vin = ? ORDER BY sale_date ASC`, vin)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: sales by vin %s", vin)
	}
	defer rows.Close()

	records := []model.HistoricalSaleRecord{}
	for rows.Next() {
		var r model.HistoricalSaleRecord
		var damage, status sql.NullString
		if err := rows.Scan(&r.Platform, &r.LotID, &r.SaleDate, &r.Price, &damage, &status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sale record")
		}
		r.Damage = damage.String
		r.Status = status.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate sale records")
	}
	return records, nil
}

func (s *SQLiteStore) RecordAnalysis(ctx context.Context, audit model.AnalysisAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_audits
		(id, key, vin, lot_id, site, recommendation, confidence, degraded, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		audit.ID, audit.Key, audit.VIN, audit.LotID, int(audit.Site),
		string(audit.Recommendation), audit.Confidence, strings.Join(audit.Degraded, ","),
		audit.DurationMS, audit.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record analysis %s", audit.Key)
	}
	return nil
}
