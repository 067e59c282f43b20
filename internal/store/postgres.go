package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/salvageiq/auctionmind/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"sales_by_vin": `SELECT platform, lot_id, sale_date, price, damage, status
		FROM historical_sales WHERE vin = $1 ORDER BY sale_date ASC`,
	"insert_audit": `INSERT INTO analysis_audits
		(id, key, vin, lot_id, site, recommendation, confidence, degraded, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS historical_sales (
	id        TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	vin       TEXT NOT NULL,
	platform  TEXT NOT NULL,
	lot_id    BIGINT NOT NULL,
	sale_date TIMESTAMPTZ NOT NULL,
	price     DOUBLE PRECISION NOT NULL,
	damage    TEXT,
	status    TEXT
);

CREATE INDEX IF NOT EXISTS idx_historical_sales_vin ON historical_sales(vin);
CREATE INDEX IF NOT EXISTS idx_historical_sales_vin_date ON historical_sales(vin, sale_date DESC);

CREATE TABLE IF NOT EXISTS analysis_audits (
	id             TEXT PRIMARY KEY,
	key            TEXT NOT NULL,
	vin            TEXT,
	lot_id         BIGINT,
	site           INT,
	recommendation TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	degraded       TEXT[],
	duration_ms    BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analysis_audits_key ON analysis_audits(key);
CREATE INDEX IF NOT EXISTS idx_analysis_audits_created_at ON analysis_audits(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SalesByVIN(ctx context.Context, vin string) ([]model.HistoricalSaleRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT platform, lot_id, sale_date, price, damage, status
		FROM historical_sales WHERE vin = $1 ORDER BY sale_date ASC`, vin)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: sales by vin %s", vin)
	}
	defer rows.Close()

	records := []model.HistoricalSaleRecord{}
	for rows.Next() {
		var r model.HistoricalSaleRecord
		var damage, status *string
		if err := rows.Scan(&r.Platform, &r.LotID, &r.SaleDate, &r.Price, &damage, &status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sale record")
		}
		if damage != nil {
			r.Damage = *damage
		}
		if status != nil {
			r.Status = *status
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate sale records")
	}
	return records, nil
}

func (s *PostgresStore) RecordAnalysis(ctx context.Context, audit model.AnalysisAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_audits
		(id, key, vin, lot_id, site, recommendation, confidence, degraded, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		audit.ID, audit.Key, nilIfEmpty(audit.VIN), audit.LotID, int(audit.Site),
		string(audit.Recommendation), audit.Confidence, audit.Degraded,
		audit.DurationMS, audit.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record analysis %s", audit.Key)
	}
	return nil
}

// nilIfEmpty lets empty strings become NULL in Postgres.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
