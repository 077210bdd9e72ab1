package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"P3Recon/internal/domain"
	"P3Recon/internal/ports"
)

const (
	insertChunk = 200
	selectChunk = 500
)

var candidateColumns = []string{
	"id", "name", "lat", "lon", "address", "town", "county",
	"acres", "bldg_sqft", "land_use", "owner", "source", "created_at",
}

// SQLRepository persists candidates, signals and scores through database/sql.
// Queries are built with squirrel so the same code serves sqlite and postgres.
type SQLRepository struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var _ ports.CandidateRepository = (*SQLRepository)(nil)

// Open connects with the named driver and bootstraps the schema.
func Open(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time keeps sqlite away from "database is locked".
		db.SetMaxOpenConns(1)
	}

	repo, err := newSQLRepository(ctx, db, d)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// newSQLRepository wraps an open handle and creates missing tables.
func newSQLRepository(ctx context.Context, db *sql.DB, d dialect) (*SQLRepository, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return &SQLRepository{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(d.placeholder),
		now: time.Now,
	}, nil
}

// Close releases the database handle.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// ReplaceAll dedupes the input and swaps the stored candidate set for it.
// Signals and scores of the old set go with it. Returns the number inserted.
func (r *SQLRepository) ReplaceAll(ctx context.Context, candidates []domain.Candidate) (int, error) {
	unique := domain.Dedupe(candidates)
	for _, c := range unique {
		if err := c.Validate(); err != nil {
			return 0, fmt.Errorf("replace candidates: %w", err)
		}
	}

	createdAt := formatTime(r.now())
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"signals", "scores", "candidates"} {
			if err := r.exec(ctx, tx, r.sb.Delete(table)); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for start := 0; start < len(unique); start += insertChunk {
			end := min(start+insertChunk, len(unique))
			insert := r.sb.Insert("candidates").Columns(candidateColumns[1:]...)
			for _, c := range unique[start:end] {
				insert = insert.Values(c.Name, c.Lat, c.Lon, c.Address, c.Town, c.County,
					c.Acres, c.BldgSqft, c.LandUse, c.Owner, c.Source, createdAt)
			}
			if err := r.exec(ctx, tx, insert); err != nil {
				return fmt.Errorf("insert candidates: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(unique), nil
}

// All returns every stored candidate ordered by id.
func (r *SQLRepository) All(ctx context.Context) ([]domain.Candidate, error) {
	query, args, err := r.sb.Select(candidateColumns...).From("candidates").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// ByID returns one candidate or domain.ErrNotFound.
func (r *SQLRepository) ByID(ctx context.Context, id int64) (domain.Candidate, error) {
	query, args, err := r.sb.Select(candidateColumns...).From("candidates").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("build query: %w", err)
	}

	c, err := scanCandidate(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Candidate{}, fmt.Errorf("candidate %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Candidate{}, err
	}
	return c, nil
}

// Count returns the number of stored candidates.
func (r *SQLRepository) Count(ctx context.Context) (int, error) {
	query, args, err := r.sb.Select("COUNT(*)").From("candidates").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return n, nil
}

// ReplaceSignalsAndScores wipes every signal and score and inserts the fresh sets.
func (r *SQLRepository) ReplaceSignalsAndScores(ctx context.Context, assessments []domain.Assessment) error {
	var signals []domain.Signal
	for _, a := range assessments {
		signals = append(signals, a.Signals...)
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.exec(ctx, tx, r.sb.Delete("signals")); err != nil {
			return fmt.Errorf("clear signals: %w", err)
		}
		if err := r.exec(ctx, tx, r.sb.Delete("scores")); err != nil {
			return fmt.Errorf("clear scores: %w", err)
		}

		for start := 0; start < len(signals); start += insertChunk {
			end := min(start+insertChunk, len(signals))
			insert := r.sb.Insert("signals").Columns("candidate_id", "signal_type", "signal_value", "url", "observed_at")
			for _, s := range signals[start:end] {
				insert = insert.Values(s.CandidateID, string(s.Type), s.Value, s.URL, formatTime(s.ObservedAt))
			}
			if err := r.exec(ctx, tx, insert); err != nil {
				return fmt.Errorf("insert signals: %w", err)
			}
		}

		for start := 0; start < len(assessments); start += insertChunk {
			end := min(start+insertChunk, len(assessments))
			insert := r.sb.Insert("scores").Columns("candidate_id", "score_total", "score_breakdown", "updated_at")
			for _, a := range assessments[start:end] {
				breakdown, err := json.Marshal(a.Score.Breakdown)
				if err != nil {
					return fmt.Errorf("marshal breakdown: %w", err)
				}
				insert = insert.Values(a.CandidateID, a.Score.Total, string(breakdown), formatTime(a.Score.UpdatedAt))
			}
			if err := r.exec(ctx, tx, insert); err != nil {
				return fmt.Errorf("insert scores: %w", err)
			}
		}
		return nil
	})
}

// SignalsFor returns the signals of one candidate in insertion order.
func (r *SQLRepository) SignalsFor(ctx context.Context, id int64) ([]domain.Signal, error) {
	grouped, err := r.signalsByCandidate(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return grouped[id], nil
}

// ScoreFor returns the candidate's score; ok is false when none is stored.
func (r *SQLRepository) ScoreFor(ctx context.Context, id int64) (domain.Score, bool, error) {
	query, args, err := r.sb.Select("candidate_id", "score_total", "score_breakdown", "updated_at").
		From("scores").Where(sq.Eq{"candidate_id": id}).ToSql()
	if err != nil {
		return domain.Score{}, false, fmt.Errorf("build query: %w", err)
	}

	var (
		score     domain.Score
		breakdown string
		updatedAt string
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&score.CandidateID, &score.Total, &breakdown, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Score{}, false, nil
	}
	if err != nil {
		return domain.Score{}, false, fmt.Errorf("query score: %w", err)
	}

	if err := decodeScore(&score, breakdown, updatedAt); err != nil {
		return domain.Score{}, false, err
	}
	return score, true, nil
}

// Query returns candidates passing the coarse filter, joined with score and signals.
func (r *SQLRepository) Query(ctx context.Context, filter domain.StoreFilter) ([]domain.ScoredCandidate, error) {
	cols := make([]string, 0, len(candidateColumns)+4)
	for _, c := range candidateColumns {
		cols = append(cols, "c."+c)
	}
	cols = append(cols, "s.candidate_id", "s.score_total", "s.score_breakdown", "s.updated_at")

	builder := r.sb.Select(cols...).
		From("candidates c").
		LeftJoin("scores s ON s.candidate_id = c.id").
		Where(sq.GtOrEq{"c.acres": filter.MinAcres}).
		Where(sq.GtOrEq{"c.bldg_sqft": filter.MinBldgSqft}).
		OrderBy("c.id")

	if filter.MinScore > 0 {
		builder = builder.Where(sq.GtOrEq{"s.score_total": filter.MinScore})
	}
	if box := filter.Box; box != nil {
		builder = builder.Where(sq.And{
			sq.GtOrEq{"c.lat": box.MinLat},
			sq.LtOrEq{"c.lat": box.MaxLat},
		})
		if !box.WrapsLon {
			builder = builder.Where(sq.And{
				sq.GtOrEq{"c.lon": box.MinLon},
				sq.LtOrEq{"c.lon": box.MaxLon},
			})
		}
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}

	var (
		out []domain.ScoredCandidate
		ids []int64
	)
	for rows.Next() {
		var (
			c         domain.Candidate
			createdAt string
			scoreID   sql.NullInt64
			total     sql.NullInt64
			breakdown sql.NullString
			updatedAt sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Lat, &c.Lon, &c.Address, &c.Town, &c.County,
			&c.Acres, &c.BldgSqft, &c.LandUse, &c.Owner, &c.Source, &createdAt,
			&scoreID, &total, &breakdown, &updatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)

		item := domain.ScoredCandidate{Candidate: c, Score: domain.Score{CandidateID: c.ID, Breakdown: domain.Breakdown{}}}
		if scoreID.Valid {
			item.Score.Total = int(total.Int64)
			if err := decodeScore(&item.Score, breakdown.String, updatedAt.String); err != nil {
				_ = rows.Close()
				return nil, err
			}
		}
		out = append(out, item)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close rows: %w", err)
	}

	grouped, err := r.signalsByCandidate(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Signals = grouped[out[i].Candidate.ID]
	}
	return out, nil
}

func (r *SQLRepository) signalsByCandidate(ctx context.Context, ids []int64) (map[int64][]domain.Signal, error) {
	grouped := make(map[int64][]domain.Signal, len(ids))

	for start := 0; start < len(ids); start += selectChunk {
		end := min(start+selectChunk, len(ids))
		query, args, err := r.sb.Select("candidate_id", "signal_type", "signal_value", "url", "observed_at").
			From("signals").
			Where(sq.Eq{"candidate_id": ids[start:end]}).
			OrderBy("candidate_id").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build query: %w", err)
		}

		if err := r.collectSignals(ctx, query, args, grouped); err != nil {
			return nil, err
		}
	}
	return grouped, nil
}

func (r *SQLRepository) collectSignals(ctx context.Context, query string, args []any, into map[int64][]domain.Signal) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s          domain.Signal
			signalType string
			observedAt string
		)
		if err := rows.Scan(&s.CandidateID, &signalType, &s.Value, &s.URL, &observedAt); err != nil {
			return fmt.Errorf("scan signal: %w", err)
		}
		s.Type = domain.SignalType(signalType)
		s.ObservedAt = parseTime(observedAt)
		into[s.CandidateID] = append(into[s.CandidateID], s)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration: %w", err)
	}
	return nil
}

func (r *SQLRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLRepository) exec(ctx context.Context, tx *sql.Tx, stmt sq.Sqlizer) error {
	query, args, err := stmt.ToSql()
	if err != nil {
		return fmt.Errorf("build statement: %w", err)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (domain.Candidate, error) {
	var (
		c         domain.Candidate
		createdAt string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Lat, &c.Lon, &c.Address, &c.Town, &c.County,
		&c.Acres, &c.BldgSqft, &c.LandUse, &c.Owner, &c.Source, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Candidate{}, err
	}
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("scan candidate: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func decodeScore(score *domain.Score, breakdown, updatedAt string) error {
	score.Breakdown = domain.Breakdown{}
	if breakdown != "" {
		if err := json.Unmarshal([]byte(breakdown), &score.Breakdown); err != nil {
			return fmt.Errorf("decode breakdown for %d: %w", score.CandidateID, err)
		}
	}
	score.UpdatedAt = parseTime(updatedAt)
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	return nil
}
