// Package pgsource is a data source backed by a Postgres appointments
// table. Window queries filter by date range; search queries use ILIKE with
// LIMIT/OFFSET and a separate total count, which maps one-to-one onto the
// widget's search pagination.
package pgsource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"calwidget/internal/fetch"
	"calwidget/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS appointments (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	start_at    TIMESTAMPTZ NOT NULL,
	end_at      TIMESTAMPTZ NOT NULL,
	all_day     BOOLEAN NOT NULL DEFAULT FALSE,
	color       TEXT NOT NULL DEFAULT '',
	icon        TEXT NOT NULL DEFAULT '',
	link        TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS appointments_start_idx ON appointments (start_at);
`

// Source implements fetch.Source over Postgres.
type Source struct {
	db  *sql.DB
	loc *time.Location
}

// Open connects, verifies the connection and bootstraps the schema.
func Open(connString string, loc *time.Location) (*Source, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	return &Source{db: db, loc: loc}, nil
}

// Close releases the connection pool.
func (s *Source) Close() error {
	return s.db.Close()
}

// Fetch implements fetch.Source.
func (s *Source) Fetch(ctx context.Context, q fetch.Query) (model.Result, error) {
	switch {
	case q.IsSearch():
		return s.search(ctx, q)
	case q.Year != 0:
		return s.yearTotals(ctx, q.Year)
	default:
		return s.window(ctx, q)
	}
}

const selectCols = `id, title, start_at, end_at, all_day, color, icon, link, location, description`

func (s *Source) window(ctx context.Context, q fetch.Query) (model.Result, error) {
	from, err := model.ParseDate(q.FromDate)
	if err != nil {
		return model.Result{}, fmt.Errorf("pg source: %w", err)
	}
	to, err := model.ParseDate(q.ToDate)
	if err != nil {
		return model.Result{}, fmt.Errorf("pg source: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectCols+`
		FROM appointments
		WHERE start_at <= $2 AND end_at >= $1
		ORDER BY start_at`,
		from.Time(s.loc), to.EndOfDay(s.loc))
	if err != nil {
		return model.Result{}, fmt.Errorf("querying appointments: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func (s *Source) search(ctx context.Context, q fetch.Query) (model.Result, error) {
	pattern := "%" + q.Search + "%"

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE title ILIKE $1 OR location ILIKE $1 OR description ILIKE $1`,
		pattern).Scan(&total)
	if err != nil {
		return model.Result{}, fmt.Errorf("counting search results: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectCols+`
		FROM appointments
		WHERE title ILIKE $1 OR location ILIKE $1 OR description ILIKE $1
		ORDER BY start_at
		LIMIT $2 OFFSET $3`,
		pattern, q.Limit, q.Offset)
	if err != nil {
		return model.Result{}, fmt.Errorf("querying search results: %w", err)
	}
	defer rows.Close()

	res, err := scanRows(rows)
	if err != nil {
		return model.Result{}, err
	}
	res.Total = total
	return res, nil
}

// yearTotals returns pre-aggregated {date, total} rows for the year view.
func (s *Source) yearTotals(ctx context.Context, year int) (model.Result, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(1, 0, 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT to_char(start_at::date, 'YYYY-MM-DD') AS day, COUNT(*)
		FROM appointments
		WHERE start_at >= $1 AND start_at < $2
		GROUP BY day
		ORDER BY day`,
		from, to)
	if err != nil {
		return model.Result{}, fmt.Errorf("aggregating year totals: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return model.Result{}, err
		}
		out = append(out, model.Appointment{Date: day, Total: fmt.Sprint(count)})
	}
	if err := rows.Err(); err != nil {
		return model.Result{}, err
	}
	return model.Result{Rows: out, Total: len(out)}, nil
}

func scanRows(rows *sql.Rows) (model.Result, error) {
	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.Title, &a.Start, &a.End, &a.AllDay,
			&a.Color, &a.Icon, &a.Link, &a.Location, &a.Description); err != nil {
			return model.Result{}, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return model.Result{}, err
	}
	return model.Result{Rows: out, Total: len(out)}, nil
}
