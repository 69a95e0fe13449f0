package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store persists the three record families plus the run log in SQLite. The
// ingestion engine is its only writer; the HTTP layer only reads.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path. WAL mode
// keeps reads concurrent with the single writer; the busy timeout absorbs
// short lock contention instead of failing fast.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS weather_observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			location TEXT NOT NULL,
			date_ts INTEGER NOT NULL,
			date_str TEXT NOT NULL,
			sunrise TEXT,
			summary TEXT,
			temp_day REAL,
			pressure REAL,
			wind_speed REAL,
			wind_gust REAL,
			fishing_base TEXT,
			fishing TEXT,
			fishing_rating TEXT,
			created_at INTEGER NOT NULL,
			UNIQUE(location, date_ts)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_weather_created ON weather_observations(created_at DESC, date_ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_weather_location ON weather_observations(location, date_ts)`,
		`CREATE TABLE IF NOT EXISTS water_temperature_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			lake_name TEXT NOT NULL,
			temperature_celsius REAL NOT NULL,
			temperature_fahrenheit REAL NOT NULL,
			timestamp INTEGER NOT NULL,
			source TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			depth REAL,
			notes TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_watertemp_lake_ts ON water_temperature_records(lake_name, timestamp DESC)`,
		`CREATE TABLE IF NOT EXISTS stocking_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			lake_name TEXT NOT NULL,
			species TEXT NOT NULL,
			stocking_date TEXT NOT NULL,
			fish_size TEXT,
			quantity INTEGER,
			latitude REAL,
			longitude REAL,
			notes TEXT,
			source TEXT,
			created_at INTEGER NOT NULL,
			UNIQUE(lake_name, stocking_date, species)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stocking_date ON stocking_records(stocking_date DESC)`,
		`CREATE TABLE IF NOT EXISTS run_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			weather_written INTEGER NOT NULL,
			water_temps_written INTEGER NOT NULL,
			stocking_written INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			error_message TEXT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// busyRetry runs fn once more after a short pause when SQLite reports a busy
// database. Anything still failing surfaces as a storage conflict.
func busyRetry(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		time.Sleep(50 * time.Millisecond)
		if err = fn(); err == nil {
			return nil
		}
		return fmt.Errorf("%w: %v", fishing.ErrStorageConflict, err)
	}
	return err
}

// UpsertWeather inserts or replaces observations by their (location, date)
// natural key inside one transaction. Every raw and derived field is
// refreshed, including the ingestion timestamp, so the latest run always
// wins.
func (s *Store) UpsertWeather(ctx context.Context, obs []fishing.WeatherObservation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	var written int
	err := busyRetry(func() error {
		written = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO weather_observations
				(location, date_ts, date_str, sunrise, summary, temp_day, pressure,
				 wind_speed, wind_gust, fishing_base, fishing, fishing_rating, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(location, date_ts) DO UPDATE SET
				date_str = excluded.date_str,
				sunrise = excluded.sunrise,
				summary = excluded.summary,
				temp_day = excluded.temp_day,
				pressure = excluded.pressure,
				wind_speed = excluded.wind_speed,
				wind_gust = excluded.wind_gust,
				fishing_base = excluded.fishing_base,
				fishing = excluded.fishing,
				fishing_rating = excluded.fishing_rating,
				created_at = excluded.created_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, o := range obs {
			if _, err := stmt.Exec(o.Location, o.DateTS, o.DateStr, o.Sunrise, o.Summary,
				o.TempDay, o.Pressure, o.WindSpeed, o.WindGust,
				o.FishingBase, o.Fishing, o.FishingRating, o.CreatedAt); err != nil {
				return fmt.Errorf("upsert weather %s/%d: %w", o.Location, o.DateTS, err)
			}
			written++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// WeatherLatest returns observations newest-first by ingestion time, ties by
// forecast date. An empty location matches all locations. The limit caps the
// result after ordering.
func (s *Store) WeatherLatest(ctx context.Context, location string, limit int) ([]fishing.WeatherObservation, error) {
	query := `
		SELECT location, date_ts, date_str, sunrise, summary, temp_day, pressure,
		       wind_speed, wind_gust, fishing_base, fishing, fishing_rating, created_at
		FROM weather_observations`
	args := []any{}
	if location != "" {
		query += ` WHERE location = ?`
		args = append(args, location)
	}
	query += ` ORDER BY created_at DESC, date_ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query weather: %w", err)
	}
	defer rows.Close()
	return scanWeather(rows)
}

// WeatherForecast returns observations dated from `from` onwards, optionally
// bounded to a number of days ahead (0 = unbounded), newest-first.
func (s *Store) WeatherForecast(ctx context.Context, from time.Time, days int, limit int) ([]fishing.WeatherObservation, error) {
	query := `
		SELECT location, date_ts, date_str, sunrise, summary, temp_day, pressure,
		       wind_speed, wind_gust, fishing_base, fishing, fishing_rating, created_at
		FROM weather_observations
		WHERE date_ts >= ?`
	args := []any{fishing.DayKey(from)}
	if days > 0 {
		query += ` AND date_ts < ?`
		args = append(args, fishing.DayKey(from.AddDate(0, 0, days)))
	}
	query += ` ORDER BY created_at DESC, date_ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query forecast: %w", err)
	}
	defer rows.Close()
	return scanWeather(rows)
}

func scanWeather(rows *sql.Rows) ([]fishing.WeatherObservation, error) {
	out := make([]fishing.WeatherObservation, 0)
	for rows.Next() {
		var o fishing.WeatherObservation
		if err := rows.Scan(&o.Location, &o.DateTS, &o.DateStr, &o.Sunrise, &o.Summary,
			&o.TempDay, &o.Pressure, &o.WindSpeed, &o.WindGust,
			&o.FishingBase, &o.Fishing, &o.FishingRating, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan weather row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// PruneWeather deletes observations whose forecast date is older than the
// cutoff. Water temperature and stocking history are never pruned.
func (s *Store) PruneWeather(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM weather_observations WHERE date_ts < ?`, fishing.DayKey(olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune weather: %w", err)
	}
	return res.RowsAffected()
}

// AppendWaterTemps inserts readings as new rows. The family is append-only;
// there is no natural-key conflict to resolve.
func (s *Store) AppendWaterTemps(ctx context.Context, recs []fishing.WaterTemperatureRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	var written int
	err := busyRetry(func() error {
		written = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO water_temperature_records
				(lake_name, temperature_celsius, temperature_fahrenheit, timestamp,
				 source, latitude, longitude, depth, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range recs {
			if _, err := stmt.Exec(r.LakeName, r.TempC, r.TempF, r.Timestamp,
				r.Source, r.Latitude, r.Longitude, r.Depth, r.Notes, r.CreatedAt); err != nil {
				return fmt.Errorf("insert water temp %s: %w", r.LakeName, err)
			}
			written++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// WaterTempsRecent returns readings newest-first by observation timestamp.
// An empty lake matches all lakes.
func (s *Store) WaterTempsRecent(ctx context.Context, lake string, limit int) ([]fishing.WaterTemperatureRecord, error) {
	query := `
		SELECT lake_name, temperature_celsius, temperature_fahrenheit, timestamp,
		       source, latitude, longitude, depth, notes, created_at
		FROM water_temperature_records`
	args := []any{}
	if lake != "" {
		query += ` WHERE lake_name = ?`
		args = append(args, lake)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query water temps: %w", err)
	}
	defer rows.Close()
	return scanWaterTemps(rows)
}

// LatestWaterTempByLake returns one reading per lake: the one with the
// maximum observation timestamp, ties broken by the most recent ingestion.
func (s *Store) LatestWaterTempByLake(ctx context.Context) (map[string]fishing.WaterTemperatureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lake_name, temperature_celsius, temperature_fahrenheit, timestamp,
		       source, latitude, longitude, depth, notes, created_at
		FROM water_temperature_records r
		WHERE r.id = (
			SELECT r2.id FROM water_temperature_records r2
			WHERE r2.lake_name = r.lake_name
			ORDER BY r2.timestamp DESC, r2.id DESC
			LIMIT 1
		)
		ORDER BY lake_name`)
	if err != nil {
		return nil, fmt.Errorf("query latest water temps: %w", err)
	}
	defer rows.Close()

	recs, err := scanWaterTemps(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]fishing.WaterTemperatureRecord, len(recs))
	for _, r := range recs {
		out[r.LakeName] = r
	}
	return out, nil
}

func scanWaterTemps(rows *sql.Rows) ([]fishing.WaterTemperatureRecord, error) {
	out := make([]fishing.WaterTemperatureRecord, 0)
	for rows.Next() {
		var (
			r     fishing.WaterTemperatureRecord
			notes sql.NullString
		)
		if err := rows.Scan(&r.LakeName, &r.TempC, &r.TempF, &r.Timestamp,
			&r.Source, &r.Latitude, &r.Longitude, &r.Depth, &notes, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan water temp row: %w", err)
		}
		r.Notes = notes.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertStockings inserts events, treating a re-reported (lake, date,
// species) event as a refresh of the existing row rather than a duplicate.
func (s *Store) UpsertStockings(ctx context.Context, recs []fishing.StockingRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	var written int
	err := busyRetry(func() error {
		written = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO stocking_records
				(lake_name, species, stocking_date, fish_size, quantity,
				 latitude, longitude, notes, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(lake_name, stocking_date, species) DO UPDATE SET
				fish_size = excluded.fish_size,
				quantity = excluded.quantity,
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				notes = excluded.notes,
				source = excluded.source`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range recs {
			if _, err := stmt.Exec(r.LakeName, r.Species, r.StockingDate, r.FishSize, r.Quantity,
				r.Latitude, r.Longitude, r.Notes, r.Source, r.CreatedAt); err != nil {
				return fmt.Errorf("upsert stocking %s/%s: %w", r.LakeName, r.Species, err)
			}
			written++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// StockingsRecent returns events newest-first by stocking date. An empty
// lake matches all lakes.
func (s *Store) StockingsRecent(ctx context.Context, lake string, limit int) ([]fishing.StockingRecord, error) {
	query := `
		SELECT lake_name, species, stocking_date, fish_size, quantity,
		       latitude, longitude, notes, source, created_at
		FROM stocking_records`
	args := []any{}
	if lake != "" {
		query += ` WHERE lake_name = ?`
		args = append(args, lake)
	}
	query += ` ORDER BY stocking_date DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stockings: %w", err)
	}
	defer rows.Close()

	out := make([]fishing.StockingRecord, 0)
	for rows.Next() {
		var (
			r     fishing.StockingRecord
			size  sql.NullString
			notes sql.NullString
			src   sql.NullString
		)
		if err := rows.Scan(&r.LakeName, &r.Species, &r.StockingDate, &size, &r.Quantity,
			&r.Latitude, &r.Longitude, &notes, &src, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stocking row: %w", err)
		}
		r.FishSize = size.String
		r.Notes = notes.String
		r.Source = src.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunLogEntry is one persisted sweep summary.
type RunLogEntry struct {
	RunID             string `json:"run_id"`
	WeatherWritten    int    `json:"weather_written"`
	WaterTempsWritten int    `json:"water_temps_written"`
	StockingWritten   int    `json:"stocking_written"`
	Failures          int    `json:"failures"`
	ErrorMessage      string `json:"error_message,omitempty"`
	StartedAt         int64  `json:"started_at"`
	FinishedAt        int64  `json:"finished_at"`
}

// RecordRun appends a sweep summary to the run log.
func (s *Store) RecordRun(ctx context.Context, sum fishing.RunSummary) error {
	firstErr := ""
	if len(sum.Failures) > 0 {
		firstErr = sum.Failures[0].Err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_log
			(run_id, weather_written, water_temps_written, stocking_written,
			 failures, error_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.WeatherWritten, sum.WaterTempsWritten, sum.StockingWritten,
		len(sum.Failures), firstErr, sum.StartedAt.Unix(), sum.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// LastRun returns the most recent sweep summary, or ErrNotFound when no
// sweep has run yet.
func (s *Store) LastRun(ctx context.Context) (RunLogEntry, error) {
	var (
		e      RunLogEntry
		errMsg sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, weather_written, water_temps_written, stocking_written,
		       failures, error_message, started_at, finished_at
		FROM run_log ORDER BY id DESC LIMIT 1`).
		Scan(&e.RunID, &e.WeatherWritten, &e.WaterTempsWritten, &e.StockingWritten,
			&e.Failures, &errMsg, &e.StartedAt, &e.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RunLogEntry{}, ErrNotFound
	}
	if err != nil {
		return RunLogEntry{}, fmt.Errorf("last run: %w", err)
	}
	e.ErrorMessage = errMsg.String
	return e, nil
}

// Stats summarizes what the store holds.
type Stats struct {
	WeatherRows     int64 `json:"weather_rows"`
	WaterTempRows   int64 `json:"water_temp_rows"`
	StockingRows    int64 `json:"stocking_rows"`
	WeatherOldestTS int64 `json:"weather_oldest_ts"`
	WeatherNewestTS int64 `json:"weather_newest_ts"`
}

// Stats counts rows per family and reports the weather date range.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM weather_observations),
			(SELECT COUNT(*) FROM water_temperature_records),
			(SELECT COUNT(*) FROM stocking_records),
			(SELECT COALESCE(MIN(date_ts), 0) FROM weather_observations),
			(SELECT COALESCE(MAX(date_ts), 0) FROM weather_observations)`)
	if err := row.Scan(&st.WeatherRows, &st.WaterTempRows, &st.StockingRows,
		&st.WeatherOldestTS, &st.WeatherNewestTS); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
