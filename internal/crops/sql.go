package crops

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLStore keeps crops in a relational database: active crops in "crops",
// harvested ones in "crop_history".
type SQLStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// OpenSQLStore connects to dsn with the named driver and creates the schema.
// dsn examples:
//
//	mysql:    "user:pass@tcp(localhost:3306)/farm?parseTime=true"
//	postgres: "host=localhost user=postgres dbname=farm sslmode=disable"
//	sqlite:   "file:crops.db"
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	switch driver {
	case DriverSQLite:
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s, err := NewSQLStore(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and creates the schema if needed.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: driver, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	var id, text string
	switch s.driver {
	case DriverMySQL:
		id, text = "BIGINT AUTO_INCREMENT PRIMARY KEY", "VARCHAR(255)"
	case DriverPostgres:
		id, text = "BIGSERIAL PRIMARY KEY", "TEXT"
	case DriverSQLite:
		id, text = "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
	default:
		return fmt.Errorf("unsupported driver %q", s.driver)
	}

	// MySQL doesn't support multiple statements in one Exec.
	for _, table := range []string{"crops", "crop_history"} {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id %s,
			user_id %s NOT NULL,
			text %s NOT NULL,
			date VARCHAR(32) NOT NULL
		)`, table, id, text, text)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
	}
	return nil
}

// rebind rewrites "?" placeholders for drivers that number them.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Add(ctx context.Context, userID string, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO crops (user_id, text, date) VALUES (?, ?, ?)`),
		userID, e.Text, e.Date)
	if err != nil {
		return fmt.Errorf("add crop: %w", err)
	}
	return nil
}

// ListActive returns the user's active crops, first moving any whose date
// has passed into crop_history. Rows with unreadable dates stay active.
func (s *SQLStore) ListActive(ctx context.Context, userID string) ([]Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, s.rebind(`SELECT id, text, date FROM crops WHERE user_id = ? ORDER BY id`), userID)
	if err != nil {
		return nil, fmt.Errorf("list active crops: %w", err)
	}

	type row struct {
		id    int64
		entry Entry
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.entry.Text, &r.entry.Date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan crop: %w", err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	now := s.now()
	active := make([]Entry, 0, len(all))
	for _, r := range all {
		at, err := ParseDate(r.entry.Date)
		if err != nil || !at.Before(now) {
			active = append(active, r.entry)
			continue
		}
		if _, err := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO crop_history (user_id, text, date) VALUES (?, ?, ?)`),
			userID, r.entry.Text, r.entry.Date); err != nil {
			return nil, fmt.Errorf("archive crop: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM crops WHERE id = ?`), r.id); err != nil {
			return nil, fmt.Errorf("archive crop: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return active, nil
}

func (s *SQLStore) ListHistory(ctx context.Context, userID string, limit int) ([]Entry, error) {
	query := `SELECT text, date FROM crop_history WHERE user_id = ? ORDER BY date DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list crop history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Text, &e.Date); err != nil {
			return nil, fmt.Errorf("scan crop: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
