package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/phishguard/phish-detector/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Supported SQL dialects
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// goose keeps its base FS and dialect in package globals
var migrateMu sync.Mutex

// SQLRuleStore implements ports.RuleStore on PostgreSQL or SQLite
type SQLRuleStore struct {
	db      *sql.DB
	dialect string
	logger  *zap.Logger
}

// NewPostgresRuleStore opens a PostgreSQL rule store and migrates its schema
func NewPostgresRuleStore(ctx context.Context, connStr string, logger *zap.Logger) (*SQLRuleStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Rules are small and rarely written; a handful of connections is plenty
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLRuleStore(ctx, db, DialectPostgres, logger)
}

// NewSQLiteRuleStore opens (or creates) a SQLite rule store at path
func NewSQLiteRuleStore(ctx context.Context, path string, logger *zap.Logger) (*SQLRuleStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows a single writer; sharing one connection also keeps
	// ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure SQLite database: %w", err)
	}

	return newSQLRuleStore(ctx, db, DialectSQLite, logger)
}

func newSQLRuleStore(ctx context.Context, db *sql.DB, dialect string, logger *zap.Logger) (*SQLRuleStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SQLRuleStore{db: db, dialect: dialect, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies the embedded goose migrations
func (s *SQLRuleStore) migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	gooseDialect := "postgres"
	if s.dialect == DialectSQLite {
		gooseDialect = "sqlite3"
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(&gooseLogger{logger: s.logger})
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate rule schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLRuleStore) Close() error {
	return s.db.Close()
}

// Load reads every rule entry and threshold
//
// Rows naming an unknown list or threshold are skipped with a warning so that
// a newer schema does not break an older binary.
func (s *SQLRuleStore) Load(ctx context.Context) (*domain.RuleConfig, error) {
	rules := &domain.RuleConfig{Thresholds: domain.DefaultThresholds()}

	found, err := s.loadEntries(ctx, rules)
	if err != nil {
		return nil, err
	}

	values, err := s.loadThresholds(ctx)
	if err != nil {
		return nil, err
	}
	if found == 0 && len(values) == 0 {
		return nil, domain.ErrRuleConfigNotFound
	}

	for _, name := range rules.Thresholds.ApplyValues(values) {
		s.logger.Warn("Skipping unknown or invalid threshold", zap.String("name", name))
	}

	rules.Normalize()
	return rules, nil
}

// loadEntries fills the rule lists and returns the number of rows read.
// Rows are closed before returning: SQLite runs on a single connection.
func (s *SQLRuleStore) loadEntries(ctx context.Context, rules *domain.RuleConfig) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT list, value
		FROM rule_entries
		ORDER BY list, value
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to query rule entries: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var list, value string
		if err := rows.Scan(&list, &value); err != nil {
			return 0, fmt.Errorf("failed to scan rule entry: %w", err)
		}
		count++

		if _, err := rules.Add(domain.RuleList(list), value); err != nil {
			s.logger.Warn("Skipping rule entry", zap.String("list", list), zap.String("value", value), zap.Error(err))
		}
	}
	return count, rows.Err()
}

func (s *SQLRuleStore) loadThresholds(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM rule_thresholds`)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %w", err)
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		values[name] = value
	}
	return values, rows.Err()
}

// Save replaces the stored configuration in a single transaction
func (s *SQLRuleStore) Save(ctx context.Context, rules *domain.RuleConfig) (err error) {
	if rules == nil {
		return errors.New("cannot save nil rule configuration")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to roll back rule save", zap.Error(rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM rule_entries`); err != nil {
		return fmt.Errorf("failed to clear rule entries: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM rule_thresholds`); err != nil {
		return fmt.Errorf("failed to clear thresholds: %w", err)
	}

	insertEntry := s.rebind(`INSERT INTO rule_entries (id, list, value) VALUES ($1, $2, $3)`)
	for _, list := range domain.RuleLists() {
		values, err := rules.List(list)
		if err != nil {
			return err
		}
		for _, value := range values {
			if _, err = tx.ExecContext(ctx, insertEntry, uuid.New().String(), string(list), value); err != nil {
				return fmt.Errorf("failed to insert %s entry %q: %w", list, value, err)
			}
		}
	}

	insertThreshold := s.rebind(`INSERT INTO rule_thresholds (name, value) VALUES ($1, $2)`)
	thresholds := rules.Thresholds.Values()
	for _, name := range domain.ThresholdNames() {
		if _, err = tx.ExecContext(ctx, insertThreshold, name, thresholds[name]); err != nil {
			return fmt.Errorf("failed to insert threshold %q: %w", name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule save: %w", err)
	}
	return nil
}

// rebind turns $n placeholders into ? for SQLite
func (s *SQLRuleStore) rebind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}

	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			b.WriteByte('?')
			i = j - 1
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// gooseLogger routes migration output through zap
type gooseLogger struct {
	logger *zap.Logger
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
