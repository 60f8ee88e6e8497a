package names

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/taxonomix/backend/internal/models"
)

// Supported cache drivers.
const (
	DriverMemory = "memory"
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

const createNameMatches = `
	CREATE TABLE IF NOT EXISTS name_matches (
		name       VARCHAR PRIMARY KEY,
		payload    BLOB NOT NULL,
		match_type VARCHAR NOT NULL,
		updated_at BIGINT NOT NULL
	)`

// SQLCache persists matches in a single table, one msgpack payload per name.
type SQLCache struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// OpenCache opens the cache backend named by driver. path is ignored for
// the memory driver.
func OpenCache(driverName, path string, logger *zap.Logger) (Cache, error) {
	switch driverName {
	case DriverMemory, "":
		return NewMemoryCache(), nil
	case DriverDuckDB, DriverSQLite:
		c, err := OpenSQLCache(driverName, path, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driverName)
	}
}

// OpenSQLCache opens or creates a DuckDB or SQLite file at path.
func OpenSQLCache(driverName, path string, logger *zap.Logger) (*SQLCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	var (
		db  *sql.DB
		err error
	)
	switch driverName {
	case DriverDuckDB:
		db, err = openDuckDB(path)
	case DriverSQLite:
		db, err = openSQLite(path)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driverName)
	}
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(createNameMatches); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create name_matches table: %w", err)
	}

	logger = logger.Named("cache")
	logger.Info("name cache opened", zap.String("driver", driverName), zap.String("path", path))
	return &SQLCache{db: db, driver: driverName, logger: logger}, nil
}

func openDuckDB(path string) (*sql.DB, error) {
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return db, nil
}

func (c *SQLCache) Get(ctx context.Context, name string) (models.NameMatch, bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx, `SELECT payload FROM name_matches WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NameMatch{}, false, nil
	}
	if err != nil {
		return models.NameMatch{}, false, fmt.Errorf("query name %q: %w", name, err)
	}

	var m models.NameMatch
	if err := msgpack.Unmarshal(payload, &m); err != nil {
		return models.NameMatch{}, false, fmt.Errorf("decode name %q: %w", name, err)
	}
	return m, true, nil
}

func (c *SQLCache) Set(ctx context.Context, name string, match models.NameMatch) error {
	payload, err := msgpack.Marshal(&match)
	if err != nil {
		return fmt.Errorf("encode name %q: %w", name, err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO name_matches (name, payload, match_type, updated_at) VALUES (?, ?, ?, ?)`,
		name, payload, string(match.MatchType), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store name %q: %w", name, err)
	}
	return nil
}

func (c *SQLCache) Has(ctx context.Context, name string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM name_matches WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query name %q: %w", name, err)
	}
	return n > 0, nil
}

// Count returns the number of cached names.
func (c *SQLCache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM name_matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count names: %w", err)
	}
	return n, nil
}

// Driver returns the backing driver name.
func (c *SQLCache) Driver() string { return c.driver }

func (c *SQLCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	c.logger.Debug("closing name cache", zap.String("driver", c.driver))
	return c.db.Close()
}
