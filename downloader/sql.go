package downloader

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Caches downloaded files in a SQL database, so that the static
// archive survives restarts. Holds at most one row per URL.
type SQLDownloader struct {
	db     *sql.DB
	driver string

	// Serializes cache misses, avoiding duplicate downloads
	mutex sync.Mutex

	TimeNow func() time.Time
}

// Opens a cache backed by SQLite ("sqlite3") or Postgres
// ("postgres"). The DSN is passed to the driver verbatim.
func NewSQLDownloader(driver string, dsn string) (*SQLDownloader, error) {
	if driver != "sqlite3" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported driver '%s'", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == "sqlite3" {
		// Each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	body := "BLOB"
	if driver == "postgres" {
		body = "BYTEA"
	}
	_, err = db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS download (
    url TEXT NOT NULL,
    body %s NOT NULL,
    retrieved_at BIGINT NOT NULL,
PRIMARY KEY (url)
);`, body))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating download table: %w", err)
	}

	return &SQLDownloader{
		db:      db,
		driver:  driver,
		TimeNow: time.Now,
	}, nil
}

func (d *SQLDownloader) Close() error {
	return d.db.Close()
}

// Rewrites ? placeholders for drivers that want $n.
func (d *SQLDownloader) query(q string) string {
	if d.driver != "postgres" {
		return q
	}
	out := []byte{}
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, q[i])
	}
	return string(out)
}

func (d *SQLDownloader) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if !options.Cache {
		return HTTPGet(ctx, url, headers, options)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	var body []byte
	var retrievedAt int64
	err := d.db.QueryRowContext(
		ctx,
		d.query(`SELECT body, retrieved_at FROM download WHERE url = ?`),
		url,
	).Scan(&body, &retrievedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	if err == nil && time.Unix(retrievedAt, 0).Add(options.CacheTTL).After(d.TimeNow()) {
		return body, nil
	}

	body, err = HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, err
	}

	_, err = d.db.ExecContext(
		ctx,
		d.query(`
INSERT INTO download (url, body, retrieved_at) VALUES (?, ?, ?)
ON CONFLICT (url) DO UPDATE SET body = excluded.body, retrieved_at = excluded.retrieved_at`),
		url,
		body,
		d.TimeNow().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("writing cache: %w", err)
	}

	return body, nil
}
