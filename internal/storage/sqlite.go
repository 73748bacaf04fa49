package storage

import (
	"database/sql"
	"time"

	"buildflow/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// TriggerRecord is one resolved trigger or poll outcome as kept by the
// gateway. State holds the terminal state string; BuildNumber is zero unless
// the build started.
type TriggerRecord struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	APIKey      string    `json:"api_key"`
	JobName     string    `json:"job_name"`
	QueueID     int64     `json:"queue_id"`
	State       string    `json:"state"`
	BuildNumber int       `json:"build_number,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	Params      string    `json:"params"`
	Error       string    `json:"error,omitempty"`
}

// Init initializes the SQLite database
func Init(dbPath string) error {
	var err error

	// Open the database connection with connection pool settings
	db, err = sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON")
	if err != nil {
		return err
	}

	// SQLite doesn't support multiple writers, but we can optimize for concurrent reads
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		return err
	}

	if err = createTables(); err != nil {
		return err
	}

	logger.Info("Database initialized successfully")
	return nil
}

// createTables creates the necessary database tables
func createTables() error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS trigger_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		api_key TEXT NOT NULL,
		job_name TEXT NOT NULL,
		queue_id INTEGER NOT NULL,
		state TEXT NOT NULL,
		build_number INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		params TEXT,
		error TEXT
	)
	`)

	return err
}

const timestampLayout = "2006-01-02 15:04:05.000000"

// InsertTriggerRecord inserts a new trigger record
func InsertTriggerRecord(rec TriggerRecord) error {
	_, err := db.Exec(
		`INSERT INTO trigger_records (timestamp, api_key, job_name, queue_id, state, build_number, duration_ms, params, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format(timestampLayout),
		rec.APIKey,
		rec.JobName,
		rec.QueueID,
		rec.State,
		rec.BuildNumber,
		rec.DurationMS,
		rec.Params,
		rec.Error,
	)

	if err != nil {
		logger.Error("Failed to insert trigger record", "error", err)
		return err
	}

	return nil
}

// GetTriggerRecords retrieves trigger records with pagination, most recent
// first.
func GetTriggerRecords(limit, offset int) ([]TriggerRecord, error) {
	rows, err := db.Query(
		`SELECT id, timestamp, api_key, job_name, queue_id, state, build_number, duration_ms, params, error FROM trigger_records ORDER BY id DESC LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TriggerRecord
	for rows.Next() {
		var rec TriggerRecord
		var timestampStr string

		if err := rows.Scan(
			&rec.ID,
			&timestampStr,
			&rec.APIKey,
			&rec.JobName,
			&rec.QueueID,
			&rec.State,
			&rec.BuildNumber,
			&rec.DurationMS,
			&rec.Params,
			&rec.Error,
		); err != nil {
			return nil, err
		}

		// Parse the timestamp string, with and without microseconds for
		// compatibility with older rows.
		timestamp, err := time.Parse(timestampLayout, timestampStr)
		if err != nil {
			timestamp, err = time.Parse("2006-01-02 15:04:05", timestampStr)
			if err != nil {
				timestamp = time.Now()
			}
		}
		rec.Timestamp = timestamp

		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Ping verifies the database connection is alive
func Ping() error {
	if db == nil {
		return sql.ErrConnDone
	}
	return db.Ping()
}

// Close closes the database connection
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}
