package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/medreports/backend/internal/storage/models"
	"github.com/medreports/backend/pkg/logger"
)

// The stock driver has no REGEXP operator; register a Go implementation so
// the fallback test-name pattern match runs in-store.
func init() {
	sql.Register("sqlite3_regexp", &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", func(pattern, value string) (bool, error) {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return false, err
				}
				return re.MatchString(value), nil
			}, true)
		},
	})
}

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3_regexp", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		file_name TEXT,
		date TEXT,
		extracted_parameters TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_user ON reports(user_id);

	CREATE TABLE IF NOT EXISTS parameters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		category TEXT,
		test_name TEXT NOT NULL,
		value REAL,
		unit TEXT,
		reference_range TEXT,
		date TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_parameters_user ON parameters(user_id);
	CREATE INDEX IF NOT EXISTS idx_parameters_report ON parameters(report_id);
	CREATE INDEX IF NOT EXISTS idx_parameters_test ON parameters(test_name);
	CREATE INDEX IF NOT EXISTS idx_parameters_date ON parameters(date);

	CREATE TABLE IF NOT EXISTS confidence_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		overall_confidence REAL NOT NULL,
		breakdown TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scores_report ON confidence_scores(report_id);

	CREATE TABLE IF NOT EXISTS search_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		query_text TEXT NOT NULL,
		filter_json TEXT,
		result_count INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_search_user ON search_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_search_created ON search_history(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertReport(ctx context.Context, report *models.Report) error {
	extractedJSON, err := json.Marshal(report.ExtractedParameters)
	if err != nil {
		return fmt.Errorf("failed to marshal extracted parameters: %w", err)
	}

	query := `
		INSERT INTO reports (id, user_id, file_name, date, extracted_parameters, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.ExecContext(ctx, query,
		report.ID,
		report.UserID,
		report.FileName,
		report.Date,
		string(extractedJSON),
		report.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	logger.Debug("Report inserted", zap.String("report_id", report.ID))
	return nil
}

func (c *Client) GetReport(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT id, user_id, file_name, date, extracted_parameters, created_at FROM reports WHERE id = ?`

	var report models.Report
	var extractedJSON string
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&report.ID,
		&report.UserID,
		&report.FileName,
		&report.Date,
		&extractedJSON,
		&createdAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if extractedJSON != "" {
		if err := json.Unmarshal([]byte(extractedJSON), &report.ExtractedParameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extracted parameters: %w", err)
		}
	}

	report.CreatedAt = time.Unix(createdAt, 0)
	return &report, nil
}

func (c *Client) InsertParameters(ctx context.Context, records []models.ParameterRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO parameters (report_id, user_id, category, test_name, value, unit, reference_range, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var value interface{}
		if r.Value != nil {
			value = *r.Value
		}

		if _, err := stmt.ExecContext(ctx, r.ReportID, r.UserID, r.Category, r.TestName, value, r.Unit, r.ReferenceRange, r.Date); err != nil {
			return fmt.Errorf("failed to insert parameter row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit parameter rows: %w", err)
	}

	logger.Debug("Parameter rows inserted", zap.Int("count", len(records)))
	return nil
}

// FindParameters executes the compiled search predicate. Zero-valued
// predicate fields add no constraint.
func (c *Client) FindParameters(ctx context.Context, pred models.ParameterPredicate) ([]models.ParameterRecord, error) {
	var (
		clauses []string
		args    []interface{}
	)

	if pred.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, pred.UserID)
	}
	if pred.StartDate != "" {
		clauses = append(clauses, "date >= ?")
		args = append(args, pred.StartDate)
	}
	if pred.EndDate != "" {
		clauses = append(clauses, "date <= ?")
		args = append(args, pred.EndDate)
	}
	if pred.TestName != "" {
		clauses = append(clauses, "test_name = ?")
		args = append(args, pred.TestName)
	} else if pred.TestNamePattern != "" {
		clauses = append(clauses, "test_name REGEXP ?")
		args = append(args, pred.TestNamePattern)
	}
	if pred.HasValue {
		op, ok := map[string]string{"=": "=", "<": "<", ">": ">", "<=": "<=", ">=": ">="}[pred.ValueOp]
		if ok {
			clauses = append(clauses, fmt.Sprintf("value %s ?", op))
			args = append(args, pred.Value)
		}
	}

	query := `SELECT id, report_id, user_id, category, test_name, value, unit, reference_range, date FROM parameters`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date DESC, id"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer rows.Close()

	var records []models.ParameterRecord
	for rows.Next() {
		var r models.ParameterRecord
		var category, unit, refRange, date sql.NullString
		var value sql.NullFloat64

		if err := rows.Scan(&r.ID, &r.ReportID, &r.UserID, &category, &r.TestName, &value, &unit, &refRange, &date); err != nil {
			return nil, fmt.Errorf("failed to scan parameter row: %w", err)
		}

		r.Category = category.String
		r.Unit = unit.String
		r.ReferenceRange = refRange.String
		r.Date = date.String
		if value.Valid {
			v := value.Float64
			r.Value = &v
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parameter rows: %w", err)
	}

	return records, nil
}

// GetReportsByIDs resolves report metadata for a set of ids in one query.
// Missing ids are simply absent from the result.
func (c *Client) GetReportsByIDs(ctx context.Context, ids []string) ([]models.ReportSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`SELECT id, date, file_name FROM reports WHERE id IN (%s)`, placeholders)

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var summaries []models.ReportSummary
	for rows.Next() {
		var s models.ReportSummary
		var date, fileName sql.NullString

		if err := rows.Scan(&s.ID, &date, &fileName); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}

		s.Date = date.String
		s.FileName = fileName.String
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate report rows: %w", err)
	}

	return summaries, nil
}

// InsertConfidenceScore appends a scoring run. Scores are immutable: a
// re-score is a new row, never an update.
func (c *Client) InsertConfidenceScore(ctx context.Context, record *models.ConfidenceScoreRecord) error {
	query := `
		INSERT INTO confidence_scores (report_id, user_id, overall_confidence, breakdown, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		record.ReportID,
		record.UserID,
		record.OverallConfidence,
		record.BreakdownJSON,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert confidence score: %w", err)
	}

	logger.Info("Confidence score recorded",
		zap.String("report_id", record.ReportID),
		zap.Float64("overall_confidence", record.OverallConfidence),
	)

	return nil
}

func (c *Client) GetLatestConfidenceScore(ctx context.Context, reportID string) (*models.ConfidenceScoreRecord, error) {
	query := `
		SELECT id, report_id, user_id, overall_confidence, breakdown, created_at
		FROM confidence_scores
		WHERE report_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var record models.ConfidenceScoreRecord
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, reportID).Scan(
		&record.ID,
		&record.ReportID,
		&record.UserID,
		&record.OverallConfidence,
		&record.BreakdownJSON,
		&createdAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get confidence score: %w", err)
	}

	record.CreatedAt = time.Unix(createdAt, 0)
	return &record, nil
}

func (c *Client) InsertSearchRecord(ctx context.Context, record *models.SearchRecord) error {
	query := `
		INSERT INTO search_history (id, user_id, query_text, filter_json, result_count, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.QueryText,
		record.FilterJSON,
		record.ResultCount,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert search record: %w", err)
	}

	return nil
}

func (c *Client) GetSearchHistory(ctx context.Context, userID string, limit int) ([]models.SearchRecord, error) {
	query := `
		SELECT id, user_id, query_text, filter_json, result_count, latency_ms, created_at
		FROM search_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get search history: %w", err)
	}
	defer rows.Close()

	var records []models.SearchRecord
	for rows.Next() {
		var r models.SearchRecord
		var createdAt int64

		if err := rows.Scan(&r.ID, &r.UserID, &r.QueryText, &r.FilterJSON, &r.ResultCount, &r.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan search record: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search records: %w", err)
	}

	return records, nil
}
