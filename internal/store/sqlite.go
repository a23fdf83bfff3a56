package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	jsoniter "github.com/json-iterator/go"

	_ "modernc.org/sqlite" // Pure Go driver, CGO-free, compatible with CGO_ENABLED=0
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps reviews in two relations: reviews (metadata,
// config, summary) and findings keyed by (review_id, ordinal).
type SQLiteStore struct {
	db  *sql.DB
	log logze.Logger
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errm.Wrap(err, "open sqlite")
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, errm.Wrap(err, "enable wal")
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, errm.Wrap(err, "enable foreign keys")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errm.Wrap(err, "ping sqlite")
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, errm.Wrap(err, "migrate")
	}

	return &SQLiteStore{
		db:  db,
		log: logze.With("component", "review_store"),
	}, nil
}

func migrate(db *sql.DB) error {
	schema := `
    CREATE TABLE IF NOT EXISTS reviews (
        review_id   TEXT PRIMARY KEY,
        repository  TEXT NOT NULL DEFAULT '',
        pr_number   INTEGER NOT NULL DEFAULT 0,
        commit_sha  TEXT NOT NULL DEFAULT '',
        metadata    TEXT,
        config      TEXT NOT NULL,
        summary     TEXT NOT NULL,
        failures    TEXT,
        markdown    TEXT NOT NULL,
        created_at  DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS findings (
        review_id    TEXT NOT NULL REFERENCES reviews(review_id) ON DELETE CASCADE,
        ordinal      INTEGER NOT NULL,
        file_path    TEXT NOT NULL,
        line_number  INTEGER NOT NULL,
        severity     TEXT NOT NULL,
        category     TEXT NOT NULL,
        description  TEXT NOT NULL,
        suggestion   TEXT NOT NULL DEFAULT '',
        agent_source TEXT NOT NULL DEFAULT '',
        PRIMARY KEY (review_id, ordinal)
    );
    CREATE INDEX IF NOT EXISTS idx_reviews_pr ON reviews(repository, pr_number);
    CREATE INDEX IF NOT EXISTS idx_reviews_created ON reviews(created_at);
    CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings(severity);
    `
	_, err := db.Exec(schema)
	return err
}

// Save writes the review and all its findings in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, result *model.ReviewResult) error {
	metadata, err := marshalNullable(result.Metadata)
	if err != nil {
		return errm.Wrap(err, "marshal metadata")
	}
	config, err := json.Marshal(result.Config)
	if err != nil {
		return errm.Wrap(err, "marshal config")
	}
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return errm.Wrap(err, "marshal summary")
	}
	failures, err := marshalNullable(result.Failures)
	if err != nil {
		return errm.Wrap(err, "marshal failures")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errm.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	var repository string
	var prNumber int
	if result.Metadata != nil {
		repository = result.Metadata.Repository
		prNumber = result.Metadata.PRNumber
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO reviews (review_id, repository, pr_number, commit_sha, metadata, config, summary, failures, markdown, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, result.ReviewID, repository, prNumber, result.CommitSHA,
		metadata, string(config), string(summary), failures, result.Markdown, result.CreatedAt.UTC())
	if err != nil {
		return errm.Wrap(err, "insert review")
	}

	for i, f := range result.Findings {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO findings (review_id, ordinal, file_path, line_number, severity, category, description, suggestion, agent_source)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        `, result.ReviewID, i, f.FilePath, f.LineNumber, string(f.Severity), string(f.Category),
			f.Description, f.Suggestion, f.AgentSource)
		if err != nil {
			return errm.Wrap(err, "insert finding", "ordinal", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return errm.Wrap(err, "commit tx")
	}

	s.log.Debug("review saved", "review_id", result.ReviewID, "findings", len(result.Findings))
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, reviewID string) (*model.ReviewResult, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT review_id, commit_sha, metadata, config, summary, failures, markdown, created_at
        FROM reviews WHERE review_id = ?
    `, reviewID)

	result, err := scanReview(row)
	if err != nil {
		if errm.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if result.Findings, err = s.loadFindings(ctx, reviewID); err != nil {
		return nil, err
	}
	return result, nil
}

// Query lists reviews ordered by creation time descending. Severity
// and category filters match reviews containing at least one such
// finding.
func (s *SQLiteStore) Query(ctx context.Context, filter Filter) ([]*model.ReviewResult, error) {
	var conds []string
	var args []any

	if filter.Repository != "" {
		conds = append(conds, "repository = ?")
		args = append(args, filter.Repository)
	}
	if filter.PRNumber > 0 {
		conds = append(conds, "pr_number = ?")
		args = append(args, filter.PRNumber)
	}
	if !filter.Start.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Start.UTC())
	}
	if !filter.End.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.End.UTC())
	}
	if filter.MinSeverity != "" {
		allowed := severitiesAtLeast(filter.MinSeverity)
		placeholders := strings.Repeat("?,", len(allowed))
		conds = append(conds, "EXISTS (SELECT 1 FROM findings f WHERE f.review_id = reviews.review_id AND f.severity IN ("+placeholders[:len(placeholders)-1]+"))")
		for _, sev := range allowed {
			args = append(args, string(sev))
		}
	}
	if filter.Category != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM findings f WHERE f.review_id = reviews.review_id AND f.category = ?)")
		args = append(args, string(filter.Category))
	}

	query := `
        SELECT review_id, commit_sha, metadata, config, summary, failures, markdown, created_at
        FROM reviews`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errm.Wrap(err, "query reviews")
	}
	defer rows.Close()

	var results []*model.ReviewResult
	for rows.Next() {
		result, err := scanReview(rows)
		if err != nil {
			s.log.Warn("scan review failed", "error", err.Error())
			continue
		}
		if result.Findings, err = s.loadFindings(ctx, result.ReviewID); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) ByPR(ctx context.Context, repository string, prNumber int) ([]*model.ReviewResult, error) {
	return s.Query(ctx, Filter{Repository: repository, PRNumber: prNumber})
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) loadFindings(ctx context.Context, reviewID string) ([]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT file_path, line_number, severity, category, description, suggestion, agent_source
        FROM findings WHERE review_id = ?
        ORDER BY ordinal
    `, reviewID)
	if err != nil {
		return nil, errm.Wrap(err, "query findings")
	}
	defer rows.Close()

	var findings []model.Finding
	for rows.Next() {
		var f model.Finding
		var severity, category string
		if err := rows.Scan(&f.FilePath, &f.LineNumber, &severity, &category,
			&f.Description, &f.Suggestion, &f.AgentSource); err != nil {
			return nil, errm.Wrap(err, "scan finding")
		}
		f.Severity = model.Severity(severity)
		f.Category = model.Category(category)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// Scanner supports both Row and Rows.
type Scanner interface {
	Scan(dest ...any) error
}

func scanReview(sc Scanner) (*model.ReviewResult, error) {
	var result model.ReviewResult
	var metadata, failures sql.NullString
	var config, summary string
	var createdAt time.Time

	if err := sc.Scan(&result.ReviewID, &result.CommitSHA, &metadata,
		&config, &summary, &failures, &result.Markdown, &createdAt); err != nil {
		return nil, err
	}

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &result.Metadata); err != nil {
			return nil, errm.Wrap(err, "unmarshal metadata")
		}
	}
	if err := json.Unmarshal([]byte(config), &result.Config); err != nil {
		return nil, errm.Wrap(err, "unmarshal config")
	}
	if err := json.Unmarshal([]byte(summary), &result.Summary); err != nil {
		return nil, errm.Wrap(err, "unmarshal summary")
	}
	if failures.Valid && failures.String != "" {
		if err := json.Unmarshal([]byte(failures.String), &result.Failures); err != nil {
			return nil, errm.Wrap(err, "unmarshal failures")
		}
	}

	result.CreatedAt = createdAt
	return &result, nil
}

func marshalNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func severitiesAtLeast(min model.Severity) []model.Severity {
	all := []model.Severity{model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical}
	out := make([]model.Severity, 0, len(all))
	for _, sev := range all {
		if sev.Rank() >= min.Rank() {
			out = append(out, sev)
		}
	}
	return out
}
