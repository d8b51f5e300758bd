package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contrimap/contrimap/internal/db"
)

const searchLimit = 20

// Store manages persistence of analysis records. The aggregate payloads
// are stored as JSON columns and read or written whole.
type Store struct {
	db *db.DB

	// mu serializes roadmap appends per record so two concurrent
	// on-demand requests cannot both miss the cache and duplicate an
	// issue entry.
	mu     sync.Mutex
	record map[string]*sync.Mutex
}

// NewStore creates a new analysis store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, record: make(map[string]*sync.Mutex)}
}

func (s *Store) recordLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.record[id]
	if !ok {
		l = &sync.Mutex{}
		s.record[id] = l
	}
	return l
}

// Create inserts a new record in processing state for a repository URL.
func (s *Store) Create(ctx context.Context, repoURL, owner, name string) (*Record, error) {
	now := time.Now().UTC()
	rec := &Record{
		ID:            uuid.New().String(),
		RepoURL:       repoURL,
		Owner:         owner,
		Name:          name,
		FullName:      owner + "/" + name,
		Languages:     []string{},
		Topics:        []string{},
		IssueRoadmaps: []IssueRoadmap{},
		Status:        StatusProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repo_analyses (id, repo_url, owner, name, full_name, analysis_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RepoURL, rec.Owner, rec.Name, rec.FullName, rec.Status, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting analysis record: %w", err)
	}
	return rec, nil
}

const recordColumns = `id, repo_url, owner, name, full_name, description, stars, forks, open_issues,
	language, languages, topics, structure, code_analysis, mind_map, ai_insights,
	contribution_guide, pr_preparation_help, issue_roadmaps, analysis_status, analysis_error,
	last_analyzed_at, created_at, updated_at`

// GetByID retrieves a record by its ID, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	return s.getWhere(ctx, "id = ?", id)
}

// GetByURL retrieves a record by its unique repository URL, or nil.
func (s *Store) GetByURL(ctx context.Context, repoURL string) (*Record, error) {
	return s.getWhere(ctx, "repo_url = ?", repoURL)
}

// GetByFullName retrieves a record by its owner/name key, or nil.
func (s *Store) GetByFullName(ctx context.Context, fullName string) (*Record, error) {
	return s.getWhere(ctx, "full_name = ?", fullName)
}

func (s *Store) getWhere(ctx context.Context, where string, arg any) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM repo_analyses WHERE `+where, arg)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting analysis record: %w", err)
	}
	return rec, nil
}

// Search returns up to 20 completed records whose name, description or
// topics contain the query, case-insensitively.
func (s *Store) Search(ctx context.Context, query string) ([]Record, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM repo_analyses
		 WHERE analysis_status = ?
		   AND (LOWER(full_name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(topics) LIKE ?)
		 ORDER BY stars DESC
		 LIMIT ?`,
		StatusCompleted, pattern, pattern, pattern, searchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching analysis records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Update persists every mutable field of the record.
func (s *Store) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()

	languages, err := json.Marshal(rec.Languages)
	if err != nil {
		return fmt.Errorf("encoding languages: %w", err)
	}
	topics, err := json.Marshal(rec.Topics)
	if err != nil {
		return fmt.Errorf("encoding topics: %w", err)
	}
	roadmaps, err := json.Marshal(rec.IssueRoadmaps)
	if err != nil {
		return fmt.Errorf("encoding issue roadmaps: %w", err)
	}

	structureJSON, err := marshalNullable(rec.Structure)
	if err != nil {
		return fmt.Errorf("encoding structure: %w", err)
	}
	codeJSON, err := marshalNullable(rec.CodeAnalysis)
	if err != nil {
		return fmt.Errorf("encoding code analysis: %w", err)
	}
	mindMapJSON, err := marshalNullable(rec.MindMap)
	if err != nil {
		return fmt.Errorf("encoding mind map: %w", err)
	}
	insightsJSON, err := marshalNullable(rec.AIInsights)
	if err != nil {
		return fmt.Errorf("encoding insights: %w", err)
	}
	guideJSON, err := marshalNullable(rec.ContributionGuide)
	if err != nil {
		return fmt.Errorf("encoding contribution guide: %w", err)
	}
	checklistJSON, err := marshalNullable(rec.PRPreparationHelp)
	if err != nil {
		return fmt.Errorf("encoding PR checklist: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE repo_analyses SET
			description = ?, stars = ?, forks = ?, open_issues = ?, language = ?,
			languages = ?, topics = ?, structure = ?, code_analysis = ?, mind_map = ?,
			ai_insights = ?, contribution_guide = ?, pr_preparation_help = ?,
			issue_roadmaps = ?, analysis_status = ?, analysis_error = ?,
			last_analyzed_at = ?, updated_at = ?
		 WHERE id = ?`,
		rec.Description, rec.Stars, rec.Forks, rec.OpenIssues, rec.Language,
		string(languages), string(topics), structureJSON, codeJSON, mindMapJSON,
		insightsJSON, guideJSON, checklistJSON,
		string(roadmaps), rec.Status, rec.Error,
		rec.LastAnalyzedAt, rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating analysis record: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("analysis record not found: %s", rec.ID)
	}
	return nil
}

// SetFailed marks a record failed with the captured error message.
func (s *Store) SetFailed(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE repo_analyses SET analysis_status = ?, analysis_error = ?, updated_at = ?
		 WHERE id = ?`,
		StatusFailed, message, now, id,
	)
	if err != nil {
		return fmt.Errorf("marking analysis failed: %w", err)
	}
	return nil
}

// MarkProcessing resets a record to processing at the start of a (re)run.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE repo_analyses SET analysis_status = ?, analysis_error = '', updated_at = ?
		 WHERE id = ?`,
		StatusProcessing, now, id,
	)
	if err != nil {
		return fmt.Errorf("marking analysis processing: %w", err)
	}
	return nil
}

// AppendRoadmap adds a roadmap entry unless one already exists for the
// issue number, in which case the existing entry is returned with cached
// set. The append is a locked read-modify-write so concurrent requests
// for the same issue cannot both insert.
func (s *Store) AppendRoadmap(ctx context.Context, id string, entry IssueRoadmap) (result *IssueRoadmap, cached bool, err error) {
	lock := s.recordLock(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		return nil, false, fmt.Errorf("analysis record not found: %s", id)
	}

	if existing := rec.FindRoadmap(entry.IssueNumber); existing != nil {
		return existing, true, nil
	}

	rec.IssueRoadmaps = append(rec.IssueRoadmaps, entry)
	roadmaps, err := json.Marshal(rec.IssueRoadmaps)
	if err != nil {
		return nil, false, fmt.Errorf("encoding issue roadmaps: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE repo_analyses SET issue_roadmaps = ?, updated_at = ? WHERE id = ?`,
		string(roadmaps), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, false, fmt.Errorf("appending issue roadmap: %w", err)
	}
	return &rec.IssueRoadmaps[len(rec.IssueRoadmaps)-1], false, nil
}

// marshalNullable maps nil payloads (including typed nil pointers and nil
// maps, which encode as "null") to SQL NULL.
func marshalNullable(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var languages, topics, roadmaps string
	var structureJSON, codeJSON, mindMapJSON, insightsJSON, guideJSON, checklistJSON sql.NullString
	var lastAnalyzedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.RepoURL, &rec.Owner, &rec.Name, &rec.FullName,
		&rec.Description, &rec.Stars, &rec.Forks, &rec.OpenIssues,
		&rec.Language, &languages, &topics,
		&structureJSON, &codeJSON, &mindMapJSON, &insightsJSON, &guideJSON, &checklistJSON,
		&roadmaps, &rec.Status, &rec.Error,
		&lastAnalyzedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(languages), &rec.Languages); err != nil {
		return nil, fmt.Errorf("decoding languages: %w", err)
	}
	if err := json.Unmarshal([]byte(topics), &rec.Topics); err != nil {
		return nil, fmt.Errorf("decoding topics: %w", err)
	}
	if err := json.Unmarshal([]byte(roadmaps), &rec.IssueRoadmaps); err != nil {
		return nil, fmt.Errorf("decoding issue roadmaps: %w", err)
	}
	if rec.IssueRoadmaps == nil {
		rec.IssueRoadmaps = []IssueRoadmap{}
	}
	if lastAnalyzedAt.Valid {
		rec.LastAnalyzedAt = &lastAnalyzedAt.Time
	}

	if err := unmarshalNullable(structureJSON, &rec.Structure); err != nil {
		return nil, fmt.Errorf("decoding structure: %w", err)
	}
	if err := unmarshalNullable(codeJSON, &rec.CodeAnalysis); err != nil {
		return nil, fmt.Errorf("decoding code analysis: %w", err)
	}
	if err := unmarshalNullable(mindMapJSON, &rec.MindMap); err != nil {
		return nil, fmt.Errorf("decoding mind map: %w", err)
	}
	if err := unmarshalNullable(insightsJSON, &rec.AIInsights); err != nil {
		return nil, fmt.Errorf("decoding insights: %w", err)
	}
	if err := unmarshalNullable(guideJSON, &rec.ContributionGuide); err != nil {
		return nil, fmt.Errorf("decoding contribution guide: %w", err)
	}
	if err := unmarshalNullable(checklistJSON, &rec.PRPreparationHelp); err != nil {
		return nil, fmt.Errorf("decoding PR checklist: %w", err)
	}
	return &rec, nil
}

func unmarshalNullable(src sql.NullString, dst any) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(src.String), dst)
}
