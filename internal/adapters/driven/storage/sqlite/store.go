package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// dbFileName is the database file created inside the data directory.
const dbFileName = "recall.db"

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.recall/data/recall.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".recall", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)

	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// NoteStore returns a NoteStore interface backed by this store.
func (s *Store) NoteStore() driven.NoteStore {
	return &noteStore{store: s}
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &noteStore{store: s}
}

// RankingStore returns a RankingStore interface backed by this store.
func (s *Store) RankingStore() driven.RankingStore {
	return &rankingStore{store: s}
}

// DuplicateStore returns a DuplicateStore interface backed by this store.
func (s *Store) DuplicateStore() driven.DuplicateStore {
	return &duplicateStore{store: s}
}

// HistoryStore returns a HistoryStore interface backed by this store.
func (s *Store) HistoryStore() driven.HistoryStore {
	return &historyStore{store: s}
}

// JobStore returns a JobStore interface backed by this store.
func (s *Store) JobStore() driven.JobStore {
	return &jobStore{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations, recording each applied version.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// ==================== Note Store ====================

// noteStore implements driven.NoteStore and driven.ChunkStore.
type noteStore struct {
	store *Store
}

var (
	_ driven.NoteStore  = (*noteStore)(nil)
	_ driven.ChunkStore = (*noteStore)(nil)
)

const noteColumns = `id, owner_id, title, content, tags, created_at, updated_at, deleted, deleted_at`

// SaveNote creates or updates a note.
func (s *noteStore) SaveNote(ctx context.Context, note *domain.Note) error {
	if note == nil || note.ID == "" {
		return domain.ErrInvalidInput
	}

	tagsJSON, err := json.Marshal(nonNilStrings(domain.NormalizeTags(note.Tags)))
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			title = excluded.title,
			content = excluded.content,
			tags = excluded.tags,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted,
			deleted_at = excluded.deleted_at
	`, note.ID, note.OwnerID, note.Title, note.Content, string(tagsJSON),
		unixNanos(note.CreatedAt), unixNanos(note.UpdatedAt),
		boolToInt(note.Deleted), nullableNanos(note.DeletedAt))
	if err != nil {
		return fmt.Errorf("saving note: %w", err)
	}
	return nil
}

// GetNote retrieves a note by ID, including soft-deleted notes.
func (s *noteStore) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

// ListNotes returns notes matching the filter, most recently updated first.
func (s *noteStore) ListNotes(ctx context.Context, filter domain.NoteFilter) ([]domain.Note, error) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if !filter.IncludeDeleted {
		where = append(where, "deleted = 0")
	}
	for _, tag := range domain.NormalizeTags(filter.Tags) {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)")
		args = append(args, tag)
	}

	query := `SELECT ` + noteColumns + ` FROM notes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id ASC LIMIT ?"
	args = append(args, sqlLimit(filter.Limit))

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note //nolint:prealloc // size unknown from query
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}

	return notes, nil
}

// SoftDeleteNote marks a note deleted without removing it.
func (s *noteStore) SoftDeleteNote(ctx context.Context, id string, at time.Time) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE notes SET deleted = 1, deleted_at = ? WHERE id = ?", nullableNanos(at), id)
	if err != nil {
		return fmt.Errorf("soft-deleting note: %w", err)
	}
	return requireAffected(res)
}

// DeleteNote removes a note and, through the foreign key, its chunks.
func (s *noteStore) DeleteNote(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	return nil
}

// ReplaceChunks upserts the new chunk set and deletes stale chunks in
// one transaction.
func (s *noteStore) ReplaceChunks(ctx context.Context, noteID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, note_id, position, heading, content, embedding, embedding_model)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			note_id = excluded.note_id,
			position = excluded.position,
			heading = excluded.heading,
			content = excluded.content,
			embedding = excluded.embedding,
			embedding_model = excluded.embedding_model
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	keep := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, chunk.ID, noteID, chunk.Position,
			nullString(chunk.Heading), chunk.Content,
			float32SliceToBytes(chunk.Embedding), nullString(chunk.EmbeddingModel)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
		keep = append(keep, chunk.ID)
	}

	keepJSON, err := json.Marshal(keep)
	if err != nil {
		return fmt.Errorf("marshalling chunk ids: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunks
		WHERE note_id = ? AND id NOT IN (SELECT value FROM json_each(?))
	`, noteID, string(keepJSON)); err != nil {
		return fmt.Errorf("deleting stale chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const chunkColumns = `id, note_id, position, heading, content, embedding, embedding_model`

// GetChunks returns a note's chunks ordered by position.
func (s *noteStore) GetChunks(ctx context.Context, noteID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE note_id = ? ORDER BY position`, noteID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// GetChunksForNotes returns chunks for several notes keyed by note ID.
func (s *noteStore) GetChunksForNotes(ctx context.Context, noteIDs []string) (map[string][]domain.Chunk, error) {
	result := make(map[string][]domain.Chunk, len(noteIDs))
	if len(noteIDs) == 0 {
		return result, nil
	}

	idsJSON, err := json.Marshal(noteIDs)
	if err != nil {
		return nil, fmt.Errorf("marshalling note ids: %w", err)
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM chunks
		WHERE note_id IN (SELECT value FROM json_each(?))
		ORDER BY note_id, position
	`, string(idsJSON))
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		result[chunk.NoteID] = append(result[chunk.NoteID], *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return result, nil
}

// ==================== Ranking Store ====================

// rankingStore implements driven.RankingStore.
type rankingStore struct {
	store *Store
}

var _ driven.RankingStore = (*rankingStore)(nil)

// UpsertRanking creates or replaces the record for (NoteID, normalized Query).
func (s *rankingStore) UpsertRanking(ctx context.Context, rec *domain.RankingRecord) error {
	if rec == nil || rec.NoteID == "" {
		return domain.ErrInvalidInput
	}

	factorsJSON, err := json.Marshal(rec.Factors)
	if err != nil {
		return fmt.Errorf("marshalling factors: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO rankings (note_id, query, score, factors, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(note_id, query) DO UPDATE SET
			score = excluded.score,
			factors = excluded.factors,
			updated_at = excluded.updated_at
	`, rec.NoteID, domain.NormalizeQuery(rec.Query), rec.Score, string(factorsJSON), unixNanos(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting ranking: %w", err)
	}
	return nil
}

// GetRanking returns the record for a note and query.
func (s *rankingStore) GetRanking(ctx context.Context, noteID, query string) (*domain.RankingRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT note_id, query, score, factors, updated_at
		FROM rankings WHERE note_id = ? AND query = ?
	`, noteID, domain.NormalizeQuery(query))
	return scanRanking(row)
}

// ListRankingsForNotes returns records keyed by note ID, most recently updated first.
func (s *rankingStore) ListRankingsForNotes(
	ctx context.Context, noteIDs []string,
) (map[string][]domain.RankingRecord, error) {
	result := make(map[string][]domain.RankingRecord)
	if len(noteIDs) == 0 {
		return result, nil
	}

	idsJSON, err := json.Marshal(noteIDs)
	if err != nil {
		return nil, fmt.Errorf("marshalling note ids: %w", err)
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT note_id, query, score, factors, updated_at
		FROM rankings
		WHERE note_id IN (SELECT value FROM json_each(?))
		ORDER BY note_id, updated_at DESC, query ASC
	`, string(idsJSON))
	if err != nil {
		return nil, fmt.Errorf("querying rankings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRanking(rows)
		if err != nil {
			return nil, err
		}
		result[rec.NoteID] = append(result[rec.NoteID], *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rankings: %w", err)
	}

	return result, nil
}

// DeleteRankingsForNote removes every record of a note.
func (s *rankingStore) DeleteRankingsForNote(ctx context.Context, noteID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM rankings WHERE note_id = ?", noteID); err != nil {
		return fmt.Errorf("deleting rankings: %w", err)
	}
	return nil
}

// DeleteRankingsBefore removes records last updated before the cutoff.
func (s *rankingStore) DeleteRankingsBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM rankings WHERE updated_at < ?", unixNanos(before))
	if err != nil {
		return 0, fmt.Errorf("pruning rankings: %w", err)
	}
	return affected(res)
}

// ==================== Duplicate Store ====================

// duplicateStore implements driven.DuplicateStore.
type duplicateStore struct {
	store *Store
}

var _ driven.DuplicateStore = (*duplicateStore)(nil)

const reportColumns = `id, owner_id, original_note_id, duplicate_note_id, similarity,
	similarity_type, suggested_action, status, created_at, resolved_at`

// CreateReport stores a report unless one already exists for the pair.
func (s *duplicateStore) CreateReport(ctx context.Context, report *domain.DuplicateReport) (bool, error) {
	if report == nil || report.ID == "" {
		return false, domain.ErrInvalidInput
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO duplicate_reports (id, owner_id, original_note_id, duplicate_note_id, pair_key,
			similarity, similarity_type, suggested_action, status, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pair_key) DO NOTHING
	`, report.ID, report.OwnerID, report.OriginalNoteID, report.DuplicateNoteID, report.PairKey(),
		report.Similarity, string(report.SimilarityType), string(report.SuggestedAction),
		string(report.Status), unixNanos(report.CreatedAt), nullableNanos(report.ResolvedAt))
	if err != nil {
		return false, fmt.Errorf("creating duplicate report: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetReport retrieves a report by ID.
func (s *duplicateStore) GetReport(ctx context.Context, id string) (*domain.DuplicateReport, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM duplicate_reports WHERE id = ?`, id)
	return scanReport(row)
}

// FindReportByPair returns the report for two notes in either order.
func (s *duplicateStore) FindReportByPair(ctx context.Context, noteA, noteB string) (*domain.DuplicateReport, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM duplicate_reports WHERE pair_key = ?`, domain.PairKey(noteA, noteB))
	return scanReport(row)
}

// ListReports returns reports matching the filter, highest similarity first.
func (s *duplicateStore) ListReports(
	ctx context.Context, filter domain.ReportFilter,
) ([]domain.DuplicateReport, error) {
	where := []string{"similarity >= ?"}
	args := []any{filter.MinSimilarity}
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.NoteID != "" {
		where = append(where, "(original_note_id = ? OR duplicate_note_id = ?)")
		args = append(args, filter.NoteID, filter.NoteID)
	}
	args = append(args, sqlLimit(filter.Limit))

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM duplicate_reports
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY similarity DESC, created_at ASC, id ASC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying duplicate reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.DuplicateReport //nolint:prealloc // size unknown from query
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating duplicate reports: %w", err)
	}

	return reports, nil
}

// UpdateReportStatus sets a report's status and resolution time.
func (s *duplicateStore) UpdateReportStatus(
	ctx context.Context, id string, status domain.ReportStatus, resolvedAt time.Time,
) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE duplicate_reports SET status = ?, resolved_at = ? WHERE id = ?",
		string(status), nullableNanos(resolvedAt), id)
	if err != nil {
		return fmt.Errorf("updating duplicate report: %w", err)
	}
	return requireAffected(res)
}

// DeleteReportsBefore removes reports with the given status created before the cutoff.
func (s *duplicateStore) DeleteReportsBefore(
	ctx context.Context, status domain.ReportStatus, before time.Time,
) (int, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM duplicate_reports WHERE status = ? AND created_at < ?",
		string(status), unixNanos(before))
	if err != nil {
		return 0, fmt.Errorf("pruning duplicate reports: %w", err)
	}
	return affected(res)
}

// ==================== History Store ====================

// historyStore implements driven.HistoryStore.
type historyStore struct {
	store *Store
}

var _ driven.HistoryStore = (*historyStore)(nil)

// AppendHistory records an executed search.
func (s *historyStore) AppendHistory(ctx context.Context, entry *domain.SearchHistoryEntry) error {
	if entry == nil || entry.ID == "" {
		return domain.ErrInvalidInput
	}

	idsJSON, err := json.Marshal(nonNilStrings(entry.TopNoteIDs))
	if err != nil {
		return fmt.Errorf("marshalling note ids: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO search_history (id, owner_id, query, result_count, top_note_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.OwnerID, entry.Query, entry.ResultCount, string(idsJSON), unixNanos(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("appending search history: %w", err)
	}
	return nil
}

// ListHistory returns an owner's most recent searches, newest first.
func (s *historyStore) ListHistory(ctx context.Context, ownerID string, limit int) ([]domain.SearchHistoryEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, owner_id, query, result_count, top_note_ids, created_at
		FROM search_history
		WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, ownerID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying search history: %w", err)
	}
	defer rows.Close()

	var entries []domain.SearchHistoryEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			e         domain.SearchHistoryEntry
			idsJSON   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Query, &e.ResultCount, &idsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning search history: %w", err)
		}
		if idsJSON.Valid && idsJSON.String != "" {
			if err := json.Unmarshal([]byte(idsJSON.String), &e.TopNoteIDs); err != nil {
				return nil, fmt.Errorf("unmarshalling note ids: %w", err)
			}
		}
		if len(e.TopNoteIDs) == 0 {
			e.TopNoteIDs = nil
		}
		e.CreatedAt = timeFromNanos(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search history: %w", err)
	}

	return entries, nil
}

// SaveSearch creates or updates a saved search.
func (s *historyStore) SaveSearch(ctx context.Context, search *domain.SavedSearch) error {
	if search == nil || search.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO saved_searches (id, owner_id, name, query, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			query = excluded.query
	`, search.ID, search.OwnerID, search.Name, search.Query, unixNanos(search.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving search: %w", err)
	}
	return nil
}

// GetSavedSearch retrieves a saved search by ID.
func (s *historyStore) GetSavedSearch(ctx context.Context, id string) (*domain.SavedSearch, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name, query, created_at FROM saved_searches WHERE id = ?", id)
	ss, err := scanSavedSearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return ss, err
}

// ListSavedSearches returns an owner's saved searches by name.
func (s *historyStore) ListSavedSearches(ctx context.Context, ownerID string) ([]domain.SavedSearch, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, owner_id, name, query, created_at
		FROM saved_searches WHERE owner_id = ?
		ORDER BY name, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying saved searches: %w", err)
	}
	defer rows.Close()

	var searches []domain.SavedSearch //nolint:prealloc // size unknown from query
	for rows.Next() {
		ss, err := scanSavedSearch(rows)
		if err != nil {
			return nil, err
		}
		searches = append(searches, *ss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating saved searches: %w", err)
	}

	return searches, nil
}

// DeleteSavedSearch removes a saved search.
func (s *historyStore) DeleteSavedSearch(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM saved_searches WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting saved search: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func scanNote(row rowScanner) (*domain.Note, error) {
	var (
		note                 domain.Note
		tagsJSON             string
		createdAt, updatedAt int64
		deleted              int
		deletedAt            sql.NullInt64
	)

	if err := row.Scan(&note.ID, &note.OwnerID, &note.Title, &note.Content, &tagsJSON,
		&createdAt, &updatedAt, &deleted, &deletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning note: %w", err)
	}

	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &note.Tags); err != nil {
			return nil, fmt.Errorf("unmarshalling tags: %w", err)
		}
	}
	if len(note.Tags) == 0 {
		note.Tags = nil
	}
	note.CreatedAt = timeFromNanos(createdAt)
	note.UpdatedAt = timeFromNanos(updatedAt)
	note.Deleted = deleted == 1
	note.DeletedAt = timeFromNull(deletedAt)

	return &note, nil
}

func scanChunk(row rowScanner) (*domain.Chunk, error) {
	var (
		chunk          domain.Chunk
		heading, model sql.NullString
		embeddingBlob  []byte
	)

	if err := row.Scan(&chunk.ID, &chunk.NoteID, &chunk.Position, &heading,
		&chunk.Content, &embeddingBlob, &model); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Heading = heading.String
	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	chunk.EmbeddingModel = model.String

	return &chunk, nil
}

func scanRanking(row rowScanner) (*domain.RankingRecord, error) {
	var (
		rec         domain.RankingRecord
		factorsJSON sql.NullString
		updatedAt   int64
	)

	if err := row.Scan(&rec.NoteID, &rec.Query, &rec.Score, &factorsJSON, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning ranking: %w", err)
	}

	if factorsJSON.Valid && factorsJSON.String != "" && factorsJSON.String != "null" {
		if err := json.Unmarshal([]byte(factorsJSON.String), &rec.Factors); err != nil {
			return nil, fmt.Errorf("unmarshalling factors: %w", err)
		}
	}
	rec.UpdatedAt = timeFromNanos(updatedAt)

	return &rec, nil
}

func scanReport(row rowScanner) (*domain.DuplicateReport, error) {
	var (
		r                      domain.DuplicateReport
		simType, action, state string
		createdAt              int64
		resolvedAt             sql.NullInt64
	)

	if err := row.Scan(&r.ID, &r.OwnerID, &r.OriginalNoteID, &r.DuplicateNoteID, &r.Similarity,
		&simType, &action, &state, &createdAt, &resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning duplicate report: %w", err)
	}

	r.SimilarityType = domain.SimilarityType(simType)
	r.SuggestedAction = domain.SuggestedAction(action)
	r.Status = domain.ReportStatus(state)
	r.CreatedAt = timeFromNanos(createdAt)
	r.ResolvedAt = timeFromNull(resolvedAt)

	return &r, nil
}

func scanSavedSearch(row rowScanner) (*domain.SavedSearch, error) {
	var (
		ss        domain.SavedSearch
		createdAt int64
	)
	if err := row.Scan(&ss.ID, &ss.OwnerID, &ss.Name, &ss.Query, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning saved search: %w", err)
	}
	ss.CreatedAt = timeFromNanos(createdAt)
	return &ss, nil
}

// unixNanos stores a timestamp as Unix nanoseconds so that ordering and
// range comparisons happen on integers. The zero time maps to 0.
func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// nullableNanos is unixNanos with the zero time mapped to NULL.
func nullableNanos(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func timeFromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func timeFromNull(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return timeFromNanos(n.Int64)
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return int(n), nil
}

// requireAffected maps an update that touched no rows to domain.ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// isConstraintViolation reports whether err is a primary key or unique
// constraint failure.
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}
