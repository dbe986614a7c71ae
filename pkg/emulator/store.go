package emulator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Container is a registered upload batch.
type Container struct {
	UUID          string
	Duration      int
	AuthorEmail   string
	PasswordHash  string
	Message       string
	NumberOfFile  int
	DownloadLimit int
	Lang          string
	SizeOfUpload  int64
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Completed     bool
}

// NeedPassword reports whether downloads require the container password.
func (c *Container) NeedPassword() bool {
	return c.PasswordHash != ""
}

// File is one file of a container.
type File struct {
	UUID            string
	ContainerUUID   string
	Position        int
	Name            string
	Size            int64
	MimeType        string
	DownloadCounter int
	ChunkCount      int
	Complete        bool
	CreatedAt       time.Time
}

// Link is the share link of a finalized container.
type Link struct {
	UUID          string
	ContainerUUID string
	CreatedAt     time.Time
}

// Store manages container, file, chunk, link and token metadata in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new store with the given database path.
func NewStore(dbPath string) (*Store, error) {
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseError, err)
	}

	ctx := context.Background()

	if _, err := database.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable foreign keys: %w", ErrDatabaseError, err)
	}

	if _, err := database.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", ErrDatabaseError, err)
	}

	store := &Store{db: database}
	if err := store.Initialize(); err != nil {
		_ = database.Close()
		return nil, err
	}

	return store, nil
}

// Initialize creates the database schema.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(context.Background(), Schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrDatabaseError, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateContainer stores a container and its files in one transaction.
func (s *Store) CreateContainer(ctx context.Context, container *Container, files []File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO containers (uuid, duration, author_email, password_hash, message, number_of_file,
		                         download_limit, lang, size_of_upload, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		container.UUID, container.Duration, container.AuthorEmail, container.PasswordHash, container.Message,
		container.NumberOfFile, container.DownloadLimit, container.Lang, container.SizeOfUpload,
		container.CreatedAt, container.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	for _, file := range files {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO files (uuid, container_uuid, position, name, size, mime_type, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			file.UUID, container.UUID, file.Position, file.Name, file.Size, file.MimeType, file.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// GetContainer retrieves a container by UUID.
func (s *Store) GetContainer(ctx context.Context, containerUUID string) (*Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	container := &Container{}
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid, duration, author_email, password_hash, message, number_of_file, download_limit,
		        lang, size_of_upload, created_at, expires_at, completed
		 FROM containers WHERE uuid = ?`,
		containerUUID,
	).Scan(&container.UUID, &container.Duration, &container.AuthorEmail, &container.PasswordHash, &container.Message,
		&container.NumberOfFile, &container.DownloadLimit, &container.Lang, &container.SizeOfUpload,
		&container.CreatedAt, &container.ExpiresAt, &container.Completed)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContainerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return container, nil
}

const fileColumns = `uuid, container_uuid, position, name, size, mime_type, download_counter, chunk_count, complete, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (File, error) {
	var file File
	err := row.Scan(&file.UUID, &file.ContainerUUID, &file.Position, &file.Name, &file.Size, &file.MimeType,
		&file.DownloadCounter, &file.ChunkCount, &file.Complete, &file.CreatedAt)
	return file, err
}

// ListFiles returns the files of a container in registration order.
func (s *Store) ListFiles(ctx context.Context, containerUUID string, completeOnly bool) ([]File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + fileColumns + ` FROM files WHERE container_uuid = ?`
	if completeOnly {
		query += ` AND complete = TRUE`
	}
	query += ` ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, containerUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var files []File
	for rows.Next() {
		file, scanErr := scanFile(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, scanErr)
		}
		files = append(files, file)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return files, nil
}

// GetFile retrieves a file of a container.
func (s *Store) GetFile(ctx context.Context, containerUUID, fileUUID string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := scanFile(s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE container_uuid = ? AND uuid = ?`,
		containerUUID, fileUUID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return &file, nil
}

// PutChunk records a received chunk. Chunks may arrive in any order; the last
// one fixes the number of chunks the file is made of.
func (s *Store) PutChunk(ctx context.Context, fileUUID string, index int, size int64, last bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (file_uuid, idx, size, received_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(file_uuid, idx) DO UPDATE SET size = excluded.size, received_at = excluded.received_at`,
		fileUUID, index, size, now,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	if last {
		if _, err := s.db.ExecContext(ctx, `UPDATE files SET chunk_count = ? WHERE uuid = ?`, index+1, fileUUID); err != nil {
			return fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
	}
	return nil
}

// Received returns the number of bytes and chunks stored for a file.
func (s *Store) Received(ctx context.Context, fileUUID string) (int64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return received(ctx, s.db, fileUUID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func received(ctx context.Context, db queryer, fileUUID string) (int64, int, error) {
	var (
		size  int64
		count int
	)
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0), COUNT(*) FROM chunks WHERE file_uuid = ?`,
		fileUUID,
	).Scan(&size, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return size, count, nil
}

// Complete finalizes a container: files whose chunks all arrived become
// downloadable and the container gets its link. Calling it again returns
// the existing link.
func (s *Store) Complete(ctx context.Context, containerUUID, linkUUID string, now time.Time) (*Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = tx.Rollback() }()

	var completed bool
	err = tx.QueryRowContext(ctx, `SELECT completed FROM containers WHERE uuid = ?`, containerUUID).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContainerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	if !completed {
		if err := completeFiles(ctx, tx, containerUUID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE containers SET completed = TRUE WHERE uuid = ?`, containerUUID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO links (uuid, container_uuid, created_at) VALUES (?, ?, ?)`,
			linkUUID, containerUUID, now,
		); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
	}

	link := &Link{}
	err = tx.QueryRowContext(ctx,
		`SELECT uuid, container_uuid, created_at FROM links WHERE container_uuid = ?`,
		containerUUID,
	).Scan(&link.UUID, &link.ContainerUUID, &link.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return link, nil
}

func completeFiles(ctx context.Context, tx *sql.Tx, containerUUID string) error {
	rows, err := tx.QueryContext(ctx, `SELECT uuid, size, chunk_count FROM files WHERE container_uuid = ?`, containerUUID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	type pending struct {
		uuid       string
		size       int64
		chunkCount int
	}
	var files []pending
	for rows.Next() {
		var file pending
		if scanErr := rows.Scan(&file.uuid, &file.size, &file.chunkCount); scanErr != nil {
			_ = rows.Close()
			return fmt.Errorf("%w: %w", ErrDatabaseError, scanErr)
		}
		files = append(files, file)
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	var completeCount int
	for _, file := range files {
		size, count, err := received(ctx, tx, file.uuid)
		if err != nil {
			return err
		}
		if file.chunkCount == 0 || count != file.chunkCount || size != file.size {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE files SET complete = TRUE WHERE uuid = ?`, file.uuid); err != nil {
			return fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		completeCount++
	}

	if completeCount == 0 {
		return ErrNothingReceived
	}
	return nil
}

// GetLink retrieves a link by UUID.
func (s *Store) GetLink(ctx context.Context, linkUUID string) (*Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link := &Link{}
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid, container_uuid, created_at FROM links WHERE uuid = ?`,
		linkUUID,
	).Scan(&link.UUID, &link.ContainerUUID, &link.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return link, nil
}

// CreateToken stores a single-use download token for a file.
func (s *Store) CreateToken(ctx context.Context, token, fileUUID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (token, file_uuid, created_at) VALUES (?, ?, ?)`,
		token, fileUUID, now,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// ConsumeToken marks a token as used. It fails for unknown or used tokens and
// for tokens issued for another file.
func (s *Store) ConsumeToken(ctx context.Context, token, fileUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET used = TRUE WHERE token = ? AND file_uuid = ? AND used = FALSE`,
		token, fileUUID,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if rowsAffected == 0 {
		return ErrInvalidToken
	}
	return nil
}

// IncrementDownloads counts one download of a file.
func (s *Store) IncrementDownloads(ctx context.Context, fileUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `UPDATE files SET download_counter = download_counter + 1 WHERE uuid = ?`, fileUUID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if rowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}
