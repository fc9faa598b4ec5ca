package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Connect establishes the connection and ensures the schema exists.
func (p *PostgresStore) Connect(connectionString string) error {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	p.db = db

	if err := p.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("Connected to PostgreSQL successfully")
	return nil
}

func (p *PostgresStore) createTables() error {
	query := `
    CREATE TABLE IF NOT EXISTS file_references (
        id UUID PRIMARY KEY,
        owner_id VARCHAR(255) NOT NULL,
        file_name VARCHAR(500) NOT NULL,
        size_bytes BIGINT NOT NULL,
        mime_type VARCHAR(100) NOT NULL,
        file_type VARCHAR(20) NOT NULL,
        checksum VARCHAR(64) NOT NULL,
        object_name VARCHAR(500) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        expires_at TIMESTAMPTZ NOT NULL,
        is_temporary BOOLEAN NOT NULL DEFAULT true,
        pinned BOOLEAN NOT NULL DEFAULT false,
        scan_status VARCHAR(20) NOT NULL DEFAULT 'pending'
    );

    CREATE INDEX IF NOT EXISTS idx_file_references_owner ON file_references(owner_id);
    CREATE INDEX IF NOT EXISTS idx_file_references_expires ON file_references(expires_at);

    CREATE TABLE IF NOT EXISTS channel_credentials (
        channel_id VARCHAR(255) PRIMARY KEY,
        owner_id VARCHAR(255) NOT NULL,
        channel_title VARCHAR(255),
        scopes TEXT NOT NULL DEFAULT '',
        access_token TEXT NOT NULL,
        refresh_token TEXT NOT NULL,
        access_token_expires_at TIMESTAMPTZ NOT NULL,
        needs_reauth BOOLEAN NOT NULL DEFAULT false,
        created_at TIMESTAMPTZ DEFAULT NOW(),
        updated_at TIMESTAMPTZ DEFAULT NOW()
    );

    CREATE TABLE IF NOT EXISTS upload_sessions (
        id UUID PRIMARY KEY,
        owner_id VARCHAR(255) NOT NULL,
        file_reference_id UUID NOT NULL,
        channel_id VARCHAR(255) NOT NULL,
        metadata JSONB NOT NULL,
        status VARCHAR(20) NOT NULL,
        bytes_uploaded BIGINT NOT NULL DEFAULT 0,
        total_bytes BIGINT NOT NULL DEFAULT 0,
        remote_session_url TEXT,
        video_id VARCHAR(100),
        error TEXT,
        retry_count INT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        completed_at TIMESTAMPTZ
    );

    CREATE INDEX IF NOT EXISTS idx_upload_sessions_owner ON upload_sessions(owner_id, created_at DESC);
    CREATE INDEX IF NOT EXISTS idx_upload_sessions_status ON upload_sessions(status);
    CREATE INDEX IF NOT EXISTS idx_upload_sessions_reference ON upload_sessions(file_reference_id);
    `

	_, err := p.db.Exec(query)
	return err
}

func (p *PostgresStore) SaveFileReference(ref models.FileReference) error {
	query := `
    INSERT INTO file_references (id, owner_id, file_name, size_bytes, mime_type, file_type, checksum, object_name, created_at, expires_at, is_temporary, pinned, scan_status)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    ON CONFLICT (id) DO UPDATE SET
        expires_at = EXCLUDED.expires_at,
        is_temporary = EXCLUDED.is_temporary,
        pinned = EXCLUDED.pinned,
        scan_status = EXCLUDED.scan_status
    `

	_, err := p.db.Exec(query,
		ref.ID, ref.OwnerID, ref.FileName, ref.SizeBytes, ref.MimeType,
		ref.FileType, ref.Checksum, ref.ObjectName, ref.CreatedAt,
		ref.ExpiresAt, ref.IsTemporary, ref.Pinned, ref.ScanStatus,
	)
	return err
}

func (p *PostgresStore) GetFileReference(id string) (models.FileReference, bool) {
	query := `
    SELECT id, owner_id, file_name, size_bytes, mime_type, file_type, checksum, object_name, created_at, expires_at, is_temporary, pinned, scan_status
    FROM file_references WHERE id = $1
    `

	var ref models.FileReference
	err := p.db.QueryRow(query, id).Scan(
		&ref.ID, &ref.OwnerID, &ref.FileName, &ref.SizeBytes, &ref.MimeType,
		&ref.FileType, &ref.Checksum, &ref.ObjectName, &ref.CreatedAt,
		&ref.ExpiresAt, &ref.IsTemporary, &ref.Pinned, &ref.ScanStatus,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Error getting file reference: %v", err)
		}
		return models.FileReference{}, false
	}
	return ref, true
}

func (p *PostgresStore) ListFileReferencesByOwner(ownerID string) ([]models.FileReference, error) {
	query := `
    SELECT id, owner_id, file_name, size_bytes, mime_type, file_type, checksum, object_name, created_at, expires_at, is_temporary, pinned, scan_status
    FROM file_references WHERE owner_id = $1 ORDER BY created_at DESC
    `
	return p.queryFileReferences(query, ownerID)
}

func (p *PostgresStore) ListExpiredFileReferences(now time.Time) ([]models.FileReference, error) {
	query := `
    SELECT id, owner_id, file_name, size_bytes, mime_type, file_type, checksum, object_name, created_at, expires_at, is_temporary, pinned, scan_status
    FROM file_references WHERE expires_at < $1 AND pinned = false
    `
	return p.queryFileReferences(query, now)
}

func (p *PostgresStore) queryFileReferences(query string, args ...interface{}) ([]models.FileReference, error) {
	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []models.FileReference
	for rows.Next() {
		var ref models.FileReference
		if err := rows.Scan(
			&ref.ID, &ref.OwnerID, &ref.FileName, &ref.SizeBytes, &ref.MimeType,
			&ref.FileType, &ref.Checksum, &ref.ObjectName, &ref.CreatedAt,
			&ref.ExpiresAt, &ref.IsTemporary, &ref.Pinned, &ref.ScanStatus,
		); err != nil {
			log.Printf("Error scanning file reference row: %v", err)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (p *PostgresStore) DeleteFileReference(id string) bool {
	result, err := p.db.Exec(`DELETE FROM file_references WHERE id = $1`, id)
	if err != nil {
		log.Printf("Error deleting file reference: %v", err)
		return false
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0
}

func (p *PostgresStore) SaveCredential(cred models.ChannelCredential) error {
	query := `
    INSERT INTO channel_credentials (channel_id, owner_id, channel_title, scopes, access_token, refresh_token, access_token_expires_at, needs_reauth, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
    ON CONFLICT (channel_id) DO UPDATE SET
        access_token = EXCLUDED.access_token,
        refresh_token = EXCLUDED.refresh_token,
        access_token_expires_at = EXCLUDED.access_token_expires_at,
        needs_reauth = EXCLUDED.needs_reauth,
        scopes = EXCLUDED.scopes,
        channel_title = EXCLUDED.channel_title,
        updated_at = NOW()
    `

	_, err := p.db.Exec(query,
		cred.ChannelID, cred.OwnerID, cred.ChannelTitle,
		strings.Join(cred.Scopes, " "), cred.AccessToken, cred.RefreshToken,
		cred.AccessTokenExpiresAt, cred.NeedsReauth, cred.CreatedAt,
	)
	return err
}

func (p *PostgresStore) GetCredential(channelID string) (models.ChannelCredential, bool) {
	query := `
    SELECT channel_id, owner_id, channel_title, scopes, access_token, refresh_token, access_token_expires_at, needs_reauth, created_at, updated_at
    FROM channel_credentials WHERE channel_id = $1
    `

	var cred models.ChannelCredential
	var scopes string
	err := p.db.QueryRow(query, channelID).Scan(
		&cred.ChannelID, &cred.OwnerID, &cred.ChannelTitle, &scopes,
		&cred.AccessToken, &cred.RefreshToken, &cred.AccessTokenExpiresAt,
		&cred.NeedsReauth, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Error getting channel credential: %v", err)
		}
		return models.ChannelCredential{}, false
	}
	if scopes != "" {
		cred.Scopes = strings.Split(scopes, " ")
	}
	return cred, true
}

func (p *PostgresStore) DeleteCredential(channelID string) bool {
	result, err := p.db.Exec(`DELETE FROM channel_credentials WHERE channel_id = $1`, channelID)
	if err != nil {
		log.Printf("Error deleting channel credential: %v", err)
		return false
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0
}

func (p *PostgresStore) SaveUploadSession(session models.UploadSession) error {
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	query := `
    INSERT INTO upload_sessions (id, owner_id, file_reference_id, channel_id, metadata, status, bytes_uploaded, total_bytes, remote_session_url, video_id, error, retry_count, created_at, updated_at, completed_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    ON CONFLICT (id) DO UPDATE SET
        status = EXCLUDED.status,
        bytes_uploaded = EXCLUDED.bytes_uploaded,
        total_bytes = EXCLUDED.total_bytes,
        remote_session_url = EXCLUDED.remote_session_url,
        video_id = EXCLUDED.video_id,
        error = EXCLUDED.error,
        retry_count = EXCLUDED.retry_count,
        updated_at = EXCLUDED.updated_at,
        completed_at = EXCLUDED.completed_at
    `

	_, err = p.db.Exec(query,
		session.ID, session.OwnerID, session.FileReferenceID, session.ChannelID,
		metadata, string(session.Status), session.BytesUploaded, session.TotalBytes,
		session.RemoteSessionURL, session.VideoID, session.Error, session.RetryCount,
		session.CreatedAt, session.UpdatedAt, session.CompletedAt,
	)
	return err
}

const sessionColumns = `id, owner_id, file_reference_id, channel_id, metadata, status, bytes_uploaded, total_bytes, remote_session_url, video_id, error, retry_count, created_at, updated_at, completed_at`

func (p *PostgresStore) GetUploadSession(id string) (models.UploadSession, bool) {
	row := p.db.QueryRow(`SELECT `+sessionColumns+` FROM upload_sessions WHERE id = $1`, id)
	session, err := scanUploadSession(row)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Error getting upload session: %v", err)
		}
		return models.UploadSession{}, false
	}
	return session, true
}

func (p *PostgresStore) ListUploadSessionsByOwner(ownerID string, status models.UploadStatus) ([]models.UploadSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM upload_sessions WHERE owner_id = $1`
	args := []interface{}{ownerID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	return p.queryUploadSessions(query, args...)
}

func (p *PostgresStore) ListUploadSessionsByStatus(statuses ...models.UploadStatus) ([]models.UploadSession, error) {
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(s)
	}
	query := `SELECT ` + sessionColumns + ` FROM upload_sessions WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	return p.queryUploadSessions(query, args...)
}

func (p *PostgresStore) LiveSessionForReference(referenceID string) (models.UploadSession, bool) {
	query := `SELECT ` + sessionColumns + ` FROM upload_sessions
    WHERE file_reference_id = $1 AND status NOT IN ('completed', 'failed', 'cancelled') LIMIT 1`
	row := p.db.QueryRow(query, referenceID)
	session, err := scanUploadSession(row)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Error getting live session for reference: %v", err)
		}
		return models.UploadSession{}, false
	}
	return session, true
}

func (p *PostgresStore) queryUploadSessions(query string, args ...interface{}) ([]models.UploadSession, error) {
	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.UploadSession
	for rows.Next() {
		session, err := scanUploadSession(rows)
		if err != nil {
			log.Printf("Error scanning upload session row: %v", err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUploadSession(row rowScanner) (models.UploadSession, error) {
	var session models.UploadSession
	var metadata []byte
	var status string
	var remoteURL, videoID, errMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&session.ID, &session.OwnerID, &session.FileReferenceID, &session.ChannelID,
		&metadata, &status, &session.BytesUploaded, &session.TotalBytes,
		&remoteURL, &videoID, &errMsg, &session.RetryCount,
		&session.CreatedAt, &session.UpdatedAt, &completedAt,
	)
	if err != nil {
		return models.UploadSession{}, err
	}

	if err := json.Unmarshal(metadata, &session.Metadata); err != nil {
		return models.UploadSession{}, fmt.Errorf("failed to unmarshal session metadata: %w", err)
	}
	session.Status = models.UploadStatus(status)
	session.RemoteSessionURL = remoteURL.String
	session.VideoID = videoID.String
	session.Error = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		session.CompletedAt = &t
	}
	return session, nil
}
