package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vidstream/api/internal/models"
)

var ErrUploadNotFound = errors.New("upload not found")

type UploadRepository struct {
	pool *pgxpool.Pool
}

func NewUploadRepository(pool *pgxpool.Pool) *UploadRepository {
	return &UploadRepository{pool: pool}
}

// Create records a stored object and marks any previous active object of
// the same kind for the user as superseded, inside one transaction.
func (r *UploadRepository) Create(ctx context.Context, upload models.Upload) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const supersede = `
		UPDATE uploads SET status = 'superseded'
		WHERE user_id = $1 AND kind = $2 AND status = 'active'
	`
	if _, err := tx.Exec(ctx, supersede, upload.UserID, upload.Kind); err != nil {
		return err
	}

	const insert = `
		INSERT INTO uploads (
			id, user_id, kind, bucket, object_key, content_type, size_bytes, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW()
		)
	`
	if _, err := tx.Exec(ctx, insert,
		upload.ID,
		upload.UserID,
		upload.Kind,
		upload.Bucket,
		upload.ObjectKey,
		upload.ContentType,
		upload.SizeBytes,
		upload.Status,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListSuperseded returns superseded uploads older than the cutoff, oldest
// first, for the janitor to purge.
func (r *UploadRepository) ListSuperseded(ctx context.Context, olderThan time.Time, limit int) ([]models.Upload, error) {
	const query = `
		SELECT id, user_id, kind, bucket, object_key, content_type, size_bytes, status, created_at
		FROM uploads
		WHERE status = 'superseded' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []models.Upload
	for rows.Next() {
		var upload models.Upload
		if err := rows.Scan(
			&upload.ID,
			&upload.UserID,
			&upload.Kind,
			&upload.Bucket,
			&upload.ObjectKey,
			&upload.ContentType,
			&upload.SizeBytes,
			&upload.Status,
			&upload.CreatedAt,
		); err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, rows.Err()
}

func (r *UploadRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM uploads WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUploadNotFound
	}
	return nil
}
