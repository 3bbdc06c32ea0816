package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/markyourfish/fishing-log/internal/model"
)

// PhotoStore tracks uploaded files so they can be listed, deleted and
// summarized per user.
type PhotoStore interface {
	Create(ctx context.Context, p *model.Photo) error
	GetByID(ctx context.Context, id uint64) (model.Photo, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Photo, error)
	Delete(ctx context.Context, id uint64) error
	Stats(ctx context.Context, userID uint64) (model.PhotoStats, error)
}

// PhotoRepo is the MySQL photo store.
type PhotoRepo struct{ DB *sql.DB }

func NewPhotoRepo(db *sql.DB) *PhotoRepo { return &PhotoRepo{DB: db} }

// Create inserts a photo row and fills in the generated id.
func (r *PhotoRepo) Create(ctx context.Context, p *model.Photo) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO photos (user_id, catch_id, file_name, url, content_type, size_bytes) VALUES (?,?,?,?,?,?)",
		p.UserID, p.CatchID, p.FileName, p.URL, p.ContentType, p.SizeBytes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

func (r *PhotoRepo) GetByID(ctx context.Context, id uint64) (model.Photo, error) {
	var p model.Photo
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,catch_id,file_name,url,content_type,size_bytes,created_at FROM photos WHERE id=? LIMIT 1",
		id).Scan(&p.ID, &p.UserID, &p.CatchID, &p.FileName, &p.URL, &p.ContentType, &p.SizeBytes, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (r *PhotoRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Photo, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,user_id,catch_id,file_name,url,content_type,size_bytes,created_at FROM photos WHERE user_id=? ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Photo
	for rows.Next() {
		var p model.Photo
		if err := rows.Scan(&p.ID, &p.UserID, &p.CatchID, &p.FileName, &p.URL, &p.ContentType, &p.SizeBytes, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PhotoRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM photos WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PhotoRepo) Stats(ctx context.Context, userID uint64) (model.PhotoStats, error) {
	var s model.PhotoStats
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(size_bytes),0) FROM photos WHERE user_id=?",
		userID).Scan(&s.TotalFiles, &s.TotalBytes)
	return s, err
}
