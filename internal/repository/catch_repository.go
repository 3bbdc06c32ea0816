package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/markyourfish/fishing-log/internal/model"
)

// CatchStore persists catch records. Listing supports the filters, sort
// whitelist and pagination exposed by GET /api/catches.
type CatchStore interface {
	Create(ctx context.Context, c *model.Catch) error
	GetByID(ctx context.Context, id uint64) (model.Catch, error)
	ListByUser(ctx context.Context, userID uint64, f model.CatchFilter) ([]model.Catch, int, error)
	Update(ctx context.Context, c *model.Catch) error
	Delete(ctx context.Context, id uint64) error
	Stats(ctx context.Context, userID uint64) (model.CatchStats, error)
	Count(ctx context.Context) (int, error)
}

// sortColumns whitelists the ORDER BY targets reachable from query params.
var sortColumns = map[string]string{
	"date":    "caught_at",
	"species": "species",
	"weight":  "weight",
	"length":  "length",
}

// CatchRepo is the MySQL catch store.
type CatchRepo struct{ DB *sql.DB }

func NewCatchRepo(db *sql.DB) *CatchRepo { return &CatchRepo{DB: db} }

const catchColumns = "id,user_id,species,weight,length,location,latitude,longitude,caught_at,notes,photo_urls,created_at,updated_at"

func scanCatch(scan func(dest ...any) error) (model.Catch, error) {
	var c model.Catch
	var notes sql.NullString
	var photos []byte
	err := scan(&c.ID, &c.UserID, &c.Species, &c.Weight, &c.Length, &c.Location,
		&c.Latitude, &c.Longitude, &c.CaughtAt, &notes, &photos, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Notes = notes.String
	if len(photos) > 0 {
		_ = json.Unmarshal(photos, &c.PhotoURLs)
	}
	if c.PhotoURLs == nil {
		c.PhotoURLs = []string{}
	}
	return c, nil
}

// Create inserts a catch and fills in the generated id.
func (r *CatchRepo) Create(ctx context.Context, c *model.Catch) error {
	photos, err := json.Marshal(c.PhotoURLs)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO catches (user_id, species, weight, length, location, latitude, longitude, caught_at, notes, photo_urls) VALUES (?,?,?,?,?,?,?,?,?,?)",
		c.UserID, c.Species, c.Weight, c.Length, c.Location, c.Latitude, c.Longitude, c.CaughtAt, nullIfEmpty(c.Notes), photos)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByID fetches a single catch.
func (r *CatchRepo) GetByID(ctx context.Context, id uint64) (model.Catch, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+catchColumns+" FROM catches WHERE id=? LIMIT 1", id)
	return scanCatch(row.Scan)
}

// ListByUser returns a filtered, sorted page of the user's catches plus the
// total row count matching the filter.
func (r *CatchRepo) ListByUser(ctx context.Context, userID uint64, f model.CatchFilter) ([]model.Catch, int, error) {
	where := " WHERE user_id=?"
	args := []any{userID}
	if s := strings.TrimSpace(f.Species); s != "" {
		where += " AND species LIKE ?"
		args = append(args, "%"+s+"%")
	}
	if l := strings.TrimSpace(f.Location); l != "" {
		where += " AND location LIKE ?"
		args = append(args, "%"+l+"%")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM catches"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "caught_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, (page-1)*limit)

	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+catchColumns+" FROM catches"+where+" ORDER BY "+col+" "+dir+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Catch
	for rows.Next() {
		c, err := scanCatch(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Update rewrites the mutable columns of a catch.
func (r *CatchRepo) Update(ctx context.Context, c *model.Catch) error {
	photos, err := json.Marshal(c.PhotoURLs)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE catches SET species=?, weight=?, length=?, location=?, latitude=?, longitude=?, caught_at=?, notes=?, photo_urls=? WHERE id=?",
		c.Species, c.Weight, c.Length, c.Location, c.Latitude, c.Longitude, c.CaughtAt, nullIfEmpty(c.Notes), photos, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Zero affected rows is ambiguous (identical values); confirm existence.
		var one int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM catches WHERE id=? LIMIT 1", c.ID).Scan(&one); err != nil {
			return ErrNotFound
		}
	}
	return nil
}

// Delete removes a catch.
func (r *CatchRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM catches WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates the summary block for one user.
func (r *CatchRepo) Stats(ctx context.Context, userID uint64) (model.CatchStats, error) {
	var s model.CatchStats
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(DISTINCT species),
		        COALESCE(SUM(caught_at >= NOW() - INTERVAL 30 DAY), 0),
		        COALESCE(SUM(YEAR(caught_at)=YEAR(NOW()) AND MONTH(caught_at)=MONTH(NOW())), 0)
		 FROM catches WHERE user_id=?`,
		userID).Scan(&s.TotalCatches, &s.UniqueSpecies, &s.RecentCatches, &s.MonthlyCatches)
	return s, err
}

func (r *CatchRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM catches").Scan(&n)
	return n, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
