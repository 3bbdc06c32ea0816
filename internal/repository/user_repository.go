package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/utils"
)

// UserStore is the credential store consumed by the auth handlers and the
// request middleware. The MySQL implementation below is the production
// store; MemoryUserRepo provides the same contract for tests.
type UserStore interface {
	Create(ctx context.Context, email, password, firstName, lastName string, cost, catchLimit int) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, firstName, lastName, email string) error
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	UpdatePreferences(ctx context.Context, id uint64, preferences []byte) error
	UpdateProfilePicture(ctx context.Context, id uint64, url string) error
	UpdateRole(ctx context.Context, id uint64, role string) error
	UpdateStatus(ctx context.Context, id uint64, status string) error
	UpdatePlan(ctx context.Context, id uint64, plan string) error
	SetStripeCustomer(ctx context.Context, id uint64, customerID string) error
	AdjustCatchCount(ctx context.Context, id uint64, delta int) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, search string, page, limit int) ([]model.User, int, error)
	Count(ctx context.Context) (int, error)
	CountByPlan(ctx context.Context) (map[string]int, error)
}

const userColumns = "id,email,password_hash,first_name,last_name,role,account_status," +
	"subscription_plan,catches_count,catch_limit_monthly,stripe_customer_id," +
	"preferences,profile_picture_url,created_at,updated_at"

// UserRepo is the MySQL credential store.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var prefs sql.Null[[]byte]
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.AccountStatus, &u.SubscriptionPlan, &u.CatchesCount,
		&u.CatchLimitMonthly, &u.StripeCustomerID, &prefs, &u.ProfilePictureURL,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if prefs.Valid {
		u.Preferences = prefs.V
	}
	return u, err
}

// Create inserts a user with the default angler role, active status and free
// plan, then returns the stored record.
func (r *UserRepo) Create(ctx context.Context, email, password, firstName, lastName string, cost, catchLimit int) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.User{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, first_name, last_name, catch_limit_monthly) VALUES (?,?,?,?,?)",
		email, hash, firstName, lastName, catchLimit)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// isDuplicateKey reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

func (r *UserRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// The row may exist with the same value already; verify presence.
		var one int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", args[len(args)-1]).Scan(&one); err != nil {
			return ErrNotFound
		}
	}
	return nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, firstName, lastName, email string) error {
	err := r.exec(ctx, "UPDATE users SET first_name=?, last_name=?, email=? WHERE id=?", firstName, lastName, email, id)
	if isDuplicateKey(err) {
		return ErrEmailExists
	}
	return err
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	return r.exec(ctx, "UPDATE users SET password_hash=? WHERE id=?", passwordHash, id)
}

func (r *UserRepo) UpdatePreferences(ctx context.Context, id uint64, preferences []byte) error {
	return r.exec(ctx, "UPDATE users SET preferences=? WHERE id=?", preferences, id)
}

func (r *UserRepo) UpdateProfilePicture(ctx context.Context, id uint64, url string) error {
	return r.exec(ctx, "UPDATE users SET profile_picture_url=? WHERE id=?", url, id)
}

func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role string) error {
	return r.exec(ctx, "UPDATE users SET role=? WHERE id=?", role, id)
}

func (r *UserRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	return r.exec(ctx, "UPDATE users SET account_status=? WHERE id=?", status, id)
}

func (r *UserRepo) UpdatePlan(ctx context.Context, id uint64, plan string) error {
	return r.exec(ctx, "UPDATE users SET subscription_plan=? WHERE id=?", plan, id)
}

func (r *UserRepo) SetStripeCustomer(ctx context.Context, id uint64, customerID string) error {
	return r.exec(ctx, "UPDATE users SET stripe_customer_id=? WHERE id=?", customerID, id)
}

// AdjustCatchCount moves the monthly counter by delta, clamping at zero.
func (r *UserRepo) AdjustCatchCount(ctx context.Context, id uint64, delta int) error {
	return r.exec(ctx,
		"UPDATE users SET catches_count=GREATEST(0, CAST(catches_count AS SIGNED)+?) WHERE id=?",
		delta, id)
}

// Delete removes the user. Catches and photos go with it via ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of users ordered by creation time, optionally matching
// search against email or name, plus the total count for pagination.
func (r *UserRepo) List(ctx context.Context, search string, page, limit int) ([]model.User, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	where := ""
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		where = " WHERE email LIKE ? OR CONCAT(first_name,' ',last_name) LIKE ?"
		pat := "%" + s + "%"
		args = append(args, pat, pat)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+where+" ORDER BY created_at DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var prefs sql.Null[[]byte]
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
			&u.Role, &u.AccountStatus, &u.SubscriptionPlan, &u.CatchesCount,
			&u.CatchLimitMonthly, &u.StripeCustomerID, &prefs, &u.ProfilePictureURL,
			&u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		if prefs.Valid {
			u.Preferences = prefs.V
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// CountByPlan returns the subscription plan distribution for admin stats.
func (r *UserRepo) CountByPlan(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT subscription_plan, COUNT(*) FROM users GROUP BY subscription_plan")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var plan string
		var n int
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, err
		}
		out[plan] = n
	}
	return out, rows.Err()
}
