package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/markyourfish/fishing-log/internal/model"
	"github.com/markyourfish/fishing-log/internal/utils"
)

// In-memory implementations of the storage interfaces. They keep the same
// contracts as the MySQL repositories and are used by tests and by
// development runs without a database.

// MemoryUserRepo implements UserStore over a map guarded by a mutex.
type MemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]model.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{nextID: 1, users: make(map[uint64]model.User)}
}

func (r *MemoryUserRepo) Create(ctx context.Context, email, password, firstName, lastName string, cost, catchLimit int) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return model.User{}, ErrEmailExists
		}
	}
	now := time.Now().UTC()
	u := model.User{
		ID:                r.nextID,
		Email:             email,
		PasswordHash:      hash,
		FirstName:         firstName,
		LastName:          lastName,
		Role:              model.RoleAngler,
		AccountStatus:     model.StatusActive,
		SubscriptionPlan:  model.PlanFree,
		CatchLimitMonthly: catchLimit,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.nextID++
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (r *MemoryUserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) update(id uint64, fn func(*model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepo) UpdateProfile(ctx context.Context, id uint64, firstName, lastName, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	r.mu.Lock()
	for id2, other := range r.users {
		if id2 != id && other.Email == email {
			r.mu.Unlock()
			return ErrEmailExists
		}
	}
	r.mu.Unlock()
	return r.update(id, func(u *model.User) {
		u.FirstName, u.LastName, u.Email = firstName, lastName, email
	})
}

func (r *MemoryUserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	return r.update(id, func(u *model.User) { u.PasswordHash = passwordHash })
}

func (r *MemoryUserRepo) UpdatePreferences(ctx context.Context, id uint64, preferences []byte) error {
	return r.update(id, func(u *model.User) { u.Preferences = preferences })
}

func (r *MemoryUserRepo) UpdateProfilePicture(ctx context.Context, id uint64, url string) error {
	return r.update(id, func(u *model.User) { u.ProfilePictureURL = url })
}

func (r *MemoryUserRepo) UpdateRole(ctx context.Context, id uint64, role string) error {
	return r.update(id, func(u *model.User) { u.Role = role })
}

func (r *MemoryUserRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	return r.update(id, func(u *model.User) { u.AccountStatus = status })
}

func (r *MemoryUserRepo) UpdatePlan(ctx context.Context, id uint64, plan string) error {
	return r.update(id, func(u *model.User) { u.SubscriptionPlan = plan })
}

func (r *MemoryUserRepo) SetStripeCustomer(ctx context.Context, id uint64, customerID string) error {
	return r.update(id, func(u *model.User) { u.StripeCustomerID = customerID })
}

func (r *MemoryUserRepo) AdjustCatchCount(ctx context.Context, id uint64, delta int) error {
	return r.update(id, func(u *model.User) {
		u.CatchesCount += delta
		if u.CatchesCount < 0 {
			u.CatchesCount = 0
		}
	})
}

func (r *MemoryUserRepo) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepo) List(ctx context.Context, search string, page, limit int) ([]model.User, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	search = strings.ToLower(strings.TrimSpace(search))

	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.User
	for _, u := range r.users {
		if search == "" ||
			strings.Contains(strings.ToLower(u.Email), search) ||
			strings.Contains(strings.ToLower(u.FirstName+" "+u.LastName), search) {
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryUserRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *MemoryUserRepo) CountByPlan(ctx context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, u := range r.users {
		out[u.SubscriptionPlan]++
	}
	return out, nil
}

// MemoryCatchRepo implements CatchStore over a map guarded by a mutex.
type MemoryCatchRepo struct {
	mu      sync.Mutex
	nextID  uint64
	catches map[uint64]model.Catch
}

func NewMemoryCatchRepo() *MemoryCatchRepo {
	return &MemoryCatchRepo{nextID: 1, catches: make(map[uint64]model.Catch)}
}

func (r *MemoryCatchRepo) Create(ctx context.Context, c *model.Catch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	c.ID = r.nextID
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.PhotoURLs == nil {
		c.PhotoURLs = []string{}
	}
	r.nextID++
	r.catches[c.ID] = *c
	return nil
}

func (r *MemoryCatchRepo) GetByID(ctx context.Context, id uint64) (model.Catch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.catches[id]
	if !ok {
		return model.Catch{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryCatchRepo) ListByUser(ctx context.Context, userID uint64, f model.CatchFilter) ([]model.Catch, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.Catch
	for _, c := range r.catches {
		if c.UserID != userID {
			continue
		}
		if f.Species != "" && !strings.Contains(strings.ToLower(c.Species), strings.ToLower(f.Species)) {
			continue
		}
		if f.Location != "" && !strings.Contains(strings.ToLower(c.Location), strings.ToLower(f.Location)) {
			continue
		}
		all = append(all, c)
	}

	asc := strings.EqualFold(f.SortOrder, "asc")
	sort.Slice(all, func(i, j int) bool {
		var less bool
		switch f.SortBy {
		case "species":
			less = all[i].Species < all[j].Species
		case "weight":
			less = deref(all[i].Weight) < deref(all[j].Weight)
		case "length":
			less = deref(all[i].Length) < deref(all[j].Length)
		default:
			less = all[i].CaughtAt.Before(all[j].CaughtAt)
		}
		if asc {
			return less
		}
		return !less
	})

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}
	total := len(all)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryCatchRepo) Update(ctx context.Context, c *model.Catch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.catches[c.ID]
	if !ok {
		return ErrNotFound
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	r.catches[c.ID] = *c
	return nil
}

func (r *MemoryCatchRepo) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.catches[id]; !ok {
		return ErrNotFound
	}
	delete(r.catches, id)
	return nil
}

func (r *MemoryCatchRepo) Stats(ctx context.Context, userID uint64) (model.CatchStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s model.CatchStats
	species := map[string]bool{}
	now := time.Now().UTC()
	for _, c := range r.catches {
		if c.UserID != userID {
			continue
		}
		s.TotalCatches++
		species[strings.ToLower(c.Species)] = true
		if c.CaughtAt.After(now.AddDate(0, 0, -30)) {
			s.RecentCatches++
		}
		if c.CaughtAt.Year() == now.Year() && c.CaughtAt.Month() == now.Month() {
			s.MonthlyCatches++
		}
	}
	s.UniqueSpecies = len(species)
	return s, nil
}

func (r *MemoryCatchRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.catches), nil
}

// MemoryPhotoRepo implements PhotoStore over a map guarded by a mutex.
type MemoryPhotoRepo struct {
	mu     sync.Mutex
	nextID uint64
	photos map[uint64]model.Photo
}

func NewMemoryPhotoRepo() *MemoryPhotoRepo {
	return &MemoryPhotoRepo{nextID: 1, photos: make(map[uint64]model.Photo)}
}

func (r *MemoryPhotoRepo) Create(ctx context.Context, p *model.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	p.CreatedAt = time.Now().UTC()
	r.nextID++
	r.photos[p.ID] = *p
	return nil
}

func (r *MemoryPhotoRepo) GetByID(ctx context.Context, id uint64) (model.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.photos[id]
	if !ok {
		return model.Photo{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryPhotoRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Photo
	for _, p := range r.photos {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryPhotoRepo) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.photos[id]; !ok {
		return ErrNotFound
	}
	delete(r.photos, id)
	return nil
}

func (r *MemoryPhotoRepo) Stats(ctx context.Context, userID uint64) (model.PhotoStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s model.PhotoStats
	for _, p := range r.photos {
		if p.UserID == userID {
			s.TotalFiles++
			s.TotalBytes += p.SizeBytes
		}
	}
	return s, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
