package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"go-userapi/internal/models"
	"go-userapi/internal/repositories"
)

// fakeUserRepo is an in-memory UserRepository. Set failWith to make every call fail.
type fakeUserRepo struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]models.User
	failWith error

	// raceOnCreate makes Create report a unique violation, as if another
	// request inserted the same username after the pre-check.
	raceOnCreate bool
	raceOnUpdate bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]models.User{}}
}

var _ repositories.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.raceOnCreate {
		return nil, repositories.ErrDuplicateUser
	}
	f.nextID++
	user.ID = f.nextID
	f.users[user.ID] = *user
	return user, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	return f.FindByUsernameOrEmailExcluding(ctx, username, email, 0)
}

func (f *fakeUserRepo) FindByUsernameOrEmailExcluding(ctx context.Context, username, email string, excludeID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, id := range f.ids() {
		u := f.users[id]
		if id == excludeID {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) List(ctx context.Context, filter string, page, pageSize int) ([]models.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, 0, f.failWith
	}
	var matched []models.User
	for _, id := range f.ids() {
		u := f.users[id]
		if filter == "" || strings.Contains(u.Nama, filter) || strings.Contains(u.Username, filter) || strings.Contains(u.Email, filter) {
			matched = append(matched, u)
		}
	}
	total := int64(len(matched))
	if pageSize <= 0 {
		return matched, total, nil
	}
	if page < 1 {
		page = 1
	}
	if page-1 > math.MaxInt/pageSize || (page-1)*pageSize >= len(matched) {
		return nil, total, nil
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	if f.raceOnUpdate {
		return nil, repositories.ErrDuplicateUser
	}
	if _, ok := f.users[user.ID]; !ok {
		return nil, repositories.ErrNotFound
	}
	f.users[user.ID] = *user
	u := *user
	return &u, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.users, user.ID)
	return nil
}

func (f *fakeUserRepo) ids() []int64 {
	ids := make([]int64, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

var errDBDown = errors.New("db down")
