package users

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Store is the cache-aside repository every other component reads users
// through. Writes always persist first and refresh the cache after, so a
// failed cache write leaves the backing table correct and the entry is
// repopulated on the next read miss.
type Store struct {
	logger *slog.Logger
	repo   Repository
	cache  *Cache
	group  singleflight.Group
}

// NewStore constructs a Store.
func NewStore(logger *slog.Logger, repo Repository, cache *Cache) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger, repo: repo, cache: cache}
}

// FindByID returns the user behind the id-keyed cache entry, loading and
// repopulating from the backing table on a miss.
func (s *Store) FindByID(ctx context.Context, id int64) (User, error) {
	if u, ok, err := s.cache.GetByID(ctx, id); err == nil && ok {
		return u, nil
	} else if err != nil {
		s.logger.Warn("user cache read", slog.Int64("user_id", id), slog.Any("error", err))
	}

	v, err, _ := s.group.Do(idKeyPrefix+strconv.FormatInt(id, 10), func() (any, error) {
		u, err := s.repo.GetUserByID(ctx, id)
		if err != nil {
			return User{}, err
		}
		s.populate(ctx, u)
		return u, nil
	})
	if err != nil {
		return User{}, err
	}
	return v.(User), nil
}

// FindByEmail is the email-keyed counterpart of FindByID.
func (s *Store) FindByEmail(ctx context.Context, email string) (User, error) {
	if u, ok, err := s.cache.GetByEmail(ctx, email); err == nil && ok {
		return u, nil
	} else if err != nil {
		s.logger.Warn("user cache read", slog.String("email", email), slog.Any("error", err))
	}

	v, err, _ := s.group.Do(emailKeyPrefix+email, func() (any, error) {
		u, err := s.repo.GetUserByEmail(ctx, email)
		if err != nil {
			return User{}, err
		}
		s.populate(ctx, u)
		return u, nil
	})
	if err != nil {
		return User{}, err
	}
	return v.(User), nil
}

// Create persists a new user, then populates both cache keys from the
// persisted record so id and timestamps come from the database.
func (s *Store) Create(ctx context.Context, u User) (User, error) {
	created, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.populate(ctx, created)
	return created, nil
}

// Update persists an existing user and refreshes both cache keys.
func (s *Store) Update(ctx context.Context, u User) (User, error) {
	updated, err := s.repo.UpdateUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.populate(ctx, updated)
	return updated, nil
}

// RecordLogin stamps the last-login timestamp and refreshes both keys.
func (s *Store) RecordLogin(ctx context.Context, id int64) (User, error) {
	touched, err := s.repo.TouchLastLogin(ctx, id)
	if err != nil {
		return User{}, err
	}
	s.populate(ctx, touched)
	return touched, nil
}

// Delete loads the user to learn its email, removes the row and evicts
// both cache keys.
func (s *Store) Delete(ctx context.Context, id int64) error {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Evict(ctx, u); err != nil {
		s.logger.Warn("user cache evict", slog.Int64("user_id", id), slog.Any("error", err))
	}
	return nil
}

func (s *Store) populate(ctx context.Context, u User) {
	if err := s.cache.Put(ctx, u); err != nil {
		s.logger.Warn("user cache write", slog.Int64("user_id", u.ID), slog.Any("error", err))
	}
}
