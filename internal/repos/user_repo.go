package repos

import (
	"context"
	"errors"
	"fmt"

	"shopfront/internal/docstore"
	"shopfront/internal/domain"
)

const (
	usersColl    = "users"
	settingsColl = "userSettings"
)

// UserRepo keeps the profile mirror users/<uid> and userSettings/<uid>.
type UserRepo struct{ store *docstore.Store }

func NewUserRepo(store *docstore.Store) *UserRepo { return &UserRepo{store: store} }

type profileDoc struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt any    `json:"createdAt"`
}

// EnsureProfile writes the profile of u unless one exists. It reports whether
// it wrote.
func (r *UserRepo) EnsureProfile(ctx context.Context, u domain.User) (bool, error) {
	ref := docstore.Doc(usersColl, u.UID)
	created := false
	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		created = false
		snap, err := tx.Get(ctx, ref)
		if err != nil || snap.Exists {
			return err
		}
		tx.Create(ref, profileDoc{UID: u.UID, Name: u.Name, Email: u.Email, CreatedAt: docstore.ServerTimestamp})
		created = true
		return nil
	})
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return false, nil
	}
	return created && err == nil, err
}

// Profile returns the stored profile, or ok == false when none exists.
func (r *UserRepo) Profile(ctx context.Context, uid string) (domain.User, bool, error) {
	snap, err := r.store.Get(ctx, docstore.Doc(usersColl, uid))
	if err != nil || !snap.Exists {
		return domain.User{}, false, err
	}
	var u domain.User
	if err := snap.DataTo(&u); err != nil {
		return domain.User{}, false, fmt.Errorf("decode %s: %w", snap.Ref, err)
	}
	return u, true, nil
}

// Settings returns uid's notification settings; missing keys read as true.
func (r *UserRepo) Settings(ctx context.Context, uid string) (domain.Settings, error) {
	s := domain.DefaultSettings()
	snap, err := r.store.Get(ctx, docstore.Doc(settingsColl, uid))
	if err != nil || !snap.Exists {
		return s, err
	}
	if err := snap.DataTo(&s); err != nil {
		return domain.DefaultSettings(), fmt.Errorf("decode %s: %w", snap.Ref, err)
	}
	return s, nil
}

func (r *UserRepo) SaveSettings(ctx context.Context, uid string, s domain.Settings) error {
	return r.store.Set(ctx, docstore.Doc(settingsColl, uid), s)
}

func isNotFound(err error) bool { return errors.Is(err, docstore.ErrNotFound) }
