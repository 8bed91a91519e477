package services

import (
	"context"
	"strings"

	"shopfront/internal/domain"
	"shopfront/internal/identity"
	applog "shopfront/internal/log"
	"shopfront/internal/repos"
	"shopfront/internal/session"
)

type AuthService struct {
	IDP   identity.Provider
	Users *repos.UserRepo
}

func NewAuthService(idp identity.Provider, users *repos.UserRepo) *AuthService {
	return &AuthService{IDP: idp, Users: users}
}

// SignUp creates the account, sets its display name and mirrors the profile.
func (s *AuthService) SignUp(ctx context.Context, sid, name, email, password string) (*domain.User, error) {
	u, err := s.IDP.SignUp(ctx, sid, email, password)
	if err != nil {
		return nil, wrap("auth.signup", err)
	}
	name = strings.TrimSpace(name)
	if err := s.IDP.UpdateDisplayName(ctx, u.UID, name); err != nil {
		return nil, wrap("auth.signup.name", err)
	}
	u.Name = name
	s.mirror(ctx, u)
	return u, nil
}

func (s *AuthService) SignIn(ctx context.Context, sid, email, password string) (*domain.User, error) {
	u, err := s.IDP.SignIn(ctx, sid, email, password)
	if err != nil {
		return nil, wrap("auth.signin", err)
	}
	s.mirror(ctx, u)
	return u, nil
}

func (s *AuthService) SignInWithProvider(ctx context.Context, sid string, id identity.FederatedIdentity) (*domain.User, error) {
	u, err := s.IDP.SignInWithProvider(ctx, sid, id)
	if err != nil {
		return nil, wrap("auth.provider", err)
	}
	s.mirror(ctx, u)
	return u, nil
}

func (s *AuthService) SignOut(ctx context.Context, sid string) error {
	return wrap("auth.signout", s.IDP.SignOut(ctx, sid))
}

// Session resolves sid to a session context; an unknown sid is anonymous.
func (s *AuthService) Session(ctx context.Context, sid string) (*session.Context, error) {
	u, err := s.IDP.CurrentUser(ctx, sid)
	if err != nil {
		return session.NewContext(sid, nil), wrap("auth.session", err)
	}
	return session.NewContext(sid, u), nil
}

// mirror writes users/<uid> on first sign-in. The account is authoritative,
// so a failure here is logged rather than failing the sign-in.
func (s *AuthService) mirror(ctx context.Context, u *domain.User) {
	wrote, err := s.Users.EnsureProfile(ctx, *u)
	if err != nil {
		applog.Event(applog.LevelError, "profile.mirror.fail", err, map[string]any{"uid": u.UID})
		return
	}
	if wrote {
		applog.Event(applog.LevelAudit, "profile.created", nil, map[string]any{"uid": u.UID})
	}
}

// AccountService serves the profile and settings pages.
type AccountService struct {
	Users *repos.UserRepo
}

func NewAccountService(users *repos.UserRepo) *AccountService {
	return &AccountService{Users: users}
}

// Profile returns the stored profile, falling back to the session's user.
func (s *AccountService) Profile(ctx context.Context, sess *session.Context) (domain.User, error) {
	u := sess.User()
	if u == nil {
		return domain.User{}, ErrNotAuthenticated
	}
	p, ok, err := s.Users.Profile(ctx, u.UID)
	if err != nil {
		return domain.User{}, wrap("profile.get", err)
	}
	if !ok {
		return *u, nil
	}
	if p.Name == "" {
		p.Name = u.Name
	}
	if p.Email == "" {
		p.Email = u.Email
	}
	return p, nil
}

func (s *AccountService) Settings(ctx context.Context, sess *session.Context) (domain.Settings, error) {
	uid, ok := sess.UID()
	if !ok {
		return domain.Settings{}, ErrNotAuthenticated
	}
	st, err := s.Users.Settings(ctx, uid)
	return st, wrap("settings.get", err)
}

func (s *AccountService) SaveSettings(ctx context.Context, sess *session.Context, st domain.Settings) error {
	uid, ok := sess.UID()
	if !ok {
		return ErrNotAuthenticated
	}
	return wrap("settings.save", s.Users.SaveSettings(ctx, uid, st))
}
