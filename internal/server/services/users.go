package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/dbx"
	"github.com/dmitrijs2005/eardogger/internal/server/auth"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,80}$`)

// UserService handles accounts: signup, login and the account settings.
type UserService struct {
	Deps
	sessions *SessionService
}

func NewUserService(d Deps, sessions *SessionService) *UserService {
	return &UserService{Deps: d.withDefaults(), sessions: sessions}
}

type SignupInput struct {
	Username  string
	Password  string
	Confirm   string
	Email     string
	UserAgent string
}

func validateUsername(name string) error {
	if !usernamePattern.MatchString(name) {
		return common.Validationf("usernames are 1 to 80 letters, digits, dashes or underscores")
	}
	return nil
}

func validateNewPassword(password, confirm string) error {
	if password == "" {
		return common.Validationf("password must not be empty")
	}
	if password != confirm {
		return common.Validationf("passwords do not match")
	}
	return nil
}

func normalizeEmail(email string) *string {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	return &email
}

// Signup creates the user and logs them in.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, *models.Session, error) {
	if err := validateUsername(in.Username); err != nil {
		return nil, nil, err
	}
	if err := validateNewPassword(in.Password, in.Confirm); err != nil {
		return nil, nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	var (
		user *models.User
		sess *models.Session
	)
	err = s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		user, err = s.Repos.Users(db).Create(ctx, &models.User{
			Username:     in.Username,
			PasswordHash: hash,
			Email:        normalizeEmail(in.Email),
			Created:      s.Now(),
		})
		if err != nil {
			return err
		}
		sess, err = s.sessions.create(ctx, db, user.ID, in.UserAgent)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.Logger.Info(ctx, "user signed up", "user_id", user.ID)
	return user, sess, nil
}

// Login verifies credentials and starts a session. Unknown users and wrong
// passwords are both common.ErrUnauthenticated and cost the same.
func (s *UserService) Login(ctx context.Context, username, password, userAgent string) (*models.User, *models.Session, error) {
	var user *models.User
	err := s.Sched.Read(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		user, err = s.Repos.Users(db).GetByUsername(ctx, username)
		return err
	})
	if errors.Is(err, common.ErrNotFound) {
		auth.DummyVerify(password)
		return nil, nil, common.ErrUnauthenticated
	}
	if err != nil {
		return nil, nil, err
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, nil, common.ErrUnauthenticated
	}

	rehash := ""
	if auth.NeedsRehash(user.PasswordHash) {
		if rehash, err = auth.HashPassword(password); err != nil {
			return nil, nil, err
		}
	}

	var sess *models.Session
	err = s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		if rehash != "" {
			if err := s.Repos.Users(db).SetPasswordHash(ctx, user.ID, rehash); err != nil {
				return err
			}
		}
		var err error
		sess, err = s.sessions.create(ctx, db, user.ID, userAgent)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if rehash != "" {
		user.PasswordHash = rehash
		s.Logger.Info(ctx, "upgraded password hash", "user_id", user.ID)
	}
	return user, sess, nil
}

// checkPassword re-reads the stored hash inside the transaction so a
// concurrent password change is not missed.
func (s *UserService) checkPassword(ctx context.Context, db dbx.DBTX, userID int64, password string) error {
	u, err := s.Repos.Users(db).GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(password, u.PasswordHash) {
		return common.ErrForbidden
	}
	return nil
}

// ChangePassword requires the current password.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next, confirm string) error {
	if err := validateNewPassword(next, confirm); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		if err := s.checkPassword(ctx, db, userID, current); err != nil {
			return err
		}
		return s.Repos.Users(db).SetPasswordHash(ctx, userID, hash)
	})
}

// SetEmail replaces the address; a blank one clears it.
func (s *UserService) SetEmail(ctx context.Context, userID int64, email string) (*models.User, error) {
	var user *models.User
	err := s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		repo := s.Repos.Users(db)
		if err := repo.SetEmail(ctx, userID, normalizeEmail(email)); err != nil {
			return err
		}
		var err error
		user, err = repo.GetByID(ctx, userID)
		return err
	})
	return user, err
}

// Delete removes the account and everything it owns, in one transaction.
func (s *UserService) Delete(ctx context.Context, userID int64, password string) error {
	err := s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		if err := s.checkPassword(ctx, db, userID, password); err != nil {
			return err
		}
		if _, err := s.Repos.Sessions(db).DeleteForUser(ctx, userID); err != nil {
			return err
		}
		if _, err := s.Repos.Tokens(db).DeleteForUser(ctx, userID); err != nil {
			return err
		}
		if _, err := s.Repos.Dogears(db).DeleteForUser(ctx, userID); err != nil {
			return err
		}
		return s.Repos.Users(db).Delete(ctx, userID)
	})
	if err == nil {
		s.Logger.Info(ctx, "user deleted", "user_id", userID)
	}
	return err
}

// CreateUser is the admin path: no session, no confirmation field.
func (s *UserService) CreateUser(ctx context.Context, username, password, email string) (*models.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateNewPassword(password, password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	var user *models.User
	err = s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		user, err = s.Repos.Users(db).Create(ctx, &models.User{
			Username:     username,
			PasswordHash: hash,
			Email:        normalizeEmail(email),
			Created:      s.Now(),
		})
		return err
	})
	return user, err
}

// SetPassword is the admin reset. It also logs the user out everywhere.
func (s *UserService) SetPassword(ctx context.Context, username, password string) error {
	if err := validateNewPassword(password, password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		u, err := s.Repos.Users(db).GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if err := s.Repos.Users(db).SetPasswordHash(ctx, u.ID, hash); err != nil {
			return err
		}
		_, err = s.Repos.Sessions(db).DeleteForUser(ctx, u.ID)
		return err
	})
}
