package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/dbx"
	"github.com/dmitrijs2005/eardogger/internal/server/auth"
	"github.com/dmitrijs2005/eardogger/internal/server/bookmarklet"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/pagination"
)

const maxCommentLen = 1000

type TokenService struct {
	Deps
	origin string
}

// NewTokenService takes the public origin the bookmarklets call back to.
func NewTokenService(d Deps, origin string) *TokenService {
	return &TokenService{Deps: d.withDefaults(), origin: origin}
}

// IssuedToken carries the cleartext secret, which is never stored and only
// returned here.
type IssuedToken struct {
	Token  *models.Token `json:"token"`
	Secret string        `json:"secret"`
}

// PersonalMark is a fresh write token baked into a bookmarklet.
type PersonalMark struct {
	IssuedToken
	BookmarkletURL string `json:"bookmarklet_url"`
}

func (s *TokenService) Create(ctx context.Context, userID int64, scope models.TokenScope, comment string) (*IssuedToken, error) {
	if !scope.Valid() {
		return nil, common.Validationf("unknown token scope %q", scope.String())
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > maxCommentLen {
		return nil, common.Validationf("comment is longer than %d bytes", maxCommentLen)
	}

	secret := auth.NewTokenSecret()
	t := &models.Token{
		UserID:    userID,
		TokenHash: auth.HashToken(secret),
		Scope:     scope,
		Created:   s.Now(),
	}
	if comment != "" {
		t.Comment = &comment
	}

	err := s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		t, err = s.Repos.Tokens(db).Create(ctx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: t, Secret: secret}, nil
}

func (s *TokenService) List(ctx context.Context, userID int64, page pagination.Page) (pagination.Result[models.Token], error) {
	var rows []models.Token
	err := s.Sched.Read(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		rows, err = s.Repos.Tokens(db).ListPage(ctx, userID, page)
		return err
	})
	if err != nil {
		return pagination.Result[models.Token]{}, err
	}
	return pagination.Finish(rows, page, tokenKey), nil
}

func (s *TokenService) Delete(ctx context.Context, userID, id int64) error {
	return s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		return s.Repos.Tokens(db).DeleteByID(ctx, userID, id)
	})
}

// CreatePersonalBookmarklet mints a write_dogears token and the bookmarklet
// URL that uses it.
func (s *TokenService) CreatePersonalBookmarklet(ctx context.Context, userID int64) (*PersonalMark, error) {
	now := s.Now()
	comment := fmt.Sprintf("Personal bookmarklet created %d-%d-%d", now.Year(), int(now.Month()), now.Day())

	issued, err := s.Create(ctx, userID, models.WriteDogears, comment)
	if err != nil {
		return nil, err
	}
	url, err := bookmarklet.Mark(s.origin, issued.Secret)
	if err != nil {
		return nil, err
	}
	return &PersonalMark{IssuedToken: *issued, BookmarkletURL: url}, nil
}

// WhereWasI is the credential-free resume bookmarklet.
func (s *TokenService) WhereWasI() (string, error) {
	return bookmarklet.WhereWasI(s.origin)
}
