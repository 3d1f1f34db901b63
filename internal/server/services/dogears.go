package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/dbx"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/pagination"
	"github.com/dmitrijs2005/eardogger/internal/server/urlx"
)

const maxDisplayNameLen = 500

// UpdateResult lists the dogears an update moved. It is empty on NoMatch.
type UpdateResult struct {
	Dogears []models.Dogear
}

func (r UpdateResult) Matched() bool { return len(r.Dogears) > 0 }

// DogearService is the update engine plus dogear bookkeeping. Matching is a
// literal, case-sensitive string prefix test: callers normalise first.
type DogearService struct {
	Deps
}

func NewDogearService(d Deps) *DogearService {
	return &DogearService{Deps: d.withDefaults()}
}

// Create adds a dogear. prefix is normalised with urlx.NormalizePrefix and
// current must be an http(s) URL whose matchable form starts with it. An
// existing dogear for the same prefix is common.ErrConflict, never
// overwritten.
func (s *DogearService) Create(ctx context.Context, userID int64, prefix, current string, displayName *string) (*models.Dogear, error) {
	prefix, err := urlx.NormalizePrefix(prefix)
	if err != nil {
		return nil, err
	}
	matchable, err := urlx.Matchable(current)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(matchable, prefix) {
		return nil, common.Validationf("current url does not start with prefix %q", prefix)
	}
	if displayName != nil {
		name := strings.TrimSpace(*displayName)
		switch {
		case name == "":
			displayName = nil
		case len(name) > maxDisplayNameLen:
			return nil, common.Validationf("display name is longer than %d bytes", maxDisplayNameLen)
		default:
			displayName = &name
		}
	}

	d := &models.Dogear{
		UserID:      userID,
		Prefix:      prefix,
		Current:     strings.TrimSpace(current),
		DisplayName: displayName,
		Updated:     s.Now(),
	}
	err = s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		d, err = s.Repos.Dogears(db).Create(ctx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Update moves every dogear whose prefix is a literal prefix of the
// matchable form of current. Zero matches is not an error.
func (s *DogearService) Update(ctx context.Context, userID int64, current string) (UpdateResult, error) {
	current = strings.TrimSpace(current)
	matchable, err := urlx.Matchable(current)
	if err != nil {
		return UpdateResult{}, err
	}
	return s.updateMatching(ctx, userID, matchable, current)
}

// updateMatching stores current on every dogear whose prefix starts
// matchable, all in one transaction.
func (s *DogearService) updateMatching(ctx context.Context, userID int64, matchable, current string) (UpdateResult, error) {
	res := UpdateResult{Dogears: []models.Dogear{}}
	err := s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		repo := s.Repos.Dogears(db)
		refs, err := repo.ListPrefixes(ctx, userID)
		if err != nil {
			return err
		}
		now := s.Now()
		for _, ref := range refs {
			if !strings.HasPrefix(matchable, ref.Prefix) {
				continue
			}
			d, err := repo.SetCurrent(ctx, userID, ref.ID, current, now)
			if err != nil {
				return err
			}
			res.Dogears = append(res.Dogears, *d)
		}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return res, nil
}

func (s *DogearService) List(ctx context.Context, userID int64, page pagination.Page) (pagination.Result[models.Dogear], error) {
	var rows []models.Dogear
	err := s.Sched.Read(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		rows, err = s.Repos.Dogears(db).ListPage(ctx, userID, page)
		return err
	})
	if err != nil {
		return pagination.Result[models.Dogear]{}, err
	}
	return pagination.Finish(rows, page, dogearKey), nil
}

func (s *DogearService) Delete(ctx context.Context, userID, id int64) error {
	return s.Sched.Write(ctx, func(ctx context.Context, db dbx.DBTX) error {
		return s.Repos.Dogears(db).DeleteByID(ctx, userID, id)
	})
}

// CurrentForSite finds the most specific dogear for url, for resuming
// reading. It is common.ErrNotFound when nothing matches.
func (s *DogearService) CurrentForSite(ctx context.Context, userID int64, url string) (*models.Dogear, error) {
	matchable, err := urlx.Matchable(url)
	if err != nil {
		return nil, err
	}
	var d *models.Dogear
	err = s.Sched.Read(ctx, func(ctx context.Context, db dbx.DBTX) error {
		repo := s.Repos.Dogears(db)
		refs, err := repo.ListPrefixes(ctx, userID)
		if err != nil {
			return err
		}
		var best *int64
		bestLen := -1
		for i := range refs {
			if strings.HasPrefix(matchable, refs[i].Prefix) && len(refs[i].Prefix) > bestLen {
				best, bestLen = &refs[i].ID, len(refs[i].Prefix)
			}
		}
		if best == nil {
			return common.ErrNotFound
		}
		d, err = repo.GetByID(ctx, userID, *best)
		return err
	})
	return d, err
}
