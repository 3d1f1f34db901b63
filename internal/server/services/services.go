// Package services contains eardogger's business logic. Every database
// access goes through the scheduler: reads on the reader pool, writes on
// the single writer lane.
package services

import (
	"github.com/dmitrijs2005/eardogger/internal/logging"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/pagination"
	"github.com/dmitrijs2005/eardogger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eardogger/internal/server/scheduler"
	"github.com/dmitrijs2005/eardogger/internal/timex"
)

// Deps are shared by every service.
type Deps struct {
	Sched  *scheduler.Scheduler
	Repos  repomanager.RepositoryManager
	Now    timex.Clock
	Logger logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = timex.UTCNow
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	return d
}

func dogearKey(d models.Dogear) pagination.Cursor {
	return pagination.Cursor{At: timex.ToMicro(d.Updated), ID: d.ID}
}

func tokenKey(t models.Token) pagination.Cursor {
	return pagination.Cursor{At: timex.ToMicro(t.Created), ID: t.ID}
}

func sessionKey(s models.Session) pagination.Cursor {
	return pagination.Cursor{At: timex.ToMicro(s.Created), ID: s.ID}
}
