package web

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/eardogger/internal/common"
	"github.com/dmitrijs2005/eardogger/internal/server/auth"
	"github.com/dmitrijs2005/eardogger/internal/server/models"
	"github.com/dmitrijs2005/eardogger/internal/server/pagination"
	"github.com/dmitrijs2005/eardogger/internal/server/urlx"
)

const (
	resultUpdated = "updated"
	resultNoMatch = "no_match"
)

type updateRequest struct {
	Current string `json:"current"`
}

type updateResponse struct {
	Result  string          `json:"result"`
	Dogears []models.Dogear `json:"dogears"`
}

func noMatch() updateResponse {
	return updateResponse{Result: resultNoMatch, Dogears: []models.Dogear{}}
}

// crossOrigin reports whether the request came from a page on another site.
func (s *Server) crossOrigin(r *http.Request) (string, bool) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return "", false
	}
	return origin, urlx.Origin(origin) != s.origin
}

// withCORS wraps the one endpoint bookmarklets call from other sites.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if origin, cross := s.crossOrigin(r); cross {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		next(w, r)
	}
}

func (s *Server) handleUpdatePreflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Add("Vary", "Origin")
	if origin, cross := s.crossOrigin(r); cross {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", http.MethodPost)
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		h.Set("Access-Control-Max-Age", "600")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	origin, cross := s.crossOrigin(r)
	if cross && id.Method == auth.MethodSession {
		return common.ErrForbidden
	}

	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	current := strings.TrimSpace(req.Current)
	if _, err := urlx.Matchable(current); err != nil {
		return err
	}
	// a page may only move dogears for its own site
	if cross && urlx.Origin(current) != urlx.Origin(origin) {
		writeJSON(w, http.StatusOK, noMatch())
		return nil
	}

	res, err := s.dogears.Update(r.Context(), id.User.ID, current)
	if err != nil {
		return err
	}
	if !res.Matched() {
		writeJSON(w, http.StatusOK, noMatch())
		return nil
	}
	writeJSON(w, http.StatusOK, updateResponse{Result: resultUpdated, Dogears: res.Dogears})
	return nil
}

type createRequest struct {
	Prefix      string  `json:"prefix"`
	Current     string  `json:"current"`
	DisplayName *string `json:"display_name"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	d, err := s.dogears.Create(r.Context(), id.User.ID, req.Prefix, req.Current, req.DisplayName)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, d)
	return nil
}

func parsePage(r *http.Request) (pagination.Page, error) {
	q := r.URL.Query()
	return pagination.ParsePage(q.Get("size"), q.Get("cursor"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	page, err := parsePage(r)
	if err != nil {
		return err
	}
	res, err := s.dogears.List(r.Context(), id.User.ID, page)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (s *Server) handleDeleteDogear(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	dogearID, err := pathID(r)
	if err != nil {
		return err
	}
	if err := s.dogears.Delete(r.Context(), id.User.ID, dogearID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	page, err := parsePage(r)
	if err != nil {
		return err
	}
	res, err := s.tokens.List(r.Context(), id.User.ID, page)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

type tokenRequest struct {
	Scope   models.TokenScope `json:"scope"`
	Comment string            `json:"comment"`
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	issued, err := s.tokens.Create(r.Context(), id.User.ID, req.Scope, req.Comment)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, issued)
	return nil
}

func (s *Server) handleDeleteToken(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	tokenID, err := pathID(r)
	if err != nil {
		return err
	}
	if err := s.tokens.Delete(r.Context(), id.User.ID, tokenID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handlePersonalMark(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	mark, err := s.tokens.CreatePersonalBookmarklet(r.Context(), id.User.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, mark)
	return nil
}

type bookmarkletResponse struct {
	BookmarkletURL string `json:"bookmarklet_url"`
}

// handleWhereWasI serves the resume bookmarklet. It carries no credential,
// so anyone may fetch it.
func (s *Server) handleWhereWasI(w http.ResponseWriter, r *http.Request) {
	bm, err := s.tokens.WhereWasI()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookmarkletResponse{BookmarkletURL: bm})
}

type sessionView struct {
	models.Session
	Current bool `json:"current"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	page, err := parsePage(r)
	if err != nil {
		return err
	}
	res, err := s.sessions.List(r.Context(), id.User.ID, page)
	if err != nil {
		return err
	}
	out := pagination.Result[sessionView]{Items: make([]sessionView, 0, len(res.Items)), NextCursor: res.NextCursor}
	for _, sess := range res.Items {
		out.Items = append(out.Items, sessionView{Session: sess, Current: id.Session != nil && sess.ID == id.Session.ID})
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	sessionID, err := pathID(r)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(r.Context(), id.User.ID, sessionID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// resumeTarget rebuilds the URL carried in the path. Path cleaning folds the
// scheme's double slash, so it is put back.
func resumeTarget(r *http.Request) string {
	target := r.PathValue("url")
	for _, scheme := range []string{"https:/", "http:/"} {
		if strings.HasPrefix(target, scheme) && !strings.HasPrefix(target, scheme+"/") {
			target = scheme + "/" + target[len(scheme):]
			break
		}
	}
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	return target
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request, id *auth.Identity) error {
	d, err := s.dogears.CurrentForSite(r.Context(), id.User.ID, resumeTarget(r))
	if err != nil {
		return err
	}
	http.Redirect(w, r, d.Current, http.StatusSeeOther)
	return nil
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
