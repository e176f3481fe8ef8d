package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/CallMeMhz/feature-gating/pkg/logger"
	"github.com/CallMeMhz/feature-gating/pkg/toast"
)

const (
	userHeader    = "X-User"
	anonymousUser = "anonymous"
)

type snapshotRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
	Remark    string `json:"remark" validate:"max=1000"`
}

func (s *snapshotRequest) fromForm(form url.Values) {
	s.ProjectID = strings.TrimSpace(form.Get("project_id"))
	s.Remark = form.Get("remark")
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// listSnapshots lists one project's snapshots, newest first.
func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		s.fail(w, r, ErrMissingParam)
		return
	}
	list, err := s.snapshots.List(r.Context(), projectID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) listAllSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := s.snapshots.ListAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// createSnapshot answers JSON with 201. A plain form post is redirected to
// the index with a flash toast instead.
func (s *Server) createSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req snapshotRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, err)
		return
	}

	user := strings.TrimSpace(r.Header.Get(userHeader))
	if user == "" {
		user = anonymousUser
	}

	snap, err := s.snapshots.Create(ctx, req.ProjectID, req.Remark, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if isForm(r) {
		flash := []toast.Flash{{Message: "Snapshot created.", Category: toast.CategorySuccess}}
		if err := s.cookies.SetFlash(w, flashKey, flash); err != nil {
			s.log.WarnContext(ctx, "flash cookie not set", logger.SnapshotID(snap.ID), logger.Error(err))
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.toastsFor(r).Success(ctx, "Snapshot created.")
	writeJSON(w, http.StatusCreated, snap)
}
