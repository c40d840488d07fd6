package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/elee1766/dextra/src/copilot/tools/tool_createaction"
	"github.com/elee1766/dextra/src/runner"
	"github.com/elee1766/dextra/src/storage"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// MinFrequency is the shortest schedule a patch may set, in seconds.
const MinFrequency = 60

var validate = validator.New()

// actionView is an action as shown to its owner.
type actionView struct {
	*storage.Action
	FrequencyLabel string `json:"frequencyLabel,omitempty"`
}

func viewAction(a *storage.Action) actionView {
	cp := *a
	cp.Description = tool_createaction.DisplayDescription(a.Description)
	v := actionView{Action: &cp}
	if a.Frequency != nil {
		v.FrequencyLabel = runner.FrequencyLabel(*a.Frequency)
	}
	return v
}

func (s *Server) listActions(c *gin.Context) {
	caller := callerFrom(c)
	actions, err := s.store.Actions(c.Request.Context(), caller.UserID)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "failed to list actions")
		return
	}
	out := make([]actionView, 0, len(actions))
	for _, a := range actions {
		out = append(out, viewAction(a))
	}
	ok(c, out)
}

func (s *Server) patchAction(c *gin.Context) {
	caller := callerFrom(c)
	ctx := c.Request.Context()
	id := c.Param("id")

	var patch storage.ActionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(patch); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if patch.Name == nil && patch.Description == nil && patch.Frequency == nil && patch.MaxExecutions == nil {
		fail(c, http.StatusBadRequest, "no fields to update")
		return
	}
	if f := patch.Frequency; f != nil && *f > 0 && *f < MinFrequency {
		fail(c, http.StatusBadRequest, "frequency must be at least 60 seconds")
		return
	}

	current, err := s.store.ActionForUser(ctx, id, caller.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "action not found")
		return
	}
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "failed to load action")
		return
	}
	// descriptions are edited in display form; keep the stored marker
	if patch.Description != nil && strings.HasSuffix(current.Description, tool_createaction.NoConfirmationSuffix) {
		desc := tool_createaction.DisplayDescription(*patch.Description) + tool_createaction.NoConfirmationSuffix
		patch.Description = &desc
	}

	updated, err := s.store.UpdateAction(ctx, id, caller.UserID, patch)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "action not found")
		return
	}
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "failed to update action")
		return
	}
	ok(c, viewAction(updated))
}

func (s *Server) deleteAction(c *gin.Context) {
	caller := callerFrom(c)
	err := s.store.DeleteAction(c.Request.Context(), c.Param("id"), caller.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, "action not found")
	case err != nil:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "failed to delete action")
	default:
		ok(c, nil)
	}
}
