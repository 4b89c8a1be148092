package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/skillhub/pkg/changerequest"
)

type createChangeRequestBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (a *api) createChangeRequest(w http.ResponseWriter, r *http.Request) {
	var body createChangeRequestBody
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}

	cr, err := a.crs.Create(r.Context(), mustIdentity(r).Actor(), chi.URLParam(r, "skillID"), body.Title, body.Description)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, cr)
}

func (a *api) listChangeRequests(w http.ResponseWriter, r *http.Request) {
	status := changerequest.Status(r.URL.Query().Get("status"))
	list, err := a.crs.ListBySkill(r.Context(), chi.URLParam(r, "skillID"), status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []changerequest.ChangeRequest{}
	}
	respond(w, http.StatusOK, list)
}

func (a *api) getChangeRequest(w http.ResponseWriter, r *http.Request) {
	cr, err := a.crs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, cr)
}

func (a *api) approveChangeRequest(w http.ResponseWriter, r *http.Request) {
	a.resolve(w, r, a.crs.Approve)
}

func (a *api) rejectChangeRequest(w http.ResponseWriter, r *http.Request) {
	a.resolve(w, r, a.crs.Reject)
}

func (a *api) withdrawChangeRequest(w http.ResponseWriter, r *http.Request) {
	a.resolve(w, r, a.crs.Withdraw)
}

type resolveFunc func(ctx context.Context, id string, actor changerequest.Actor) (*changerequest.Result, error)

func (a *api) resolve(w http.ResponseWriter, r *http.Request, fn resolveFunc) {
	res, err := fn(r.Context(), chi.URLParam(r, "id"), mustIdentity(r).Actor())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}
