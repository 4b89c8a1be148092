package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/skillhub/pkg/notifications"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// listOptions parses ?limit=&offset=&unread=&types=A,B&since=RFC3339.
func listOptions(r *http.Request) (notifications.ListOptions, error) {
	q := r.URL.Query()
	opts := notifications.ListOptions{Limit: defaultPageSize}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, ErrBadRequest
		}
		opts.Limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, ErrBadRequest
		}
		opts.Offset = n
	}
	if v := q.Get("unread"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, ErrBadRequest
		}
		opts.OnlyUnread = b
	}
	if v := q.Get("types"); v != "" {
		for t := range strings.SplitSeq(v, ",") {
			et := notifications.EventType(strings.TrimSpace(t))
			if !et.Valid() {
				return opts, ErrBadRequest
			}
			opts.Types = append(opts.Types, et)
		}
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return opts, ErrBadRequest
		}
		opts.Since = &ts
	}
	return opts, nil
}

func (a *api) listNotifications(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	list, err := a.notes.List(r.Context(), mustIdentity(r).UserID, opts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []notifications.Notification{}
	}
	respond(w, http.StatusOK, list)
}

type unreadCountResponse struct {
	Count int `json:"count"`
}

func (a *api) unreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := a.notes.CountUnread(r.Context(), mustIdentity(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, unreadCountResponse{Count: n})
}

// markReadBody marks the listed ids, or everything when All is set.
type markReadBody struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

func (a *api) markRead(w http.ResponseWriter, r *http.Request) {
	var body markReadBody
	if err := decode(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	if !body.All && len(body.IDs) == 0 {
		a.fail(w, r, ErrBadRequest)
		return
	}

	userID := mustIdentity(r).UserID
	var err error
	if body.All {
		err = a.notes.MarkAllRead(r.Context(), userID)
	} else {
		err = a.notes.MarkRead(r.Context(), userID, body.IDs...)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) setPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs notifications.Preferences
	if err := decode(w, r, &prefs); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.notes.SetPreferences(r.Context(), mustIdentity(r).UserID, prefs); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
