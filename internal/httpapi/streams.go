package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/skillhub/pkg/pubsub"
)

// notificationsChannel streams the caller's own notifications only.
func notificationsChannel(r *http.Request) (string, error) {
	return pubsub.NotificationsChannel(mustIdentity(r).UserID), nil
}

func skillChannel(r *http.Request) (string, error) {
	id := chi.URLParam(r, "skillID")
	if id == "" {
		return "", ErrBadRequest
	}
	return pubsub.SkillFollowersChannel(id), nil
}

func statsChannel(*http.Request) (string, error) {
	return pubsub.GlobalStatsChannel, nil
}
