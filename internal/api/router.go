package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fehu/internal/formservice"
	"github.com/starford/fehu/internal/mailer"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *formservice.Service, mail mailer.Sender, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, mail)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Forms.
	r.Post("/forms", h.CreateForm)
	r.Get("/forms", h.ListForms)
	r.Get("/forms/{id}", h.GetForm)
	r.Get("/forms/{id}/source", h.SourceFile)

	// Submissions.
	r.Post("/forms/{id}/submissions", h.CreateSubmission)
	r.Get("/forms/{id}/submissions", h.ListResponses)
	r.Get("/forms/{id}/export", h.Export)

	// Share-link invitations.
	r.Post("/forms/{id}/invitations", h.Invite)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
