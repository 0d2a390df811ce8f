package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/starford/othala/internal/familyservice"
	"github.com/starford/othala/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, is mounted at GET /events and receives heal and
// quality summary events. vaultRoot resolves the media directory.
func NewRouter(svc *familyservice.Service, authEnabled bool, token string, broker *sse.Broker, vaultRoot string) chi.Router {
	h := NewHandler(svc, broker)
	mh := NewMediaHandler(vaultRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Person records CRUD plus search.
	r.Get("/persons", h.ListPersons)
	r.Post("/persons", h.CreatePerson)
	r.Get("/persons/search", h.SearchPersons)
	r.Get("/persons/*", h.GetPerson)
	r.Put("/persons/*", h.UpdatePerson)
	r.Delete("/persons/*", h.DeletePerson)

	// Name resolution.
	r.Get("/resolve", h.Resolve)

	// Graph traversals.
	r.Get("/tree/ancestors/{id}", h.Ancestors)
	r.Get("/tree/descendants/{id}", h.Descendants)
	r.Get("/tree/family/{id}", h.Family)
	r.Get("/tree/siblings/{id}", h.Siblings)
	r.Get("/tree/effective-parents/{id}", h.EffectiveParents)

	// Relationship edits and repair.
	r.Post("/relationships", h.SetRelationship)
	r.Post("/relationships/heal", h.Heal)
	r.Get("/orphans", h.Orphans)
	r.Post("/orphans/clear", h.ClearOrphans)

	// Vault health.
	r.Get("/quality", h.Quality)

	// Graph export.
	r.Get("/graph", h.Graph)

	// Media upload (auth-protected). Files are served at the root
	// /media path outside this router.
	r.Post("/media", mh.Upload)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}
