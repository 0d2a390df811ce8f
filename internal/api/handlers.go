package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/familyservice"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/linker"
	"github.com/starford/othala/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *familyservice.Service
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil when no event
// stream is wired, as in tests.
func NewHandler(svc *familyservice.Service, broker *sse.Broker) *Handler {
	return &Handler{svc: svc, broker: broker}
}

func (h *Handler) publish(event string, data any) {
	if h.broker != nil {
		h.broker.Publish(sse.Event{Type: event, Data: data})
	}
}

// personPath extracts the record path from the URL (everything after /api/persons/).
// Supports encoded slashes from OpenAPI clients (e.g. people%2Farne.md).
func personPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// boolParam reads a query flag. Accepts 1, true or yes in any case.
func boolParam(q url.Values, key string) bool {
	switch strings.ToLower(q.Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// generationsParam reads the generations query parameter. Absent means
// the configured default; "all" or a negative number means unlimited.
func (h *Handler) generationsParam(q url.Values) (int, error) {
	raw := q.Get("generations")
	if raw == "" {
		return h.svc.DefaultGenerations(), nil
	}
	if strings.EqualFold(raw, "all") {
		return -1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ListPersons handles GET /api/persons.
//
//	@Summary		List person records with optional pagination and filtering
//	@Tags			persons
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			research	query		string	false	"Filter by research status"
//	@Param			sort		query		string	false	"Sort field"	Enums(path, name, born, updated)
//	@Success		200			{object}	PersonListResponse
//	@Security		BearerAuth
//	@Router			/persons [get]
func (h *Handler) ListPersons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	research := q.Get("research")
	sort := q.Get("sort")

	items, total, err := h.svc.ListPersons(r.Context(), limit, offset, research, sort)
	if err != nil {
		slog.Error("list persons failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"persons": items,
		"total":   total,
	})
}

// GetPerson handles GET /api/persons/*.
//
//	@Summary		Get a single person record by path
//	@Tags			persons
//	@Produce		json
//	@Param			path	path		string	true	"Record path"
//	@Success		200		{object}	PersonDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/persons/{path} [get]
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	path := personPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	person, err := h.svc.GetPerson(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get person failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, person)
}

// CreatePerson handles POST /api/persons.
//
//	@Summary		Create a new person record
//	@Tags			persons
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePersonRequest	true	"Record to create"
//	@Success		201		{object}	PersonDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/persons [post]
func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreatePersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	person, err := h.svc.CreatePerson(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, errorBody("record already exists"))
		case errors.Is(err, apperr.ErrDuplicateID):
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrInvalid):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		default:
			slog.Error("create person failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, person)
}

// UpdatePerson handles PUT /api/persons/*.
//
//	@Summary		Update a person record with optimistic concurrency
//	@Tags			persons
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Record path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdatePersonRequest	true	"Updated content"
//	@Success		200			{object}	PersonDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/persons/{path} [put]
func (h *Handler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := personPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	var req UpdatePersonRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	person, err := h.svc.UpdatePerson(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		case errors.Is(err, apperr.ErrDuplicateID):
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrInvalid):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		default:
			slog.Error("update person failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, person)
}

// DeletePerson handles DELETE /api/persons/*.
//
//	@Summary		Delete a person record
//	@Tags			persons
//	@Param			path	path	string	true	"Record path"
//	@Success		204		"Record deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/persons/{path} [delete]
func (h *Handler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	path := personPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeletePerson(r.Context(), path); err != nil {
		slog.Error("delete person failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchPersons handles GET /api/persons/search.
//
//	@Summary		Full-text search across person records
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/persons/search [get]
func (h *Handler) SearchPersons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, SearchResult{
			Path:    hit.Path,
			ID:      hit.ID,
			Name:    hit.Name,
			Snippet: hit.Snippet,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Resolve handles GET /api/resolve.
//
// Ambiguity is reported in the body, not the status code: a name shared
// by several records answers 200 with status "ambiguous" and the
// candidate list.
//
//	@Summary		Resolve a display name to a person record
//	@Tags			resolve
//	@Produce		json
//	@Param			name	query		string	true	"Display name or [[wikilink]]"
//	@Success		200		{object}	index.Resolution
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'name' is required"))
		return
	}
	res, err := h.svc.Resolve(r.Context(), name)
	if err != nil {
		slog.Error("resolve failed", slog.String("name", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Ancestors handles GET /api/tree/ancestors/{id}.
//
//	@Summary		Walk ancestors of a person
//	@Tags			tree
//	@Produce		json
//	@Param			id			path		string	true	"Canonical person id"
//	@Param			generations	query		string	false	"Generation limit, 'all' for unlimited"
//	@Param			step		query		bool	false	"Include step parents"
//	@Param			adoptive	query		bool	false	"Include adoptive parents"
//	@Success		200			{object}	graph.Traversal
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/ancestors/{id} [get]
func (h *Handler) Ancestors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()
	gens, err := h.generationsParam(q)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid generations parameter"))
		return
	}
	opts := graph.TraversalOptions{
		IncludeStep:     boolParam(q, "step"),
		IncludeAdoptive: boolParam(q, "adoptive"),
	}
	trav, err := h.svc.Ancestors(r.Context(), id, gens, opts)
	if err != nil {
		slog.Error("ancestors failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if !trav.Found {
		writeJSON(w, http.StatusNotFound, errorBody("person not found"))
		return
	}
	writeJSON(w, http.StatusOK, trav)
}

// Descendants handles GET /api/tree/descendants/{id}.
//
//	@Summary		Walk descendants of a person
//	@Tags			tree
//	@Produce		json
//	@Param			id			path		string	true	"Canonical person id"
//	@Param			generations	query		string	false	"Generation limit, 'all' for unlimited"
//	@Success		200			{object}	graph.Traversal
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/descendants/{id} [get]
func (h *Handler) Descendants(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gens, err := h.generationsParam(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid generations parameter"))
		return
	}
	trav, err := h.svc.Descendants(r.Context(), id, gens)
	if err != nil {
		slog.Error("descendants failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if !trav.Found {
		writeJSON(w, http.StatusNotFound, errorBody("person not found"))
		return
	}
	writeJSON(w, http.StatusOK, trav)
}

// Family handles GET /api/tree/family/{id}.
//
//	@Summary		Walk ancestors and descendants of a person together
//	@Tags			tree
//	@Produce		json
//	@Param			id			path		string	true	"Canonical person id"
//	@Param			generations	query		string	false	"Generation limit, 'all' for unlimited"
//	@Param			spouses		query		bool	false	"Include spouses of members"
//	@Success		200			{object}	graph.Traversal
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/family/{id} [get]
func (h *Handler) Family(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()
	gens, err := h.generationsParam(q)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid generations parameter"))
		return
	}
	trav, err := h.svc.Family(r.Context(), id, gens, boolParam(q, "spouses"))
	if err != nil {
		slog.Error("family failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if !trav.Found {
		writeJSON(w, http.StatusNotFound, errorBody("person not found"))
		return
	}
	writeJSON(w, http.StatusOK, trav)
}

// Siblings handles GET /api/tree/siblings/{id}.
//
//	@Summary		List siblings of a person, full and half
//	@Tags			tree
//	@Produce		json
//	@Param			id	path		string	true	"Canonical person id"
//	@Success		200	{object}	graph.Traversal
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/siblings/{id} [get]
func (h *Handler) Siblings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trav, err := h.svc.Siblings(r.Context(), id)
	if err != nil {
		slog.Error("siblings failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if !trav.Found {
		writeJSON(w, http.StatusNotFound, errorBody("person not found"))
		return
	}
	writeJSON(w, http.StatusOK, trav)
}

// EffectiveParents handles GET /api/tree/effective-parents/{id}.
//
//	@Summary		List a person's parents across biological, step and adoptive kinds
//	@Tags			tree
//	@Produce		json
//	@Param			id	path		string	true	"Canonical person id"
//	@Success		200	{object}	EffectiveParentsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/effective-parents/{id} [get]
func (h *Handler) EffectiveParents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	parents, found, err := h.svc.EffectiveParents(r.Context(), id)
	if err != nil {
		slog.Error("effective parents failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("person not found"))
		return
	}
	if parents == nil {
		parents = []graph.Edge{}
	}
	writeJSON(w, http.StatusOK, EffectiveParentsResponse{ID: id, Parents: parents})
}

// SetRelationship handles POST /api/relationships.
//
//	@Summary		Edit a relationship and propagate the reciprocal links
//	@Tags			relationships
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RelationshipRequest	true	"Relationship edit"
//	@Success		200		{object}	RelationshipResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/relationships [post]
func (h *Handler) SetRelationship(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.SetRelationship(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalid):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrAmbiguous):
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		default:
			slog.Error("set relationship failed",
				slog.String("source", req.SourceID),
				slog.String("type", req.Type),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Heal handles POST /api/relationships/heal.
//
// An empty body heals the whole vault.
//
//	@Summary		Restore missing reciprocal relationship links
//	@Tags			relationships
//	@Accept			json
//	@Produce		json
//	@Param			body	body		HealRequest	false	"Scope and dry-run flag"
//	@Success		200		{object}	linker.HealResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/relationships/heal [post]
func (h *Handler) Heal(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req HealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.Heal(r.Context(), linker.HealRequest{Paths: req.Paths, DryRun: req.DryRun})
	if err != nil {
		slog.Error("heal failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if !req.DryRun && len(res.Writes) > 0 {
		h.publish("vault.healed", map[string]int{
			"checked":   res.Checked,
			"writes":    len(res.Writes),
			"conflicts": len(res.Conflicts),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

// Orphans handles GET /api/orphans.
//
//	@Summary		List relationship references whose targets are missing
//	@Tags			relationships
//	@Produce		json
//	@Success		200	{object}	OrphansResponse
//	@Security		BearerAuth
//	@Router			/orphans [get]
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.svc.Orphans(r.Context())
	if err != nil {
		slog.Error("orphans failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if orphans == nil {
		orphans = []graph.UnresolvedRef{}
	}
	writeJSON(w, http.StatusOK, OrphansResponse{Orphans: orphans, Total: len(orphans)})
}

// ClearOrphans handles POST /api/orphans/clear.
//
// An empty body scans the whole vault.
//
//	@Summary		Remove id references to records that no longer exist
//	@Tags			relationships
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ClearOrphansRequest	false	"Scope and dry-run flag"
//	@Success		200		{object}	linker.OrphanResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/orphans/clear [post]
func (h *Handler) ClearOrphans(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ClearOrphansRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.ClearOrphans(r.Context(), linker.OrphanRequest{Paths: req.Paths, DryRun: req.DryRun})
	if err != nil {
		slog.Error("clear orphans failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Quality handles GET /api/quality.
//
//	@Summary		Validate the vault and report findings with a quality score
//	@Tags			quality
//	@Produce		json
//	@Success		200	{object}	quality.Report
//	@Security		BearerAuth
//	@Router			/quality [get]
func (h *Handler) Quality(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Quality(r.Context())
	if err != nil {
		slog.Error("quality run failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	h.publish("quality.updated", map[string]int{
		"score":    report.Score,
		"errors":   report.Counts.Errors,
		"warnings": report.Counts.Warnings,
	})
	writeJSON(w, http.StatusOK, report)
}

// Graph handles GET /api/graph.
//
//	@Summary		Export the family graph as nodes and typed links
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.GraphExport(r.Context())
	if err != nil {
		slog.Error("graph export failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"links": links,
	})
}
