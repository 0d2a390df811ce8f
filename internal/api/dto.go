package api

import (
	"github.com/starford/othala/internal/familyservice"
	"github.com/starford/othala/internal/graph"
)

// CreatePersonRequest is the request body for creating a person record.
type CreatePersonRequest struct {
	Path    string `json:"path" example:"people/arne-berg.md" validate:"required"`
	Content string `json:"content" example:"---\ntype: person\nname: Arne Berg\n---\n" validate:"required"`
}

// UpdatePersonRequest is the request body for updating a person record.
type UpdatePersonRequest struct {
	Content string `json:"content" example:"---\ntype: person\nname: Arne Berg\nborn: 1920\n---\n" validate:"required"`
}

// PersonDetail is the full person response type (aliased from the domain layer).
type PersonDetail = familyservice.PersonDetail

// PersonListItem is a lightweight item in a list response (aliased from the domain layer).
type PersonListItem = familyservice.PersonListItem

// PersonListResponse wraps paginated person listings.
type PersonListResponse struct {
	Persons []PersonListItem `json:"persons" validate:"required"`
	Total   int              `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"people/arne-berg.md" validate:"required"`
	ID      string `json:"id,omitempty" example:"p-arne"`
	Name    string `json:"name" example:"Arne Berg" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// RelationshipRequest is the request body for a relationship edit
// (aliased from the domain layer).
type RelationshipRequest = familyservice.RelationshipRequest

// RelationshipResult is the relationship edit response (aliased from the
// domain layer).
type RelationshipResult = familyservice.RelationshipResult

// HealRequest is the request body for a reciprocal-link heal pass.
type HealRequest struct {
	Paths  []string `json:"paths,omitempty" example:"people/arne-berg.md"`
	DryRun bool     `json:"dry_run,omitempty" example:"true"`
}

// ClearOrphansRequest is the request body for removing references to
// records that no longer resolve.
type ClearOrphansRequest struct {
	Paths  []string `json:"paths,omitempty"`
	DryRun bool     `json:"dry_run,omitempty" example:"true"`
}

// OrphansResponse lists relationship references whose targets are missing.
type OrphansResponse struct {
	Orphans []graph.UnresolvedRef `json:"orphans" validate:"required"`
	Total   int                   `json:"total" example:"3" validate:"required"`
}

// EffectiveParentsResponse lists a person's parent edges across
// biological, step and adoptive kinds.
type EffectiveParentsResponse struct {
	ID      string       `json:"id" example:"p-arne" validate:"required"`
	Parents []graph.Edge `json:"parents" validate:"required"`
}

// GraphResponse wraps the family graph export.
type GraphResponse struct {
	Nodes []familyservice.GraphNode `json:"nodes" validate:"required"`
	Links []familyservice.GraphLink `json:"links" validate:"required"`
}

// MediaUploadResponse is returned after a successful media upload.
type MediaUploadResponse struct {
	Filename string `json:"filename" example:"census-1920.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/media/census-1920.png" validate:"required"`
}
