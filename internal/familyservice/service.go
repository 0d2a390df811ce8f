// Package familyservice orchestrates person-record operations: vault
// reads and writes, index maintenance, relationship propagation, graph
// snapshots, and consistency reports. Record files stay the source of
// truth; the service only coordinates the layers around them.
package familyservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/linker"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/quality"
	"github.com/starford/othala/internal/record"
	"github.com/starford/othala/internal/storage"
)

// PersonDetail is the full representation of one person record.
type PersonDetail struct {
	Path      string         `json:"path"`
	Content   string         `json:"content"`
	Checksum  string         `json:"checksum"`
	Person    *models.Person `json:"person"`
	Referrers []string       `json:"referrers"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PersonListItem is a lightweight item in a list response.
type PersonListItem struct {
	Path      string    `json:"path"`
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Sex       string    `json:"sex,omitempty"`
	Born      string    `json:"born,omitempty"`
	Died      string    `json:"died,omitempty"`
	Research  string    `json:"research,omitempty"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Options tune service behaviour. Zero values select defaults.
type Options struct {
	// DefaultGenerations caps traversals when the caller passes no
	// explicit limit. Zero or negative selects 5.
	DefaultGenerations int
	Thresholds         quality.Thresholds
}

// Service coordinates storage, index, linker, and graph operations.
type Service struct {
	store  storage.Provider
	db     *index.DB
	linker *linker.Linker
	logger *slog.Logger
	opts   Options

	mu    sync.Mutex
	snap  *graph.Graph
	stale bool
}

// NewService creates a new family service.
func NewService(store storage.Provider, db *index.DB, logger *slog.Logger, opts Options) *Service {
	if opts.DefaultGenerations <= 0 {
		opts.DefaultGenerations = 5
	}
	return &Service{
		store:  store,
		db:     db,
		linker: linker.New(store, db, logger),
		logger: logger,
		opts:   opts,
		stale:  true,
	}
}

// GetPerson reads a person record from storage, decodes it, and enriches
// it with the paths of every record referencing it, by canonical id or by
// display-name spelling.
func (s *Service) GetPerson(_ context.Context, path string) (*PersonDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildDetail(path, data)
}

// CreatePerson writes a new person record and indexes it. A record
// arriving without a canonical id is stamped with a fresh uuid before
// the write; a record claiming an id some other file already owns is
// rejected, since duplicate ids corrupt every id-based reference.
func (s *Service) CreatePerson(_ context.Context, path string, content []byte) (*PersonDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	res, err := parser.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("familyservice: parse %s: %w", path, err)
	}
	if t := recordType(res.Frontmatter); t != "" && !strings.EqualFold(t, record.RecordTypePerson) {
		return nil, fmt.Errorf("familyservice: %s declares type %q, not a person record: %w", path, t, apperr.ErrInvalid)
	}

	var changes []record.Change
	if !record.IsPerson(res.Frontmatter) {
		changes = append(changes, record.Change{Field: record.FieldType, Value: record.RecordTypePerson})
	}
	id := record.Decode(path, res).ID
	if id == "" {
		id = uuid.NewString()
		changes = append(changes, record.Change{Field: record.FieldID, Value: id})
	}
	if err := s.checkIDFree(id, path); err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		if content, err = record.Update(content, changes); err != nil {
			return nil, fmt.Errorf("familyservice: stamp %s: %w", path, err)
		}
	}

	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.indexFile(path, content); err != nil {
		return nil, err
	}
	s.Invalidate()
	return s.buildDetail(path, content)
}

// CreatePlaceholder writes a minimal person record from structured
// fields, for callers that do not author frontmatter themselves.
func (s *Service) CreatePlaceholder(ctx context.Context, path string, sk record.Skeleton) (*PersonDetail, error) {
	content, err := record.Render(sk)
	if err != nil {
		return nil, err
	}
	return s.CreatePerson(ctx, path, content)
}

// UpdatePerson writes updated content with optimistic concurrency. An id
// change is allowed only onto an id no other record owns; references held
// by other records toward the old id become orphans, never rewritten here.
func (s *Service) UpdatePerson(_ context.Context, path string, content []byte, ifMatch string) (*PersonDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	res, err := parser.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("familyservice: parse %s: %w", path, err)
	}
	if id := record.Decode(path, res).ID; id != "" {
		if err := s.checkIDFree(id, path); err != nil {
			return nil, err
		}
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.indexFile(path, content); err != nil {
		return nil, err
	}
	s.Invalidate()
	return s.buildDetail(path, content)
}

// DeletePerson removes a person record from storage and index. Dangling
// references left behind in other records are an expected outcome of the
// file model: the orphan scan lists them and ClearOrphans removes them on
// request, never implicitly.
func (s *Service) DeletePerson(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeletePerson(path); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// ListPersons returns paginated persons with optional research filter.
func (s *Service) ListPersons(_ context.Context, limit, offset int, research, sort string) ([]PersonListItem, int, error) {
	rows, total, err := s.db.ListPersons(limit, offset, research, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]PersonListItem, len(rows))
	for i, r := range rows {
		items[i] = PersonListItem{
			Path:      r.Path,
			ID:        r.ID,
			Name:      r.Name,
			Sex:       r.Sex,
			Born:      r.Born,
			Died:      r.Died,
			Research:  r.Research,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Resolve maps a display name to the records carrying it. Ambiguity is a
// first-class outcome in the result, never an error and never a guess.
func (s *Service) Resolve(_ context.Context, name string) (*index.Resolution, error) {
	return s.db.ResolveName(name)
}

// checkIDFree rejects an id already claimed by a different record.
func (s *Service) checkIDFree(id, path string) error {
	owner, ok, err := s.db.ResolveID(id)
	if err != nil {
		return err
	}
	if ok && owner != path {
		return fmt.Errorf("familyservice: id %s belongs to %s: %w", id, owner, apperr.ErrDuplicateID)
	}
	return nil
}

// indexFile parses data and upserts it into the index.
func (s *Service) indexFile(path string, data []byte) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	p := record.Decode(path, res)
	p.Checksum = checksum.Sum(data)
	p.UpdatedAt = time.Now().UTC()
	return s.db.UpsertPerson(p, res.Body)
}

// buildDetail constructs a PersonDetail from raw data without re-reading
// the file.
func (s *Service) buildDetail(path string, data []byte) (*PersonDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	p := record.Decode(path, res)
	var refs []string
	if p.ID != "" {
		if refs, err = s.db.Referrers(p.ID); err != nil {
			return nil, err
		}
	}
	if p.Name != "" {
		byName, err := s.db.ReferrersByName(p.Name)
		if err != nil {
			return nil, err
		}
		refs = mergePaths(refs, byName)
	}
	return &PersonDetail{
		Path:      path,
		Content:   string(data),
		Checksum:  checksum.Sum(data),
		Person:    p,
		Referrers: nonNilSlice(refs),
		UpdatedAt: time.Now(),
	}, nil
}

// recordType reads the explicit type marker, empty when absent.
func recordType(fm map[string]interface{}) string {
	if fm == nil {
		return ""
	}
	for _, key := range record.FieldNames(record.FieldType) {
		if v, ok := fm[key]; ok {
			return parser.StringValue(v)
		}
	}
	return ""
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// mergePaths unions two path lists, deduplicated and sorted.
func mergePaths(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, p := range a {
		seen[p] = true
	}
	for _, p := range b {
		if !seen[p] {
			seen[p] = true
			a = append(a, p)
		}
	}
	sort.Strings(a)
	return a
}
