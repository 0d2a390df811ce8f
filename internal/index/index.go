package index

import "github.com/starford/othala/internal/models"

// PersonIndex defines the interface for person indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type PersonIndex interface {
	UpsertPerson(p *models.Person, body string) error
	DeletePerson(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	GetPerson(path string) (*models.Person, error)
	AllPersons() ([]*models.Person, error)
	ListPersons(limit, offset int, research, sort string) ([]PersonRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	ResolveID(id string) (string, bool, error)
	ResolveName(name string) (*Resolution, error)
	Referrers(targetID string) ([]string, error)
	ReferrersByName(name string) ([]string, error)
	Close() error
}

// Verify *DB satisfies PersonIndex at compile time.
var _ PersonIndex = (*DB)(nil)
