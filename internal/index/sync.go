package index

import (
	"log/slog"
	"time"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/record"
	"github.com/starford/othala/internal/storage"
)

// indexOutcome reports what indexFile did with a file.
type indexOutcome int

const (
	// outcomeIgnored: not a person record and was not indexed before.
	outcomeIgnored indexOutcome = iota
	// outcomeIndexed: parsed as a person and upserted.
	outcomeIndexed
	// outcomeRemoved: previously indexed but no longer a person record.
	outcomeRemoved
)

// Sync walks the vault and brings the index up to date:
//   - new/changed person records are parsed and upserted
//   - files removed from disk are deleted from the index
//   - files that stopped being person records are deleted as well
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		outcome, err := indexFile(db, logger, m.Path, data, m.UpdatedAt)
		if err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else if outcome == outcomeIndexed {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeletePerson(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile parses data and upserts it into the DB when it is a person
// record. Vault files that are not person records (notes, sources, places)
// are left out of the index. A record claiming a canonical id another path
// already owns is indexed anyway, with the clash logged; resolution keeps
// answering with the owning path and the validator reports the clash as an
// error finding.
func indexFile(db *DB, logger *slog.Logger, path string, data []byte, mtime time.Time) (indexOutcome, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return outcomeIgnored, err
	}

	if !record.IsPerson(res.Frontmatter) {
		prev, _ := db.GetChecksum(path)
		if prev == "" {
			return outcomeIgnored, nil
		}
		if err := db.DeletePerson(path); err != nil {
			return outcomeIgnored, err
		}
		return outcomeRemoved, nil
	}

	p := record.Decode(path, res)
	if p.ID != "" {
		if owner, ok, resErr := db.ResolveID(p.ID); resErr == nil && ok && owner != path {
			logger.Warn("index: duplicate canonical id",
				slog.String("id", p.ID),
				slog.String("path", path),
				slog.String("owner", owner))
		}
	}
	p.Checksum = checksum.Sum(data)
	p.UpdatedAt = mtime
	if err := db.UpsertPerson(p, res.Body); err != nil {
		return outcomeIgnored, err
	}
	return outcomeIndexed, nil
}
