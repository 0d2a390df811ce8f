package familyservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/linker"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/record"
)

// RelationshipRequest replaces the full target list of one slot on one
// source record. Targets may be canonical ids or [[wikilinks]].
type RelationshipRequest struct {
	SourceID string   `json:"source_id"`
	Type     string   `json:"type"`
	Targets  []string `json:"targets"`
	DryRun   bool     `json:"dry_run,omitempty"`
}

// RelationshipResult pairs the source-side edit with the reciprocal
// propagation outcome. Old and New are the resolved id lists whose diff
// drove the propagation.
type RelationshipResult struct {
	SourcePath    string         `json:"source_path"`
	SourceWritten bool           `json:"source_written"`
	Old           []string       `json:"old,omitempty"`
	New           []string       `json:"new,omitempty"`
	Propagation   *linker.Result `json:"propagation"`
}

// SetRelationship rewrites one relationship slot on the source record,
// then propagates reciprocals through the linker. Every target must
// resolve to exactly one id-bearing person before anything is written;
// an ambiguous wikilink aborts the whole edit rather than guessing. On
// dry runs both the source edit and the propagation are planned only.
func (s *Service) SetRelationship(ctx context.Context, req RelationshipRequest) (*RelationshipResult, error) {
	rt, err := models.ParseRelType(req.Type)
	if err != nil {
		return nil, fmt.Errorf("familyservice: %v: %w", err, apperr.ErrInvalid)
	}
	if req.SourceID == "" {
		return nil, fmt.Errorf("familyservice: set relationship: source id required: %w", apperr.ErrInvalid)
	}
	if rt.Exclusive() && len(req.Targets) > 1 {
		return nil, fmt.Errorf("familyservice: set relationship: %s holds a single reference, got %d: %w", rt, len(req.Targets), apperr.ErrInvalid)
	}

	srcPath, ok, err := s.db.ResolveID(req.SourceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("familyservice: source %s: %w", req.SourceID, apperr.ErrNotFound)
	}

	newRefs, newIDs, err := s.resolveTargets(req.Targets, req.SourceID)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Read(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("familyservice: source %s: %w", req.SourceID, apperr.ErrNotFound)
		}
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("familyservice: parse %s: %w", srcPath, err)
	}
	source := record.Decode(srcPath, res)
	oldIDs := s.knownIDs(record.SlotRefs(source, rt))

	out := &RelationshipResult{SourcePath: srcPath, Old: oldIDs, New: newIDs}

	updated, err := record.Update(data, s.linker.SlotChanges(rt, newRefs))
	if err != nil {
		return nil, fmt.Errorf("familyservice: rewrite %s: %w", srcPath, err)
	}
	out.SourceWritten = !bytes.Equal(updated, data)
	if !req.DryRun && out.SourceWritten {
		if err := s.store.Write(srcPath, updated); err != nil {
			return nil, err
		}
		if err := s.indexFile(srcPath, updated); err != nil {
			return nil, err
		}
	}

	prop, err := s.linker.ApplyChange(ctx, linker.Change{
		SourceID: req.SourceID,
		Type:     rt,
		Old:      oldIDs,
		New:      newIDs,
		DryRun:   req.DryRun,
	})
	if err != nil {
		return nil, err
	}
	out.Propagation = prop

	if !req.DryRun && (out.SourceWritten || len(prop.Writes) > 0) {
		s.Invalidate()
	}
	return out, nil
}

// Heal runs a reciprocity repair pass and refreshes the snapshot when
// repairs were applied.
func (s *Service) Heal(ctx context.Context, req linker.HealRequest) (*linker.HealResult, error) {
	res, err := s.linker.Heal(ctx, req)
	if err != nil {
		return nil, err
	}
	if !req.DryRun && len(res.Writes) > 0 {
		s.Invalidate()
	}
	return res, nil
}

// ClearOrphans removes dangling id references, previewable via DryRun.
func (s *Service) ClearOrphans(ctx context.Context, req linker.OrphanRequest) (*linker.OrphanResult, error) {
	res, err := s.linker.ClearOrphans(ctx, req)
	if err != nil {
		return nil, err
	}
	if !req.DryRun && len(res.Removals) > 0 {
		s.Invalidate()
	}
	return res, nil
}

// resolveTargets maps wire targets to resolved references. Every target
// must resolve: unknown ids, unknown names, names matching several
// records, and names matching an id-less record all abort the edit.
// Duplicate targets collapse to the first occurrence.
func (s *Service) resolveTargets(targets []string, sourceID string) ([]models.Ref, []string, error) {
	refs := make([]models.Ref, 0, len(targets))
	ids := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))

	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		var ref models.Ref
		if name, isLink := parser.ParseWikilink(t); isLink {
			resn, err := s.db.ResolveName(name)
			if err != nil {
				return nil, nil, err
			}
			switch resn.Status {
			case index.ResolutionAmbiguous:
				return nil, nil, fmt.Errorf("familyservice: target %q matches %d records: %w", name, len(resn.Candidates), apperr.ErrAmbiguous)
			case index.ResolutionNotFound:
				return nil, nil, fmt.Errorf("familyservice: target %q: %w", name, apperr.ErrNotFound)
			}
			if resn.ID == "" {
				return nil, nil, fmt.Errorf("familyservice: target %q resolves to %s, which has no canonical id: %w", name, resn.Path, apperr.ErrInvalid)
			}
			ref = models.Ref{ID: resn.ID, Name: name}
		} else {
			if _, found, err := s.db.ResolveID(t); err != nil {
				return nil, nil, err
			} else if !found {
				return nil, nil, fmt.Errorf("familyservice: target %s: %w", t, apperr.ErrNotFound)
			}
			ref = models.Ref{ID: t}
		}
		if ref.ID == sourceID {
			return nil, nil, fmt.Errorf("familyservice: set relationship: source cannot reference itself: %w", apperr.ErrInvalid)
		}
		if _, dup := seen[ref.ID]; dup {
			continue
		}
		seen[ref.ID] = struct{}{}
		refs = append(refs, ref)
		ids = append(ids, ref.ID)
	}
	return refs, ids, nil
}

// knownIDs resolves a slot's declared references to canonical ids. An
// entry that cannot be resolved is dropped from the diff; the slot
// rewrite replaces it on the source regardless, and no reciprocal
// cleanup is attempted for it.
func (s *Service) knownIDs(refs []models.Ref) []string {
	var ids []string
	for _, r := range refs {
		switch {
		case r.ID != "":
			if _, found, err := s.db.ResolveID(r.ID); err == nil && found {
				ids = append(ids, r.ID)
			}
		case r.Name != "":
			resn, err := s.db.ResolveName(r.Name)
			if err == nil && resn.Status == index.ResolutionFound && resn.ID != "" {
				ids = append(ids, resn.ID)
			}
		}
	}
	return ids
}
