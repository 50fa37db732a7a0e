package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/urllink/internal/domain"
)

// LinkService owns the routing state: the copy-on-write path map shared by
// request handlers, the persistent repository behind it, and every
// editorial operation that mutates path assignments. All writes funnel
// through a single mutex so the map and the store stay consistent.
type LinkService struct {
	repo    domain.LinkRepository
	paths   *pathMap
	baseURL string
	locales map[string]struct{}
	writeMu sync.Mutex
}

func NewLinkService(repo domain.LinkRepository, baseURL string, locales []string) *LinkService {
	localeSet := make(map[string]struct{}, len(locales))
	for _, l := range locales {
		trimmed := strings.ToLower(strings.TrimSpace(l))
		if trimmed == "" {
			continue
		}
		localeSet[trimmed] = struct{}{}
	}
	return &LinkService{
		repo:    repo,
		paths:   newPathMap(),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		locales: localeSet,
	}
}

// Rebuild recomputes the in-memory path map from the authoritative entity
// bindings. Returns how many duplicate bindings were dropped.
func (s *LinkService) Rebuild(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	bindings, err := s.repo.LoadBindings(ctx)
	if err != nil {
		return 0, err
	}
	dropped := s.paths.Rebuild(bindings)
	s.writeAudit(ctx, "link.map.rebuild", "path_map", nil, fmt.Sprintf("%d bindings, %d dropped", len(bindings), len(dropped)))
	return len(dropped), nil
}

// Preview resolves a path template against an entity without mutating
// anything. A missing entity degrades to empty-field substitution.
func (s *LinkService) Preview(ctx context.Context, entityID uint, template string) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", errors.New("template is required")
	}
	entity, err := s.repo.GetEntity(ctx, entityID)
	if err != nil {
		entity = domain.Entity{ID: entityID}
	}
	return domain.ResolveTemplate(entity, template), nil
}

// UpdatePath is the direct single-entity edit: overwrite-allowed, records
// rename history, and optionally replaces the entity's extra redirects.
func (s *LinkService) UpdatePath(ctx context.Context, entityID uint, rawPath string, extraRedirects []string) (domain.Entity, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entity, err := s.repo.GetEntity(ctx, entityID)
	if err != nil {
		return domain.Entity{}, domain.ErrEntityNotFound
	}

	newPath := domain.NormalizePath(rawPath)
	if err := s.applyBinding(ctx, entity, newPath, true); err != nil {
		return domain.Entity{}, err
	}
	if extraRedirects != nil {
		normalized := make([]string, 0, len(extraRedirects))
		for _, raw := range extraRedirects {
			p := domain.NormalizePath(raw)
			if p == "" {
				continue
			}
			normalized = append(normalized, p)
		}
		if err := s.repo.SetExtraRedirects(ctx, entityID, normalized); err != nil {
			return domain.Entity{}, err
		}
	}

	s.writeAudit(ctx, "link.path.update", "entity", &entityID, newPath)
	return s.repo.GetEntity(ctx, entityID)
}

// Dispatch resolves an inbound request path: direct hit on the live map,
// then the redirect archive, then unmatched. The live mapping is
// authoritative since a historical path may have been reclaimed.
func (s *LinkService) Dispatch(ctx context.Context, rawPath string) domain.DispatchResult {
	p := s.stripLocale(domain.NormalizePath(rawPath))
	result := domain.DispatchResult{State: domain.DispatchUnmatched, Path: p}
	if p == "" {
		return result
	}

	if id, ok := s.paths.Lookup(p); ok {
		if _, err := s.repo.GetEntity(ctx, id); err == nil {
			result.State = domain.DispatchServed
			result.EntityID = id
			return result
		}
		// stale binding: entity gone, tolerated until the next rebuild
	}

	if id, ok, err := s.repo.FindRedirect(ctx, p); err == nil && ok {
		if current, bound := s.paths.EntityPath(id); bound && current != p {
			result.State = domain.DispatchRedirected
			result.EntityID = id
			result.RedirectTo = current
			return result
		}
	}

	return result
}

// BulkRename moves a selection of entities under a target directory. One
// entity's conflict does not block the others; conflicting entries are
// never written, dry-run writes nothing at all.
func (s *LinkService) BulkRename(ctx context.Context, in domain.BulkRenameInput) ([]domain.BulkRenameItem, error) {
	if in.Strategy != domain.StrategyReplace && in.Strategy != domain.StrategyPrefix {
		return nil, fmt.Errorf("unknown strategy %q", in.Strategy)
	}
	dir, err := s.repo.GetDirectory(ctx, in.TargetDirectoryID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	dirSlug := domain.NormalizePath(dir.PathSlug)
	if dirSlug == "" {
		return nil, domain.ErrDirectoryMissingSlug
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	oldPrefix := domain.NormalizePath(in.OldPrefix)
	items := make([]domain.BulkRenameItem, 0, len(in.EntityIDs))
	for _, entityID := range in.EntityIDs {
		item := domain.BulkRenameItem{EntityID: entityID}
		entity, err := s.repo.GetEntity(ctx, entityID)
		if err != nil {
			items = append(items, item)
			continue
		}

		oldPath := domain.NormalizePath(entity.CurrentPath)
		if oldPath == "" {
			oldPath = entity.Slug
		}
		item.OldPath = oldPath
		item.NewPath = renameTarget(in.Strategy, dirSlug, oldPrefix, oldPath)

		if owner, ok := s.paths.Owner(item.NewPath); ok && owner != entityID {
			item.Conflict = true
			items = append(items, item)
			continue
		}
		if !in.DryRun {
			if err := s.applyBinding(ctx, entity, item.NewPath, false); err != nil {
				if errors.Is(err, domain.ErrPathConflict) {
					item.Conflict = true
					items = append(items, item)
					continue
				}
				return nil, err
			}
			item.Applied = true
		}
		items = append(items, item)
	}

	if !in.DryRun {
		s.writeAudit(ctx, "link.bulk.rename", "directory", &in.TargetDirectoryID, fmt.Sprintf("strategy=%s entities=%d", in.Strategy, len(in.EntityIDs)))
	}
	return items, nil
}

// renameTarget computes the new path for one entity under the bulk rename
// strategies. With replace, a single-segment path whose prefix does not
// match is kept whole rather than dropped, so the original slug survives.
func renameTarget(strategy domain.RenameStrategy, dirSlug, oldPrefix, oldPath string) string {
	if strategy == domain.StrategyPrefix {
		return domain.JoinPath(dirSlug, oldPath)
	}
	if oldPrefix != "" && strings.HasPrefix(oldPath, oldPrefix+"/") {
		return domain.JoinPath(dirSlug, strings.TrimPrefix(oldPath, oldPrefix+"/"))
	}
	_, rest := domain.SplitFirstSegment(oldPath)
	if rest == "" {
		rest = oldPath
	}
	return domain.JoinPath(dirSlug, rest)
}

// BulkApplyTemplate applies a path template across an entity selection
// with the same conflict and dry-run semantics as BulkRename. Entities
// whose template resolves to an empty path are skipped, never persisted.
func (s *LinkService) BulkApplyTemplate(ctx context.Context, in domain.BulkApplyInput) ([]domain.BulkRenameItem, error) {
	if strings.TrimSpace(in.Template) == "" {
		return nil, errors.New("template is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	entities, err := s.repo.ListEntities(ctx, in.Kind, "", limit, in.Offset)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	items := make([]domain.BulkRenameItem, 0, len(entities))
	for _, entity := range entities {
		item := domain.BulkRenameItem{
			EntityID: entity.ID,
			OldPath:  domain.NormalizePath(entity.CurrentPath),
			NewPath:  domain.ResolveTemplate(entity, in.Template),
		}
		if item.NewPath == "" {
			items = append(items, item)
			continue
		}
		if owner, ok := s.paths.Owner(item.NewPath); ok && owner != entity.ID {
			item.Conflict = true
			items = append(items, item)
			continue
		}
		if !in.DryRun {
			if err := s.applyBinding(ctx, entity, item.NewPath, false); err != nil {
				if errors.Is(err, domain.ErrPathConflict) {
					item.Conflict = true
					items = append(items, item)
					continue
				}
				return nil, err
			}
			item.Applied = true
		}
		items = append(items, item)
	}

	if !in.DryRun {
		s.writeAudit(ctx, "link.bulk.template", "entity", nil, fmt.Sprintf("template=%s entities=%d", in.Template, len(entities)))
	}
	return items, nil
}

// AttachToDirectory binds an entity under a directory's path prefix,
// keeping the entity's trailing segment (or native slug when unbound).
// Overwrite-allowed, like a direct edit.
func (s *LinkService) AttachToDirectory(ctx context.Context, directoryID, entityID uint) (domain.Entity, error) {
	dir, err := s.repo.GetDirectory(ctx, directoryID)
	if err != nil {
		return domain.Entity{}, domain.ErrNotFound
	}
	if domain.NormalizePath(dir.PathSlug) == "" {
		return domain.Entity{}, domain.ErrDirectoryMissingSlug
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entity, err := s.repo.GetEntity(ctx, entityID)
	if err != nil {
		return domain.Entity{}, domain.ErrEntityNotFound
	}
	trailing := domain.LastSegment(domain.NormalizePath(entity.CurrentPath))
	if trailing == "" {
		trailing = entity.Slug
	}
	newPath := domain.JoinPath(dir.PathSlug, trailing)
	if err := s.applyBinding(ctx, entity, newPath, true); err != nil {
		return domain.Entity{}, err
	}

	s.writeAudit(ctx, "link.path.attach", "entity", &entityID, newPath)
	return s.repo.GetEntity(ctx, entityID)
}

// applyBinding is the single write path shared by direct edits, attach and
// the bulk engine, so rename history stays consistent everywhere. Caller
// holds writeMu.
func (s *LinkService) applyBinding(ctx context.Context, entity domain.Entity, newPath string, overwrite bool) error {
	oldPath := domain.NormalizePath(entity.CurrentPath)
	if newPath != "" {
		if owner, ok := s.paths.Owner(newPath); ok && owner != entity.ID {
			if !overwrite {
				return domain.ErrPathConflict
			}
			if err := s.repo.AppendOldPath(ctx, owner, newPath); err != nil {
				return err
			}
			if err := s.repo.RemovePathBinding(ctx, owner); err != nil {
				return err
			}
		}
	}
	if oldPath != "" && oldPath != newPath {
		if err := s.repo.AppendOldPath(ctx, entity.ID, oldPath); err != nil {
			return err
		}
	}
	if newPath == "" {
		if err := s.repo.RemovePathBinding(ctx, entity.ID); err != nil {
			return err
		}
	} else if err := s.repo.SavePathBinding(ctx, entity.ID, newPath); err != nil {
		return err
	}
	return s.paths.Upsert(entity.ID, newPath, overwrite)
}

// MapSnapshot exposes both directions of the live table for the
// administrative map endpoint.
func (s *LinkService) MapSnapshot() (map[string]uint, map[uint]string) {
	return s.paths.Snapshot()
}

// Invalidations signals whenever the path map changes.
func (s *LinkService) Invalidations() <-chan struct{} {
	return s.paths.Invalidations()
}

// CanonicalURL renders the public URL for a stored path.
func (s *LinkService) CanonicalURL(path string) string {
	if path == "" {
		return s.baseURL
	}
	return s.baseURL + "/" + path
}

func (s *LinkService) stripLocale(path string) string {
	if len(s.locales) == 0 {
		return path
	}
	head, rest := domain.SplitFirstSegment(path)
	if _, ok := s.locales[strings.ToLower(head)]; ok && rest != "" {
		return rest
	}
	return path
}

func (s *LinkService) RegisterEntity(ctx context.Context, kind, slug string, attributes map[string]string) (domain.Entity, error) {
	slug = domain.Slugify(slug)
	if slug == "" {
		return domain.Entity{}, errors.New("slug is required")
	}
	return s.repo.RegisterEntity(ctx, domain.Entity{
		Kind:       defaultString(kind, "post"),
		Slug:       slug,
		Attributes: attributes,
	})
}

func (s *LinkService) GetEntity(ctx context.Context, id uint) (domain.Entity, error) {
	return s.repo.GetEntity(ctx, id)
}

func (s *LinkService) ListEntities(ctx context.Context, kind, query string, limit, offset int) ([]domain.Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListEntities(ctx, kind, query, limit, offset)
}

func (s *LinkService) SetEntityAttribute(ctx context.Context, entityID uint, key, value string) error {
	if entityID == 0 || strings.TrimSpace(key) == "" {
		return errors.New("entity_id and key are required")
	}
	if _, err := s.repo.GetEntity(ctx, entityID); err != nil {
		return domain.ErrEntityNotFound
	}
	if err := s.repo.SetEntityAttribute(ctx, entityID, strings.TrimSpace(key), value); err != nil {
		return err
	}
	s.writeAudit(ctx, "entity.attribute.set", "entity", &entityID, key)
	return nil
}

func (s *LinkService) CreateDirectory(ctx context.Context, name, pathSlug string, parentID *uint) (domain.DirectoryNode, error) {
	if strings.TrimSpace(name) == "" {
		return domain.DirectoryNode{}, errors.New("name is required")
	}
	if parentID != nil {
		if _, err := s.repo.GetDirectory(ctx, *parentID); err != nil {
			return domain.DirectoryNode{}, fmt.Errorf("parent directory %d: %w", *parentID, domain.ErrNotFound)
		}
	}
	dir, err := s.repo.CreateDirectory(ctx, domain.DirectoryNode{
		Name:     strings.TrimSpace(name),
		PathSlug: domain.NormalizePath(pathSlug),
		ParentID: parentID,
	})
	if err != nil {
		return domain.DirectoryNode{}, err
	}
	s.writeAudit(ctx, "dir.create", "directory", &dir.ID, dir.Name)
	return dir, nil
}

func (s *LinkService) ListDirectories(ctx context.Context, query string, limit int) ([]domain.DirectoryNode, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListDirectories(ctx, query, limit)
}

func (s *LinkService) RenameDirectory(ctx context.Context, id uint, newName, newPathSlug string) (domain.DirectoryNode, error) {
	if strings.TrimSpace(newName) == "" {
		return domain.DirectoryNode{}, errors.New("name is required")
	}
	dir, err := s.repo.UpdateDirectory(ctx, id, strings.TrimSpace(newName), domain.NormalizePath(newPathSlug))
	if err != nil {
		return domain.DirectoryNode{}, err
	}
	s.writeAudit(ctx, "dir.rename", "directory", &id, dir.Name)
	return dir, nil
}

func (s *LinkService) DeleteDirectory(ctx context.Context, id uint) error {
	count, err := s.repo.CountDirectoryChildren(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrHasChildren
	}
	if err := s.repo.DeleteDirectory(ctx, id); err != nil {
		return err
	}
	s.writeAudit(ctx, "dir.delete", "directory", &id, "")
	return nil
}

func (s *LinkService) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *LinkService) writeAudit(ctx context.Context, action, targetType string, targetID *uint, metadata string) {
	_ = s.repo.CreateAuditLog(ctx, domain.AuditLog{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
