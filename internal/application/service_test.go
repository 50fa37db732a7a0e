package application

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/atvirokodosprendimai/urllink/internal/domain"
)

// fakeRepo is an in-memory LinkRepository for service tests.
type fakeRepo struct {
	entities  map[uint]*domain.Entity
	dirs      map[uint]*domain.DirectoryNode
	audits    []domain.AuditLog
	nextID    uint
	nextDirID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		entities: map[uint]*domain.Entity{},
		dirs:     map[uint]*domain.DirectoryNode{},
	}
}

func (r *fakeRepo) RegisterEntity(_ context.Context, value domain.Entity) (domain.Entity, error) {
	r.nextID++
	value.ID = r.nextID
	if value.Attributes == nil {
		value.Attributes = map[string]string{}
	}
	stored := value
	r.entities[value.ID] = &stored
	return value, nil
}

func (r *fakeRepo) GetEntity(_ context.Context, id uint) (domain.Entity, error) {
	e, ok := r.entities[id]
	if !ok {
		return domain.Entity{}, domain.ErrNotFound
	}
	return *e, nil
}

func (r *fakeRepo) ListEntities(_ context.Context, kind, query string, limit, offset int) ([]domain.Entity, error) {
	ids := make([]uint, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]domain.Entity, 0)
	for _, id := range ids {
		e := r.entities[id]
		if kind != "" && e.Kind != kind {
			continue
		}
		if query != "" && !strings.Contains(e.Slug, query) {
			continue
		}
		out = append(out, *e)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) SetEntityAttribute(_ context.Context, entityID uint, key, value string) error {
	e, ok := r.entities[entityID]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Attributes == nil {
		e.Attributes = map[string]string{}
	}
	e.Attributes[key] = value
	return nil
}

func (r *fakeRepo) SavePathBinding(_ context.Context, entityID uint, path string) error {
	e, ok := r.entities[entityID]
	if !ok {
		return domain.ErrNotFound
	}
	e.CurrentPath = path
	kept := e.OldPaths[:0]
	for _, p := range e.OldPaths {
		if p != path {
			kept = append(kept, p)
		}
	}
	e.OldPaths = kept
	return nil
}

func (r *fakeRepo) RemovePathBinding(_ context.Context, entityID uint) error {
	e, ok := r.entities[entityID]
	if !ok {
		return domain.ErrNotFound
	}
	e.CurrentPath = ""
	return nil
}

func (r *fakeRepo) LoadBindings(_ context.Context) ([]domain.PathBinding, error) {
	out := make([]domain.PathBinding, 0)
	for _, e := range r.entities {
		if e.CurrentPath != "" {
			out = append(out, domain.PathBinding{Path: e.CurrentPath, EntityID: e.ID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

func (r *fakeRepo) AppendOldPath(_ context.Context, entityID uint, path string) error {
	e, ok := r.entities[entityID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, p := range e.OldPaths {
		if p == path {
			return nil
		}
	}
	e.OldPaths = append(e.OldPaths, path)
	return nil
}

func (r *fakeRepo) SetExtraRedirects(_ context.Context, entityID uint, paths []string) error {
	e, ok := r.entities[entityID]
	if !ok {
		return domain.ErrNotFound
	}
	e.ExtraRedirects = append([]string(nil), paths...)
	return nil
}

func (r *fakeRepo) FindRedirect(_ context.Context, path string) (uint, bool, error) {
	ids := make([]uint, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		e := r.entities[id]
		for _, p := range e.OldPaths {
			if p == path {
				return id, true, nil
			}
		}
	}
	for _, id := range ids {
		e := r.entities[id]
		for _, p := range e.ExtraRedirects {
			if p == path {
				return id, true, nil
			}
		}
	}
	return 0, false, nil
}

func (r *fakeRepo) CreateDirectory(_ context.Context, value domain.DirectoryNode) (domain.DirectoryNode, error) {
	r.nextDirID++
	value.ID = r.nextDirID
	stored := value
	r.dirs[value.ID] = &stored
	return value, nil
}

func (r *fakeRepo) GetDirectory(_ context.Context, id uint) (domain.DirectoryNode, error) {
	d, ok := r.dirs[id]
	if !ok {
		return domain.DirectoryNode{}, domain.ErrNotFound
	}
	return *d, nil
}

func (r *fakeRepo) ListDirectories(_ context.Context, query string, limit int) ([]domain.DirectoryNode, error) {
	out := make([]domain.DirectoryNode, 0, len(r.dirs))
	for _, d := range r.dirs {
		if query != "" && !strings.Contains(d.Name, query) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) UpdateDirectory(_ context.Context, id uint, name, pathSlug string) (domain.DirectoryNode, error) {
	d, ok := r.dirs[id]
	if !ok {
		return domain.DirectoryNode{}, domain.ErrNotFound
	}
	d.Name = name
	d.PathSlug = pathSlug
	return *d, nil
}

func (r *fakeRepo) DeleteDirectory(_ context.Context, id uint) error {
	if _, ok := r.dirs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.dirs, id)
	return nil
}

func (r *fakeRepo) CountDirectoryChildren(_ context.Context, id uint) (int64, error) {
	var count int64
	for _, d := range r.dirs {
		if d.ParentID != nil && *d.ParentID == id {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) CreateAuditLog(_ context.Context, value domain.AuditLog) error {
	value.ID = uint(len(r.audits) + 1)
	r.audits = append(r.audits, value)
	return nil
}

func (r *fakeRepo) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	out := append([]domain.AuditLog(nil), r.audits...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestService(t *testing.T) (*LinkService, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewLinkService(repo, "https://example.com", []string{"en", "lt"}), repo
}

func registerEntity(t *testing.T, svc *LinkService, slug string, attrs map[string]string) domain.Entity {
	t.Helper()
	e, err := svc.RegisterEntity(context.Background(), "post", slug, attrs)
	if err != nil {
		t.Fatalf("register %s: %v", slug, err)
	}
	return e
}

func TestUpdatePathServesAndRedirects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	e := registerEntity(t, svc, "blue-shirt", nil)

	if _, err := svc.UpdatePath(ctx, e.ID, "/old/shirt/", nil); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if _, err := svc.UpdatePath(ctx, e.ID, "new/shirt", nil); err != nil {
		t.Fatalf("second update: %v", err)
	}

	res := svc.Dispatch(ctx, "/new/shirt")
	if res.State != domain.DispatchServed || res.EntityID != e.ID {
		t.Fatalf("dispatch new = %+v", res)
	}
	res = svc.Dispatch(ctx, "old/shirt")
	if res.State != domain.DispatchRedirected || res.RedirectTo != "new/shirt" {
		t.Fatalf("dispatch old = %+v", res)
	}
}

func TestUpdatePathReclaimedOldPathServesNewOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := registerEntity(t, svc, "first", nil)
	b := registerEntity(t, svc, "second", nil)

	if _, err := svc.UpdatePath(ctx, a.ID, "shop/shirts", nil); err != nil {
		t.Fatalf("bind a: %v", err)
	}
	if _, err := svc.UpdatePath(ctx, a.ID, "shop/tees", nil); err != nil {
		t.Fatalf("move a: %v", err)
	}
	// b reclaims a's historical path; the live mapping must win
	if _, err := svc.UpdatePath(ctx, b.ID, "shop/shirts", nil); err != nil {
		t.Fatalf("bind b: %v", err)
	}

	res := svc.Dispatch(ctx, "shop/shirts")
	if res.State != domain.DispatchServed || res.EntityID != b.ID {
		t.Fatalf("dispatch = %+v", res)
	}
}

func TestUpdatePathOverwriteRecordsLoserHistory(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	a := registerEntity(t, svc, "loser", nil)
	b := registerEntity(t, svc, "winner", nil)

	if _, err := svc.UpdatePath(ctx, a.ID, "shop/shirts", nil); err != nil {
		t.Fatalf("bind a: %v", err)
	}
	if _, err := svc.UpdatePath(ctx, b.ID, "shop/shirts", nil); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	stored, err := repo.GetEntity(ctx, a.ID)
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if stored.CurrentPath != "" {
		t.Fatalf("loser still bound to %q", stored.CurrentPath)
	}
	if len(stored.OldPaths) != 1 || stored.OldPaths[0] != "shop/shirts" {
		t.Fatalf("loser history = %v", stored.OldPaths)
	}
}

func TestUpdatePathMissingEntity(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.UpdatePath(context.Background(), 99, "a/b", nil); !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("want ErrEntityNotFound, got %v", err)
	}
}

func TestDispatchExtraRedirect(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	e := registerEntity(t, svc, "promo", nil)

	if _, err := svc.UpdatePath(ctx, e.ID, "landing/promo", []string{"/summer-sale/"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	res := svc.Dispatch(ctx, "summer-sale")
	if res.State != domain.DispatchRedirected || res.RedirectTo != "landing/promo" {
		t.Fatalf("dispatch = %+v", res)
	}
}

func TestDispatchStripsLocalePrefix(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	e := registerEntity(t, svc, "about", nil)
	if _, err := svc.UpdatePath(ctx, e.ID, "company/about", nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	res := svc.Dispatch(ctx, "/en/company/about")
	if res.State != domain.DispatchServed || res.EntityID != e.ID {
		t.Fatalf("dispatch = %+v", res)
	}
	// unknown first segment is not a locale, left untouched
	res = svc.Dispatch(ctx, "/de/company/about")
	if res.State != domain.DispatchUnmatched {
		t.Fatalf("dispatch unknown locale = %+v", res)
	}
}

func TestDispatchUnmatched(t *testing.T) {
	svc, _ := newTestService(t)
	res := svc.Dispatch(context.Background(), "nothing/here")
	if res.State != domain.DispatchUnmatched {
		t.Fatalf("dispatch = %+v", res)
	}
}

func TestPreviewLenientOnMissingFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	e := registerEntity(t, svc, "blue-shirt", map[string]string{"sku": "SKU-42"})

	got, err := svc.Preview(ctx, e.ID, "products/{sku}-{postname}")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got != "products/sku-42-blue-shirt" {
		t.Fatalf("preview = %q", got)
	}

	// missing entity degrades instead of failing
	got, err = svc.Preview(ctx, 999, "shop/{postname}")
	if err != nil {
		t.Fatalf("preview missing: %v", err)
	}
	if got != "shop" {
		t.Fatalf("preview missing = %q", got)
	}
}

func TestBulkRenameDryRunDoesNotMutate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	e := registerEntity(t, svc, "shirt", nil)
	if _, err := svc.UpdatePath(ctx, e.ID, "old/shirt", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	dir, err := svc.CreateDirectory(ctx, "Shop", "shop", nil)
	if err != nil {
		t.Fatalf("dir: %v", err)
	}

	items, err := svc.BulkRename(ctx, domain.BulkRenameInput{
		EntityIDs:         []uint{e.ID},
		TargetDirectoryID: dir.ID,
		Strategy:          domain.StrategyReplace,
		DryRun:            true,
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(items) != 1 || items[0].NewPath != "shop/shirt" || items[0].Applied {
		t.Fatalf("items = %+v", items)
	}

	stored, _ := repo.GetEntity(ctx, e.ID)
	if stored.CurrentPath != "old/shirt" {
		t.Fatalf("dry run mutated path to %q", stored.CurrentPath)
	}
	if res := svc.Dispatch(ctx, "shop/shirt"); res.State != domain.DispatchUnmatched {
		t.Fatalf("dry run mutated map: %+v", res)
	}
}

func TestBulkRenamePartialConflict(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	blocker := registerEntity(t, svc, "blocker", nil)
	if _, err := svc.UpdatePath(ctx, blocker.ID, "shop/shirt", nil); err != nil {
		t.Fatalf("update blocker: %v", err)
	}
	a := registerEntity(t, svc, "shirt", nil)
	if _, err := svc.UpdatePath(ctx, a.ID, "old/shirt", nil); err != nil {
		t.Fatalf("update a: %v", err)
	}
	b := registerEntity(t, svc, "pants", nil)
	if _, err := svc.UpdatePath(ctx, b.ID, "old/pants", nil); err != nil {
		t.Fatalf("update b: %v", err)
	}
	dir, err := svc.CreateDirectory(ctx, "Shop", "shop", nil)
	if err != nil {
		t.Fatalf("dir: %v", err)
	}

	items, err := svc.BulkRename(ctx, domain.BulkRenameInput{
		EntityIDs:         []uint{a.ID, b.ID},
		TargetDirectoryID: dir.ID,
		Strategy:          domain.StrategyReplace,
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if !items[0].Conflict || items[0].Applied {
		t.Fatalf("conflicting item = %+v", items[0])
	}
	if items[1].Conflict || !items[1].Applied || items[1].NewPath != "shop/pants" {
		t.Fatalf("clean item = %+v", items[1])
	}

	stored, _ := repo.GetEntity(ctx, a.ID)
	if stored.CurrentPath != "old/shirt" {
		t.Fatalf("conflicting entity moved to %q", stored.CurrentPath)
	}
	if res := svc.Dispatch(ctx, "old/pants"); res.State != domain.DispatchRedirected || res.RedirectTo != "shop/pants" {
		t.Fatalf("redirect after bulk = %+v", res)
	}
}

func TestBulkRenameReplaceStrategies(t *testing.T) {
	cases := []struct {
		oldPrefix string
		oldPath   string
		want      string
	}{
		{"archive", "archive/2019/shirt", "shop/2019/shirt"},
		{"", "archive/shirt", "shop/shirt"},
		{"", "shirt", "shop/shirt"}, // single segment keeps its slug
		{"other", "archive/shirt", "shop/shirt"},
	}
	for _, c := range cases {
		got := renameTarget(domain.StrategyReplace, "shop", c.oldPrefix, c.oldPath)
		if got != c.want {
			t.Fatalf("replace(%q, %q) = %q, want %q", c.oldPrefix, c.oldPath, got, c.want)
		}
	}
	if got := renameTarget(domain.StrategyPrefix, "shop", "", "archive/shirt"); got != "shop/archive/shirt" {
		t.Fatalf("prefix = %q", got)
	}
}

func TestBulkRenameUnboundEntityUsesSlug(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	e := registerEntity(t, svc, "fresh-post", nil)
	dir, err := svc.CreateDirectory(ctx, "Blog", "blog", nil)
	if err != nil {
		t.Fatalf("dir: %v", err)
	}

	items, err := svc.BulkRename(ctx, domain.BulkRenameInput{
		EntityIDs:         []uint{e.ID},
		TargetDirectoryID: dir.ID,
		Strategy:          domain.StrategyPrefix,
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if items[0].NewPath != "blog/fresh-post" || !items[0].Applied {
		t.Fatalf("item = %+v", items[0])
	}
}

func TestBulkRenameDirectoryWithoutSlug(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	e := registerEntity(t, svc, "shirt", nil)
	dir, err := svc.CreateDirectory(ctx, "No Slug", "", nil)
	if err != nil {
		t.Fatalf("dir: %v", err)
	}

	_, err = svc.BulkRename(ctx, domain.BulkRenameInput{
		EntityIDs:         []uint{e.ID},
		TargetDirectoryID: dir.ID,
		Strategy:          domain.StrategyPrefix,
	})
	if !errors.Is(err, domain.ErrDirectoryMissingSlug) {
		t.Fatalf("want ErrDirectoryMissingSlug, got %v", err)
	}
}

func TestBulkApplyTemplate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := registerEntity(t, svc, "blue-shirt", map[string]string{"sku": "SKU-1"})
	registerEntity(t, svc, "no-sku", nil)

	items, err := svc.BulkApplyTemplate(ctx, domain.BulkApplyInput{
		Kind:     "post",
		Template: "products/{sku}",
	})
	if err != nil {
		t.Fatalf("bulk apply: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].NewPath != "products/sku-1" || !items[0].Applied {
		t.Fatalf("first = %+v", items[0])
	}
	// missing field degrades to empty substitution, not an error
	if items[1].NewPath != "products" {
		t.Fatalf("second = %+v", items[1])
	}

	res := svc.Dispatch(ctx, "products/sku-1")
	if res.State != domain.DispatchServed || res.EntityID != a.ID {
		t.Fatalf("dispatch = %+v", res)
	}
}

func TestAttachToDirectoryKeepsTrailingSegment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	e := registerEntity(t, svc, "shirt", nil)
	if _, err := svc.UpdatePath(ctx, e.ID, "old/blue-shirt", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	dir, err := svc.CreateDirectory(ctx, "Shop", "shop/clothing", nil)
	if err != nil {
		t.Fatalf("dir: %v", err)
	}

	updated, err := svc.AttachToDirectory(ctx, dir.ID, e.ID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if updated.CurrentPath != "shop/clothing/blue-shirt" {
		t.Fatalf("path = %q", updated.CurrentPath)
	}
	if res := svc.Dispatch(ctx, "old/blue-shirt"); res.State != domain.DispatchRedirected {
		t.Fatalf("redirect = %+v", res)
	}
}

func TestDeleteDirectoryWithChildren(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	parent, err := svc.CreateDirectory(ctx, "Parent", "parent", nil)
	if err != nil {
		t.Fatalf("parent: %v", err)
	}
	if _, err := svc.CreateDirectory(ctx, "Child", "parent/child", &parent.ID); err != nil {
		t.Fatalf("child: %v", err)
	}

	if err := svc.DeleteDirectory(ctx, parent.ID); !errors.Is(err, domain.ErrHasChildren) {
		t.Fatalf("want ErrHasChildren, got %v", err)
	}
}

func TestCreateDirectoryMissingParent(t *testing.T) {
	svc, _ := newTestService(t)
	missing := uint(42)
	if _, err := svc.CreateDirectory(context.Background(), "Orphan", "orphan", &missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRebuildRestoresMapFromStore(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	e := registerEntity(t, svc, "shirt", nil)
	if _, err := svc.UpdatePath(ctx, e.ID, "shop/shirt", nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	// a fresh service over the same store starts cold, then rebuilds
	fresh := NewLinkService(repo, "https://example.com", nil)
	if res := fresh.Dispatch(ctx, "shop/shirt"); res.State != domain.DispatchUnmatched {
		t.Fatalf("cold dispatch = %+v", res)
	}
	if _, err := fresh.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res := fresh.Dispatch(ctx, "shop/shirt"); res.State != domain.DispatchServed {
		t.Fatalf("warm dispatch = %+v", res)
	}
}

func TestCanonicalURL(t *testing.T) {
	svc, _ := newTestService(t)
	if got := svc.CanonicalURL("shop/shirt"); got != "https://example.com/shop/shirt" {
		t.Fatalf("url = %q", got)
	}
	if got := svc.CanonicalURL(""); got != "https://example.com" {
		t.Fatalf("empty url = %q", got)
	}
}
