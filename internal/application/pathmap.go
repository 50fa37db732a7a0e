package application

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/atvirokodosprendimai/urllink/internal/domain"
)

// pathMap is the shared lookup table crossing request boundaries: many
// concurrent readers, occasional writers. Readers dereference an immutable
// snapshot through an atomic pointer and never block; writers serialize on
// a mutex and publish a fresh snapshot per mutation.
type pathMap struct {
	mu            sync.Mutex
	snap          atomic.Pointer[mapSnapshot]
	invalidations chan struct{}
}

type mapSnapshot struct {
	byPath   map[string]uint
	byEntity map[uint]string
}

func newPathMap() *pathMap {
	m := &pathMap{invalidations: make(chan struct{}, 1)}
	m.snap.Store(&mapSnapshot{byPath: map[string]uint{}, byEntity: map[uint]string{}})
	return m
}

// Lookup resolves a normalized path to its owning entity id.
func (m *pathMap) Lookup(path string) (uint, bool) {
	id, ok := m.snap.Load().byPath[path]
	return id, ok
}

// EntityPath returns the canonical path currently bound to an entity.
func (m *pathMap) EntityPath(entityID uint) (string, bool) {
	path, ok := m.snap.Load().byEntity[entityID]
	return path, ok
}

// Owner reports who owns a path without considering the caller. Used by
// bulk operations for conflict checks.
func (m *pathMap) Owner(path string) (uint, bool) {
	return m.Lookup(path)
}

// Upsert removes the entity's existing binding and, if newPath is
// non-empty, inserts the new one. When newPath is owned by a different
// entity it either fails with ErrPathConflict or, with overwrite set,
// unbinds the previous owner.
func (m *pathMap) Upsert(entityID uint, newPath string, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.snap.Load()
	if owner, ok := cur.byPath[newPath]; ok && newPath != "" && owner != entityID && !overwrite {
		return domain.ErrPathConflict
	}

	next := cur.clone()
	if prev, ok := next.byEntity[entityID]; ok {
		delete(next.byPath, prev)
		delete(next.byEntity, entityID)
	}
	if newPath != "" {
		if owner, ok := next.byPath[newPath]; ok && owner != entityID {
			delete(next.byEntity, owner)
		}
		next.byPath[newPath] = entityID
		next.byEntity[entityID] = newPath
	}
	m.snap.Store(next)
	m.notify()
	return nil
}

// Remove drops the entity's binding if present.
func (m *pathMap) Remove(entityID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.snap.Load()
	prev, ok := cur.byEntity[entityID]
	if !ok {
		return
	}
	next := cur.clone()
	delete(next.byPath, prev)
	delete(next.byEntity, entityID)
	m.snap.Store(next)
	m.notify()
}

// Rebuild recomputes the whole table from the authoritative bindings and
// swaps it in atomically. Duplicate paths keep the first-seen winner;
// dropped bindings are returned and logged.
func (m *pathMap) Rebuild(bindings []domain.PathBinding) []domain.PathBinding {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := &mapSnapshot{
		byPath:   make(map[string]uint, len(bindings)),
		byEntity: make(map[uint]string, len(bindings)),
	}
	dropped := make([]domain.PathBinding, 0)
	for _, b := range bindings {
		path := domain.NormalizePath(b.Path)
		if path == "" {
			continue
		}
		if _, taken := next.byPath[path]; taken {
			dropped = append(dropped, b)
			continue
		}
		if _, bound := next.byEntity[b.EntityID]; bound {
			dropped = append(dropped, b)
			continue
		}
		next.byPath[path] = b.EntityID
		next.byEntity[b.EntityID] = path
	}
	for _, d := range dropped {
		log.Printf("path map rebuild: dropped duplicate binding %q -> %d", d.Path, d.EntityID)
	}
	m.snap.Store(next)
	m.notify()
	return dropped
}

// Snapshot copies both directions of the current table.
func (m *pathMap) Snapshot() (map[string]uint, map[uint]string) {
	cur := m.snap.Load()
	byPath := make(map[string]uint, len(cur.byPath))
	for k, v := range cur.byPath {
		byPath[k] = v
	}
	byEntity := make(map[uint]string, len(cur.byEntity))
	for k, v := range cur.byEntity {
		byEntity[k] = v
	}
	return byPath, byEntity
}

// Invalidations signals after every mutation so the host request layer can
// refresh any cached routing structure. Sends never block.
func (m *pathMap) Invalidations() <-chan struct{} {
	return m.invalidations
}

func (m *pathMap) notify() {
	select {
	case m.invalidations <- struct{}{}:
	default:
	}
}

func (s *mapSnapshot) clone() *mapSnapshot {
	next := &mapSnapshot{
		byPath:   make(map[string]uint, len(s.byPath)+1),
		byEntity: make(map[uint]string, len(s.byEntity)+1),
	}
	for k, v := range s.byPath {
		next.byPath[k] = v
	}
	for k, v := range s.byEntity {
		next.byEntity[k] = v
	}
	return next
}
