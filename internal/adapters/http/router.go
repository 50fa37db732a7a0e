package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/urllink/internal/application"
	"github.com/atvirokodosprendimai/urllink/internal/domain"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *application.LinkService
}

// NewRouter wires the management API under /api/urllink and hands every
// other request to the dispatcher, so the same listener serves both the
// control surface and the routed content paths.
func NewRouter(service *application.LinkService) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()

	r.Route("/api/urllink", func(api chi.Router) {
		api.Post("/preview", h.handleAPIPreview)
		api.Post("/update", h.handleAPIUpdate)
		api.Get("/map", h.handleAPIMap)
		api.Post("/rebuild", h.handleAPIRebuild)
		api.Post("/bulk-apply", h.handleAPIBulkApply)

		api.Get("/entities", h.handleAPIListEntities)
		api.Post("/entities", h.handleAPIRegisterEntity)
		api.Get("/entities/{id}", h.handleAPIGetEntity)
		api.Post("/entities/{id}/attrs", h.handleAPISetEntityAttr)

		api.Get("/directories", h.handleAPIListDirectories)
		api.Post("/directories", h.handleAPICreateDirectory)
		api.Post("/directories/{id}/rename", h.handleAPIRenameDirectory)
		api.Delete("/directories/{id}", h.handleAPIDeleteDirectory)
		api.Post("/directories/{id}/attach", h.handleAPIAttachEntity)

		api.Get("/audit/logs", h.handleAPIListAuditLogs)
	})

	r.NotFound(h.handleDispatch)
	return r
}

// handleDispatch serves every path outside the management API: a live
// path serves its entity, a historical one answers with a permanent
// redirect to the canonical location.
func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	result := h.service.Dispatch(r.Context(), r.URL.Path)
	switch result.State {
	case domain.DispatchServed:
		entity, err := h.service.GetEntity(r.Context(), result.EntityID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, h.service.View(entity))
	case domain.DispatchRedirected:
		http.Redirect(w, r, "/"+result.RedirectTo, http.StatusMovedPermanently)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found", "path": result.Path})
	}
}

func (h *Handler) handleAPIPreview(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		EntityID uint   `json:"entity_id"`
		Template string `json:"template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	path, err := h.service.Preview(r.Context(), payload.EntityID, payload.Template)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "url": h.service.CanonicalURL(path)})
}

func (h *Handler) handleAPIUpdate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		EntityID       uint     `json:"entity_id"`
		NewPath        string   `json:"new_path"`
		ExtraRedirects []string `json:"extra_redirects"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	entity, err := h.service.UpdatePath(r.Context(), payload.EntityID, payload.NewPath, payload.ExtraRedirects)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.View(entity))
}

func (h *Handler) handleAPIMap(w http.ResponseWriter, r *http.Request) {
	byPath, byEntity := h.service.MapSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{"paths": byPath, "entities": byEntity})
}

func (h *Handler) handleAPIRebuild(w http.ResponseWriter, r *http.Request) {
	dropped, err := h.service.Rebuild(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dropped": dropped})
}

func (h *Handler) handleAPIBulkApply(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		EntityIDs   []uint `json:"entity_ids"`
		DirectoryID uint   `json:"directory_id"`
		Strategy    string `json:"strategy"`
		OldPrefix   string `json:"old_prefix"`
		Template    string `json:"template"`
		Kind        string `json:"kind"`
		Limit       int    `json:"limit"`
		Offset      int    `json:"offset"`
		DryRun      bool   `json:"dry_run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}

	var items []domain.BulkRenameItem
	var err error
	if strings.TrimSpace(payload.Template) != "" {
		items, err = h.service.BulkApplyTemplate(r.Context(), domain.BulkApplyInput{
			Kind:     payload.Kind,
			Template: payload.Template,
			Limit:    payload.Limit,
			Offset:   payload.Offset,
			DryRun:   payload.DryRun,
		})
	} else {
		items, err = h.service.BulkRename(r.Context(), domain.BulkRenameInput{
			EntityIDs:         payload.EntityIDs,
			TargetDirectoryID: payload.DirectoryID,
			Strategy:          domain.RenameStrategy(payload.Strategy),
			OldPrefix:         payload.OldPrefix,
			DryRun:            payload.DryRun,
		})
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items, "dry_run": payload.DryRun})
}

func (h *Handler) handleAPIListEntities(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	list, err := h.service.ListEntities(r.Context(), r.URL.Query().Get("kind"), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	rows := make([]application.EntityView, 0, len(list))
	for _, e := range list {
		rows = append(rows, h.service.View(e))
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleAPIRegisterEntity(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Kind       string            `json:"kind"`
		Slug       string            `json:"slug"`
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	entity, err := h.service.RegisterEntity(r.Context(), payload.Kind, payload.Slug, payload.Attributes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.View(entity))
}

func (h *Handler) handleAPIGetEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entity, err := h.service.GetEntity(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.View(entity))
}

func (h *Handler) handleAPISetEntityAttr(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if err := h.service.SetEntityAttribute(r.Context(), id, payload.Key, payload.Value); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIListDirectories(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListDirectories(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit", 200))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleAPICreateDirectory(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		PathSlug string `json:"path_slug"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	dir, err := h.service.CreateDirectory(r.Context(), payload.Name, payload.PathSlug, payload.ParentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dir)
}

func (h *Handler) handleAPIRenameDirectory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Name     string `json:"name"`
		PathSlug string `json:"path_slug"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	dir, err := h.service.RenameDirectory(r.Context(), id, payload.Name, payload.PathSlug)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dir)
}

func (h *Handler) handleAPIDeleteDirectory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDirectory(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIAttachEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload struct {
		EntityID uint `json:"entity_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	entity, err := h.service.AttachToDirectory(r.Context(), id, payload.EntityID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.View(entity))
}

func (h *Handler) handleAPIListAuditLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.ListAuditLogs(r.Context(), queryInt(r, "limit", 200))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid id"})
		return 0, false
	}
	return uint(parsed), true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrEntityNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrPathConflict), errors.Is(err, domain.ErrHasChildren):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
