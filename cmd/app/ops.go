package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

func doPreview(ctx context.Context, cfg cliConfig, entityID uint, template string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "link.preview", map[string]any{"entity_id": entityID, "template": template}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/urllink/preview", map[string]any{"entity_id": entityID, "template": template}, out)
}

func doUpdate(ctx context.Context, cfg cliConfig, entityID uint, newPath string, extraRedirects []string, out any) error {
	payload := map[string]any{"entity_id": entityID, "new_path": newPath, "extra_redirects": extraRedirects}
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "link.update", payload, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/urllink/update", payload, out)
}

func doMap(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "link.map", map[string]any{}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodGet, "/api/urllink/map", nil, out)
}

func doRebuild(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "link.rebuild", map[string]any{}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/urllink/rebuild", map[string]any{}, out)
}

// doDispatch is a diagnostic for the resolution pipeline; over HTTP the
// real answer is the response of the path itself, so the probe is
// uds-only.
func doDispatch(ctx context.Context, cfg cliConfig, path string, out any) error {
	if cfg.Transport != "uds" {
		return errors.New("dispatch probe requires uds transport")
	}
	client := newRPCClient(cfg.Socket)
	return client.call(ctx, "link.dispatch", map[string]any{"path": path}, out)
}

func doBulkApply(ctx context.Context, cfg cliConfig, payload map[string]any, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "link.bulk_apply", payload, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/urllink/bulk-apply", payload, out)
}

func doEntitiesRegister(ctx context.Context, cfg cliConfig, kind, slug string, attrs map[string]string, out any) error {
	payload := map[string]any{"kind": kind, "slug": slug, "attributes": attrs}
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "entities.register", payload, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/urllink/entities", payload, out)
}

func doEntitiesList(ctx context.Context, cfg cliConfig, kind, q string, limit, offset int, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "entities.list", map[string]any{"kind": kind, "q": q, "limit": limit, "offset": offset}, out)
	}
	client := newAPIClient(cfg.Server)
	params := url.Values{}
	if kind != "" {
		params.Set("kind", kind)
	}
	if q != "" {
		params.Set("q", q)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", offset))
	}
	path := "/api/urllink/entities"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doEntitiesSetAttr(ctx context.Context, cfg cliConfig, entityID uint, key, value string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "entities.set_attr", map[string]any{"entity_id": entityID, "key": key, "value": value}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, fmt.Sprintf("/api/urllink/entities/%d/attrs", entityID), map[string]any{"key": key, "value": value}, out)
}

func doDirsCreate(ctx context.Context, cfg cliConfig, name, pathSlug string, parentID *uint, out any) error {
	payload := map[string]any{"name": name, "path_slug": pathSlug}
	if parentID != nil {
		payload["parent_id"] = *parentID
	}
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "dirs.create", payload, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/urllink/directories", payload, out)
}

func doDirsList(ctx context.Context, cfg cliConfig, q string, limit int, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "dirs.list", map[string]any{"q": q, "limit": limit}, out)
	}
	client := newAPIClient(cfg.Server)
	params := url.Values{}
	if q != "" {
		params.Set("q", q)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/api/urllink/directories"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doDirsRename(ctx context.Context, cfg cliConfig, directoryID uint, name, pathSlug string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "dirs.rename", map[string]any{"directory_id": directoryID, "name": name, "path_slug": pathSlug}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, fmt.Sprintf("/api/urllink/directories/%d/rename", directoryID), map[string]any{"name": name, "path_slug": pathSlug}, out)
}

func doDirsDelete(ctx context.Context, cfg cliConfig, directoryID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "dirs.delete", map[string]any{"directory_id": directoryID}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodDelete, fmt.Sprintf("/api/urllink/directories/%d", directoryID), nil, out)
}

func doDirsAttach(ctx context.Context, cfg cliConfig, directoryID, entityID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "dirs.attach", map[string]any{"directory_id": directoryID, "entity_id": entityID}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, fmt.Sprintf("/api/urllink/directories/%d/attach", directoryID), map[string]any{"entity_id": entityID}, out)
}

func doAuditList(ctx context.Context, cfg cliConfig, limit int, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "audit.list", map[string]any{"limit": limit}, out)
	}
	client := newAPIClient(cfg.Server)
	path := "/api/urllink/audit/logs"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func uintToString(v uint) string {
	return fmt.Sprintf("%d", v)
}
