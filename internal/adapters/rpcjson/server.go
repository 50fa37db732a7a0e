package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/atvirokodosprendimai/urllink/internal/application"
	"github.com/atvirokodosprendimai/urllink/internal/domain"
)

type Server struct {
	service  *application.LinkService
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  any         `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.LinkService) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "link.preview":
		var p struct {
			EntityID uint   `json:"entity_id"`
			Template string `json:"template"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		path, err := s.service.Preview(ctx, p.EntityID, p.Template)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"path": path, "url": s.service.CanonicalURL(path)}, ID: req.ID}
	case "link.update":
		var p struct {
			EntityID       uint     `json:"entity_id"`
			NewPath        string   `json:"new_path"`
			ExtraRedirects []string `json:"extra_redirects"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.UpdatePath(ctx, p.EntityID, p.NewPath, p.ExtraRedirects)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: s.service.View(out), ID: req.ID}
	case "link.map":
		var p struct{}
		_ = decodeParams(req.Params, &p)
		byPath, byEntity := s.service.MapSnapshot()
		return response{JSONRPC: "2.0", Result: map[string]any{"paths": byPath, "entities": byEntity}, ID: req.ID}
	case "link.dispatch":
		var p struct {
			Path string `json:"path"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out := s.service.Dispatch(ctx, p.Path)
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "link.rebuild":
		var p struct{}
		_ = decodeParams(req.Params, &p)
		dropped, err := s.service.Rebuild(ctx)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"dropped": dropped}, ID: req.ID}
	case "link.bulk_apply":
		var p struct {
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
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		var items []domain.BulkRenameItem
		var err error
		if strings.TrimSpace(p.Template) != "" {
			items, err = s.service.BulkApplyTemplate(ctx, domain.BulkApplyInput{
				Kind:     p.Kind,
				Template: p.Template,
				Limit:    p.Limit,
				Offset:   p.Offset,
				DryRun:   p.DryRun,
			})
		} else {
			items, err = s.service.BulkRename(ctx, domain.BulkRenameInput{
				EntityIDs:         p.EntityIDs,
				TargetDirectoryID: p.DirectoryID,
				Strategy:          domain.RenameStrategy(p.Strategy),
				OldPrefix:         p.OldPrefix,
				DryRun:            p.DryRun,
			})
		}
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"items": items, "dry_run": p.DryRun}, ID: req.ID}
	case "entities.register":
		var p struct {
			Kind       string            `json:"kind"`
			Slug       string            `json:"slug"`
			Attributes map[string]string `json:"attributes"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.RegisterEntity(ctx, p.Kind, p.Slug, p.Attributes)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: s.service.View(out), ID: req.ID}
	case "entities.list":
		var p struct {
			Kind   string `json:"kind"`
			Q      string `json:"q"`
			Limit  int    `json:"limit"`
			Offset int    `json:"offset"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListEntities(ctx, p.Kind, p.Q, p.Limit, p.Offset)
		if err != nil {
			return internalError(req.ID, err)
		}
		views := make([]application.EntityView, 0, len(out))
		for _, e := range out {
			views = append(views, s.service.View(e))
		}
		return response{JSONRPC: "2.0", Result: views, ID: req.ID}
	case "entities.set_attr":
		var p struct {
			EntityID uint   `json:"entity_id"`
			Key      string `json:"key"`
			Value    string `json:"value"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.SetEntityAttribute(ctx, p.EntityID, p.Key, p.Value); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "dirs.create":
		var p struct {
			Name     string `json:"name"`
			PathSlug string `json:"path_slug"`
			ParentID *uint  `json:"parent_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateDirectory(ctx, p.Name, p.PathSlug, p.ParentID)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "dirs.list":
		var p struct {
			Q     string `json:"q"`
			Limit int    `json:"limit"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListDirectories(ctx, p.Q, p.Limit)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "dirs.rename":
		var p struct {
			DirectoryID uint   `json:"directory_id"`
			Name        string `json:"name"`
			PathSlug    string `json:"path_slug"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.RenameDirectory(ctx, p.DirectoryID, p.Name, p.PathSlug)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "dirs.delete":
		var p struct {
			DirectoryID uint `json:"directory_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteDirectory(ctx, p.DirectoryID); err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "dirs.attach":
		var p struct {
			DirectoryID uint `json:"directory_id"`
			EntityID    uint `json:"entity_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.AttachToDirectory(ctx, p.DirectoryID, p.EntityID)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: s.service.View(out), ID: req.ID}
	case "audit.list":
		var p struct {
			Limit int `json:"limit"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListAuditLogs(ctx, p.Limit)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

func appError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 40000, Message: err.Error()}, ID: id}
}

func internalError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 50000, Message: fmt.Sprintf("internal error: %v", err)}, ID: id}
}
