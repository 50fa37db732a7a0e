package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	sqliteadapter "github.com/atvirokodosprendimai/urllink/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/urllink/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/urllink/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/urllink/internal/application"
	"github.com/atvirokodosprendimai/urllink/internal/domain"
	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "urllink",
		Usage: "URL routing and redirect preservation server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			configCommand(),
			linkCommand(),
			entitiesCommand(),
			dirsCommand(),
			auditCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, ":8080", "/tmp/urllink.sock", "urllink.db", "http://127.0.0.1:8080", nil)
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Value: "/tmp/urllink.sock", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Value: "urllink.db", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "base-url", Value: "http://127.0.0.1:8080", Usage: "public base URL for canonical links"},
			&cli.StringFlag{Name: "locales", Usage: "csv locale prefixes stripped before dispatch, e.g. en,lt"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx, c.String("addr"), c.String("rpc-socket"), c.String("db-path"), c.String("base-url"), splitCSV(c.String("locales")))
		},
	}
}

func runServer(ctx context.Context, addr, rpcSocket, dbPath, baseURL string, locales []string) error {
	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return err
	}

	repo := sqliteadapter.NewLinkRepository(db)
	service := application.NewLinkService(repo, baseURL, locales)
	dropped, err := service.Rebuild(ctx)
	if err != nil {
		return err
	}
	log.Printf("path map loaded, %d duplicate bindings dropped", dropped)

	go func() {
		for range service.Invalidations() {
			log.Printf("path map snapshot refreshed")
		}
	}()

	router := httpadapter.NewRouter(service)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(rpcSocket, service)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	log.Printf("json-rpc listening on unix://%s", rpcSocket)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI transport configuration",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Set CLI transport options",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Usage: "uds or http"},
					&cli.StringFlag{Name: "server", Usage: "HTTP server base URL"},
					&cli.StringFlag{Name: "socket", Usage: "unix socket path"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if c.IsSet("transport") {
						cfg.Transport = c.String("transport")
					}
					if c.IsSet("server") {
						cfg.Server = c.String("server")
					}
					if c.IsSet("socket") {
						cfg.Socket = c.String("socket")
					}
					if cfg.Transport != "uds" && cfg.Transport != "http" {
						return fmt.Errorf("transport must be uds or http")
					}
					return saveConfig(cfg)
				},
			},
			{
				Name:  "show",
				Usage: "Show CLI transport options",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					printKV([][2]string{{"transport", cfg.Transport}, {"server", cfg.Server}, {"socket", cfg.Socket}})
					return nil
				},
			},
		},
	}
}

func linkCommand() *cli.Command {
	return &cli.Command{
		Name:  "link",
		Usage: "Path map commands",
		Commands: []*cli.Command{
			{
				Name:  "preview",
				Usage: "Resolve a path template without applying it",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "entity-id", Required: true},
					&cli.StringFlag{Name: "template", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Path string `json:"path"`
						URL  string `json:"url"`
					}
					if err := doPreview(ctx, cfg, uint(c.Uint("entity-id")), c.String("template"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"path", out.Path}, {"url", out.URL}})
					return nil
				},
			},
			{
				Name:  "update",
				Usage: "Assign a new path to an entity",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "entity-id", Required: true},
					&cli.StringFlag{Name: "path", Required: true},
					&cli.StringFlag{Name: "redirects", Usage: "csv extra redirect paths"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out application.EntityView
					if err := doUpdate(ctx, cfg, uint(c.Uint("entity-id")), c.String("path"), splitCSV(c.String("redirects")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printEntityView(out)
					return nil
				},
			},
			{
				Name:  "map",
				Usage: "Show the live path map",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Paths map[string]uint `json:"paths"`
					}
					if err := doMap(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printMapSnapshot(out.Paths)
					return nil
				},
			},
			{
				Name:  "dispatch",
				Usage: "Probe path resolution (uds only)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.DispatchResult
					if err := doDispatch(ctx, cfg, c.String("path"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printDispatchResult(out)
					return nil
				},
			},
			{
				Name:  "rebuild",
				Usage: "Rebuild the path map from stored bindings",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						Dropped int `json:"dropped"`
					}
					if err := doRebuild(ctx, cfg, &out); err != nil {
						return err
					}
					fmt.Printf("rebuilt, %d duplicate bindings dropped\n", out.Dropped)
					return nil
				},
			},
			{
				Name:  "bulk-apply",
				Usage: "Bulk rename into a directory or apply a template",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ids", Usage: "csv entity ids (directory mode)"},
					&cli.UintFlag{Name: "dir-id", Usage: "target directory id (directory mode)"},
					&cli.StringFlag{Name: "strategy", Value: "prefix", Usage: "replace or prefix"},
					&cli.StringFlag{Name: "old-prefix", Usage: "prefix stripped by the replace strategy"},
					&cli.StringFlag{Name: "template", Usage: "path template (template mode)"},
					&cli.StringFlag{Name: "kind", Usage: "entity kind filter (template mode)"},
					&cli.IntFlag{Name: "limit", Value: 100},
					&cli.IntFlag{Name: "offset"},
					&cli.BoolFlag{Name: "dry-run", Usage: "preview without writing"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					ids, err := parseIDs(c.String("ids"))
					if err != nil {
						return err
					}
					payload := map[string]any{
						"entity_ids":   ids,
						"directory_id": c.Uint("dir-id"),
						"strategy":     c.String("strategy"),
						"old_prefix":   c.String("old-prefix"),
						"template":     c.String("template"),
						"kind":         c.String("kind"),
						"limit":        c.Int("limit"),
						"offset":       c.Int("offset"),
						"dry_run":      c.Bool("dry-run"),
					}
					var out struct {
						Items  []domain.BulkRenameItem `json:"items"`
						DryRun bool                    `json:"dry_run"`
					}
					if err := doBulkApply(ctx, cfg, payload, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printBulkItems(out.Items)
					if out.DryRun {
						fmt.Println("dry run, nothing written")
					}
					return nil
				},
			},
		},
	}
}

func entitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "entities",
		Usage: "Entity registry commands",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Register an entity",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Value: "post"},
					&cli.StringFlag{Name: "slug", Required: true},
					&cli.StringFlag{Name: "attrs", Usage: "key=value,key=value"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out application.EntityView
					if err := doEntitiesRegister(ctx, cfg, c.String("kind"), c.String("slug"), parseAttrs(c.String("attrs")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printEntityView(out)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List entities",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind"},
					&cli.StringFlag{Name: "q"},
					&cli.IntFlag{Name: "limit", Value: 100},
					&cli.IntFlag{Name: "offset"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []application.EntityView
					if err := doEntitiesList(ctx, cfg, c.String("kind"), c.String("q"), int(c.Int("limit")), int(c.Int("offset")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printEntityViews(out)
					return nil
				},
			},
			{
				Name:  "set-attr",
				Usage: "Set an entity attribute",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "entity-id", Required: true},
					&cli.StringFlag{Name: "key", Required: true},
					&cli.StringFlag{Name: "value", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out map[string]any
					if err := doEntitiesSetAttr(ctx, cfg, uint(c.Uint("entity-id")), c.String("key"), c.String("value"), &out); err != nil {
						return err
					}
					fmt.Printf("set %s on entity %d\n", c.String("key"), c.Uint("entity-id"))
					return nil
				},
			},
		},
	}
}

func dirsCommand() *cli.Command {
	return &cli.Command{
		Name:  "dirs",
		Usage: "Directory tree commands",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "slug", Usage: "path slug prefix"},
					&cli.UintFlag{Name: "parent-id"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var parentID *uint
					if c.IsSet("parent-id") {
						v := uint(c.Uint("parent-id"))
						parentID = &v
					}
					var out domain.DirectoryNode
					if err := doDirsCreate(ctx, cfg, c.String("name"), c.String("slug"), parentID, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printDirectories([]domain.DirectoryNode{out})
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List directories",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q"},
					&cli.IntFlag{Name: "limit", Value: 200},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.DirectoryNode
					if err := doDirsList(ctx, cfg, c.String("q"), int(c.Int("limit")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printDirectories(out)
					return nil
				},
			},
			{
				Name:  "rename",
				Usage: "Rename a directory",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "dir-id", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "slug"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.DirectoryNode
					if err := doDirsRename(ctx, cfg, uint(c.Uint("dir-id")), c.String("name"), c.String("slug"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printDirectories([]domain.DirectoryNode{out})
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Delete an empty directory",
				Flags: []cli.Flag{&cli.UintFlag{Name: "dir-id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out map[string]any
					if err := doDirsDelete(ctx, cfg, uint(c.Uint("dir-id")), &out); err != nil {
						return err
					}
					fmt.Printf("deleted directory %d\n", c.Uint("dir-id"))
					return nil
				},
			},
			{
				Name:  "attach",
				Usage: "Attach an entity under a directory prefix",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "dir-id", Required: true},
					&cli.UintFlag{Name: "entity-id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out application.EntityView
					if err := doDirsAttach(ctx, cfg, uint(c.Uint("dir-id")), uint(c.Uint("entity-id")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printEntityView(out)
					return nil
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List audit logs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 200},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.AuditLog
					if err := doAuditList(ctx, cfg, int(c.Int("limit")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAuditLogs(out)
					return nil
				},
			},
		},
	}
}

func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

func parseIDs(input string) ([]uint, error) {
	parts := splitCSV(input)
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		parsed, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entity id %q", part)
		}
		ids = append(ids, uint(parsed))
	}
	return ids, nil
}

func parseAttrs(input string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitCSV(input) {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
