package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/urllink/internal/application"
	"github.com/atvirokodosprendimai/urllink/internal/domain"
)

func printJSON(v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatMaybeUint(v *uint) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*v), 10)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func printEntityView(item application.EntityView) {
	printKV([][2]string{
		{"id", uintToString(item.ID)},
		{"kind", item.Kind},
		{"slug", item.Slug},
		{"path", item.CurrentPath},
		{"url", item.URL},
		{"old_paths", strings.Join(item.OldPaths, ",")},
		{"extra_redirects", strings.Join(item.ExtraRedirects, ",")},
	})
}

func printEntityViews(items []application.EntityView) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Kind,
			item.Slug,
			item.CurrentPath,
			strconv.Itoa(len(item.OldPaths)),
		})
	}
	printTable([]string{"ID", "KIND", "SLUG", "PATH", "OLD_PATHS"}, rows)
}

func printDirectories(items []domain.DirectoryNode) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Name,
			item.PathSlug,
			formatMaybeUint(item.ParentID),
		})
	}
	printTable([]string{"ID", "NAME", "PATH_SLUG", "PARENT_ID"}, rows)
}

func printBulkItems(items []domain.BulkRenameItem) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.EntityID),
			item.OldPath,
			item.NewPath,
			strconv.FormatBool(item.Conflict),
			strconv.FormatBool(item.Applied),
		})
	}
	printTable([]string{"ENTITY_ID", "OLD_PATH", "NEW_PATH", "CONFLICT", "APPLIED"}, rows)
}

func printMapSnapshot(paths map[string]uint) {
	keys := make([]string, 0, len(paths))
	for path := range paths {
		keys = append(keys, path)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, path := range keys {
		rows = append(rows, []string{path, uintToString(paths[path])})
	}
	printTable([]string{"PATH", "ENTITY_ID"}, rows)
}

func printDispatchResult(item domain.DispatchResult) {
	printKV([][2]string{
		{"state", string(item.State)},
		{"path", item.Path},
		{"entity_id", uintToString(item.EntityID)},
		{"redirect_to", item.RedirectTo},
	})
}

func printAuditLogs(items []domain.AuditLog) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Action,
			item.TargetType,
			formatMaybeUint(item.TargetID),
			item.Metadata,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "ACTION", "TARGET_TYPE", "TARGET_ID", "METADATA", "AT"}, rows)
}
