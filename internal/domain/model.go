package domain

import "time"

// Entity mirrors a content unit owned by an external content system. The
// routing engine only attaches path metadata to it; the id is stable and
// assigned elsewhere.
type Entity struct {
	ID             uint
	Kind           string
	Slug           string
	CurrentPath    string
	Attributes     map[string]string
	OldPaths       []string
	ExtraRedirects []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PathBinding is one row of the live path map: a normalized path and the
// single entity that owns it.
type PathBinding struct {
	Path     string
	EntityID uint
}

type DirectoryNode struct {
	ID        uint
	Name      string
	PathSlug  string
	ParentID  *uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DispatchState string

const (
	DispatchServed     DispatchState = "served"
	DispatchRedirected DispatchState = "redirected"
	DispatchUnmatched  DispatchState = "unmatched"
)

type DispatchResult struct {
	State      DispatchState
	Path       string
	EntityID   uint
	RedirectTo string
}

type RenameStrategy string

const (
	StrategyReplace RenameStrategy = "replace"
	StrategyPrefix  RenameStrategy = "prefix"
)

type BulkRenameInput struct {
	EntityIDs         []uint
	TargetDirectoryID uint
	Strategy          RenameStrategy
	OldPrefix         string
	DryRun            bool
}

type BulkApplyInput struct {
	Kind     string
	Template string
	Limit    int
	Offset   int
	DryRun   bool
}

// BulkRenameItem is reported for every entity in a batch, including
// conflicting and dry-run entries, so callers can preview before applying.
type BulkRenameItem struct {
	EntityID uint
	OldPath  string
	NewPath  string
	Conflict bool
	Applied  bool
}

type AuditLog struct {
	ID         uint
	Action     string
	TargetType string
	TargetID   *uint
	Metadata   string
	CreatedAt  time.Time
}
