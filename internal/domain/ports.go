package domain

import "context"

type LinkRepository interface {
	RegisterEntity(ctx context.Context, value Entity) (Entity, error)
	GetEntity(ctx context.Context, id uint) (Entity, error)
	ListEntities(ctx context.Context, kind, query string, limit, offset int) ([]Entity, error)
	SetEntityAttribute(ctx context.Context, entityID uint, key, value string) error

	SavePathBinding(ctx context.Context, entityID uint, path string) error
	RemovePathBinding(ctx context.Context, entityID uint) error
	LoadBindings(ctx context.Context) ([]PathBinding, error)

	AppendOldPath(ctx context.Context, entityID uint, path string) error
	SetExtraRedirects(ctx context.Context, entityID uint, paths []string) error
	FindRedirect(ctx context.Context, path string) (uint, bool, error)

	CreateDirectory(ctx context.Context, value DirectoryNode) (DirectoryNode, error)
	GetDirectory(ctx context.Context, id uint) (DirectoryNode, error)
	ListDirectories(ctx context.Context, query string, limit int) ([]DirectoryNode, error)
	UpdateDirectory(ctx context.Context, id uint, name, pathSlug string) (DirectoryNode, error)
	DeleteDirectory(ctx context.Context, id uint) error
	CountDirectoryChildren(ctx context.Context, id uint) (int64, error)

	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]AuditLog, error)
}
