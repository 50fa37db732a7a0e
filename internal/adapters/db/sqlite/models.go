package sqlite

import "time"

type EntityModel struct {
	ID        uint   `gorm:"primaryKey"`
	Kind      string `gorm:"not null;index;default:'post'"`
	Slug      string `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EntityModel) TableName() string { return "entities" }

type EntityAttributeModel struct {
	ID        uint   `gorm:"primaryKey"`
	EntityID  uint   `gorm:"not null;index:idx_entity_attr,unique"`
	Key       string `gorm:"not null;index:idx_entity_attr,unique"`
	Value     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EntityAttributeModel) TableName() string { return "entity_attrs" }

// PathBindingModel is the persisted live map: both columns are unique so a
// path has one owner and an entity holds one path.
type PathBindingModel struct {
	ID        uint   `gorm:"primaryKey"`
	EntityID  uint   `gorm:"not null;uniqueIndex"`
	Path      string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PathBindingModel) TableName() string { return "path_map" }

type OldPathModel struct {
	ID        uint   `gorm:"primaryKey"`
	EntityID  uint   `gorm:"not null;index:idx_old_path,unique"`
	Path      string `gorm:"not null;index:idx_old_path,unique;index"`
	CreatedAt time.Time
}

func (OldPathModel) TableName() string { return "old_paths" }

type ExtraRedirectModel struct {
	ID        uint   `gorm:"primaryKey"`
	EntityID  uint   `gorm:"not null;index:idx_extra_redirect,unique"`
	Path      string `gorm:"not null;index:idx_extra_redirect,unique;index"`
	CreatedAt time.Time
}

func (ExtraRedirectModel) TableName() string { return "extra_redirects" }

type DirectoryModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;index"`
	PathSlug  string `gorm:"not null;default:''"`
	ParentID  *uint  `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DirectoryModel) TableName() string { return "directories" }

type AuditLogModel struct {
	ID         uint   `gorm:"primaryKey"`
	Action     string `gorm:"not null;index"`
	TargetType string `gorm:"not null;index"`
	TargetID   *uint
	Metadata   string
	CreatedAt  time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }
