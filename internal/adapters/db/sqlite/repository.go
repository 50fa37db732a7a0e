package sqlite

import (
	"context"
	"errors"
	"strings"

	"github.com/atvirokodosprendimai/urllink/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

type LinkRepository struct {
	db *gorm.DB
}

func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{})
}

func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) RegisterEntity(ctx context.Context, value domain.Entity) (domain.Entity, error) {
	m := EntityModel{Kind: defaultString(value.Kind, "post"), Slug: value.Slug}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		for key, attr := range value.Attributes {
			row := EntityAttributeModel{EntityID: m.ID, Key: key, Value: attr}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Entity{}, err
	}

	return r.GetEntity(ctx, m.ID)
}

func (r *LinkRepository) GetEntity(ctx context.Context, id uint) (domain.Entity, error) {
	var m EntityModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Entity{}, domain.ErrNotFound
		}
		return domain.Entity{}, err
	}

	result := domain.Entity{
		ID:        m.ID,
		Kind:      m.Kind,
		Slug:      m.Slug,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	var binding PathBindingModel
	err := r.db.WithContext(ctx).Where("entity_id = ?", m.ID).First(&binding).Error
	if err == nil {
		result.CurrentPath = binding.Path
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Entity{}, err
	}

	attrs := make([]EntityAttributeModel, 0)
	if err := r.db.WithContext(ctx).Where("entity_id = ?", m.ID).Find(&attrs).Error; err != nil {
		return domain.Entity{}, err
	}
	result.Attributes = make(map[string]string, len(attrs))
	for _, a := range attrs {
		result.Attributes[a.Key] = a.Value
	}

	oldRows := make([]OldPathModel, 0)
	if err := r.db.WithContext(ctx).Where("entity_id = ?", m.ID).Order("id ASC").Find(&oldRows).Error; err != nil {
		return domain.Entity{}, err
	}
	result.OldPaths = make([]string, 0, len(oldRows))
	for _, row := range oldRows {
		result.OldPaths = append(result.OldPaths, row.Path)
	}

	extraRows := make([]ExtraRedirectModel, 0)
	if err := r.db.WithContext(ctx).Where("entity_id = ?", m.ID).Order("id ASC").Find(&extraRows).Error; err != nil {
		return domain.Entity{}, err
	}
	result.ExtraRedirects = make([]string, 0, len(extraRows))
	for _, row := range extraRows {
		result.ExtraRedirects = append(result.ExtraRedirects, row.Path)
	}

	return result, nil
}

func (r *LinkRepository) ListEntities(ctx context.Context, kind, query string, limit, offset int) ([]domain.Entity, error) {
	q := r.db.WithContext(ctx).Model(&EntityModel{})
	if strings.TrimSpace(kind) != "" {
		q = q.Where("kind = ?", strings.TrimSpace(kind))
	}
	if strings.TrimSpace(query) != "" {
		like := "%" + strings.TrimSpace(query) + "%"
		q = q.Where("slug LIKE ?", like)
	}

	rows := make([]EntityModel, 0)
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.Entity{}, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.ID)
	}

	bindings := make([]PathBindingModel, 0)
	if err := r.db.WithContext(ctx).Where("entity_id IN ?", ids).Find(&bindings).Error; err != nil {
		return nil, err
	}
	pathByEntity := make(map[uint]string, len(bindings))
	for _, b := range bindings {
		pathByEntity[b.EntityID] = b.Path
	}

	attrs := make([]EntityAttributeModel, 0)
	if err := r.db.WithContext(ctx).Where("entity_id IN ?", ids).Find(&attrs).Error; err != nil {
		return nil, err
	}
	attrsByEntity := make(map[uint]map[string]string, len(rows))
	for _, a := range attrs {
		if attrsByEntity[a.EntityID] == nil {
			attrsByEntity[a.EntityID] = map[string]string{}
		}
		attrsByEntity[a.EntityID][a.Key] = a.Value
	}

	result := make([]domain.Entity, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.Entity{
			ID:          m.ID,
			Kind:        m.Kind,
			Slug:        m.Slug,
			CurrentPath: pathByEntity[m.ID],
			Attributes:  attrsByEntity[m.ID],
			CreatedAt:   m.CreatedAt,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return result, nil
}

func (r *LinkRepository) SetEntityAttribute(ctx context.Context, entityID uint, key, value string) error {
	m := EntityAttributeModel{EntityID: entityID, Key: key, Value: value}
	return r.db.WithContext(ctx).
		Where("entity_id = ? AND key = ?", entityID, key).
		Assign(map[string]any{"value": value}).
		FirstOrCreate(&m).Error
}

func (r *LinkRepository) SavePathBinding(ctx context.Context, entityID uint, path string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a path that becomes current again is no longer history
		if err := tx.Where("entity_id = ? AND path = ?", entityID, path).Delete(&OldPathModel{}).Error; err != nil {
			return err
		}
		m := PathBindingModel{EntityID: entityID, Path: path}
		return tx.Where("entity_id = ?", entityID).
			Assign(map[string]any{"path": path}).
			FirstOrCreate(&m).Error
	})
}

func (r *LinkRepository) RemovePathBinding(ctx context.Context, entityID uint) error {
	return r.db.WithContext(ctx).Where("entity_id = ?", entityID).Delete(&PathBindingModel{}).Error
}

func (r *LinkRepository) LoadBindings(ctx context.Context) ([]domain.PathBinding, error) {
	rows := make([]PathBindingModel, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.PathBinding, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.PathBinding{Path: m.Path, EntityID: m.EntityID})
	}
	return result, nil
}

func (r *LinkRepository) AppendOldPath(ctx context.Context, entityID uint, path string) error {
	m := OldPathModel{EntityID: entityID, Path: path}
	return r.db.WithContext(ctx).
		Where("entity_id = ? AND path = ?", entityID, path).
		FirstOrCreate(&m).Error
}

func (r *LinkRepository) SetExtraRedirects(ctx context.Context, entityID uint, paths []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entity_id = ?", entityID).Delete(&ExtraRedirectModel{}).Error; err != nil {
			return err
		}
		for _, path := range paths {
			row := ExtraRedirectModel{EntityID: entityID, Path: path}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *LinkRepository) FindRedirect(ctx context.Context, path string) (uint, bool, error) {
	var old OldPathModel
	err := r.db.WithContext(ctx).Where("path = ?", path).Order("id ASC").First(&old).Error
	if err == nil {
		return old.EntityID, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, err
	}

	var extra ExtraRedirectModel
	err = r.db.WithContext(ctx).Where("path = ?", path).Order("id ASC").First(&extra).Error
	if err == nil {
		return extra.EntityID, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, err
	}
	return 0, false, nil
}

func (r *LinkRepository) CreateDirectory(ctx context.Context, value domain.DirectoryNode) (domain.DirectoryNode, error) {
	m := DirectoryModel{Name: value.Name, PathSlug: value.PathSlug, ParentID: value.ParentID}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.DirectoryNode{}, err
	}

	return domain.DirectoryNode{
		ID:        m.ID,
		Name:      m.Name,
		PathSlug:  m.PathSlug,
		ParentID:  m.ParentID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func (r *LinkRepository) GetDirectory(ctx context.Context, id uint) (domain.DirectoryNode, error) {
	var m DirectoryModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DirectoryNode{}, domain.ErrNotFound
		}
		return domain.DirectoryNode{}, err
	}
	return domain.DirectoryNode{
		ID:        m.ID,
		Name:      m.Name,
		PathSlug:  m.PathSlug,
		ParentID:  m.ParentID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func (r *LinkRepository) ListDirectories(ctx context.Context, query string, limit int) ([]domain.DirectoryNode, error) {
	q := r.db.WithContext(ctx).Model(&DirectoryModel{})
	if strings.TrimSpace(query) != "" {
		like := "%" + strings.TrimSpace(query) + "%"
		q = q.Where("name LIKE ? OR path_slug LIKE ?", like, like)
	}

	rows := make([]DirectoryModel, 0)
	if err := q.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.DirectoryNode, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.DirectoryNode{
			ID:        m.ID,
			Name:      m.Name,
			PathSlug:  m.PathSlug,
			ParentID:  m.ParentID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return result, nil
}

func (r *LinkRepository) UpdateDirectory(ctx context.Context, id uint, name, pathSlug string) (domain.DirectoryNode, error) {
	updates := map[string]any{"name": name, "path_slug": pathSlug}
	if err := r.db.WithContext(ctx).Model(&DirectoryModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return domain.DirectoryNode{}, err
	}
	return r.GetDirectory(ctx, id)
}

func (r *LinkRepository) DeleteDirectory(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&DirectoryModel{}, id).Error
}

func (r *LinkRepository) CountDirectoryChildren(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&DirectoryModel{}).Where("parent_id = ?", id).Count(&count).Error
	return count, err
}

func (r *LinkRepository) CreateAuditLog(ctx context.Context, value domain.AuditLog) error {
	m := AuditLogModel{Action: value.Action, TargetType: value.TargetType, TargetID: value.TargetID, Metadata: value.Metadata}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *LinkRepository) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	rows := make([]AuditLogModel, 0)
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.AuditLog, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.AuditLog{
			ID:         m.ID,
			Action:     m.Action,
			TargetType: m.TargetType,
			TargetID:   m.TargetID,
			Metadata:   m.Metadata,
			CreatedAt:  m.CreatedAt,
		})
	}
	return result, nil
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}

	return input
}
