package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	errorsx "github.com/sentra-ai/knowledge-backend/pkg/errors"
)

type EntityTypeI interface {
	GetEntityTypeTemplate(ctx context.Context, templateID string) (*EntityTypeTemplate, error)
	GetTenantDefaultTemplate(ctx context.Context, tenantID string) (*EntityTypeTemplate, error)
	GetSystemTemplateByName(ctx context.Context, name string) (*EntityTypeTemplate, error)
	ListEntityTypeDefinitions(ctx context.Context, templateID string) ([]EntityTypeDefinition, error)
}

// EntityTypeTemplate groups the entity types the graph-build collaborator
// should extract. A tenant may mark one template as its default; system
// templates are shared across tenants.
type EntityTypeTemplate struct {
	ID         string     `gorm:"column:id;size:64;primaryKey" json:"id"`
	TenantID   string     `gorm:"column:tenant_id;size:64;index" json:"tenant_id"`
	Name       string     `gorm:"column:name;size:255;not null" json:"name"`
	IsSystem   bool       `gorm:"column:is_system;not null;default:false" json:"is_system"`
	IsDefault  bool       `gorm:"column:is_default;not null;default:false" json:"is_default"`
	CreateTime *time.Time `gorm:"column:create_time;not null;default:CURRENT_TIMESTAMP" json:"create_time"`
}

func (EntityTypeTemplate) TableName() string {
	return "t_entity_type_template"
}

type EntityTypeDefinition struct {
	ID                string `gorm:"column:id;size:64;primaryKey" json:"id"`
	TemplateID        string `gorm:"column:template_id;size:64;not null;index" json:"template_id"`
	EntityCode        string `gorm:"column:entity_code;size:128;not null" json:"entity_code"`
	EntityDescription string `gorm:"column:entity_description;size:1024" json:"entity_description"`
}

func (EntityTypeDefinition) TableName() string {
	return "t_entity_type_definition"
}

func (r *Repository) GetEntityTypeTemplate(ctx context.Context, templateID string) (*EntityTypeTemplate, error) {
	var tpl EntityTypeTemplate
	if err := r.db.WithContext(ctx).First(&tpl, "id = ?", templateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorsx.ErrNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *Repository) GetTenantDefaultTemplate(ctx context.Context, tenantID string) (*EntityTypeTemplate, error) {
	var tpl EntityTypeTemplate
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_default = ?", tenantID, true).
		First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorsx.ErrNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *Repository) GetSystemTemplateByName(ctx context.Context, name string) (*EntityTypeTemplate, error) {
	var tpl EntityTypeTemplate
	err := r.db.WithContext(ctx).
		Where("name = ? AND is_system = ?", name, true).
		First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorsx.ErrNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *Repository) ListEntityTypeDefinitions(ctx context.Context, templateID string) ([]EntityTypeDefinition, error) {
	var defs []EntityTypeDefinition
	if err := r.db.WithContext(ctx).Where("template_id = ?", templateID).Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}
