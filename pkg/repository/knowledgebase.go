package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	errorsx "github.com/sentra-ai/knowledge-backend/pkg/errors"
)

type KnowledgeBaseI interface {
	GetKnowledgeBase(ctx context.Context, kbID string) (*KnowledgeBase, error)
}

type KnowledgeBase struct {
	ID          string     `gorm:"column:id;size:64;primaryKey" json:"id"`
	TenantID    string     `gorm:"column:tenant_id;size:64;not null;index" json:"tenant_id"`
	Name        string     `gorm:"column:name;size:255;not null" json:"name"`
	Description string     `gorm:"column:description;size:1024" json:"description"`
	CreateTime  *time.Time `gorm:"column:create_time;not null;default:CURRENT_TIMESTAMP" json:"create_time"`
	UpdateTime  *time.Time `gorm:"column:update_time;not null;autoUpdateTime" json:"update_time"`
}

func (KnowledgeBase) TableName() string {
	return "t_knowledge_base"
}

func (r *Repository) GetKnowledgeBase(ctx context.Context, kbID string) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	if err := r.db.WithContext(ctx).First(&kb, "id = ?", kbID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorsx.ErrNotFound
		}
		return nil, err
	}
	return &kb, nil
}
