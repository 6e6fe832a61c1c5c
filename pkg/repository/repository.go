package repository

import (
	"gorm.io/gorm"
)

// RepositoryI is the narrow persistence interface consumed by the pipeline
// handlers. All writes are last-write-wins keyed by document ID so that
// duplicate broker deliveries stay idempotent.
type RepositoryI interface {
	DocumentI
	KnowledgeBaseI
	EntityTypeI
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}
