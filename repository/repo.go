package repository

import (
	"context"
	"database/sql"
	"strings"

	"audio-vault/entities"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type RecordingRepository interface {
	Create(ctx context.Context, recording *entities.Recording) error
	FindById(ctx context.Context, id uuid.UUID) (*entities.Recording, error)
	FindAll(ctx context.Context) ([]*entities.Recording, error)
	SearchByName(ctx context.Context, name string) ([]*entities.Recording, error)
	DeleteById(ctx context.Context, id uuid.UUID) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) RecordingRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) Create(ctx context.Context, recording *entities.Recording) error {
	return r.db.WithContext(ctx).Create(recording).Error
}

func (r *repo) FindById(ctx context.Context, id uuid.UUID) (*entities.Recording, error) {
	recording := &entities.Recording{}
	err := r.db.WithContext(ctx).First(recording, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return recording, nil
}

func (r *repo) FindAll(ctx context.Context) ([]*entities.Recording, error) {
	var recordings []*entities.Recording
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&recordings).Error
	if err != nil {
		return nil, err
	}
	return recordings, nil
}

func (r *repo) SearchByName(ctx context.Context, name string) ([]*entities.Recording, error) {
	var recordings []*entities.Recording
	pattern := "%" + strings.ToLower(name) + "%"
	err := r.db.WithContext(ctx).Where("LOWER(name) LIKE ?", pattern).Order("created_at ASC").Find(&recordings).Error
	if err != nil {
		return nil, err
	}
	return recordings, nil
}

func (r *repo) DeleteById(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entities.Recording{}, "id = ?", id).Error
}
