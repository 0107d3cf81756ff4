package repository

import (
	"context"
	"errors"
	"time"

	"taptunes/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardRepository defines card persistence, keyed by the normalized card id.
type CardRepository interface {
	Upsert(ctx context.Context, card *model.Card) error
	GetByID(ctx context.Context, cardID string) (*model.Card, error)
	List(ctx context.Context) ([]model.Card, error)
	Delete(ctx context.Context, cardID string) error
	RecordUsage(ctx context.Context, cardID string) error
}

// gormCardRepository implements CardRepository with GORM.
type gormCardRepository struct {
	db *gorm.DB
}

// NewGormCardRepository creates a GORM-backed card repository.
func NewGormCardRepository(db *gorm.DB) CardRepository {
	return &gormCardRepository{db: db}
}

// Upsert creates the card or replaces its assignment when the id exists.
func (r *gormCardRepository) Upsert(ctx context.Context, card *model.Card) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "card_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "type", "target_id", "action", "updated_at",
		}),
	}).Create(card).Error
}

// GetByID retrieves a card. Returns (nil, nil) when no such card exists.
func (r *gormCardRepository) GetByID(ctx context.Context, cardID string) (*model.Card, error) {
	var card model.Card
	err := r.db.WithContext(ctx).First(&card, "card_id = ?", cardID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// List returns all registered cards, most recently used first.
func (r *gormCardRepository) List(ctx context.Context) ([]model.Card, error) {
	var cards []model.Card
	err := r.db.WithContext(ctx).
		Order("last_used_at IS NULL, last_used_at DESC").
		Find(&cards).Error
	return cards, err
}

// Delete removes a card registration.
func (r *gormCardRepository) Delete(ctx context.Context, cardID string) error {
	return r.db.WithContext(ctx).Delete(&model.Card{}, "card_id = ?", cardID).Error
}

// RecordUsage bumps the card's usage counter and last-used timestamp.
func (r *gormCardRepository) RecordUsage(ctx context.Context, cardID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Card{}).
		Where("card_id = ?", cardID).
		UpdateColumns(map[string]interface{}{
			"use_count":    gorm.Expr("use_count + 1"),
			"last_used_at": now,
		}).Error
}
