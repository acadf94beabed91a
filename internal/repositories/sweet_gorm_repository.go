package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sweetshop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMSweetRepository is a GORM implementation of SweetRepository.
type GORMSweetRepository struct {
	db *gorm.DB
}

// NewGORMSweetRepository creates a new instance of GORMSweetRepository.
func NewGORMSweetRepository(db *gorm.DB) *GORMSweetRepository {
	return &GORMSweetRepository{
		db: db,
	}
}

// GetAll retrieves all sweets without their image payloads.
func (r *GORMSweetRepository) GetAll(ctx context.Context) ([]models.Sweet, error) {
	sweets := []models.Sweet{}
	if err := r.db.WithContext(ctx).Omit("image_data").Order("created_at").Find(&sweets).Error; err != nil {
		return nil, fmt.Errorf("failed to get all sweets: %w", err)
	}
	return sweets, nil
}

// Search retrieves the sweets matching every set field of the filter.
func (r *GORMSweetRepository) Search(ctx context.Context, filter models.SweetFilter) ([]models.Sweet, error) {
	q := r.db.WithContext(ctx).Omit("image_data").Order("created_at")
	if filter.Name != "" {
		q = r.whereContains(q, "name", filter.Name)
	}
	if filter.Category != "" {
		q = r.whereContains(q, "category", filter.Category)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}

	sweets := []models.Sweet{}
	if err := q.Find(&sweets).Error; err != nil {
		return nil, fmt.Errorf("failed to search sweets: %w", err)
	}
	return sweets, nil
}

// GetByID retrieves a single sweet, image included.
func (r *GORMSweetRepository) GetByID(ctx context.Context, id string) (*models.Sweet, error) {
	key, err := normalizeUUID(id)
	if err != nil {
		return nil, err
	}
	var sweet models.Sweet
	if err := r.db.WithContext(ctx).First(&sweet, "id = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get sweet by ID %s: %w", id, err)
	}
	return &sweet, nil
}

// Create inserts a new sweet and fills in its ID and creation time.
func (r *GORMSweetRepository) Create(ctx context.Context, sweet *models.Sweet) error {
	if sweet.ID == "" {
		sweet.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(sweet).Error; err != nil {
		return fmt.Errorf("failed to create sweet: %w", err)
	}
	return nil
}

// Update writes every supplied field in one statement.
func (r *GORMSweetRepository) Update(ctx context.Context, id string, changes models.SweetChanges) (*models.Sweet, error) {
	key, err := normalizeUUID(id)
	if err != nil {
		return nil, err
	}

	var sweet models.Sweet
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sweet, "id = ?", key).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
			}
			return err
		}

		columns := changeColumns(changes)
		if len(columns) == 0 {
			return nil
		}
		if err := tx.Model(&models.Sweet{}).Where("id = ?", key).Updates(columns).Error; err != nil {
			return err
		}
		changes.Apply(&sweet)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update sweet %s: %w", id, err)
	}
	return &sweet, nil
}

// Delete hard-deletes a sweet by its ID.
func (r *GORMSweetRepository) Delete(ctx context.Context, id string) error {
	key, err := normalizeUUID(id)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Delete(&models.Sweet{}, "id = ?", key)
	if res.Error != nil {
		return fmt.Errorf("failed to delete sweet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// AdjustQuantity runs a conditional UPDATE so concurrent purchases cannot oversell.
func (r *GORMSweetRepository) AdjustQuantity(ctx context.Context, id string, delta int) (*models.Sweet, error) {
	key, err := normalizeUUID(id)
	if err != nil {
		return nil, err
	}

	var sweet models.Sweet
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Sweet{}).Where("id = ?", key)
		if delta < 0 {
			q = q.Where("quantity >= ?", -delta)
		} else {
			q = q.Where("quantity <= ?", MaxQuantity-delta)
		}
		res := q.UpdateColumn("quantity", gorm.Expr("quantity + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Sweet{}).Where("id = ?", key).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
			}
			if delta > 0 {
				return ErrStockOverflow
			}
			return ErrInsufficientStock
		}
		return tx.First(&sweet, "id = ?", key).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrStockOverflow) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to adjust quantity of sweet %s: %w", id, err)
	}
	return &sweet, nil
}

func normalizeUUID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return parsed.String(), nil
}

func changeColumns(changes models.SweetChanges) map[string]interface{} {
	columns := make(map[string]interface{})
	if changes.Name != nil {
		columns["name"] = *changes.Name
	}
	if changes.Category != nil {
		columns["category"] = *changes.Category
	}
	if changes.Price != nil {
		columns["price"] = *changes.Price
	}
	if changes.Quantity != nil {
		columns["quantity"] = *changes.Quantity
	}
	if changes.Image != nil {
		columns["image_data"] = changes.Image.Data
		columns["image_content_type"] = changes.Image.ContentType
	}
	return columns
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereContains adds a case-insensitive substring match on column. Postgres
// folds with ILIKE. SQLite's LOWER only folds ASCII letters, so the pattern
// is folded the same way and other letters compare as written.
func (r *GORMSweetRepository) whereContains(q *gorm.DB, column, value string) *gorm.DB {
	pattern := "%" + likeEscaper.Replace(value) + "%"
	if r.db.Dialector.Name() == "postgres" {
		return q.Where(column+" ILIKE ? ESCAPE '\\'", pattern)
	}
	return q.Where("LOWER("+column+") LIKE ? ESCAPE '\\'", asciiLower(pattern))
}

func asciiLower(s string) string {
	return strings.Map(func(c rune) rune {
		if 'A' <= c && c <= 'Z' {
			return c + 'a' - 'A'
		}
		return c
	}, s)
}
