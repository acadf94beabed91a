package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sweetshop/internal/models"

	"github.com/google/uuid"
)

// MemorySweetRepository is an in-memory implementation of SweetRepository.
type MemorySweetRepository struct {
	sweets map[string]models.Sweet
	mu     sync.RWMutex
}

// NewMemorySweetRepository creates a new instance of MemorySweetRepository.
func NewMemorySweetRepository() *MemorySweetRepository {
	return &MemorySweetRepository{
		sweets: make(map[string]models.Sweet),
	}
}

// GetAll returns all sweets, oldest first.
func (r *MemorySweetRepository) GetAll(ctx context.Context) ([]models.Sweet, error) {
	return r.Search(ctx, models.SweetFilter{})
}

// Search returns the sweets matching every set field of the filter.
func (r *MemorySweetRepository) Search(_ context.Context, filter models.SweetFilter) ([]models.Sweet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := strings.ToLower(filter.Name)
	category := strings.ToLower(filter.Category)

	sweetList := make([]models.Sweet, 0, len(r.sweets))
	for _, s := range r.sweets {
		if name != "" && !strings.Contains(strings.ToLower(s.Name), name) {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(s.Category), category) {
			continue
		}
		if filter.MinPrice != nil && s.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && s.Price > *filter.MaxPrice {
			continue
		}
		s.ImageData = nil
		sweetList = append(sweetList, s)
	}
	sort.Slice(sweetList, func(i, j int) bool {
		return sweetList[i].CreatedAt.Before(sweetList[j].CreatedAt)
	})
	return sweetList, nil
}

// GetByID returns a sweet by its ID.
func (r *MemorySweetRepository) GetByID(_ context.Context, id string) (*models.Sweet, error) {
	key, err := normalizeUUID(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sweet, ok := r.sweets[key]
	if !ok {
		return nil, fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
	}
	return &sweet, nil
}

// Create adds a new sweet.
func (r *MemorySweetRepository) Create(_ context.Context, sweet *models.Sweet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sweet.ID == "" {
		sweet.ID = uuid.New().String()
	}
	if sweet.CreatedAt.IsZero() {
		sweet.CreatedAt = time.Now()
	}
	r.sweets[sweet.ID] = *sweet
	return nil
}

// Update applies the changes under the write lock.
func (r *MemorySweetRepository) Update(_ context.Context, id string, changes models.SweetChanges) (*models.Sweet, error) {
	key, err := normalizeUUID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sweet, ok := r.sweets[key]
	if !ok {
		return nil, fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
	}
	changes.Apply(&sweet)
	r.sweets[key] = sweet
	return &sweet, nil
}

// Delete removes a sweet by its ID.
func (r *MemorySweetRepository) Delete(_ context.Context, id string) error {
	key, err := normalizeUUID(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sweets[key]; !ok {
		return fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
	}
	delete(r.sweets, key)
	return nil
}

// AdjustQuantity changes the stock by delta, refusing to go below zero or
// past MaxQuantity.
func (r *MemorySweetRepository) AdjustQuantity(_ context.Context, id string, delta int) (*models.Sweet, error) {
	key, err := normalizeUUID(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sweet, ok := r.sweets[key]
	if !ok {
		return nil, fmt.Errorf("sweet with ID %s: %w", id, ErrNotFound)
	}
	if delta < 0 && sweet.Quantity < -delta {
		return nil, ErrInsufficientStock
	}
	if delta > 0 && sweet.Quantity > MaxQuantity-delta {
		return nil, ErrStockOverflow
	}
	sweet.Quantity += delta
	r.sweets[key] = sweet
	return &sweet, nil
}
