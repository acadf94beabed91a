package repositories

import (
	"context"
	"errors"
	"math"

	"sweetshop/internal/models"
)

var (
	// ErrNotFound is returned when no sweet matches the given id.
	ErrNotFound = errors.New("sweet not found")
	// ErrInvalidID is returned when an id does not fit the store's id format.
	ErrInvalidID = errors.New("invalid sweet id")
	// ErrInsufficientStock is returned when a decrement would leave a negative quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStockOverflow is returned when an increment would pass MaxQuantity.
	ErrStockOverflow = errors.New("stock quantity overflow")
)

// MaxQuantity is the largest stock a sweet can hold.
const MaxQuantity = math.MaxInt

// SweetRepository defines the interface for sweet data access.
type SweetRepository interface {
	GetAll(ctx context.Context) ([]models.Sweet, error)
	Search(ctx context.Context, filter models.SweetFilter) ([]models.Sweet, error)
	GetByID(ctx context.Context, id string) (*models.Sweet, error)
	Create(ctx context.Context, sweet *models.Sweet) error
	// Update applies all changes in a single write and returns the stored record.
	Update(ctx context.Context, id string, changes models.SweetChanges) (*models.Sweet, error)
	Delete(ctx context.Context, id string) error
	// AdjustQuantity adds delta to the stock in one atomic step. A negative
	// delta only succeeds when the current stock covers it; a positive one
	// only while the result stays within MaxQuantity.
	AdjustQuantity(ctx context.Context, id string, delta int) (*models.Sweet, error)
}
