package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sweetshop/internal/metrics"
	"sweetshop/internal/models"
	"sweetshop/internal/repositories"
	"sweetshop/internal/services"
	"sweetshop/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSweetRepository is a mock implementation of repositories.SweetRepository
type MockSweetRepository struct {
	mock.Mock
}

func (m *MockSweetRepository) GetAll(ctx context.Context) ([]models.Sweet, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Sweet), args.Error(1)
}

func (m *MockSweetRepository) Search(ctx context.Context, filter models.SweetFilter) ([]models.Sweet, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Sweet), args.Error(1)
}

func (m *MockSweetRepository) GetByID(ctx context.Context, id string) (*models.Sweet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Sweet), args.Error(1)
}

func (m *MockSweetRepository) Create(ctx context.Context, sweet *models.Sweet) error {
	args := m.Called(ctx, sweet)
	return args.Error(0)
}

func (m *MockSweetRepository) Update(ctx context.Context, id string, changes models.SweetChanges) (*models.Sweet, error) {
	args := m.Called(ctx, id, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Sweet), args.Error(1)
}

func (m *MockSweetRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSweetRepository) AdjustQuantity(ctx context.Context, id string, delta int) (*models.Sweet, error) {
	args := m.Called(ctx, id, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Sweet), args.Error(1)
}

// MockPublisher records published inventory events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

func newService(repo *MockSweetRepository, pub services.EventPublisher) *services.SweetService {
	return services.NewSweetService(repo, pub, nil, logger.Nop())
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func assertServiceError(t *testing.T, err error, kind services.ErrorKind, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, services.KindOf(err))
	assert.Equal(t, msg, services.MessageOf(err))
}

func TestSweetService_AddSweet(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := newService(mockRepo, pub)

	mockRepo.On("Create", ctx, mock.MatchedBy(func(s *models.Sweet) bool {
		return s.Name == "Kaju Katli" && s.Category == "Nut-Based" && s.Price == 50 && s.Quantity == 20
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Sweet).ID = "sweet-1"
	}).Return(nil).Once()
	pub.On("Publish", ctx, models.EventSweetCreated, mock.MatchedBy(func(e models.SweetEvent) bool {
		return e.SweetID == "sweet-1" && e.Quantity == 20
	})).Return(nil).Once()

	sweet, err := service.AddSweet(ctx, services.AddSweetInput{
		Name:     strPtr("  Kaju Katli "),
		Category: strPtr("Nut-Based"),
		Price:    floatPtr(50),
		Quantity: intPtr(20),
	})

	require.NoError(t, err)
	assert.Equal(t, "sweet-1", sweet.ID)
	assert.Equal(t, "Kaju Katli", sweet.Name)
	mockRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweetService_AddSweet_WithImage(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	service := newService(mockRepo, nil)

	img := &models.Image{Data: []byte{1, 2, 3}, ContentType: "image/png"}
	mockRepo.On("Create", ctx, mock.MatchedBy(func(s *models.Sweet) bool {
		return s.ImageContentType == "image/png" && len(s.ImageData) == 3
	})).Return(nil).Once()

	sweet, err := service.AddSweet(ctx, services.AddSweetInput{
		Name:     strPtr("Barfi"),
		Category: strPtr("Milk-Based"),
		Price:    floatPtr(0),
		Quantity: intPtr(0),
		Image:    img,
	})

	require.NoError(t, err)
	assert.True(t, sweet.HasImage())
	mockRepo.AssertExpectations(t)
}

func TestSweetService_AddSweet_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input services.AddSweetInput
		msg   string
	}{
		{
			name:  "missing name",
			input: services.AddSweetInput{Category: strPtr("Nut-Based"), Price: floatPtr(1), Quantity: intPtr(1)},
			msg:   "All sweet properties are required.",
		},
		{
			name:  "missing quantity",
			input: services.AddSweetInput{Name: strPtr("Ladoo"), Category: strPtr("Flour-Based"), Price: floatPtr(1)},
			msg:   "All sweet properties are required.",
		},
		{
			name:  "blank name",
			input: services.AddSweetInput{Name: strPtr("   "), Category: strPtr("Flour-Based"), Price: floatPtr(1), Quantity: intPtr(1)},
			msg:   "All sweet properties are required.",
		},
		{
			name:  "negative price",
			input: services.AddSweetInput{Name: strPtr("Ladoo"), Category: strPtr("Flour-Based"), Price: floatPtr(-1), Quantity: intPtr(1)},
			msg:   "Price and quantity cannot be negative.",
		},
		{
			name:  "negative quantity",
			input: services.AddSweetInput{Name: strPtr("Ladoo"), Category: strPtr("Flour-Based"), Price: floatPtr(1), Quantity: intPtr(-5)},
			msg:   "Price and quantity cannot be negative.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockSweetRepository)
			service := newService(mockRepo, nil)

			_, err := service.AddSweet(context.Background(), tt.input)

			assertServiceError(t, err, services.InvalidInput, tt.msg)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestSweetService_AddSweet_StoreFailure(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	service := newService(mockRepo, nil)

	mockRepo.On("Create", ctx, mock.Anything).Return(errors.New("connection refused")).Once()

	_, err := service.AddSweet(ctx, services.AddSweetInput{
		Name:     strPtr("Ladoo"),
		Category: strPtr("Flour-Based"),
		Price:    floatPtr(10),
		Quantity: intPtr(1),
	})

	assertServiceError(t, err, services.ServerError, "Server error while adding sweet.")
	mockRepo.AssertExpectations(t)
}

func TestSweetService_ListSweets(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	service := newService(mockRepo, nil)

	expected := []models.Sweet{
		{ID: "1", Name: "Ladoo", Category: "Flour-Based", Price: 10, Quantity: 5},
		{ID: "2", Name: "Barfi", Category: "Milk-Based", Price: 20, Quantity: 3},
	}
	mockRepo.On("GetAll", ctx).Return(expected, nil).Once()

	sweets, err := service.ListSweets(ctx)

	require.NoError(t, err)
	assert.Equal(t, expected, sweets)
	mockRepo.AssertExpectations(t)
}

func TestSweetService_SearchSweets(t *testing.T) {
	ctx := context.Background()

	t.Run("empty filter lists everything", func(t *testing.T) {
		mockRepo := new(MockSweetRepository)
		service := newService(mockRepo, nil)
		mockRepo.On("GetAll", ctx).Return([]models.Sweet{}, nil).Once()

		_, err := service.SearchSweets(ctx, models.SweetFilter{Name: "  "})

		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
		mockRepo.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("filters are trimmed and passed through", func(t *testing.T) {
		mockRepo := new(MockSweetRepository)
		service := newService(mockRepo, nil)
		filter := models.SweetFilter{Category: "Vegetable-Based", MinPrice: floatPtr(20)}
		mockRepo.On("Search", ctx, filter).Return([]models.Sweet{{ID: "1"}}, nil).Once()

		sweets, err := service.SearchSweets(ctx, models.SweetFilter{Category: " Vegetable-Based ", MinPrice: floatPtr(20)})

		require.NoError(t, err)
		assert.Len(t, sweets, 1)
		mockRepo.AssertExpectations(t)
	})

	t.Run("store failure", func(t *testing.T) {
		mockRepo := new(MockSweetRepository)
		service := newService(mockRepo, nil)
		mockRepo.On("Search", ctx, mock.Anything).Return(nil, errors.New("boom")).Once()

		_, err := service.SearchSweets(ctx, models.SweetFilter{Name: "x"})

		assertServiceError(t, err, services.ServerError, "Server error while searching sweets.")
	})
}

func TestSweetService_GetSweet(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	service := newService(mockRepo, nil)

	expected := &models.Sweet{ID: "abc", Name: "Peda"}
	mockRepo.On("GetByID", ctx, "abc").Return(expected, nil).Once()
	mockRepo.On("GetByID", ctx, "missing").Return(nil, fmt.Errorf("sweet with ID missing: %w", repositories.ErrNotFound)).Once()
	mockRepo.On("GetByID", ctx, "bad").Return(nil, fmt.Errorf("%w: %q", repositories.ErrInvalidID, "bad")).Once()

	sweet, err := service.GetSweet(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, expected, sweet)

	_, err = service.GetSweet(ctx, "missing")
	assertServiceError(t, err, services.NotFound, "Sweet not found.")

	_, err = service.GetSweet(ctx, "bad")
	assertServiceError(t, err, services.InvalidInput, "Invalid sweet id.")

	mockRepo.AssertExpectations(t)
}

func TestSweetService_RemoveSweet(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := newService(mockRepo, pub)

	mockRepo.On("Delete", ctx, "abc").Return(nil).Once()
	mockRepo.On("Delete", ctx, "gone").Return(repositories.ErrNotFound).Once()
	pub.On("Publish", ctx, models.EventSweetDeleted, mock.Anything).Return(nil).Once()

	require.NoError(t, service.RemoveSweet(ctx, "abc"))
	assertServiceError(t, service.RemoveSweet(ctx, "gone"), services.NotFound, "Sweet not found.")

	mockRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweetService_EditSweet(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := newService(mockRepo, pub)

	changes := models.SweetChanges{Name: strPtr("Kaju Barfi"), Price: floatPtr(55)}
	updated := &models.Sweet{ID: "abc", Name: "Kaju Barfi", Category: "Nut-Based", Price: 55, Quantity: 20}
	mockRepo.On("Update", ctx, "abc", changes).Return(updated, nil).Once()
	pub.On("Publish", ctx, models.EventSweetUpdated, mock.Anything).Return(errors.New("broker down")).Once()

	sweet, err := service.EditSweet(ctx, "abc", services.EditSweetInput{
		Name:  strPtr(" Kaju Barfi "),
		Price: floatPtr(55),
	})

	// a failed publish does not fail the edit
	require.NoError(t, err)
	assert.Equal(t, updated, sweet)
	mockRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweetService_EditSweet_EmptyBody(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := newService(mockRepo, pub)

	current := &models.Sweet{ID: "abc", Name: "Peda", Quantity: 3}
	mockRepo.On("Update", ctx, "abc", models.SweetChanges{}).Return(current, nil).Once()

	sweet, err := service.EditSweet(ctx, "abc", services.EditSweetInput{})

	require.NoError(t, err)
	assert.Equal(t, current, sweet)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweetService_EditSweet_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input services.EditSweetInput
		msg   string
	}{
		{"negative price", services.EditSweetInput{Price: floatPtr(-0.5)}, "Price and quantity cannot be negative."},
		{"negative quantity", services.EditSweetInput{Name: strPtr("Ok"), Quantity: intPtr(-1)}, "Price and quantity cannot be negative."},
		{"blank category", services.EditSweetInput{Category: strPtr(" ")}, "Name and category cannot be empty."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockSweetRepository)
			service := newService(mockRepo, nil)

			_, err := service.EditSweet(context.Background(), "abc", tt.input)

			assertServiceError(t, err, services.InvalidInput, tt.msg)
			mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSweetService_PurchaseSweet(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := newService(mockRepo, pub)

	mockRepo.On("AdjustQuantity", ctx, "abc", -3).Return(&models.Sweet{ID: "abc", Name: "Kaju Katli", Quantity: 17}, nil).Once()
	mockRepo.On("AdjustQuantity", ctx, "abc", -100).Return(nil, repositories.ErrInsufficientStock).Once()
	pub.On("Publish", ctx, models.EventSweetPurchased, mock.MatchedBy(func(e models.SweetEvent) bool {
		return e.Quantity == 17 && e.Delta == -3 && e.Staff == ""
	})).Return(nil).Once()

	sweet, err := service.PurchaseSweet(ctx, "abc", 3)
	require.NoError(t, err)
	assert.Equal(t, 17, sweet.Quantity)

	_, err = service.PurchaseSweet(ctx, "abc", 100)
	assertServiceError(t, err, services.InvalidInput, "insufficient stock")

	mockRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweetService_StockQuantityMustBePositive(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	service := newService(mockRepo, nil)

	for _, qty := range []int{0, -4} {
		_, err := service.PurchaseSweet(ctx, "abc", qty)
		assertServiceError(t, err, services.InvalidInput, "Purchase quantity must be a positive integer.")

		_, err = service.RestockSweet(ctx, "abc", qty)
		assertServiceError(t, err, services.InvalidInput, "Restock quantity must be a positive integer.")
	}
	mockRepo.AssertNotCalled(t, "AdjustQuantity", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweetService_RestockSweet(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	service := newService(mockRepo, nil)

	mockRepo.On("AdjustQuantity", ctx, "abc", 10).Return(&models.Sweet{ID: "abc", Quantity: 27}, nil).Once()
	mockRepo.On("AdjustQuantity", ctx, "gone", 10).Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("AdjustQuantity", ctx, "full", 10).Return(nil, repositories.ErrStockOverflow).Once()

	sweet, err := service.RestockSweet(ctx, "abc", 10)
	require.NoError(t, err)
	assert.Equal(t, 27, sweet.Quantity)

	_, err = service.RestockSweet(ctx, "gone", 10)
	assertServiceError(t, err, services.NotFound, "Sweet not found.")

	_, err = service.RestockSweet(ctx, "full", 10)
	assertServiceError(t, err, services.InvalidInput, "Restock quantity is too large.")
	mockRepo.AssertExpectations(t)
}

func TestSweetService_EventsNameTheStaff(t *testing.T) {
	ctx := services.WithStaff(context.Background(), "admin")
	mockRepo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := newService(mockRepo, pub)

	mockRepo.On("AdjustQuantity", ctx, "abc", 4).Return(&models.Sweet{ID: "abc", Quantity: 9}, nil).Once()
	pub.On("Publish", ctx, models.EventSweetRestocked, mock.MatchedBy(func(e models.SweetEvent) bool {
		return e.Staff == "admin" && e.Delta == 4
	})).Return(nil).Once()

	_, err := service.RestockSweet(ctx, "abc", 4)
	require.NoError(t, err)
	assert.Equal(t, "admin", services.StaffFrom(ctx))
	assert.Empty(t, services.StaffFrom(context.Background()))

	mockRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweetService_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockSweetRepository)
	m := metrics.New(prometheus.NewRegistry())
	service := services.NewSweetService(mockRepo, nil, m, logger.Nop())

	mockRepo.On("AdjustQuantity", ctx, "abc", -2).Return(&models.Sweet{ID: "abc", Quantity: 1}, nil).Once()
	mockRepo.On("GetByID", ctx, "gone").Return(nil, repositories.ErrNotFound).Once()

	_, err := service.PurchaseSweet(ctx, "abc", 2)
	require.NoError(t, err)
	_, _ = service.GetSweet(ctx, "gone")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("purchase", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("get", "not_found")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StockUnits.WithLabelValues("out")))
}

func TestParsePriceBound(t *testing.T) {
	v, err := services.ParsePriceBound("")
	assert.NoError(t, err)
	assert.Nil(t, v)

	v, err = services.ParsePriceBound(" 20.5 ")
	require.NoError(t, err)
	assert.Equal(t, 20.5, *v)

	for _, raw := range []string{"abc", "20abc", "NaN", "Inf"} {
		_, err = services.ParsePriceBound(raw)
		assertServiceError(t, err, services.InvalidInput, "minPrice and maxPrice must be numbers.")
	}
}
