package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sweetshop/internal/metrics"
	"sweetshop/internal/models"
	"sweetshop/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/rs/zerolog"
)

// Client-facing validation messages.
const (
	msgAllRequired   = "All sweet properties are required."
	msgNegative      = "Price and quantity cannot be negative."
	msgBlankText     = "Name and category cannot be empty."
	msgInvalidID     = "Invalid sweet id."
	msgNotFound      = "Sweet not found."
	msgInsufficient  = "insufficient stock"
	msgInvalidFilter = "minPrice and maxPrice must be numbers."
	msgNonNumeric    = "Price and quantity must be numbers."
	msgTooMuchStock  = "Restock quantity is too large."
)

// EventPublisher sends inventory events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// AddSweetInput carries the fields of a new sweet. Pointers tell a missing
// field apart from a zero value.
type AddSweetInput struct {
	Name     *string  `validate:"required,notblank"`
	Category *string  `validate:"required,notblank"`
	Price    *float64 `validate:"required,gte=0"`
	Quantity *int     `validate:"required,gte=0"`
	Image    *models.Image
}

// EditSweetInput carries the subset of fields to overwrite.
type EditSweetInput struct {
	Name     *string  `validate:"omitempty,notblank"`
	Category *string  `validate:"omitempty,notblank"`
	Price    *float64 `validate:"omitempty,gte=0"`
	Quantity *int     `validate:"omitempty,gte=0"`
	Image    *models.Image
}

// SweetService handles business logic related to sweets.
type SweetService struct {
	repo      repositories.SweetRepository
	publisher EventPublisher
	metrics   *metrics.Metrics
	validate  *validator.Validate
	log       *zerolog.Logger
}

// NewSweetService creates a new SweetService. publisher and m may be nil.
func NewSweetService(repo repositories.SweetRepository, publisher EventPublisher, m *metrics.Metrics, log *zerolog.Logger) *SweetService {
	validate := validator.New()
	if err := validate.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return &SweetService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		validate:  validate,
		log:       log,
	}
}

// AddSweet validates and stores a new sweet.
func (s *SweetService) AddSweet(ctx context.Context, in AddSweetInput) (sweet *models.Sweet, err error) {
	defer func() { s.observe("add", err) }()

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err, msgAllRequired)
	}

	sweet = &models.Sweet{
		Name:     strings.TrimSpace(*in.Name),
		Category: strings.TrimSpace(*in.Category),
		Price:    *in.Price,
		Quantity: *in.Quantity,
	}
	if in.Image != nil {
		sweet.ImageData = in.Image.Data
		sweet.ImageContentType = in.Image.ContentType
	}

	if err := s.repo.Create(ctx, sweet); err != nil {
		return nil, s.storeError("adding sweet", err)
	}
	s.publish(ctx, models.EventSweetCreated, sweet, 0)
	return sweet, nil
}

// ListSweets returns every sweet.
func (s *SweetService) ListSweets(ctx context.Context) (sweets []models.Sweet, err error) {
	defer func() { s.observe("list", err) }()

	sweets, err = s.repo.GetAll(ctx)
	if err != nil {
		return nil, s.storeError("listing sweets", err)
	}
	return sweets, nil
}

// SearchSweets returns the sweets matching filter. An empty filter lists everything.
func (s *SweetService) SearchSweets(ctx context.Context, filter models.SweetFilter) (sweets []models.Sweet, err error) {
	defer func() { s.observe("search", err) }()

	filter.Name = strings.TrimSpace(filter.Name)
	filter.Category = strings.TrimSpace(filter.Category)
	if filter.IsZero() {
		sweets, err = s.repo.GetAll(ctx)
	} else {
		sweets, err = s.repo.Search(ctx, filter)
	}
	if err != nil {
		return nil, s.storeError("searching sweets", err)
	}
	return sweets, nil
}

// GetSweet returns one sweet including its image.
func (s *SweetService) GetSweet(ctx context.Context, id string) (sweet *models.Sweet, err error) {
	defer func() { s.observe("get", err) }()

	sweet, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError("fetching sweet", err)
	}
	return sweet, nil
}

// RemoveSweet deletes a sweet for good.
func (s *SweetService) RemoveSweet(ctx context.Context, id string) (err error) {
	defer func() { s.observe("remove", err) }()

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.storeError("deleting sweet", err)
	}
	s.publish(ctx, models.EventSweetDeleted, &models.Sweet{ID: id}, 0)
	return nil
}

// EditSweet validates the whole change set before writing it in one step.
// A failed validation leaves the stored sweet untouched.
func (s *SweetService) EditSweet(ctx context.Context, id string, in EditSweetInput) (sweet *models.Sweet, err error) {
	defer func() { s.observe("edit", err) }()

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err, msgBlankText)
	}

	changes := models.SweetChanges{
		Price:    in.Price,
		Quantity: in.Quantity,
		Image:    in.Image,
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		changes.Name = &name
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		changes.Category = &category
	}

	sweet, err = s.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, s.storeError("updating sweet", err)
	}
	if !changes.Empty() {
		s.publish(ctx, models.EventSweetUpdated, sweet, 0)
	}
	return sweet, nil
}

// PurchaseSweet removes quantity units from stock. It fails without touching
// the stock when fewer units are available.
func (s *SweetService) PurchaseSweet(ctx context.Context, id string, quantity int) (sweet *models.Sweet, err error) {
	defer func() { s.observe("purchase", err) }()
	return s.adjust(ctx, id, quantity, -1, "Purchase", models.EventSweetPurchased)
}

// RestockSweet adds quantity units to stock.
func (s *SweetService) RestockSweet(ctx context.Context, id string, quantity int) (sweet *models.Sweet, err error) {
	defer func() { s.observe("restock", err) }()
	return s.adjust(ctx, id, quantity, 1, "Restock", models.EventSweetRestocked)
}

func (s *SweetService) adjust(ctx context.Context, id string, quantity, sign int, action, event string) (*models.Sweet, error) {
	if err := s.validate.Var(quantity, "gt=0"); err != nil {
		return nil, InvalidQuantity(action)
	}

	delta := sign * quantity
	sweet, err := s.repo.AdjustQuantity(ctx, id, delta)
	if err != nil {
		return nil, s.storeError("adjusting stock", err)
	}
	s.metrics.ObserveStock(delta)
	s.publish(ctx, event, sweet, delta)
	return sweet, nil
}

// ParsePriceBound parses an optional minPrice/maxPrice query value.
func ParsePriceBound(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, invalidInput(msgInvalidFilter)
	}
	return &v, nil
}

func (s *SweetService) publish(ctx context.Context, event string, sweet *models.Sweet, delta int) {
	if s.publisher == nil {
		return
	}
	payload := models.SweetEvent{
		Type:       event,
		SweetID:    sweet.ID,
		Name:       sweet.Name,
		Quantity:   sweet.Quantity,
		Delta:      delta,
		Staff:      StaffFrom(ctx),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Str("sweet_id", sweet.ID).Msg("failed to publish inventory event")
	}
}

func (s *SweetService) observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	s.metrics.ObserveOperation(operation, outcome)
}

// storeError converts a repository error into the service taxonomy.
func (s *SweetService) storeError(action string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrInvalidID):
		return &Error{Kind: InvalidInput, Message: msgInvalidID, Err: err}
	case errors.Is(err, repositories.ErrNotFound):
		return &Error{Kind: NotFound, Message: msgNotFound, Err: err}
	case errors.Is(err, repositories.ErrInsufficientStock):
		return &Error{Kind: InvalidInput, Message: msgInsufficient, Err: err}
	case errors.Is(err, repositories.ErrStockOverflow):
		return &Error{Kind: InvalidInput, Message: msgTooMuchStock, Err: err}
	}
	s.log.Error().Err(err).Msg("store failure while " + action)
	return &Error{Kind: ServerError, Message: fmt.Sprintf("Server error while %s.", action), Err: err}
}

// validationError picks the message for the most basic rule that failed:
// a missing field outranks a blank one, which outranks a negative number.
func validationError(err error, blankMsg string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Kind: InvalidInput, Message: msgAllRequired, Err: err}
	}
	msg := msgNegative
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			return &Error{Kind: InvalidInput, Message: msgAllRequired, Err: err}
		case "notblank":
			msg = blankMsg
		}
	}
	return &Error{Kind: InvalidInput, Message: msg, Err: err}
}
