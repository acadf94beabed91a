package handlers

import (
	"encoding/base64"
	"time"

	"sweetshop/internal/middleware"
	"sweetshop/internal/models"
	"sweetshop/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ImageField is the multipart field carrying a sweet's picture.
const ImageField = "image"

// SweetHandler handles HTTP requests for sweets.
type SweetHandler struct {
	service *services.SweetService
	log     *zerolog.Logger
}

// NewSweetHandler creates a new SweetHandler.
func NewSweetHandler(service *services.SweetService, log *zerolog.Logger) *SweetHandler {
	return &SweetHandler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers the sweet routes. When guard is not nil it runs
// before every stock-changing route except purchase.
func (h *SweetHandler) RegisterRoutes(router fiber.Router, guard fiber.Handler) {
	upload := middleware.ImageUpload(ImageField)

	sweetRoutes := router.Group("/sweets")
	sweetRoutes.Post("/", guarded(guard, upload, h.HandleAdd)...)
	sweetRoutes.Get("/", h.HandleList)
	sweetRoutes.Get("/search", h.HandleSearch)
	sweetRoutes.Get("/:id", h.HandleGet)
	sweetRoutes.Get("/:id/image", h.HandleGetImage)
	sweetRoutes.Put("/:id", guarded(guard, upload, h.HandleEdit)...)
	sweetRoutes.Delete("/:id", guarded(guard, h.HandleRemove)...)
	sweetRoutes.Post("/:id/purchase", h.HandlePurchase)
	sweetRoutes.Post("/:id/restock", guarded(guard, h.HandleRestock)...)
}

func guarded(guard fiber.Handler, handlers ...fiber.Handler) []fiber.Handler {
	if guard == nil {
		return handlers
	}
	return append([]fiber.Handler{guard}, handlers...)
}

// sweetRequest is the body of add and edit, as JSON or multipart form.
// Price and quantity may arrive as numbers or numeric strings.
type sweetRequest struct {
	Name     *string `json:"name" form:"name"`
	Category *string `json:"category" form:"category"`
	Price    *number `json:"price" form:"price"`
	Quantity *number `json:"quantity" form:"quantity"`
}

// numbers coerces price to float and quantity to int.
func (r *sweetRequest) numbers() (*float64, *int, error) {
	price, ok := floatField(r.Price)
	if !ok {
		return nil, nil, services.NonNumeric()
	}
	quantity, ok := intField(r.Quantity)
	if !ok {
		return nil, nil, services.NonNumeric()
	}
	return price, quantity, nil
}

// stockRequest is the body of purchase and restock.
type stockRequest struct {
	Quantity *number `json:"quantity" form:"quantity"`
}

// sweetResponse is the wire form of a sweet. Image is only filled in on
// single-sweet reads.
type sweetResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	Price            float64   `json:"price"`
	Quantity         int       `json:"quantity"`
	CreatedAt        time.Time `json:"createdAt"`
	HasImage         bool      `json:"hasImage"`
	Image            string    `json:"image,omitempty"`
	ImageContentType string    `json:"imageContentType,omitempty"`
}

func newSweetResponse(s *models.Sweet, withImage bool) sweetResponse {
	resp := sweetResponse{
		ID:        s.ID,
		Name:      s.Name,
		Category:  s.Category,
		Price:     s.Price,
		Quantity:  s.Quantity,
		CreatedAt: s.CreatedAt,
		HasImage:  s.HasImage(),
	}
	if withImage && s.HasImage() {
		resp.Image = base64.StdEncoding.EncodeToString(s.ImageData)
		resp.ImageContentType = s.ImageContentType
	}
	return resp
}

func newSweetListResponse(sweets []models.Sweet) []sweetResponse {
	resp := make([]sweetResponse, 0, len(sweets))
	for i := range sweets {
		resp = append(resp, newSweetResponse(&sweets[i], false))
	}
	return resp
}

// HandleAdd creates a new sweet.
func (h *SweetHandler) HandleAdd(c *fiber.Ctx) error {
	var req sweetRequest
	if err := parseBody(c, &req); err != nil {
		return h.invalidBody(c, err)
	}
	price, quantity, err := req.numbers()
	if err != nil {
		return writeError(c, err)
	}

	sweet, err := h.service.AddSweet(c.UserContext(), services.AddSweetInput{
		Name:     req.Name,
		Category: req.Category,
		Price:    price,
		Quantity: quantity,
		Image:    middleware.UploadedImage(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newSweetResponse(sweet, false))
}

// HandleList returns every sweet.
func (h *SweetHandler) HandleList(c *fiber.Ctx) error {
	sweets, err := h.service.ListSweets(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(newSweetListResponse(sweets))
}

// HandleSearch filters sweets by name, category and price range.
func (h *SweetHandler) HandleSearch(c *fiber.Ctx) error {
	minPrice, err := services.ParsePriceBound(c.Query("minPrice"))
	if err != nil {
		return writeError(c, err)
	}
	maxPrice, err := services.ParsePriceBound(c.Query("maxPrice"))
	if err != nil {
		return writeError(c, err)
	}

	sweets, err := h.service.SearchSweets(c.UserContext(), models.SweetFilter{
		Name:     c.Query("name"),
		Category: c.Query("category"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(newSweetListResponse(sweets))
}

// HandleGet returns one sweet with its image as base64.
func (h *SweetHandler) HandleGet(c *fiber.Ctx) error {
	sweet, err := h.service.GetSweet(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(newSweetResponse(sweet, true))
}

// HandleGetImage streams the raw image of a sweet.
func (h *SweetHandler) HandleGetImage(c *fiber.Ctx) error {
	sweet, err := h.service.GetSweet(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if !sweet.HasImage() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sweet has no image.",
		})
	}
	c.Set(fiber.HeaderContentType, sweet.ImageContentType)
	return c.Send(sweet.ImageData)
}

// HandleEdit overwrites the supplied fields of a sweet.
func (h *SweetHandler) HandleEdit(c *fiber.Ctx) error {
	var req sweetRequest
	if err := parseBody(c, &req); err != nil {
		return h.invalidBody(c, err)
	}
	price, quantity, err := req.numbers()
	if err != nil {
		return writeError(c, err)
	}

	sweet, err := h.service.EditSweet(c.UserContext(), c.Params("id"), services.EditSweetInput{
		Name:     req.Name,
		Category: req.Category,
		Price:    price,
		Quantity: quantity,
		Image:    middleware.UploadedImage(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(newSweetResponse(sweet, false))
}

// HandleRemove deletes a sweet.
func (h *SweetHandler) HandleRemove(c *fiber.Ctx) error {
	if err := h.service.RemoveSweet(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandlePurchase takes units out of stock.
func (h *SweetHandler) HandlePurchase(c *fiber.Ctx) error {
	quantity, ok := parseStockQuantity(c)
	if !ok {
		return writeError(c, services.InvalidQuantity("Purchase"))
	}
	sweet, err := h.service.PurchaseSweet(c.UserContext(), c.Params("id"), quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(newSweetResponse(sweet, false))
}

// HandleRestock puts units back into stock.
func (h *SweetHandler) HandleRestock(c *fiber.Ctx) error {
	quantity, ok := parseStockQuantity(c)
	if !ok {
		return writeError(c, services.InvalidQuantity("Restock"))
	}
	sweet, err := h.service.RestockSweet(c.UserContext(), c.Params("id"), quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(newSweetResponse(sweet, false))
}

// parseBody decodes a JSON or form body. An empty body leaves dst untouched.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.BodyParser(dst)
}

func parseStockQuantity(c *fiber.Ctx) (int, bool) {
	var req stockRequest
	if err := parseBody(c, &req); err != nil || req.Quantity == nil {
		return 0, false
	}
	return req.Quantity.Int()
}

func (h *SweetHandler) invalidBody(c *fiber.Ctx, err error) error {
	h.log.Debug().Err(err).Str("path", c.Path()).Msg("invalid request body")
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body.",
	})
}
