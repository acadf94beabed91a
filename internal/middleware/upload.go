package middleware

import (
	"io"
	"strings"

	"sweetshop/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/h2non/filetype"
)

const imageLocalsKey = "upload.image"

// declared content types accepted from the client; "image/jpg" is a common
// non-standard alias for JPEG.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// ImageUpload decodes an optional image from the multipart field. Requests
// that are not multipart, or carry no file, pass through untouched. A file
// that is not a JPEG or PNG, by declared type or by content, is rejected
// with 400 before the handler runs.
func ImageUpload(field string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
			return c.Next()
		}

		form, err := c.MultipartForm()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid multipart body.",
			})
		}
		files := form.File[field]
		if len(files) == 0 || files[0].Size == 0 {
			return c.Next()
		}
		fh := files[0]

		declared := strings.ToLower(strings.TrimSpace(fh.Header.Get(fiber.HeaderContentType)))
		if !allowedImageTypes[declared] {
			return rejectImage(c)
		}

		f, err := fh.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Could not read uploaded image.",
			})
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Could not read uploaded image.",
			})
		}

		var contentType string
		switch {
		case filetype.Is(data, "jpg"):
			contentType = "image/jpeg"
		case filetype.Is(data, "png"):
			contentType = "image/png"
		default:
			return rejectImage(c)
		}

		c.Locals(imageLocalsKey, &models.Image{Data: data, ContentType: contentType})
		return c.Next()
	}
}

// UploadedImage returns the image decoded by ImageUpload, or nil.
func UploadedImage(c *fiber.Ctx) *models.Image {
	img, _ := c.Locals(imageLocalsKey).(*models.Image)
	return img
}

func rejectImage(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Only JPG, PNG files allowed",
	})
}
