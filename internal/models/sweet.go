package models

import "time"

// Sweet represents one product on the shop's shelves.
type Sweet struct {
	ID               string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name             string    `json:"name" gorm:"type:varchar(100);not null"`
	Category         string    `json:"category" gorm:"type:varchar(100);not null;index"`
	Price            float64   `json:"price" gorm:"not null;check:price >= 0"`
	Quantity         int       `json:"quantity" gorm:"not null;check:quantity >= 0"`
	ImageData        []byte    `json:"-"`
	ImageContentType string    `json:"-" gorm:"type:varchar(32)"`
	CreatedAt        time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

// HasImage reports whether an image is attached. List queries skip the
// payload column, so only the content type is checked.
func (s *Sweet) HasImage() bool {
	return s.ImageContentType != ""
}

// Image is an uploaded picture of a sweet.
type Image struct {
	Data        []byte
	ContentType string
}

// SweetChanges holds the fields supplied to an edit. Nil means "leave as is".
type SweetChanges struct {
	Name     *string
	Category *string
	Price    *float64
	Quantity *int
	Image    *Image
}

// Empty reports whether the change set touches nothing.
func (c SweetChanges) Empty() bool {
	return c.Name == nil && c.Category == nil && c.Price == nil && c.Quantity == nil && c.Image == nil
}

// Apply copies the supplied fields onto s.
func (c SweetChanges) Apply(s *Sweet) {
	if c.Name != nil {
		s.Name = *c.Name
	}
	if c.Category != nil {
		s.Category = *c.Category
	}
	if c.Price != nil {
		s.Price = *c.Price
	}
	if c.Quantity != nil {
		s.Quantity = *c.Quantity
	}
	if c.Image != nil {
		s.ImageData = c.Image.Data
		s.ImageContentType = c.Image.ContentType
	}
}

// SweetFilter narrows a search. Zero values are ignored; all set fields must match.
type SweetFilter struct {
	Name     string
	Category string
	MinPrice *float64
	MaxPrice *float64
}

// IsZero reports whether no filter is set.
func (f SweetFilter) IsZero() bool {
	return f.Name == "" && f.Category == "" && f.MinPrice == nil && f.MaxPrice == nil
}
