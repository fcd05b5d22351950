package resource

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/techsoc/clubhub/core"
)

type Resource struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewResource struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	URL         string `json:"url" validate:"required,url"`
	Category    string `json:"category"`
}

func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.URL = core.CleanString(nr.URL)
	nr.Category = core.CleanString(nr.Category, true /* lower */)
	return validate.Struct(nr)
}

type UpdateResource struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	URL         string `json:"url" validate:"required,url"`
	Category    string `json:"category"`
}

func (ur *UpdateResource) Validate(validate *validator.Validate) error {
	ur.Title = core.CleanString(ur.Title)
	ur.Description = core.CleanString(ur.Description)
	ur.URL = core.CleanString(ur.URL)
	ur.Category = core.CleanString(ur.Category, true /* lower */)
	return validate.Struct(ur)
}
