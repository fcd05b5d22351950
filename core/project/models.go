package project

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/techsoc/clubhub/core"
)

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	RepoURL     string    `json:"repo_url"`
	TechStack   string    `json:"tech_stack"`
	Maintainer  string    `json:"maintainer"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewProject struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	RepoURL     string `json:"repo_url" validate:"omitempty,url"`
	TechStack   string `json:"tech_stack"`
	Maintainer  string `json:"maintainer"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	np.RepoURL = core.CleanString(np.RepoURL)
	np.TechStack = core.CleanString(np.TechStack)
	np.Maintainer = core.CleanString(np.Maintainer)
	return validate.Struct(np)
}

type UpdateProject struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	RepoURL     string `json:"repo_url" validate:"omitempty,url"`
	TechStack   string `json:"tech_stack"`
	Maintainer  string `json:"maintainer"`
	Archived    *bool  `json:"archived"`
}

func (up *UpdateProject) Validate(validate *validator.Validate) error {
	up.Name = core.CleanString(up.Name)
	up.Description = core.CleanString(up.Description)
	up.RepoURL = core.CleanString(up.RepoURL)
	up.TechStack = core.CleanString(up.TechStack)
	up.Maintainer = core.CleanString(up.Maintainer)
	return validate.Struct(up)
}
