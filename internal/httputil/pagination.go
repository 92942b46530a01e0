package httputil

import (
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"
)

const (
	// DefaultPageLimit is used when a listing carries no limit.
	DefaultPageLimit = 50
	// MaxPageLimit caps the consents returned by one listing.
	MaxPageLimit = 100
)

// Page is an offset/limit window over a listing.
type Page struct {
	Offset int
	Limit  int
}

// Validate checks that the window is within bounds.
func (p Page) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Offset, validation.Min(0)),
		validation.Field(&p.Limit, validation.Required, validation.Min(1), validation.Max(MaxPageLimit)),
	)
}

// ParsePage reads the offset and limit query parameters. A parameter that is
// not an integer is reported like an out-of-range one.
func ParsePage(c *gin.Context) (Page, error) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return Page{}, validation.Errors{"offset": validation.NewError("validation_offset", "must be an integer")}
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageLimit)))
	if err != nil {
		return Page{}, validation.Errors{"limit": validation.NewError("validation_limit", "must be an integer")}
	}

	page := Page{Offset: offset, Limit: limit}
	if err := page.Validate(); err != nil {
		return Page{}, err
	}
	return page, nil
}
