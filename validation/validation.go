package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"webtoondl/models"
)

const (
	// MaxTitleLength bounds the search string typed into the catalog
	MaxTitleLength = 200
	// MaxRequestIDLength bounds client supplied correlation ids
	MaxRequestIDLength = 64
)

var requestIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateRequest checks that a download request carries a title and a
// positive episode number. It only works with raw values, so the HTTP layer
// and the CLI share it.
func ValidateRequest(req models.Request) error {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return errors.New("please provide manga name and episode number")
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("manga name is too long (max %d characters)", MaxTitleLength)
	}
	if req.Episode <= 0 {
		return errors.New("please provide manga name and episode number")
	}
	if err := ValidateRequestID(req.ID); err != nil {
		return err
	}
	return nil
}

// ValidateRequestID accepts an empty id (one is generated) or a short token
// safe to embed in a file name.
func ValidateRequestID(id string) error {
	if id == "" {
		return nil
	}
	if len(id) > MaxRequestIDLength {
		return fmt.Errorf("request id is too long (max %d characters)", MaxRequestIDLength)
	}
	if !requestIDRe.MatchString(id) {
		return errors.New("request id must start with a letter or digit and may only contain letters, digits, '.', '_' and '-'")
	}
	return nil
}
