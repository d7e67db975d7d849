package api

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/camfleet/camfleet/internal/repository"
)

// ValidationError represents a validation error with field information
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

var cameraIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateCameraID validates a camera ID format
func ValidateCameraID(id string) error {
	if id == "" {
		return fmt.Errorf("camera ID is required")
	}
	if !cameraIDPattern.MatchString(id) {
		return fmt.Errorf("camera ID must contain only letters, numbers, underscores, and hyphens")
	}
	if len(id) > 50 {
		return fmt.Errorf("camera ID must be less than 50 characters")
	}
	return nil
}

// ValidateCamera validates a camera payload.
func ValidateCamera(cam *repository.Camera) ValidationErrors {
	errs := make(ValidationErrors, 0)

	if err := ValidateCameraID(cam.ID); err != nil {
		errs = append(errs, ValidationError{Field: "id", Message: err.Error()})
	}
	if cam.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "camera name is required"})
	} else if len(cam.Name) > 100 {
		errs = append(errs, ValidationError{Field: "name", Message: "camera name must be less than 100 characters"})
	}

	if cam.URL == "" {
		errs = append(errs, ValidationError{Field: "url", Message: "stream URL is required"})
		return errs
	}
	u, err := url.Parse(cam.URL)
	if err != nil {
		errs = append(errs, ValidationError{Field: "url", Message: "invalid URL format"})
		return errs
	}
	if !strings.EqualFold(u.Scheme, "rtsp") {
		errs = append(errs, ValidationError{Field: "url",
			Message: fmt.Sprintf("unsupported stream protocol %q, only rtsp is supported", u.Scheme)})
	}
	if u.Host == "" {
		errs = append(errs, ValidationError{Field: "url", Message: "stream URL must include a host"})
	}
	return errs
}
