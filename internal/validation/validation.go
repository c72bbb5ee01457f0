package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/finearr/finearr/internal/models"
)

var (
	itemIDRegex        = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,64}$`)
	adminUsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{1,64}$`)
)

type Validator struct {
	maxFieldLength    int
	validationEnabled bool
}

func New(maxFieldLength int, enabled bool) *Validator {
	return &Validator{
		maxFieldLength:    maxFieldLength,
		validationEnabled: enabled,
	}
}

// ValidateSubmit checks a request body and resolves its category. The
// category check always runs; the field format checks only when enabled.
func (v *Validator) ValidateSubmit(payload *models.SubmitRequestDTO) (models.Category, error) {
	raw := payload.Category
	if raw == "" {
		raw = payload.Type
	}

	category, ok := models.ParseCategory(raw)
	if !ok {
		return "", fmt.Errorf("invalid category: %q (expected movie or show)", raw)
	}

	if payload.Item == nil || payload.Item.ID == "" {
		return "", fmt.Errorf("item id is required")
	}

	if strings.TrimSpace(payload.Username) == "" {
		return "", fmt.Errorf("username is required")
	}

	if !v.validationEnabled {
		return category, nil
	}

	// Validate item ID format
	if !itemIDRegex.MatchString(string(payload.Item.ID)) {
		return "", fmt.Errorf("invalid item ID format: %s", payload.Item.ID)
	}

	// Validate free text sizes
	if len(payload.Item.Title) > v.maxFieldLength {
		return "", fmt.Errorf("item title exceeds maximum length of %d", v.maxFieldLength)
	}
	if len(payload.Item.Plot) > v.maxFieldLength*8 {
		return "", fmt.Errorf("item plot exceeds maximum length of %d", v.maxFieldLength*8)
	}

	return category, nil
}

// ValidateAdminAccount checks a new admin account.
func (v *Validator) ValidateAdminAccount(payload *models.AdminAccountDTO) error {
	if payload.Username == "" || payload.Password == "" {
		return fmt.Errorf("username and password required")
	}

	if v.validationEnabled && !adminUsernameRegex.MatchString(payload.Username) {
		return fmt.Errorf("invalid username format: %s", payload.Username)
	}

	return nil
}

// ValidateBackground checks a background preference value.
func (v *Validator) ValidateBackground(background string) error {
	if !v.validationEnabled {
		return nil
	}

	if len(background) > v.maxFieldLength*8 {
		return fmt.Errorf("background exceeds maximum length of %d", v.maxFieldLength*8)
	}

	return nil
}

func (v *Validator) IsValidItemID(id string) bool {
	return itemIDRegex.MatchString(id)
}

func (v *Validator) IsValidAdminUsername(username string) bool {
	return adminUsernameRegex.MatchString(username)
}
