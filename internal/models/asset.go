package models

import (
	"fmt"
	"strings"
	"time"
)

// Category is the kind of physical item an asset is
type Category string

const (
	CategoryLaptop    Category = "Laptop"
	CategoryDesktop   Category = "Desktop"
	CategoryMonitor   Category = "Monitor"
	CategoryPhone     Category = "Phone"
	CategoryTablet    Category = "Tablet"
	CategoryFurniture Category = "Furniture"
	CategoryOther     Category = "Other"
)

// ValidCategories lists every category an asset may have
var ValidCategories = []Category{
	CategoryLaptop,
	CategoryDesktop,
	CategoryMonitor,
	CategoryPhone,
	CategoryTablet,
	CategoryFurniture,
	CategoryOther,
}

// Valid reports whether c is one of ValidCategories
func (c Category) Valid() bool {
	for _, v := range ValidCategories {
		if c == v {
			return true
		}
	}
	return false
}

// ParseCategory converts s into a Category, rejecting unknown values
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// Status is the custody state of an asset
type Status string

const (
	StatusAvailable   Status = "Available"
	StatusAssigned    Status = "Assigned"
	StatusMaintenance Status = "Maintenance"
	StatusRetired     Status = "Retired"
)

// ValidStatuses lists every status an asset may be in
var ValidStatuses = []Status{
	StatusAvailable,
	StatusAssigned,
	StatusMaintenance,
	StatusRetired,
}

// Valid reports whether s is one of ValidStatuses
func (s Status) Valid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus converts s into a Status, rejecting unknown values
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Asset represents a tracked physical item
type Asset struct {
	ID           string    `json:"id"`
	Category     Category  `json:"category"`
	SerialNumber string    `json:"serial_number"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary returns the fields of the asset shown next to assignment records
func (a Asset) Summary() AssetSummary {
	return AssetSummary{
		ID:           a.ID,
		Category:     a.Category,
		SerialNumber: a.SerialNumber,
		Status:       a.Status,
	}
}

// AssetSummary is the short form of an asset used in joined views
type AssetSummary struct {
	ID           string   `json:"id"`
	Category     Category `json:"category"`
	SerialNumber string   `json:"serial_number"`
	Status       Status   `json:"status"`
}

// AssetDetail is an asset together with its current custody, if any
type AssetDetail struct {
	Asset
	Assignment *AssignmentRecord `json:"current_assignment,omitempty"`
	Holder     *PrincipalSummary `json:"holder,omitempty"`
}

// AssetFilter selects assets by category, status and current holder.
// Nil fields match everything.
type AssetFilter struct {
	Category *Category
	Status   *Status
	HolderID *string
}

// CreateAssetRequest represents the request body for creating a new asset
type CreateAssetRequest struct {
	Category     Category `json:"category" validate:"required"`
	SerialNumber string   `json:"serial_number" validate:"required"`
	Status       *Status  `json:"status,omitempty"`
}

// Validate checks the request and fills in the default status
func (r *CreateAssetRequest) Validate() error {
	if !r.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, r.Category)
	}
	r.SerialNumber = strings.TrimSpace(r.SerialNumber)
	if r.SerialNumber == "" {
		return fmt.Errorf("%w: serial_number is required", ErrInvalidArgument)
	}
	if r.Status == nil {
		st := StatusAvailable
		r.Status = &st
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *r.Status)
	}
	return nil
}

// UpdateAssetRequest represents the request body for updating an asset.
// Only the provided fields are changed.
type UpdateAssetRequest struct {
	Category     *Category `json:"category,omitempty"`
	SerialNumber *string   `json:"serial_number,omitempty"`
	Status       *Status   `json:"status,omitempty"`
}

// Validate checks every provided field
func (r *UpdateAssetRequest) Validate() error {
	if r.Category == nil && r.SerialNumber == nil && r.Status == nil {
		return fmt.Errorf("%w: no fields to update", ErrInvalidArgument)
	}
	if r.Category != nil && !r.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, *r.Category)
	}
	if r.SerialNumber != nil {
		serial := strings.TrimSpace(*r.SerialNumber)
		if serial == "" {
			return fmt.Errorf("%w: serial_number cannot be empty", ErrInvalidArgument)
		}
		r.SerialNumber = &serial
	}
	if r.Status != nil && !r.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *r.Status)
	}
	return nil
}
