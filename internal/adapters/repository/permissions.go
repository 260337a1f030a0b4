package repository

import "fmt"

// Permission keys carried in the users.permissions blob.
const (
	PermWatermarkLimit      = "watermarkLimit"
	PermSingleDownloadLimit = "singleDownloadLimit"
	PermBulkDownloadLimit   = "bulkDownloadLimit"
	PermSearchLimit         = "searchLimit"
	PermStorageLimit        = "storageLimit"
)

// Permissions is a user's per-feature limit map.
type Permissions map[string]int

// DefaultPermissions returns the limits granted to a fresh user.
func DefaultPermissions() Permissions {
	return Permissions{
		PermWatermarkLimit:      50,
		PermSingleDownloadLimit: 10,
		PermBulkDownloadLimit:   5,
		PermSearchLimit:         5,
		PermStorageLimit:        100,
	}
}

// VIPPermissions scales the default limits by multiplier, or sets every limit
// to customValue when it is positive. customValue wins over multiplier.
func VIPPermissions(multiplier, customValue int) Permissions {
	base := DefaultPermissions()
	if customValue > 0 {
		for key := range base {
			base[key] = customValue
		}
		return base
	}
	if multiplier > 0 {
		for key, value := range base {
			base[key] = value * multiplier
		}
	}
	return base
}

// Validate checks that the map carries exactly the allowed keys with positive
// integer values.
func (p Permissions) Validate() error {
	allowed := map[string]bool{
		PermWatermarkLimit:      true,
		PermSingleDownloadLimit: true,
		PermBulkDownloadLimit:   true,
		PermSearchLimit:         true,
		PermStorageLimit:        true,
	}
	if len(p) != len(allowed) {
		return fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidLimits, len(allowed), len(p))
	}
	for key, value := range p {
		if !allowed[key] {
			return fmt.Errorf("%w: unexpected field %q", ErrInvalidLimits, key)
		}
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidLimits, key)
		}
	}
	return nil
}

// StorageLimit returns the ledger capacity, falling back to the default when
// the permission is missing or non-positive.
func (p Permissions) StorageLimit() int {
	return p.StorageLimitOr(DefaultStorageLimit)
}

// StorageLimitOr returns the ledger capacity, falling back to the given limit
// when the permission is missing or non-positive.
func (p Permissions) StorageLimitOr(fallback int) int {
	if v, ok := p[PermStorageLimit]; ok && v > 0 {
		return v
	}
	return fallback
}
