package model

import (
	"fmt"
	"strings"
)

const vinLength = 17

// VehicleIdentifier names the vehicle a request is about: either a VIN or a
// (lot id, site) pair. Exactly one of the two forms is populated.
type VehicleIdentifier struct {
	VIN   string `json:"vin,omitempty"`
	LotID int64  `json:"lot_id,omitempty"`
	Site  Site   `json:"site,omitempty"`
}

// VINIdentifier builds an identifier from a raw VIN, normalizing case and
// validating the format before anything downstream runs.
func VINIdentifier(raw string) (VehicleIdentifier, error) {
	vin, err := NormalizeVIN(raw)
	if err != nil {
		return VehicleIdentifier{}, err
	}
	return VehicleIdentifier{VIN: vin}, nil
}

// LotIdentifier builds an identifier from a lot id and site code.
func LotIdentifier(lotID int64, site Site) (VehicleIdentifier, error) {
	if lotID <= 0 {
		return VehicleIdentifier{}, fmt.Errorf("%w: lot id must be positive, got %d", ErrInvalidInput, lotID)
	}
	if _, err := ParseSite(int(site)); err != nil {
		return VehicleIdentifier{}, err
	}
	return VehicleIdentifier{LotID: lotID, Site: site}, nil
}

// Key returns the canonical cache key for this identifier: the VIN when
// known, otherwise "lotID:site".
func (id VehicleIdentifier) Key() string {
	if id.VIN != "" {
		return id.VIN
	}
	return fmt.Sprintf("%d:%d", id.LotID, int(id.Site))
}

// HasVIN reports whether the identifier carries a VIN.
func (id VehicleIdentifier) HasVIN() bool {
	return id.VIN != ""
}

// NormalizeVIN uppercases and validates a VIN. A valid VIN is exactly 17
// alphanumeric characters; I, O and Q never appear in real VINs but are not
// rejected here since several auction feeds mis-transcribe them.
func NormalizeVIN(raw string) (string, error) {
	vin := strings.ToUpper(strings.TrimSpace(raw))
	if len(vin) != vinLength {
		return "", fmt.Errorf("%w: vin must be %d characters, got %d", ErrInvalidInput, vinLength, len(vin))
	}
	for _, r := range vin {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: vin contains invalid character %q", ErrInvalidInput, r)
		}
	}
	return vin, nil
}
