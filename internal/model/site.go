package model

import "fmt"

// Site identifies the auction platform a lot is listed on.
type Site int

const (
	SiteCopart Site = 1
	SiteIAAI   Site = 2
)

// ParseSite validates a numeric site code from an API request.
func ParseSite(code int) (Site, error) {
	switch Site(code) {
	case SiteCopart, SiteIAAI:
		return Site(code), nil
	default:
		return 0, fmt.Errorf("%w: unknown auction site %d", ErrInvalidInput, code)
	}
}

func (s Site) String() string {
	switch s {
	case SiteCopart:
		return "copart"
	case SiteIAAI:
		return "iaai"
	default:
		return fmt.Sprintf("site(%d)", int(s))
	}
}
