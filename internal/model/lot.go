package model

import "time"

// LotRecord is the normalized view of a single auction listing. It is built
// per request by the resolver and never persisted.
type LotRecord struct {
	LotID           int64     `json:"lot_id"`
	Site            Site      `json:"site"`
	VIN             string    `json:"vin,omitempty"`
	Year            int       `json:"year"`
	Make            string    `json:"make"`
	Model           string    `json:"model"`
	Series          string    `json:"series,omitempty"`
	Mileage         int64     `json:"mileage"`
	CurrentBid      float64   `json:"current_bid"`
	DamagePrimary   string    `json:"damage_primary,omitempty"`
	DamageSecondary string    `json:"damage_secondary,omitempty"`
	Location        string    `json:"location,omitempty"`
	TitleStatus     string    `json:"title_status,omitempty"`
	ImageURLs       []string  `json:"image_urls,omitempty"`
	AuctionDate     time.Time `json:"auction_date,omitzero"`
}

// SameLot reports whether two records identify the same listing.
func (l LotRecord) SameLot(other LotRecord) bool {
	return l.LotID == other.LotID && l.Site == other.Site
}

// HistoricalSaleRecord is one completed auction outcome for a VIN.
type HistoricalSaleRecord struct {
	Platform string    `json:"platform"`
	LotID    int64     `json:"lot_id"`
	SaleDate time.Time `json:"sale_date"`
	Price    float64   `json:"price"`
	Damage   string    `json:"damage,omitempty"`
	Status   string    `json:"status,omitempty"`
}

// PriceStats summarizes historical sale prices. It is only produced for a
// non-empty record sequence; absent stats are represented by a nil pointer,
// never by zero values.
type PriceStats struct {
	Count      int       `json:"count"`
	Average    float64   `json:"average"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	StdDev     float64   `json:"std_dev"`
	MostRecent float64   `json:"most_recent"`
	LastSale   time.Time `json:"last_sale"`
}
