package model

import "time"

// Catch mirrors the `catches` table.  Weight is kilograms, Length is
// centimeters; both are optional.  PhotoURLs is stored as a JSON array.
type Catch struct {
    ID        uint64    `json:"id"`
    UserID    uint64    `json:"userId"`
    Species   string    `json:"species"`
    Weight    *float64  `json:"weight,omitempty"`
    Length    *float64  `json:"length,omitempty"`
    Location  string    `json:"location"`
    Latitude  *float64  `json:"latitude,omitempty"`
    Longitude *float64  `json:"longitude,omitempty"`
    CaughtAt  time.Time `json:"date"`
    Notes     string    `json:"notes,omitempty"`
    PhotoURLs []string  `json:"photoUrls"`
    CreatedAt time.Time `json:"createdAt"`
    UpdatedAt time.Time `json:"updatedAt"`
}

// CatchFilter narrows and orders catch listings.  SortBy must be one of the
// whitelisted column aliases; repositories reject anything else.
type CatchFilter struct {
    Species   string
    Location  string
    SortBy    string // date | species | weight | length
    SortOrder string // asc | desc
    Page      int
    Limit     int
}

// CatchStats is the aggregate block served by /api/catches/stats/summary.
type CatchStats struct {
    TotalCatches  int `json:"totalCatches"`
    UniqueSpecies int `json:"uniqueSpecies"`
    RecentCatches int `json:"recentCatches"`  // last 30 days
    MonthlyCatches int `json:"monthlyCatches"` // current calendar month
}
