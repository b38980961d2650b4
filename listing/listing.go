// Package listing holds the property listing entity, the typed patch used by
// create and update requests, pagination results, and the error taxonomy
// shared by every layer of the service.
package listing

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Listing types accepted by the listingType attribute.
const (
	TypeRent = "rent"
	TypeSale = "sale"
)

// Listing is a property listing. ID, CreatedBy and CreatedAt are set once at
// creation and never change afterwards.
type Listing struct {
	bun.BaseModel `bun:"table:listings,alias:l" json:"-" bson:"-" msgpack:"-"`

	ID            string    `bun:"id,pk" json:"id" bson:"_id"`
	Title         string    `bun:"title,notnull" json:"title" bson:"title"`
	Category      string    `bun:"category,notnull" json:"type" bson:"type"`
	Price         float64   `bun:"price,notnull" json:"price" bson:"price"`
	Region        string    `bun:"region,notnull" json:"state" bson:"state"`
	City          string    `bun:"city,notnull" json:"city" bson:"city"`
	AreaSqFt      float64   `bun:"area_sq_ft,notnull" json:"areaSqFt" bson:"areaSqFt"`
	Bedrooms      int       `bun:"bedrooms,notnull" json:"bedrooms" bson:"bedrooms"`
	Bathrooms     int       `bun:"bathrooms,notnull" json:"bathrooms" bson:"bathrooms"`
	Amenities     string    `bun:"amenities" json:"amenities" bson:"amenities"`
	Furnished     string    `bun:"furnished" json:"furnished" bson:"furnished"`
	AvailableFrom string    `bun:"available_from" json:"availableFrom" bson:"availableFrom"`
	ListedBy      string    `bun:"listed_by" json:"listedBy" bson:"listedBy"`
	Tags          string    `bun:"tags" json:"tags" bson:"tags"`
	ColorTheme    string    `bun:"color_theme" json:"colorTheme" bson:"colorTheme"`
	Rating        float64   `bun:"rating,notnull" json:"rating" bson:"rating"`
	IsVerified    bool      `bun:"is_verified,notnull" json:"isVerified" bson:"isVerified"`
	ListingType   string    `bun:"listing_type" json:"listingType" bson:"listingType"`
	CreatedBy     string    `bun:"created_by,notnull" json:"createdBy" bson:"createdBy"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updatedAt" bson:"updatedAt"`
}

// OwnedBy reports whether userID created the listing.
func (l Listing) OwnedBy(userID string) bool {
	return userID != "" && l.CreatedBy == userID
}

// Normalize puts timestamps in UTC so values decoded from a cache or a
// document store compare equal to freshly written ones.
func (l *Listing) Normalize() {
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	l.ListingType = strings.ToLower(strings.TrimSpace(l.ListingType))
}

// Timestamp returns t in UTC truncated to milliseconds, the coarsest
// precision among the stores (MongoDB dates).
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
