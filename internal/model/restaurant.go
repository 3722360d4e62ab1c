package model

import "time"

// Restaurant represents a venue offering buffet and/or table service.
// A restaurant belongs to one manager account and contains sections,
// dining tables and meal services.  This struct corresponds to a row
// in the `restaurants` table.
//
// Fields:
//  ID           – primary key identifier.
//  OwnerID      – user ID of the managing account.
//  Name         – unique restaurant name per owner.
//  DwellMinutes – per-restaurant dwell time override used by the slot
//                 conflict checker (nil falls back to the platform default).
//  IsActive     – whether the restaurant accepts bookings.
//  CreatedAt    – timestamp when the restaurant was created.
//  UpdatedAt    – timestamp of last update.
type Restaurant struct {
    ID           uint64    // restaurants.id
    OwnerID      uint64    // restaurants.owner_id
    Name         string    // restaurants.name
    DwellMinutes *uint32   // restaurants.dwell_minutes (nullable)
    IsActive     bool      // restaurants.is_active
    CreatedAt    time.Time // restaurants.created_at
    UpdatedAt    time.Time // restaurants.updated_at
}

// MealService is a bookable service window of a restaurant, e.g. the
// lunch buffet.  Capacity records are tracked per meal service per day.
//
// Fields:
//  ID           – primary key identifier.
//  RestaurantID – owning restaurant.
//  Name         – display name ("Lunch Buffet").
//  MealType     – BREAKFAST, LUNCH or DINNER; refund policies for buffet
//                 reservations are matched on this value.
//  StartsAt     – daily opening time of the service, "HH:MM:SS".
//  EndsAt       – daily closing time of the service, "HH:MM:SS".
//  IsActive     – whether the service is currently offered.
type MealService struct {
    ID           uint64 // meal_services.id
    RestaurantID uint64 // meal_services.restaurant_id
    Name         string // meal_services.name
    MealType     string // meal_services.meal_type
    StartsAt     string // meal_services.starts_at
    EndsAt       string // meal_services.ends_at
    IsActive     bool   // meal_services.is_active
}

// Section groups dining tables within a restaurant (e.g. "Terrace").
type Section struct {
    ID           uint64 // sections.id
    RestaurantID uint64 // sections.restaurant_id
    Name         string // sections.name
}

// DiningTable is a physical table that can be assigned to a
// reservation.  Tables too small for a party may be combined into a
// merge set.
//
// Fields:
//  ID           – primary key identifier.
//  RestaurantID – owning restaurant.
//  SectionID    – section the table sits in.
//  Label        – human label printed on floor plans ("T12").
//  Capacity     – number of seats at this table.
//  IsActive     – whether the table may be booked.
type DiningTable struct {
    ID           uint64    // dining_tables.id
    RestaurantID uint64    // dining_tables.restaurant_id
    SectionID    uint64    // dining_tables.section_id
    Label        string    // dining_tables.label
    Capacity     uint32    // dining_tables.capacity
    IsActive     bool      // dining_tables.is_active
    CreatedAt    time.Time // dining_tables.created_at
    UpdatedAt    time.Time // dining_tables.updated_at
}

// DefaultDwellMinutes is the platform-wide dwell time applied when a
// restaurant has no override configured.  Dwell time is the number of
// minutes a party is assumed to keep occupying a table after its slot
// ends, used to block back-to-back bookings.
const DefaultDwellMinutes uint32 = 90

// DwellOrDefault returns the restaurant's configured dwell time,
// falling back to DefaultDwellMinutes.
func (r Restaurant) DwellOrDefault() uint32 {
    if r.DwellMinutes != nil && *r.DwellMinutes > 0 {
        return *r.DwellMinutes
    }
    return DefaultDwellMinutes
}
