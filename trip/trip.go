package trip

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryRestaurant Category = "restaurant"
	CategoryAttraction Category = "attraction"
	CategoryHotel      Category = "hotel"
	CategoryShopping   Category = "shopping"
	CategoryTransport  Category = "transport"
	CategoryActivity   Category = "activity"
	CategoryOther      Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryRestaurant, CategoryAttraction, CategoryHotel, CategoryShopping,
		CategoryTransport, CategoryActivity, CategoryOther:
		return true
	}
	return false
}

var (
	ErrTripNotFound        = errors.New("trip not found")
	ErrDestinationNotFound = errors.New("destination not found")
	ErrForbidden           = errors.New("principal is not a member of the trip")
	ErrInvalidDateRange    = errors.New("trip end date is before start date")
	ErrInvalidDayNumber    = errors.New("invalid day number")
	ErrInvalidCoordinate   = errors.New("invalid coordinate")
	ErrInvalidCategory     = errors.New("invalid destination category")
	ErrInvalidTimeOfDay    = errors.New("invalid time of day")
	ErrEmptyName           = errors.New("name can't be empty")
)

// Trip holds the calendar span and roster of a shared trip. The owner is
// always the first member, whether or not Collaborators repeats it.
type Trip struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	OwnerID       uuid.UUID   `json:"owner_id" db:"owner_id"`
	StartDate     time.Time   `json:"start_date" db:"start_date"`
	EndDate       time.Time   `json:"end_date" db:"end_date"`
	Collaborators []uuid.UUID `json:"collaborators" db:"-"`
}

func (t Trip) Validate() error {
	if DateOf(t.EndDate).Before(DateOf(t.StartDate)) {
		return ErrInvalidDateRange
	}
	return nil
}

// Duration is the number of calendar days the trip covers, counting both
// the start and the end day. Time-of-day components are ignored.
func (t Trip) Duration() int {
	start, end := DateOf(t.StartDate), DateOf(t.EndDate)
	if end.Before(start) {
		return 0
	}
	return start.DaysUntil(end) + 1
}

// Members lists the owner followed by every collaborator, without duplicates.
func (t Trip) Members() []uuid.UUID {
	members := make([]uuid.UUID, 0, len(t.Collaborators)+1)
	members = append(members, t.OwnerID)
	for _, id := range t.Collaborators {
		if !slices.Contains(members, id) {
			members = append(members, id)
		}
	}
	return members
}

func (t Trip) IsMember(principalID uuid.UUID) bool {
	return slices.Contains(t.Members(), principalID)
}

// TimeOfDay is a wall clock value in HH:MM form.
type TimeOfDay string

func (t TimeOfDay) Valid() bool {
	_, err := time.Parse("15:04", string(t))
	return err == nil
}

type Destination struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TripID    uuid.UUID  `json:"trip_id" db:"trip_id"`
	DayNumber int        `json:"day_number" db:"day_number"`
	Name      string     `json:"name" db:"name"`
	Address   string     `json:"address" db:"address"`
	Latitude  float64    `json:"latitude" db:"latitude"`
	Longitude float64    `json:"longitude" db:"longitude"`
	Category  Category   `json:"category" db:"category"`
	StartTime *TimeOfDay `json:"start_time,omitempty" db:"start_time"`
	EndTime   *TimeOfDay `json:"end_time,omitempty" db:"end_time"`
	Order     int        `json:"order" db:"sort_order"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// checkPlacement reports whether the destination can be placed on the
// trip's calendar and on the map.
func (d Destination) checkPlacement(t Trip) error {
	if d.DayNumber < 1 || d.DayNumber > t.Duration() {
		return fmt.Errorf("%w: destination %s has day %d, trip has %d days", ErrInvalidDayNumber, d.ID, d.DayNumber, t.Duration())
	}
	if !finite(d.Latitude) || !finite(d.Longitude) ||
		d.Latitude < -90 || d.Latitude > 90 || d.Longitude < -180 || d.Longitude > 180 {
		return fmt.Errorf("%w: destination %s at (%v, %v)", ErrInvalidCoordinate, d.ID, d.Latitude, d.Longitude)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Validate checks the destination against the trip it belongs to.
func (d Destination) Validate(t Trip) error {
	if err := d.checkPlacement(t); err != nil {
		return err
	}
	if d.Name == "" {
		return ErrEmptyName
	}
	if !d.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, d.Category)
	}
	if d.StartTime != nil && !d.StartTime.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, *d.StartTime)
	}
	if d.EndTime != nil && !d.EndTime.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, *d.EndTime)
	}
	return nil
}

// DestinationPatch carries the fields of an edit, reorder or move. Nil
// fields are left untouched.
type DestinationPatch struct {
	DayNumber *int       `json:"day_number,omitempty"`
	Name      *string    `json:"name,omitempty"`
	Address   *string    `json:"address,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Category  *Category  `json:"category,omitempty"`
	StartTime *TimeOfDay `json:"start_time,omitempty"`
	EndTime   *TimeOfDay `json:"end_time,omitempty"`
	Order     *int       `json:"order,omitempty"`
}

func (p DestinationPatch) Apply(d *Destination) {
	if p.DayNumber != nil {
		d.DayNumber = *p.DayNumber
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Address != nil {
		d.Address = *p.Address
	}
	if p.Latitude != nil {
		d.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		d.Longitude = *p.Longitude
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.StartTime != nil {
		d.StartTime = p.StartTime
	}
	if p.EndTime != nil {
		d.EndTime = p.EndTime
	}
	if p.Order != nil {
		d.Order = *p.Order
	}
}

type Repository interface {
	GetTripByID(ctx context.Context, id, principalID uuid.UUID) (*Trip, error)
	ListDestinations(ctx context.Context, tripID uuid.UUID) ([]Destination, error)
	GetDestination(ctx context.Context, tripID, destinationID uuid.UUID) (*Destination, error)
	UpdateDestination(ctx context.Context, tripID uuid.UUID, d Destination) error
}
