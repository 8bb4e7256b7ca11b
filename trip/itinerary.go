package trip

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
)

const earthRadiusKm = 6371.0

// Kilometers is a distance that serialises rounded to one decimal place.
type Kilometers float64

func (k Kilometers) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(math.Round(float64(k)*10)/10, 'f', 1, 64)), nil
}

// DayPlan is the derived view of one calendar day of a trip. It is rebuilt
// from destinations on every read and never stored.
type DayPlan struct {
	DayNumber       int           `json:"day_number"`
	Date            Date          `json:"date"`
	Destinations    []Destination `json:"destinations"`
	TotalDistanceKm Kilometers    `json:"total_distance_km"`
}

// BuildItinerary returns one DayPlan per day of the trip, day 1 first.
// Days without destinations are present with an empty list. Within a day
// destinations are ordered by Order, ties keeping their input order.
//
// TotalDistanceKm is the straight-line haversine distance between
// consecutive stops, not a road distance.
func BuildItinerary(t Trip, destinations []Destination) ([]DayPlan, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	duration := t.Duration()
	buckets := make([][]Destination, duration)
	for _, d := range destinations {
		if err := d.checkPlacement(t); err != nil {
			return nil, err
		}
		buckets[d.DayNumber-1] = append(buckets[d.DayNumber-1], d)
	}

	start := DateOf(t.StartDate)
	plans := make([]DayPlan, 0, duration)
	for i, bucket := range buckets {
		plans = append(plans, newDayPlan(i+1, start.AddDays(i), bucket))
	}
	return plans, nil
}

// BuildDayPlan builds the plan for the single selected day.
func BuildDayPlan(t Trip, destinations []Destination, day int) (DayPlan, error) {
	if err := t.Validate(); err != nil {
		return DayPlan{}, err
	}
	if day < 1 || day > t.Duration() {
		return DayPlan{}, fmt.Errorf("%w: day %d, trip has %d days", ErrInvalidDayNumber, day, t.Duration())
	}

	var bucket []Destination
	for _, d := range destinations {
		if err := d.checkPlacement(t); err != nil {
			return DayPlan{}, err
		}
		if d.DayNumber == day {
			bucket = append(bucket, d)
		}
	}
	return newDayPlan(day, DateOf(t.StartDate).AddDays(day-1), bucket), nil
}

func newDayPlan(day int, date Date, bucket []Destination) DayPlan {
	sorted := make([]Destination, len(bucket))
	copy(sorted, bucket)
	slices.SortStableFunc(sorted, func(a, b Destination) int {
		return cmp.Compare(a.Order, b.Order)
	})

	return DayPlan{
		DayNumber:       day,
		Date:            date,
		Destinations:    sorted,
		TotalDistanceKm: Kilometers(routeDistance(sorted)),
	}
}

func routeDistance(stops []Destination) float64 {
	total := 0.0
	for i := 1; i < len(stops); i++ {
		total += Distance(stops[i-1].Latitude, stops[i-1].Longitude, stops[i].Latitude, stops[i].Longitude)
	}
	return total
}

// Distance is the great-circle distance in kilometres between two points
// given in decimal degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
