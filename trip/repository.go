package trip

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *repository {
	return &repository{db: db}
}

// GetTripByID only returns the trip to its owner or one of its collaborators.
func (r *repository) GetTripByID(ctx context.Context, id, principalID uuid.UUID) (*Trip, error) {
	query := `SELECT t.id, t.owner_id, t.start_date, t.end_date,
	                 COALESCE(array_agg(c.user_id::text ORDER BY c.position) FILTER (WHERE c.user_id IS NOT NULL), '{}')
	          FROM trips t
	          LEFT JOIN trip_collaborators c ON c.trip_id = t.id
	          WHERE t.id = $1
	          GROUP BY t.id`

	var t Trip
	var collaborators []string
	err := r.db.QueryRowxContext(ctx, query, id).Scan(
		&t.ID,
		&t.OwnerID,
		&t.StartDate,
		&t.EndDate,
		pq.Array(&collaborators),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying trip: %w", err)
	}

	for _, c := range collaborators {
		uid, err := uuid.Parse(c)
		if err != nil {
			return nil, fmt.Errorf("parsing collaborator id: %w", err)
		}
		t.Collaborators = append(t.Collaborators, uid)
	}

	if !t.IsMember(principalID) {
		return nil, ErrForbidden
	}
	return &t, nil
}

// ListDestinations returns the trip's destinations in insertion order, which
// is the tie-break BuildItinerary relies on for equal Order values.
func (r *repository) ListDestinations(ctx context.Context, tripID uuid.UUID) ([]Destination, error) {
	query := `SELECT id, trip_id, day_number, name, address, latitude, longitude, category,
	                 start_time, end_time, sort_order, created_at
	          FROM destinations
	          WHERE trip_id = $1
	          ORDER BY created_at, seq`

	destinations := []Destination{}
	if err := r.db.SelectContext(ctx, &destinations, query, tripID); err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}
	return destinations, nil
}

func (r *repository) GetDestination(ctx context.Context, tripID, destinationID uuid.UUID) (*Destination, error) {
	query := `SELECT id, trip_id, day_number, name, address, latitude, longitude, category,
	                 start_time, end_time, sort_order, created_at
	          FROM destinations
	          WHERE trip_id = $1 AND id = $2`

	var d Destination
	err := r.db.GetContext(ctx, &d, query, tripID, destinationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDestinationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying destination: %w", err)
	}
	return &d, nil
}

func (r *repository) UpdateDestination(ctx context.Context, tripID uuid.UUID, d Destination) error {
	query := `UPDATE destinations
	          SET day_number = :day_number, name = :name, address = :address,
	              latitude = :latitude, longitude = :longitude, category = :category,
	              start_time = :start_time, end_time = :end_time, sort_order = :sort_order
	          WHERE trip_id = :trip_id AND id = :id`

	d.TripID = tripID
	res, err := r.db.NamedExecContext(ctx, query, d)
	if err != nil {
		return fmt.Errorf("updating destination: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating destination: %w", err)
	}
	if n == 0 {
		return ErrDestinationNotFound
	}
	return nil
}
