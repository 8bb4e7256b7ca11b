package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Johnnypoon1024917/TripWeaver-sub000/eventlogger"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/trip"
)

// getItinerary answers the full itinerary, or a single day plan when the
// client passes its selected day as ?day=N.
func (s *Server) getItinerary(w http.ResponseWriter, r *http.Request) {
	t, err := s.tripFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	destinations, err := s.trips.ListDestinations(r.Context(), t.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if raw := r.URL.Query().Get("day"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: day %q", trip.ErrInvalidDayNumber, raw))
			return
		}
		plan, err := trip.BuildDayPlan(*t, destinations, day)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
		return
	}

	plans, err := trip.BuildItinerary(*t, destinations)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) patchDestination(w http.ResponseWriter, r *http.Request) {
	t, err := s.tripFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	destinationID, err := uuidParam(r, "destinationID")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var patch trip.DestinationPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}

	d, err := s.trips.GetDestination(r.Context(), t.ID, destinationID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	patch.Apply(d)
	if err := d.Validate(*t); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.trips.UpdateDestination(r.Context(), t.ID, *d); err != nil {
		s.fail(w, r, err)
		return
	}

	s.emit(r, t.ID, eventlogger.TypeDestinationUpdated, map[string]any{
		"destination_id": d.ID,
		"changes":        patch,
	})
	writeJSON(w, http.StatusOK, d)
}
