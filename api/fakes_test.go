package api

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Johnnypoon1024917/TripWeaver-sub000/eventlogger"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/session"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/trip"
)

type fakeTrips struct {
	mu           sync.Mutex
	trips        map[uuid.UUID]trip.Trip
	destinations map[uuid.UUID][]trip.Destination
}

func newFakeTrips() *fakeTrips {
	return &fakeTrips{
		trips:        make(map[uuid.UUID]trip.Trip),
		destinations: make(map[uuid.UUID][]trip.Destination),
	}
}

func (f *fakeTrips) add(t trip.Trip, dests ...trip.Destination) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trips[t.ID] = t
	f.destinations[t.ID] = append(f.destinations[t.ID], dests...)
}

func (f *fakeTrips) GetTripByID(_ context.Context, id, principalID uuid.UUID) (*trip.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok {
		return nil, trip.ErrTripNotFound
	}
	if !t.IsMember(principalID) {
		return nil, trip.ErrForbidden
	}
	return &t, nil
}

func (f *fakeTrips) ListDestinations(_ context.Context, tripID uuid.UUID) ([]trip.Destination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.destinations[tripID]), nil
}

func (f *fakeTrips) GetDestination(_ context.Context, tripID, destinationID uuid.UUID) (*trip.Destination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.destinations[tripID] {
		if d.ID == destinationID {
			return &d, nil
		}
	}
	return nil, trip.ErrDestinationNotFound
}

func (f *fakeTrips) UpdateDestination(_ context.Context, tripID uuid.UUID, d trip.Destination) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.destinations[tripID] {
		if existing.ID == d.ID {
			f.destinations[tripID][i] = d
			return nil
		}
	}
	return trip.ErrDestinationNotFound
}

type fakeSessions map[string]uuid.UUID

func (f fakeSessions) GetByToken(_ context.Context, token string) (*session.Session, error) {
	principal, ok := f[token]
	if !ok {
		return nil, session.ErrInvalidSession
	}
	return &session.Session{
		ID:          uuid.New(),
		PrincipalID: principal,
		Token:       token,
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil
}

func (f fakeSessions) Delete(_ context.Context, token string) error {
	delete(f, token)
	return nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []eventlogger.Event
}

func (r *recordingEmitter) Log(e eventlogger.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
