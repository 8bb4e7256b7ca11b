package api

import (
	"context"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Johnnypoon1024917/TripWeaver-sub000/budget"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/eventlogger"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/middleware"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/session"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/trip"
)

// Server exposes itineraries and trip budgets over HTTP. Every route below
// /trips requires an authenticated principal who is a member of the trip.
type Server struct {
	trips     trip.Repository
	budgets   budget.Store
	allocator *budget.Allocator
	events    eventlogger.Emitter
}

func NewServer(trips trip.Repository, budgets budget.Store, events eventlogger.Emitter) *Server {
	return &Server{
		trips:     trips,
		budgets:   budgets,
		allocator: budget.NewAllocator(budgets),
		events:    events,
	}
}

func (s *Server) Routes(sessions session.Repository) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(sessions))
		r.Use(middleware.RequireAuth)

		r.Post("/logout", logout(sessions))

		r.Route("/trips/{tripID}", func(r chi.Router) {
			r.Get("/itinerary", s.getItinerary)
			r.Patch("/destinations/{destinationID}", s.patchDestination)
			r.Get("/budgets/{budgetID}", s.getBudget)
			r.Post("/expenses/preview", s.previewExpense)
			r.Post("/expenses", s.createExpense)
			r.Put("/expenses/{expenseID}", s.updateExpense)
			r.Delete("/expenses/{expenseID}", s.deleteExpense)
		})
	})

	return router
}

// tripFor loads the trip named in the URL on behalf of the principal.
func (s *Server) tripFor(r *http.Request) (*trip.Trip, error) {
	id, err := uuidParam(r, "tripID")
	if err != nil {
		return nil, err
	}
	principal, _ := middleware.GetPrincipalID(r.Context())
	return s.trips.GetTripByID(r.Context(), id, principal)
}

// budgetFor hides budgets of other trips behind ErrBudgetNotFound.
func (s *Server) budgetFor(ctx context.Context, t *trip.Trip, id uuid.UUID) (*budget.Budget, error) {
	b, err := s.budgets.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.TripID != t.ID {
		return nil, budget.ErrBudgetNotFound
	}
	return b, nil
}

func (s *Server) expenseFor(ctx context.Context, t *trip.Trip, id uuid.UUID) (*budget.Expense, error) {
	e, err := s.budgets.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.TripID != t.ID {
		return nil, budget.ErrExpenseNotFound
	}
	return e, nil
}

// logout revokes the session token the request was authenticated with.
func logout(sessions session.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := middleware.SessionToken(r)
		if err := sessions.Delete(r.Context(), token); err != nil {
			slog.Error("failed to delete session", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if fromCookie {
			http.SetCookie(w, &http.Cookie{
				Name:   session.CookieName,
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) emit(r *http.Request, tripID uuid.UUID, eventType string, data any) {
	opts := []eventlogger.EventOption{
		eventlogger.WithType(eventType),
		eventlogger.WithData(data),
	}
	if tripID != uuid.Nil {
		opts = append(opts, eventlogger.WithTrip(tripID))
	}
	if principal, ok := middleware.GetPrincipalID(r.Context()); ok {
		opts = append(opts, eventlogger.WithPrincipal(principal))
	}
	s.events.Log(eventlogger.NewEvent(opts...))
}
