package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Johnnypoon1024917/TripWeaver-sub000/budget"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/eventlogger"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/trip"
)

var errBadRequest = errors.New("bad request")

var notFoundErrors = []error{
	trip.ErrTripNotFound,
	trip.ErrDestinationNotFound,
	budget.ErrBudgetNotFound,
	budget.ErrExpenseNotFound,
}

var validationErrors = []error{
	trip.ErrInvalidDayNumber,
	trip.ErrInvalidCoordinate,
	trip.ErrInvalidCategory,
	trip.ErrInvalidTimeOfDay,
	trip.ErrInvalidDateRange,
	trip.ErrEmptyName,
	budget.ErrInvalidAmount,
	budget.ErrTooPrecise,
	budget.ErrAmountOutOfRange,
	budget.ErrEmptyDescription,
	budget.ErrEmptyCurrency,
	budget.ErrNotCollaborator,
	budget.ErrDuplicateParticipant,
	budget.ErrCurrencyMismatch,
	budget.ErrWrongBudget,
	budget.ErrNoParticipants,
	budget.ErrUnknownSplitType,
	budget.ErrInvalidShares,
	budget.ErrInvalidPercentage,
	budget.ErrInvalidExact,
}

func statusFor(err error) int {
	isAny := func(targets []error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}

	switch {
	case isAny(notFoundErrors):
		return http.StatusNotFound
	case errors.Is(err, trip.ErrForbidden):
		return http.StatusForbidden
	case isAny(validationErrors):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Integrity violations are logged and
// audited for an operator, other server errors are only logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if errors.Is(err, budget.ErrBudgetIntegrityViolation) {
		slog.Error("budget integrity violation", "error", err, "method", r.Method, "path", r.URL.Path)
		s.emit(r, uuid.Nil, eventlogger.TypeBudgetIntegrityViolation, map[string]string{
			"error": err.Error(),
			"path":  r.URL.Path,
		})
	} else {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, status, map[string]string{"error": "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %w", errBadRequest, name, err)
	}
	return id, nil
}
