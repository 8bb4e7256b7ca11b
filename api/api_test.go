package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Johnnypoon1024917/TripWeaver-sub000/budget"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/eventlogger"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/session"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/trip"
)

type fixture struct {
	handler http.Handler
	events  *recordingEmitter
	store   *budget.MemoryStore

	trip     trip.Trip
	owner    uuid.UUID
	friends  []uuid.UUID
	budget   budget.Budget
	stopA    trip.Destination
	stopB    trip.Destination
	other    trip.Trip
	otherBud budget.Budget
}

const (
	ownerToken    = "owner-token"
	friendToken   = "friend-token"
	outsiderToken = "outsider-token"
)

func newFixture(t *testing.T, budgetSpent budget.Amount) *fixture {
	t.Helper()

	f := &fixture{
		owner:   uuid.New(),
		friends: []uuid.UUID{uuid.New(), uuid.New()},
		events:  &recordingEmitter{},
	}
	f.trip = trip.Trip{
		ID:            uuid.New(),
		OwnerID:       f.owner,
		StartDate:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		Collaborators: f.friends,
	}
	f.stopA = trip.Destination{ID: uuid.New(), TripID: f.trip.ID, DayNumber: 1, Name: "Hôtel de Ville",
		Latitude: 48.8566, Longitude: 2.3522, Category: trip.CategoryAttraction, Order: 0}
	f.stopB = trip.Destination{ID: uuid.New(), TripID: f.trip.ID, DayNumber: 1, Name: "Louvre",
		Latitude: 48.8606, Longitude: 2.3376, Category: trip.CategoryAttraction, Order: 1}

	outsider := uuid.New()
	f.other = trip.Trip{ID: uuid.New(), OwnerID: outsider, StartDate: f.trip.StartDate, EndDate: f.trip.StartDate}

	f.budget = budget.Budget{ID: uuid.New(), TripID: f.trip.ID, Category: budget.CategoryActivities,
		Amount: 100000, Spent: budgetSpent, Currency: "EUR"}
	f.otherBud = budget.Budget{ID: uuid.New(), TripID: f.other.ID, Category: budget.CategoryFood,
		Amount: 100000, Currency: "EUR"}

	trips := newFakeTrips()
	trips.add(f.trip, f.stopA, f.stopB)
	trips.add(f.other)
	f.store = budget.NewMemoryStore(f.budget, f.otherBud)

	sessions := fakeSessions{
		ownerToken:    f.owner,
		friendToken:   f.friends[0],
		outsiderToken: outsider,
	}
	f.handler = NewServer(trips, f.store, f.events).Routes(sessions)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) tripPath(suffix string) string {
	return "/trips/" + f.trip.ID.String() + suffix
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTripRoutes_Access(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "no session", path: f.tripPath("/itinerary"), status: http.StatusUnauthorized},
		{name: "not a member", path: f.tripPath("/itinerary"), token: outsiderToken, status: http.StatusForbidden},
		{name: "unknown trip", path: "/trips/" + uuid.NewString() + "/itinerary", token: ownerToken, status: http.StatusNotFound},
		{name: "malformed trip id", path: "/trips/nope/itinerary", token: ownerToken, status: http.StatusBadRequest},
		{name: "collaborator", path: f.tripPath("/itinerary"), token: friendToken, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestGetItinerary(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	rec := f.do(t, http.MethodGet, f.tripPath("/itinerary"), ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw, 3)
	assert.Equal(t, "2024-03-10", raw[0]["date"])
	assert.Equal(t, 1.2, raw[0]["total_distance_km"])
	assert.Equal(t, "2024-03-12", raw[2]["date"])

	plans := decode[[]trip.DayPlan](t, rec)
	require.Len(t, plans[0].Destinations, 2)
	assert.Equal(t, f.stopA.ID, plans[0].Destinations[0].ID)
	assert.Equal(t, f.stopB.ID, plans[0].Destinations[1].ID)
	assert.NotNil(t, plans[1].Destinations)
	assert.Empty(t, plans[1].Destinations)
	assert.Empty(t, plans[2].Destinations)
}

func TestGetItinerary_SelectedDay(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)

	rec := f.do(t, http.MethodGet, f.tripPath("/itinerary?day=1"), ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plan := decode[trip.DayPlan](t, rec)
	assert.Equal(t, 1, plan.DayNumber)
	assert.Len(t, plan.Destinations, 2)

	for _, day := range []string{"0", "4", "tomorrow"} {
		rec := f.do(t, http.MethodGet, f.tripPath("/itinerary?day="+day), ownerToken, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "day=%s", day)
	}
}

func TestPatchDestination(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	path := f.tripPath("/destinations/" + f.stopB.ID.String())

	rec := f.do(t, http.MethodPatch, path, friendToken, map[string]any{"day_number": 2, "order": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[trip.Destination](t, rec)
	assert.Equal(t, 2, moved.DayNumber)
	assert.Equal(t, 5, moved.Order)
	assert.Equal(t, "Louvre", moved.Name)
	assert.Equal(t, []string{eventlogger.TypeDestinationUpdated}, f.events.types())

	rec = f.do(t, http.MethodGet, f.tripPath("/itinerary?day=2"), ownerToken, nil)
	plan := decode[trip.DayPlan](t, rec)
	require.Len(t, plan.Destinations, 1)
	assert.Equal(t, f.stopB.ID, plan.Destinations[0].ID)
}

func TestPatchDestination_Rejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	path := f.tripPath("/destinations/" + f.stopA.ID.String())

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{name: "day past trip end", path: path, body: map[string]any{"day_number": 9}, status: http.StatusUnprocessableEntity},
		{name: "latitude out of range", path: path, body: map[string]any{"latitude": 91}, status: http.StatusUnprocessableEntity},
		{name: "unknown category", path: path, body: map[string]any{"category": "spa"}, status: http.StatusUnprocessableEntity},
		{name: "bad time of day", path: path, body: map[string]any{"start_time": "25:00"}, status: http.StatusUnprocessableEntity},
		{name: "malformed body", path: path, body: "day two", status: http.StatusBadRequest},
		{name: "unknown destination", path: f.tripPath("/destinations/" + uuid.NewString()), body: map[string]any{"order": 1}, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPatch, tt.path, ownerToken, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, f.events.types())
}

func TestExpenseLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	ctx := t.Context()

	rec := f.do(t, http.MethodPost, f.tripPath("/expenses"), ownerToken, map[string]any{
		"budget_id":   f.budget.ID,
		"amount":      100,
		"currency":    "EUR",
		"description": "river cruise",
		"date":        "2024-03-11",
		"split_type":  "even",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[expenseResponse](t, rec)
	assert.Equal(t, budget.Amount(10000), created.Budget.Spent)
	assert.Equal(t, f.owner, created.Expense.PaidBy)
	assert.Empty(t, created.Warnings)
	require.Len(t, created.Expense.SplitDetails, 3)
	assert.Equal(t, budget.Amount(3334), created.Expense.SplitDetails[0].OwedAmount)
	assert.Equal(t, budget.Amount(3333), created.Expense.SplitDetails[1].OwedAmount)
	assert.Equal(t, budget.Amount(3333), created.Expense.SplitDetails[2].OwedAmount)

	expensePath := f.tripPath("/expenses/" + created.Expense.ID.String())
	rec = f.do(t, http.MethodPut, expensePath, friendToken, map[string]any{
		"budget_id":   f.budget.ID,
		"amount":      "50.00",
		"currency":    "EUR",
		"description": "river cruise",
		"paid_by":     f.friends[0],
		"split_type":  "shares",
		"participants": []map[string]any{
			{"collaborator_id": f.owner, "shares": 1},
			{"collaborator_id": f.friends[0], "shares": 1},
			{"collaborator_id": f.friends[1], "shares": 2},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	replaced := decode[expenseResponse](t, rec)
	assert.Equal(t, budget.Amount(5000), replaced.Budget.Spent)
	assert.Equal(t, created.Expense.ID, replaced.Expense.ID)

	stored, err := f.store.GetExpense(ctx, created.Expense.ID)
	require.NoError(t, err)
	owed := []budget.Amount{}
	for _, d := range stored.SplitDetails {
		owed = append(owed, d.OwedAmount)
	}
	assert.Equal(t, []budget.Amount{1250, 1250, 2500}, owed)

	rec = f.do(t, http.MethodGet, f.tripPath("/budgets/"+f.budget.ID.String()), ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[budgetResponse](t, rec)
	assert.Equal(t, budget.Amount(5000), view.Budget.Spent)
	assert.Equal(t, budget.Amount(95000), view.Remaining)
	require.Len(t, view.Expenses, 1)

	rec = f.do(t, http.MethodDelete, expensePath, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b, err := f.store.GetBudget(ctx, f.budget.ID)
	require.NoError(t, err)
	assert.Zero(t, b.Spent)

	rec = f.do(t, http.MethodDelete, expensePath, ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{
		eventlogger.TypeExpenseApplied,
		eventlogger.TypeExpenseReplaced,
		eventlogger.TypeExpenseReversed,
	}, f.events.types())
}

func TestCreateExpense_ExactMismatchIsWarning(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	rec := f.do(t, http.MethodPost, f.tripPath("/expenses"), ownerToken, map[string]any{
		"budget_id":   f.budget.ID,
		"amount":      90,
		"currency":    "EUR",
		"description": "dinner",
		"split_type":  "exact",
		"participants": []map[string]any{
			{"collaborator_id": f.owner, "amount": 30},
			{"collaborator_id": f.friends[0], "amount": 30},
			{"collaborator_id": f.friends[1], "amount": 30.01},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[expenseResponse](t, rec)
	require.Len(t, created.Warnings, 1)
	assert.Contains(t, created.Warnings[0], "90.01")
	assert.Equal(t, budget.Amount(9000), created.Budget.Spent)
}

func TestCreateExpense_Rejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	valid := func() map[string]any {
		return map[string]any{
			"budget_id":   f.budget.ID,
			"amount":      20,
			"currency":    "EUR",
			"description": "metro tickets",
			"split_type":  "even",
		}
	}
	with := func(key string, value any) map[string]any {
		body := valid()
		body[key] = value
		return body
	}

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "sub-cent amount", body: with("amount", 20.005), status: http.StatusUnprocessableEntity},
		{name: "amount beyond int64 cents", body: with("amount", "184467440737095516.17"), status: http.StatusUnprocessableEntity},
		{name: "zero amount", body: with("amount", 0), status: http.StatusUnprocessableEntity},
		{name: "missing description", body: with("description", ""), status: http.StatusUnprocessableEntity},
		{name: "currency differs from budget", body: with("currency", "USD"), status: http.StatusUnprocessableEntity},
		{name: "unknown split type", body: with("split_type", "lottery"), status: http.StatusUnprocessableEntity},
		{name: "payer outside trip", body: with("paid_by", uuid.New()), status: http.StatusUnprocessableEntity},
		{
			name: "participant outside trip",
			body: with("participants", []map[string]any{{"collaborator_id": uuid.New()}}),
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "negative shares",
			body: func() map[string]any {
				body := with("split_type", "shares")
				body["participants"] = []map[string]any{{"collaborator_id": f.owner, "shares": -1}}
				return body
			}(),
			status: http.StatusUnprocessableEntity,
		},
		{name: "budget of another trip", body: with("budget_id", f.otherBud.ID), status: http.StatusNotFound},
		{name: "unknown budget", body: with("budget_id", uuid.New()), status: http.StatusNotFound},
		{name: "not json", body: "metro", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, f.tripPath("/expenses"), ownerToken, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	b, err := f.store.GetBudget(t.Context(), f.budget.ID)
	require.NoError(t, err)
	assert.Zero(t, b.Spent)
	assert.Empty(t, f.events.types())
}

func TestPreviewExpense_DoesNotPersist(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	rec := f.do(t, http.MethodPost, f.tripPath("/expenses/preview"), ownerToken, map[string]any{
		"budget_id":   f.budget.ID,
		"amount":      100,
		"currency":    "EUR",
		"description": "museum pass",
		"split_type":  "percentage",
		"participants": []map[string]any{
			{"collaborator_id": f.owner, "percentage": 50},
			{"collaborator_id": f.friends[0], "percentage": 25},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	preview := decode[struct {
		SplitDetails []budget.SplitDetail `json:"split_details"`
	}](t, rec)
	require.Len(t, preview.SplitDetails, 2)
	assert.Equal(t, budget.Amount(5000), preview.SplitDetails[0].OwedAmount)
	assert.Equal(t, budget.Amount(2500), preview.SplitDetails[1].OwedAmount)

	b, err := f.store.GetBudget(t.Context(), f.budget.ID)
	require.NoError(t, err)
	assert.Zero(t, b.Spent)
	assert.Empty(t, f.events.types())
}

func TestGetBudget_DriftIsIntegrityViolation(t *testing.T) {
	t.Parallel()

	// Spent without any recorded expense behind it.
	f := newFixture(t, 5000)
	rec := f.do(t, http.MethodGet, f.tripPath("/budgets/"+f.budget.ID.String()), ownerToken, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Equal(t, []string{eventlogger.TypeBudgetIntegrityViolation}, f.events.types())
}

func TestGetBudget_OtherTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	rec := f.do(t, http.MethodGet, f.tripPath("/budgets/"+f.otherBud.ID.String()), ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogout_RevokesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	rec := f.do(t, http.MethodGet, f.tripPath("/itinerary"), friendToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/logout", friendToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, f.tripPath("/itinerary"), friendToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, f.tripPath("/itinerary"), ownerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "other sessions stay valid")

	rec = f.do(t, http.MethodPost, "/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: ownerToken})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}
