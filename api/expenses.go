package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Johnnypoon1024917/TripWeaver-sub000/budget"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/eventlogger"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/middleware"
	"github.com/Johnnypoon1024917/TripWeaver-sub000/trip"
)

type expenseRequest struct {
	BudgetID     uuid.UUID            `json:"budget_id"`
	Amount       budget.Amount        `json:"amount"`
	Currency     string               `json:"currency"`
	Description  string               `json:"description"`
	Date         *trip.Date           `json:"date,omitempty"`
	PaidBy       *uuid.UUID           `json:"paid_by,omitempty"`
	SplitType    budget.SplitType     `json:"split_type"`
	Participants []budget.Participant `json:"participants"`
}

type expenseResponse struct {
	Expense  *budget.Expense `json:"expense"`
	Budget   *budget.Budget  `json:"budget"`
	Warnings []string        `json:"warnings,omitempty"`
}

type budgetResponse struct {
	Budget    *budget.Budget   `json:"budget"`
	Remaining budget.Amount    `json:"remaining"`
	Expenses  []budget.Expense `json:"expenses"`
}

// buildExpense turns a request into a validated expense. The payer
// defaults to the principal and an even split with no participants is
// shared by every trip member. Split mismatches come back as warnings.
func buildExpense(r *http.Request, t *trip.Trip, req expenseRequest) (*budget.Expense, []string, error) {
	params := budget.ExpenseParams{
		TripID:       t.ID,
		BudgetID:     req.BudgetID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Description:  req.Description,
		SplitType:    req.SplitType,
		Participants: req.Participants,
	}
	if req.Date != nil {
		params.Date = req.Date.Time()
	}
	if req.PaidBy != nil {
		params.PaidBy = *req.PaidBy
	} else {
		params.PaidBy, _ = middleware.GetPrincipalID(r.Context())
	}
	if req.SplitType == budget.SplitTypeEven && len(req.Participants) == 0 {
		for _, member := range t.Members() {
			params.Participants = append(params.Participants, budget.Participant{CollaboratorID: member})
		}
	}

	e, err := budget.NewExpense(params, t.Members())
	var mismatch *budget.MismatchError
	if errors.As(err, &mismatch) {
		return e, []string{mismatch.Error()}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return e, nil, nil
}

func (s *Server) getBudget(w http.ResponseWriter, r *http.Request) {
	t, err := s.tripFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	budgetID, err := uuidParam(r, "budgetID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.budgetFor(r.Context(), t, budgetID); err != nil {
		s.fail(w, r, err)
		return
	}

	b, err := s.allocator.Verify(r.Context(), budgetID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	expenses, err := s.budgets.ListExpenses(r.Context(), budgetID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, budgetResponse{
		Budget:    b,
		Remaining: b.Remaining(),
		Expenses:  expenses,
	})
}

// previewExpense validates an expense and returns its split without
// saving anything.
func (s *Server) previewExpense(w http.ResponseWriter, r *http.Request) {
	t, err := s.tripFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	e, warnings, err := buildExpense(r, t, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"split_details": e.SplitDetails,
		"warnings":      warnings,
	})
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	t, err := s.tripFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.budgetFor(r.Context(), t, req.BudgetID); err != nil {
		s.fail(w, r, err)
		return
	}

	e, warnings, err := buildExpense(r, t, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := s.allocator.Apply(r.Context(), *e)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.emit(r, t.ID, eventlogger.TypeExpenseApplied, map[string]any{
		"expense_id": e.ID,
		"budget_id":  b.ID,
		"amount":     e.Amount,
		"spent":      b.Spent,
	})
	writeJSON(w, http.StatusCreated, expenseResponse{Expense: e, Budget: b, Warnings: warnings})
}

func (s *Server) updateExpense(w http.ResponseWriter, r *http.Request) {
	t, err := s.tripFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	expenseID, err := uuidParam(r, "expenseID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	old, err := s.expenseFor(r.Context(), t, expenseID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.budgetFor(r.Context(), t, req.BudgetID); err != nil {
		s.fail(w, r, err)
		return
	}

	e, warnings, err := buildExpense(r, t, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	e.ID = expenseID
	b, err := s.allocator.Replace(r.Context(), *e)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	e.CreatedAt = old.CreatedAt

	s.emit(r, t.ID, eventlogger.TypeExpenseReplaced, map[string]any{
		"expense_id":    e.ID,
		"old_budget_id": old.BudgetID,
		"old_amount":    old.Amount,
		"budget_id":     b.ID,
		"amount":        e.Amount,
		"spent":         b.Spent,
	})
	writeJSON(w, http.StatusOK, expenseResponse{Expense: e, Budget: b, Warnings: warnings})
}

func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request) {
	t, err := s.tripFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	expenseID, err := uuidParam(r, "expenseID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	old, err := s.expenseFor(r.Context(), t, expenseID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	b, err := s.allocator.Reverse(r.Context(), expenseID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.emit(r, t.ID, eventlogger.TypeExpenseReversed, map[string]any{
		"expense_id": expenseID,
		"budget_id":  b.ID,
		"amount":     old.Amount,
		"spent":      b.Spent,
	})
	writeJSON(w, http.StatusOK, map[string]any{"budget": b})
}
