package budget

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryAccommodation  Category = "accommodation"
	CategoryFood           Category = "food"
	CategoryTransportation Category = "transportation"
	CategoryActivities     Category = "activities"
	CategoryShopping       Category = "shopping"
	CategoryOther          Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryAccommodation, CategoryFood, CategoryTransportation,
		CategoryActivities, CategoryShopping, CategoryOther:
		return true
	}
	return false
}

var (
	ErrBudgetNotFound           = errors.New("budget not found")
	ErrExpenseNotFound          = errors.New("expense not found")
	ErrBudgetIntegrityViolation = errors.New("budget spent total out of sync with its expenses")
	ErrCurrencyMismatch         = errors.New("expense currency differs from budget currency")
	ErrWrongBudget              = errors.New("expense does not belong to budget")
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrEmptyDescription         = errors.New("description can't be empty")
	ErrEmptyCurrency            = errors.New("currency can't be empty")
	ErrNotCollaborator          = errors.New("not a collaborator of the trip")
	ErrDuplicateParticipant     = errors.New("collaborator listed twice in split")
)

// Budget tracks the allocated amount for one spending category of a trip.
// Spent is a cache of the sum of the budget's live expenses and is only
// changed through ApplyExpense and ReverseExpense, or by a store applying
// the same delta atomically.
type Budget struct {
	ID       uuid.UUID `json:"id" db:"id"`
	TripID   uuid.UUID `json:"trip_id" db:"trip_id"`
	Category Category  `json:"category" db:"category"`
	Amount   Amount    `json:"amount" db:"amount"`
	Spent    Amount    `json:"spent" db:"spent"`
	Currency string    `json:"currency" db:"currency"`
}

// Remaining is negative when the budget is overspent.
func (b Budget) Remaining() Amount {
	return b.Amount - b.Spent
}

type Expense struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	TripID       uuid.UUID     `json:"trip_id" db:"trip_id"`
	BudgetID     uuid.UUID     `json:"budget_id" db:"budget_id"`
	Amount       Amount        `json:"amount" db:"amount"`
	Currency     string        `json:"currency" db:"currency"`
	Description  string        `json:"description" db:"description"`
	Date         time.Time     `json:"date" db:"expense_date"`
	PaidBy       uuid.UUID     `json:"paid_by" db:"paid_by"`
	SplitType    SplitType     `json:"split_type" db:"split_type"`
	SplitDetails []SplitDetail `json:"split_details" db:"-"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

type ExpenseParams struct {
	TripID       uuid.UUID
	BudgetID     uuid.UUID
	Amount       Amount
	Currency     string
	Description  string
	Date         time.Time
	PaidBy       uuid.UUID
	SplitType    SplitType
	Participants []Participant
}

// NewExpense validates params against the trip's current members and
// computes the split. A *MismatchError is returned together with the
// expense when exact amounts do not add up; the expense is still usable.
func NewExpense(p ExpenseParams, members []uuid.UUID) (*Expense, error) {
	if p.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if p.Description == "" {
		return nil, ErrEmptyDescription
	}
	if p.Currency == "" {
		return nil, ErrEmptyCurrency
	}
	if !slices.Contains(members, p.PaidBy) {
		return nil, fmt.Errorf("%w: payer %s", ErrNotCollaborator, p.PaidBy)
	}

	seen := make(map[uuid.UUID]bool, len(p.Participants))
	for _, part := range p.Participants {
		if !slices.Contains(members, part.CollaboratorID) {
			return nil, fmt.Errorf("%w: %s", ErrNotCollaborator, part.CollaboratorID)
		}
		if seen[part.CollaboratorID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, part.CollaboratorID)
		}
		seen[part.CollaboratorID] = true
	}

	details, err := ComputeSplit(p.Amount, p.SplitType, p.Participants)
	var mismatch *MismatchError
	if err != nil && !errors.As(err, &mismatch) {
		return nil, err
	}

	date := p.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	return &Expense{
		ID:           uuid.New(),
		TripID:       p.TripID,
		BudgetID:     p.BudgetID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Description:  p.Description,
		Date:         date,
		PaidBy:       p.PaidBy,
		SplitType:    p.SplitType,
		SplitDetails: details,
		CreatedAt:    time.Now().UTC(),
	}, err
}

func checkExpense(b *Budget, e Expense) error {
	if b.ID != e.BudgetID {
		return fmt.Errorf("%w: expense %s references budget %s, not %s", ErrWrongBudget, e.ID, e.BudgetID, b.ID)
	}
	if b.Currency != e.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, e.Currency, b.Currency)
	}
	return nil
}

// ApplyExpense adds the expense total to the budget's spent total. Who owes
// what inside the expense has no effect on the budget.
func ApplyExpense(b *Budget, e Expense) error {
	if err := checkExpense(b, e); err != nil {
		return err
	}
	return b.adjust(e.Amount)
}

// ReverseExpense removes the expense total from the budget's spent total.
// Going below zero means an earlier update was lost and is never clamped.
func ReverseExpense(b *Budget, e Expense) error {
	if err := checkExpense(b, e); err != nil {
		return err
	}
	return b.adjust(-e.Amount)
}

// adjust is the single in-process rule for moving spent: it never wraps
// and never goes below zero.
func (b *Budget) adjust(delta Amount) error {
	spent, err := addAmounts(b.Spent, delta)
	if err != nil {
		return fmt.Errorf("budget %s: %w", b.ID, err)
	}
	if spent < 0 {
		return fmt.Errorf("%w: budget %s spent %s, delta %s", ErrBudgetIntegrityViolation, b.ID, b.Spent, delta)
	}
	b.Spent = spent
	return nil
}

// Store persists budgets and expenses. InTx runs fn in one transaction:
// when fn fails nothing it wrote is kept.
type Store interface {
	GetBudget(ctx context.Context, id uuid.UUID) (*Budget, error)
	GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error)
	ListExpenses(ctx context.Context, budgetID uuid.UUID) ([]Expense, error)
	// GetBudgetWithExpenseSum reads the budget and the sum of its live
	// expenses from one consistent snapshot.
	GetBudgetWithExpenseSum(ctx context.Context, budgetID uuid.UUID) (*Budget, Amount, error)
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the write side of a Store transaction. UpdateBudgetSpent applies a
// delta atomically and fails with ErrBudgetIntegrityViolation rather than
// letting spent go negative.
type Tx interface {
	GetBudget(ctx context.Context, id uuid.UUID) (*Budget, error)
	GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error)
	SaveExpense(ctx context.Context, e Expense) error
	DeleteExpense(ctx context.Context, id uuid.UUID) error
	UpdateBudgetSpent(ctx context.Context, budgetID uuid.UUID, delta Amount) (*Budget, error)
}
