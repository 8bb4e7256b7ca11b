package budget

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Allocator keeps Budget.Spent in step with expense writes. Each operation
// runs ApplyExpense or ReverseExpense against the budget read in the
// transaction, then writes the expense and the same delta through the
// store's atomic UpdateBudgetSpent in that transaction.
type Allocator struct {
	store Store
}

func NewAllocator(store Store) *Allocator {
	return &Allocator{store: store}
}

// Apply saves a new expense and adds its amount to its budget.
func (a *Allocator) Apply(ctx context.Context, e Expense) (*Budget, error) {
	var updated *Budget
	err := a.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.GetBudget(ctx, e.BudgetID)
		if err != nil {
			return err
		}
		if err := ApplyExpense(b, e); err != nil {
			return err
		}
		if err := tx.SaveExpense(ctx, e); err != nil {
			return fmt.Errorf("saving expense: %w", err)
		}
		updated, err = tx.UpdateBudgetSpent(ctx, e.BudgetID, e.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Reverse deletes an expense and removes its stored amount from its budget.
func (a *Allocator) Reverse(ctx context.Context, expenseID uuid.UUID) (*Budget, error) {
	var updated *Budget
	err := a.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		stored, err := tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		b, err := tx.GetBudget(ctx, stored.BudgetID)
		if err != nil {
			return err
		}
		if err := ReverseExpense(b, *stored); err != nil {
			return err
		}
		if err := tx.DeleteExpense(ctx, expenseID); err != nil {
			return fmt.Errorf("deleting expense: %w", err)
		}
		updated, err = tx.UpdateBudgetSpent(ctx, stored.BudgetID, -stored.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Replace edits an expense in place: the stored amount is reversed before
// the new amount is applied, possibly against a different budget.
func (a *Allocator) Replace(ctx context.Context, e Expense) (*Budget, error) {
	var updated *Budget
	err := a.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		old, err := tx.GetExpense(ctx, e.ID)
		if err != nil {
			return err
		}
		oldBudget, err := tx.GetBudget(ctx, old.BudgetID)
		if err != nil {
			return err
		}
		if err := ReverseExpense(oldBudget, *old); err != nil {
			return err
		}
		newBudget := oldBudget
		if e.BudgetID != old.BudgetID {
			if newBudget, err = tx.GetBudget(ctx, e.BudgetID); err != nil {
				return err
			}
		}
		if err := ApplyExpense(newBudget, e); err != nil {
			return err
		}

		if _, err := tx.UpdateBudgetSpent(ctx, old.BudgetID, -old.Amount); err != nil {
			return err
		}
		e.CreatedAt = old.CreatedAt
		if err := tx.SaveExpense(ctx, e); err != nil {
			return fmt.Errorf("saving expense: %w", err)
		}
		updated, err = tx.UpdateBudgetSpent(ctx, e.BudgetID, e.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Verify compares the cached spent total with the sum of the budget's
// expenses and reports any drift as ErrBudgetIntegrityViolation. Both
// values come from one snapshot, so concurrent writers are never drift.
func (a *Allocator) Verify(ctx context.Context, budgetID uuid.UUID) (*Budget, error) {
	b, sum, err := a.store.GetBudgetWithExpenseSum(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if sum != b.Spent {
		return b, fmt.Errorf("%w: budget %s spent %s, expenses sum to %s", ErrBudgetIntegrityViolation, b.ID, b.Spent, sum)
	}
	return b, nil
}
