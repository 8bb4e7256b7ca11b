package budget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *repository {
	return &repository{db: db}
}

func (r *repository) GetBudget(ctx context.Context, id uuid.UUID) (*Budget, error) {
	return getBudget(ctx, r.db, id)
}

func (r *repository) GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error) {
	return getExpense(ctx, r.db, id, false)
}

// GetBudgetWithExpenseSum reads both values in one statement, so a writer
// committing in between can't make them disagree.
func (r *repository) GetBudgetWithExpenseSum(ctx context.Context, budgetID uuid.UUID) (*Budget, Amount, error) {
	query := `SELECT b.id, b.trip_id, b.category, b.amount, b.spent, b.currency,
	                 (SELECT COALESCE(SUM(e.amount), 0) FROM expenses e WHERE e.budget_id = b.id) AS expense_sum
	          FROM budgets b
	          WHERE b.id = $1`

	var row struct {
		Budget
		ExpenseSum Amount `db:"expense_sum"`
	}
	err := r.db.GetContext(ctx, &row, query, budgetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrBudgetNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("querying budget totals: %w", err)
	}
	return &row.Budget, row.ExpenseSum, nil
}

func (r *repository) ListExpenses(ctx context.Context, budgetID uuid.UUID) ([]Expense, error) {
	query := `SELECT id, trip_id, budget_id, amount, currency, description, expense_date, paid_by, split_type, created_at
	          FROM expenses
	          WHERE budget_id = $1
	          ORDER BY created_at`

	expenses := []Expense{}
	if err := r.db.SelectContext(ctx, &expenses, query, budgetID); err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	for i := range expenses {
		details, err := getSplitDetails(ctx, r.db, expenses[i].ID)
		if err != nil {
			return nil, err
		}
		expenses[i].SplitDetails = details
	}
	return expenses, nil
}

func (r *repository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) GetBudget(ctx context.Context, id uuid.UUID) (*Budget, error) {
	return getBudget(ctx, t.tx, id)
}

// GetExpense locks the expense row until the transaction ends so that two
// concurrent edits of one expense can't both reverse the same old amount.
func (t *pgTx) GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error) {
	return getExpense(ctx, t.tx, id, true)
}

func (t *pgTx) SaveExpense(ctx context.Context, e Expense) error {
	query := `INSERT INTO expenses (id, trip_id, budget_id, amount, currency, description, expense_date, paid_by, split_type, created_at)
	          VALUES (:id, :trip_id, :budget_id, :amount, :currency, :description, :expense_date, :paid_by, :split_type, :created_at)
	          ON CONFLICT (id) DO UPDATE SET
	              budget_id = EXCLUDED.budget_id,
	              amount = EXCLUDED.amount,
	              currency = EXCLUDED.currency,
	              description = EXCLUDED.description,
	              expense_date = EXCLUDED.expense_date,
	              paid_by = EXCLUDED.paid_by,
	              split_type = EXCLUDED.split_type`
	if _, err := t.tx.NamedExecContext(ctx, query, e); err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM expense_splits WHERE expense_id = $1`, e.ID); err != nil {
		return err
	}
	for i, d := range e.SplitDetails {
		query = `INSERT INTO expense_splits (expense_id, position, collaborator_id, owed_amount, percentage, shares) VALUES ($1, $2, $3, $4, $5, $6)`
		_, err := t.tx.ExecContext(ctx, query, e.ID, i, d.CollaboratorID, d.OwedAmount, d.Percentage, d.Shares)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

// UpdateBudgetSpent applies the delta in the database so concurrent writers
// never overwrite each other's increments.
func (t *pgTx) UpdateBudgetSpent(ctx context.Context, budgetID uuid.UUID, delta Amount) (*Budget, error) {
	query := `UPDATE budgets SET spent = spent + $1
	          WHERE id = $2 AND spent + $1 >= 0
	          RETURNING id, trip_id, category, amount, spent, currency`

	var b Budget
	err := t.tx.GetContext(ctx, &b, query, delta, budgetID)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("updating budget spent: %w", err)
	}

	current, err := getBudget(ctx, t.tx, budgetID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: budget %s spent %s, delta %s", ErrBudgetIntegrityViolation, budgetID, current.Spent, delta)
}

func getBudget(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*Budget, error) {
	query := `SELECT id, trip_id, category, amount, spent, currency FROM budgets WHERE id = $1`

	var b Budget
	err := sqlx.GetContext(ctx, q, &b, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBudgetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying budget: %w", err)
	}
	return &b, nil
}

func getExpense(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, forUpdate bool) (*Expense, error) {
	query := `SELECT id, trip_id, budget_id, amount, currency, description, expense_date, paid_by, split_type, created_at
	          FROM expenses
	          WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var e Expense
	err := sqlx.GetContext(ctx, q, &e, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying expense: %w", err)
	}

	details, err := getSplitDetails(ctx, q, id)
	if err != nil {
		return nil, err
	}
	e.SplitDetails = details
	return &e, nil
}

func getSplitDetails(ctx context.Context, q sqlx.QueryerContext, expenseID uuid.UUID) ([]SplitDetail, error) {
	query := `SELECT collaborator_id, owed_amount, percentage, shares
	          FROM expense_splits
	          WHERE expense_id = $1
	          ORDER BY position`

	details := []SplitDetail{}
	if err := sqlx.SelectContext(ctx, q, &details, query, expenseID); err != nil {
		return nil, fmt.Errorf("querying expense splits: %w", err)
	}
	return details, nil
}
