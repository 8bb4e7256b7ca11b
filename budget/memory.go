package budget

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps budgets and expenses in process. It has no atomic
// delta primitive, so transactions are serialised behind one writer lock
// and their writes are staged until fn returns without error.
type MemoryStore struct {
	mu       sync.Mutex
	budgets  map[uuid.UUID]Budget
	expenses map[uuid.UUID]Expense
}

func NewMemoryStore(budgets ...Budget) *MemoryStore {
	s := &MemoryStore{
		budgets:  make(map[uuid.UUID]Budget, len(budgets)),
		expenses: make(map[uuid.UUID]Expense),
	}
	for _, b := range budgets {
		s.budgets[b.ID] = b
	}
	return s
}

func (s *MemoryStore) GetBudget(ctx context.Context, id uuid.UUID) (*Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.budgets[id]
	if !ok {
		return nil, ErrBudgetNotFound
	}
	return &b, nil
}

func (s *MemoryStore) GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[id]
	if !ok {
		return nil, ErrExpenseNotFound
	}
	return cloneExpense(e), nil
}

func (s *MemoryStore) GetBudgetWithExpenseSum(ctx context.Context, budgetID uuid.UUID) (*Budget, Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.budgets[budgetID]
	if !ok {
		return nil, 0, ErrBudgetNotFound
	}
	var sum Amount
	for _, e := range s.expenses {
		if e.BudgetID == budgetID {
			sum += e.Amount
		}
	}
	return &b, sum, nil
}

// ListExpenses returns a budget's expenses, oldest first.
func (s *MemoryStore) ListExpenses(ctx context.Context, budgetID uuid.UUID) ([]Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expenses := []Expense{}
	for _, e := range s.expenses {
		if e.BudgetID == budgetID {
			expenses = append(expenses, *cloneExpense(e))
		}
	}
	slices.SortFunc(expenses, func(a, b Expense) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return expenses, nil
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:    s,
		budgets:  make(map[uuid.UUID]Budget),
		expenses: make(map[uuid.UUID]*Expense),
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	maps.Copy(s.budgets, tx.budgets)
	for id, e := range tx.expenses {
		if e == nil {
			delete(s.expenses, id)
			continue
		}
		s.expenses[id] = *e
	}
	return nil
}

// memoryTx overlays staged writes on the store. A nil staged expense is a
// pending delete. The store lock is held by InTx for its lifetime.
type memoryTx struct {
	store    *MemoryStore
	budgets  map[uuid.UUID]Budget
	expenses map[uuid.UUID]*Expense
}

func (tx *memoryTx) GetBudget(ctx context.Context, id uuid.UUID) (*Budget, error) {
	if b, ok := tx.budgets[id]; ok {
		return &b, nil
	}
	b, ok := tx.store.budgets[id]
	if !ok {
		return nil, ErrBudgetNotFound
	}
	return &b, nil
}

func (tx *memoryTx) GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error) {
	if e, ok := tx.expenses[id]; ok {
		if e == nil {
			return nil, ErrExpenseNotFound
		}
		return cloneExpense(*e), nil
	}
	e, ok := tx.store.expenses[id]
	if !ok {
		return nil, ErrExpenseNotFound
	}
	return cloneExpense(e), nil
}

func (tx *memoryTx) SaveExpense(ctx context.Context, e Expense) error {
	tx.expenses[e.ID] = cloneExpense(e)
	return nil
}

func (tx *memoryTx) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	if _, err := tx.GetExpense(ctx, id); err != nil {
		return err
	}
	tx.expenses[id] = nil
	return nil
}

func (tx *memoryTx) UpdateBudgetSpent(ctx context.Context, budgetID uuid.UUID, delta Amount) (*Budget, error) {
	b, err := tx.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if err := b.adjust(delta); err != nil {
		return nil, err
	}
	tx.budgets[budgetID] = *b
	return b, nil
}

func cloneExpense(e Expense) *Expense {
	e.SplitDetails = slices.Clone(e.SplitDetails)
	return &e
}
