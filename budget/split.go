package budget

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SplitType string

const (
	SplitTypeEven       SplitType = "even"
	SplitTypePercentage SplitType = "percentage"
	SplitTypeExact      SplitType = "exact"
	SplitTypeShares     SplitType = "shares"
)

var (
	ErrNoParticipants    = errors.New("no participants to split expense")
	ErrUnknownSplitType  = errors.New("unsupported split type")
	ErrInvalidShares     = errors.New("share count can't be negative")
	ErrInvalidPercentage = errors.New("percentage can't be negative")
	ErrInvalidExact      = errors.New("exact amount can't be negative")
	ErrSplitMismatch     = errors.New("split amounts do not add up to the expense amount")
)

var hundred = decimal.NewFromInt(100)

// Participant is one collaborator's input to a split. Only the field that
// matches the split type is read: Percentage for percentage splits, Shares
// for share splits and Exact for exact splits.
type Participant struct {
	CollaboratorID uuid.UUID       `json:"collaborator_id"`
	Percentage     decimal.Decimal `json:"percentage"`
	Shares         int64           `json:"shares"`
	Exact          decimal.Decimal `json:"amount"`
}

type SplitDetail struct {
	CollaboratorID uuid.UUID        `json:"collaborator_id" db:"collaborator_id"`
	OwedAmount     Amount           `json:"owed_amount" db:"owed_amount"`
	Percentage     *decimal.Decimal `json:"percentage,omitempty" db:"percentage"`
	Shares         *int64           `json:"shares,omitempty" db:"shares"`
}

// MismatchError reports exact split amounts that do not sum to the expense
// amount. It is a warning: the split is applied as given.
type MismatchError struct {
	Expected  Amount
	Allocated Amount
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("split mismatch: allocated %s of %s", e.Allocated, e.Expected)
}

func (e *MismatchError) Unwrap() error {
	return ErrSplitMismatch
}

// ComputeSplit divides amount among participants, in participant order.
//
// Even and share splits round every share down to the minor unit and give
// the leftover cents to the first participant (the first one holding a
// share, for share splits), so the owed amounts always sum to amount.
// Percentages are applied independently and are not required to total 100.
// Exact amounts are passed through; when they do not sum to amount the
// details are returned along with a *MismatchError.
func ComputeSplit(amount Amount, splitType SplitType, participants []Participant) ([]SplitDetail, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	switch splitType {
	case SplitTypeEven:
		return splitEven(amount, participants), nil
	case SplitTypePercentage:
		return splitPercentage(amount, participants)
	case SplitTypeExact:
		return splitExact(amount, participants)
	case SplitTypeShares:
		return splitShares(amount, participants)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplitType, splitType)
	}
}

func splitEven(amount Amount, participants []Participant) []SplitDetail {
	n := Amount(len(participants))
	base := amount / n
	residual := amount - base*n

	details := make([]SplitDetail, 0, len(participants))
	for i, p := range participants {
		owed := base
		if i == 0 {
			owed += residual
		}
		details = append(details, SplitDetail{CollaboratorID: p.CollaboratorID, OwedAmount: owed})
	}
	return details
}

func splitPercentage(amount Amount, participants []Participant) ([]SplitDetail, error) {
	details := make([]SplitDetail, 0, len(participants))
	for _, p := range participants {
		if p.Percentage.IsNegative() {
			return nil, fmt.Errorf("%w: %s for %s", ErrInvalidPercentage, p.Percentage, p.CollaboratorID)
		}
		pct := p.Percentage
		owed, err := roundAmount(amount.Decimal().Mul(pct).Div(hundred))
		if err != nil {
			return nil, fmt.Errorf("percentage %s for %s: %w", pct, p.CollaboratorID, err)
		}
		details = append(details, SplitDetail{CollaboratorID: p.CollaboratorID, OwedAmount: owed, Percentage: &pct})
	}
	return details, nil
}

func splitExact(amount Amount, participants []Participant) ([]SplitDetail, error) {
	details := make([]SplitDetail, 0, len(participants))
	var allocated Amount
	for _, p := range participants {
		if p.Exact.IsNegative() {
			return nil, fmt.Errorf("%w: %s for %s", ErrInvalidExact, p.Exact, p.CollaboratorID)
		}
		owed, err := roundAmount(p.Exact)
		if err != nil {
			return nil, fmt.Errorf("exact amount for %s: %w", p.CollaboratorID, err)
		}
		if allocated, err = addAmounts(allocated, owed); err != nil {
			return nil, fmt.Errorf("exact amounts: %w", err)
		}
		details = append(details, SplitDetail{CollaboratorID: p.CollaboratorID, OwedAmount: owed})
	}
	if allocated != amount {
		return details, &MismatchError{Expected: amount, Allocated: allocated}
	}
	return details, nil
}

func splitShares(amount Amount, participants []Participant) ([]SplitDetail, error) {
	var total int64
	for _, p := range participants {
		if p.Shares < 0 {
			return nil, fmt.Errorf("%w: %d for %s", ErrInvalidShares, p.Shares, p.CollaboratorID)
		}
		if total > math.MaxInt64-p.Shares {
			return nil, fmt.Errorf("%w: share total overflows", ErrInvalidShares)
		}
		total += p.Shares
	}

	details := make([]SplitDetail, 0, len(participants))
	var allocated Amount
	first := -1
	for i, p := range participants {
		var owed Amount
		if total > 0 {
			share := decimal.NewFromInt(int64(amount)).Mul(decimal.NewFromInt(p.Shares)).Div(decimal.NewFromInt(total))
			owed = Amount(share.Floor().IntPart())
		}
		if first < 0 && p.Shares > 0 {
			first = i
		}
		allocated += owed
		shares := p.Shares
		details = append(details, SplitDetail{CollaboratorID: p.CollaboratorID, OwedAmount: owed, Shares: &shares})
	}
	if first >= 0 {
		details[first].OwedAmount += amount - allocated
	}
	return details, nil
}
