package lending

import "time"

// DefaultLoanPeriodDays is the library-wide loan length unless
// configured otherwise.
const DefaultLoanPeriodDays = 7

// Policy computes loan terms. Pure: no state beyond its constants.
type Policy struct {
	LoanPeriodDays int
}

func NewPolicy(loanPeriodDays int) Policy {
	if loanPeriodDays <= 0 {
		loanPeriodDays = DefaultLoanPeriodDays
	}
	return Policy{LoanPeriodDays: loanPeriodDays}
}

// DueDate is borrowDate plus the loan period. The result is fixed on
// the record at creation and never recomputed.
func (p Policy) DueDate(borrowDate time.Time) time.Time {
	return borrowDate.Add(time.Duration(p.LoanPeriodDays) * 24 * time.Hour)
}
