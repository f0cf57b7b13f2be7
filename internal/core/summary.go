package core

// MonthTotals sums the three transaction categories of one month bucket.
type MonthTotals struct {
	DebtGiven     Money
	InterestPaid  Money
	PrincipalPaid Money
}

// Collected is the money that came back in during the month.
func (t MonthTotals) Collected() Money {
	return t.InterestPaid.Add(t.PrincipalPaid)
}

// Net is collections minus new lending. Negative when more went out than came in.
func (t MonthTotals) Net() Money {
	return t.Collected().Sub(t.DebtGiven)
}
