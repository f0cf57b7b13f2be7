package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendbook/internal/core"
)

func month(y int, m time.Month) core.MonthKey {
	return core.MonthKey{Year: y, Month: m}
}

func sampleDebtors() []core.Debtor {
	return []core.Debtor{
		{
			Key: "a1", ID: "D1", Name: "Ravi", Address: "Salem",
			DebtAmount:  core.Rupees(1000),
			CurrentDate: core.NewDate(2024, 3, 5),
			InterestPaid: []core.InterestPaidEntry{
				{Month: "Mar-24", Date: core.NewDate(2024, 4, 1), Amount: core.Rupees(50)},
				{Month: "Apr-24", Date: core.NewDate(2024, 4, 1), Amount: core.Rupees(50)},
			},
		},
		{
			Key: "b2", ID: "D2", Name: "Meena", Address: "Erode",
			DebtAmount:  core.Rupees(5000),
			CurrentDate: core.NewDate(2024, 12, 20),
			InterestPaid: []core.InterestPaidEntry{
				{Month: "Dec-24", Date: core.NewDate(2025, 1, 3), Amount: core.Rupees(100)},
				{Month: "Jan-25", Date: core.NewDate(2025, 2, 2), Amount: core.Rupees(100)},
			},
			Payments: []core.PrincipalPayment{
				{Date: core.NewDate(2025, 2, 2), Amount: core.Rupees(1500), Method: core.MethodCash},
				{Date: core.NewDate(2025, 2, 10), Amount: core.Rupees(500), Method: core.MethodUPI},
			},
		},
		{
			Key: "c3", ID: "D3", Name: "Kumar", Address: "Namakkal",
			DebtAmount: core.Rupees(2000),
			DebtDate:   core.NewDate(2024, 11, 15),
		},
	}
}

func TestAggregate_OneDebtGivenPerDebtor(t *testing.T) {
	debtors := sampleDebtors()
	l := Aggregate(debtors, core.NewDate(2025, 2, 15))

	count := 0
	for _, tx := range l.Transactions {
		if tx.Type == DebtGiven {
			count++
		}
	}
	assert.Equal(t, len(debtors), count)
}

func TestAggregate_DebtGivenTotalsMatchDebtAmounts(t *testing.T) {
	debtors := sampleDebtors()
	l := Aggregate(debtors, core.NewDate(2025, 2, 15))

	var want core.Money
	for _, d := range debtors {
		want = want.Add(d.DebtAmount)
	}
	assert.Equal(t, want, l.GrandTotals().DebtGiven)
}

func TestAggregate_GroupsInterestByPaymentDate(t *testing.T) {
	l := Aggregate(sampleDebtors()[:1], core.NewDate(2024, 4, 20))

	require.Len(t, l.Transactions, 2)

	given := l.Transactions[0]
	assert.Equal(t, DebtGiven, given.Type)
	assert.Equal(t, core.Rupees(1000), given.Amount)
	assert.Equal(t, "Mar 24", given.Month.Label())
	assert.Equal(t, "-", given.InterestMonthsLabel())

	interest := l.Transactions[1]
	assert.Equal(t, InterestPaid, interest.Type)
	assert.Equal(t, core.Rupees(100), interest.Amount)
	assert.Equal(t, "Mar-24, Apr-24", interest.InterestMonthsLabel())
	assert.Equal(t, "Apr 24", interest.Month.Label())
}

func TestAggregate_SeparateDatesStaySeparate(t *testing.T) {
	l := Aggregate(sampleDebtors()[1:2], core.NewDate(2025, 2, 15))

	var interest []Transaction
	for _, tx := range l.Transactions {
		if tx.Type == InterestPaid {
			interest = append(interest, tx)
		}
	}
	require.Len(t, interest, 2)
	assert.Equal(t, []string{"Dec-24"}, interest[0].InterestMonths)
	assert.Equal(t, []string{"Jan-25"}, interest[1].InterestMonths)
}

func TestAggregate_PrincipalPaymentsOneToOne(t *testing.T) {
	l := Aggregate(sampleDebtors(), core.NewDate(2025, 2, 15))

	var principal []Transaction
	for _, tx := range l.Transactions {
		if tx.Type == PrincipalPaid {
			principal = append(principal, tx)
		}
	}
	require.Len(t, principal, 2)
	assert.Equal(t, core.Rupees(1500), principal[0].Amount)
	assert.Equal(t, core.Rupees(500), principal[1].Amount)
}

func TestAggregate_SortedByDateStable(t *testing.T) {
	l := Aggregate(sampleDebtors(), core.NewDate(2025, 2, 15))

	for i := 1; i < len(l.Transactions); i++ {
		assert.False(t, l.Transactions[i].Date.Before(l.Transactions[i-1].Date),
			"transaction %d is out of order", i)
	}

	// interest and principal paid on 2025-02-02 keep their derivation order
	var sameDay []TransactionType
	for _, tx := range l.Transactions {
		if tx.Date.Equal(core.NewDate(2025, 2, 2).Time) {
			sameDay = append(sameDay, tx.Type)
		}
	}
	assert.Equal(t, []TransactionType{InterestPaid, PrincipalPaid}, sameDay)
}

func TestAggregate_MonthsChronological(t *testing.T) {
	l := Aggregate(sampleDebtors(), core.NewDate(2025, 2, 15))

	want := []core.MonthKey{
		month(2024, time.March),
		month(2024, time.April),
		month(2024, time.November),
		month(2024, time.December),
		month(2025, time.January),
		month(2025, time.February),
	}
	assert.Equal(t, want, l.Months)

	// label order would put "Apr 24" first and "Nov 24" after "Jan 25"
	for i := 1; i < len(l.Months); i++ {
		assert.True(t, l.Months[i-1].Before(l.Months[i]))
	}
}

func TestAggregate_MonthTotals(t *testing.T) {
	l := Aggregate(sampleDebtors(), core.NewDate(2025, 2, 15))

	feb := l.Totals[month(2025, time.February)]
	assert.Equal(t, core.Money{}, feb.DebtGiven)
	assert.Equal(t, core.Rupees(100), feb.InterestPaid)
	assert.Equal(t, core.Rupees(2000), feb.PrincipalPaid)

	dec := l.Totals[month(2024, time.December)]
	assert.Equal(t, core.Rupees(5000), dec.DebtGiven)
	assert.Equal(t, core.Money{}, dec.InterestPaid)
}

func TestAggregate_DebtDateFallback(t *testing.T) {
	l := Aggregate(sampleDebtors()[2:], core.NewDate(2025, 2, 15))

	require.Len(t, l.Transactions, 1)
	assert.Equal(t, month(2024, time.November), l.Transactions[0].Month)
}

func TestAggregate_DefaultMonth(t *testing.T) {
	debtors := sampleDebtors()

	l := Aggregate(debtors, core.NewDate(2024, 12, 31))
	assert.Equal(t, month(2024, time.December), l.Default, "current month is preferred when present")

	l = Aggregate(debtors, core.NewDate(2025, 6, 1))
	assert.Equal(t, month(2025, time.February), l.Default, "latest month otherwise")

	l = Aggregate(debtors, core.NewDate(2024, 6, 1))
	assert.Equal(t, month(2025, time.February), l.Default)
}

func TestAggregate_Empty(t *testing.T) {
	l := Aggregate(nil, core.NewDate(2025, 2, 15))

	assert.True(t, l.NoData)
	assert.Empty(t, l.Transactions)
	assert.Empty(t, l.Months)
	assert.True(t, l.Default.IsZero())

	report := BuildMonthReport(l, month(2025, time.February))
	assert.True(t, report.NoData)
	assert.Empty(t, report.Rows)
}

func TestAggregate_ZeroAmountsDoNotBreakTotals(t *testing.T) {
	debtors := []core.Debtor{{
		ID: "Z", CurrentDate: core.NewDate(2024, 5, 1),
		InterestPaid: []core.InterestPaidEntry{{Month: "May-24", Date: core.NewDate(2024, 5, 30)}},
	}}
	l := Aggregate(debtors, core.NewDate(2024, 5, 31))

	require.Len(t, l.Transactions, 2)
	assert.Equal(t, core.MonthTotals{}, l.Totals[month(2024, time.May)])
}

func TestAggregate_Idempotent(t *testing.T) {
	debtors := sampleDebtors()
	today := core.NewDate(2025, 2, 15)
	assert.Equal(t, Aggregate(debtors, today), Aggregate(debtors, today))
}
