package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendbook/internal/core"
	"lendbook/internal/debtors"
	"lendbook/internal/ledger"
)

const listPayload = `[
  {
    "_id": "664f1a",
    "id": "AB-101",
    "name": " Ravi ",
    "address": "Salem",
    "mobile": "9876543210",
    "debtAmount": "1,00,000",
    "originalDebtAmount": 100000,
    "debtDate": "2024-03-05",
    "currentDate": "2024-03-04T20:00:00.000Z",
    "interestRate": "2",
    "interestAmount": 2000,
    "remainingBalance": "-10.005",
    "interestPaidMonths": [
      {"month": "Mar-24", "date": "2024-04-01", "amount": "2000"},
      {"month": "Apr-24", "date": "not a date", "amount": "2000"}
    ],
    "paymentHistory": [
      {"date": "2024-05-10", "amount": 500.5, "method": "upi"}
    ]
  },
  {
    "_id": "664f1b",
    "name": "Undated",
    "debtAmount": "abc"
  },
  {
    "id": "CD-303",
    "name": "Kumar",
    "debtAmount": "oops",
    "debtDate": "15/11/2024",
    "remainingBalance": null
  }
]`

var ist = time.FixedZone("IST", 5*3600+1800)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second, ist, nil)
}

func TestClient_ListDebtors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/debtors", r.URL.Path)
		_, _ = io.WriteString(w, listPayload)
	})

	list, err := client.ListDebtors(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2, "the undated record is dropped")

	ravi := list[0]
	assert.Equal(t, "664f1a", ravi.Key)
	assert.Equal(t, "AB-101", ravi.ID)
	assert.Equal(t, "Ravi", ravi.Name)
	assert.Equal(t, core.Rupees(100000), ravi.DebtAmount)
	assert.Equal(t, core.Rupees(100000), ravi.OriginalDebtAmount)
	assert.Equal(t, core.NewDate(2024, 3, 5), ravi.CurrentDate, "timestamps are read in the business zone")
	assert.Equal(t, "2", ravi.InterestRate.String())
	require.NotNil(t, ravi.RemainingBalance)
	assert.Equal(t, int64(-1001), ravi.RemainingBalance.Cents)
	assert.True(t, ravi.IsSettled())
	require.Len(t, ravi.InterestPaid, 1)
	assert.Equal(t, "Mar-24", ravi.InterestPaid[0].Month)
	require.Len(t, ravi.Payments, 1)
	assert.Equal(t, core.MethodUPI, ravi.Payments[0].Method)
	assert.Equal(t, int64(50050), ravi.Payments[0].Amount.Cents)

	kumar := list[1]
	assert.Equal(t, "CD-303", kumar.Key)
	assert.True(t, kumar.DebtAmount.IsZero(), "unparseable amounts become zero")
	assert.Equal(t, core.NewDate(2024, 11, 15), kumar.DebtDate)
	assert.Nil(t, kumar.RemainingBalance)
}

func TestClient_GetDebtor_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/debtors/missing", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message": "Debtor not found"}`)
	})

	_, err := client.GetDebtor(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, debtors.ErrNotFound)
	assert.Contains(t, err.Error(), "Debtor not found")
}

func TestClient_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	})

	_, err := client.ListDebtors(context.Background())
	assert.ErrorIs(t, err, ErrRemote)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
	assert.Equal(t, "boom", statusErr.Message)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(srv.URL, time.Second, ist, nil)

	_, err := client.ListDebtors(context.Background())
	assert.ErrorIs(t, err, debtors.ErrUnavailable)
}

func TestClient_PayInterest(t *testing.T) {
	var got payInterestBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/debtors/pay-interest", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := client.PayInterest(context.Background(), debtors.InterestPayment{
		DebtorKey: "664f1a",
		Months:    []string{"Mar-24", "Apr-24"},
		Date:      core.NewDate(2024, 5, 2),
		Amount:    core.Rupees(2000),
	})
	require.NoError(t, err)
	assert.Equal(t, payInterestBody{
		DebtorID:   "664f1a",
		PaidMonths: []string{"Mar-24", "Apr-24"},
		PaidDate:   "2024-05-02",
		Amount:     "2000.00",
	}, got)
}

func TestClient_PayPrincipal(t *testing.T) {
	var got payPrincipalBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/debtors/664f1a/pay-principal", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	err := client.PayPrincipal(context.Background(), debtors.PrincipalPayment{
		DebtorKey: "664f1a",
		Payment: core.PrincipalPayment{
			Date:   core.NewDate(2024, 6, 1),
			Amount: core.Money{Cents: 150050},
			Method: core.MethodBankTransfer,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, payPrincipalBody{Amount: "1500.50", PaymentDate: "2024-06-01", PaymentMethod: "Bank Transfer"}, got)
}

func TestClient_CreateDebtor(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/debtors/add", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Lakshmi", r.FormValue("name"))
		assert.Equal(t, "50000.00", r.FormValue("debtAmount"))
		assert.Equal(t, "2025-01-10", r.FormValue("debtDate"))
		assert.Empty(t, r.FormValue("remainingBalance"))
		_, _ = io.WriteString(w, `{"message": "created", "debtor": {"_id": "77aa"}}`)
	})

	key, err := client.CreateDebtor(context.Background(), core.Debtor{
		Name:       "Lakshmi",
		DebtAmount: core.Rupees(50000),
		DebtDate:   core.NewDate(2025, 1, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, "77aa", key)
}

func TestClient_UpdateAndDelete(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
	})
	ctx := context.Background()

	require.Error(t, client.UpdateDebtor(ctx, core.Debtor{Name: "no key"}))
	require.NoError(t, client.UpdateDebtor(ctx, core.Debtor{Key: "77aa", Name: "Lakshmi"}))
	require.NoError(t, client.DeleteDebtor(ctx, "77aa"))

	assert.Equal(t, []string{"POST /api/debtors/update/77aa", "DELETE /api/debtors/77aa"}, paths)
}

func TestClient_LastLogout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/last-logout/mohan":
			_, _ = io.WriteString(w, `{"lastLogout": "2025-02-01T10:00:00Z"}`)
		default:
			_, _ = io.WriteString(w, `{}`)
		}
	})

	at, err := client.LastLogout(context.Background(), "Mohan")
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)))

	at, err = client.LastLogout(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestEncodeDecodeRecord(t *testing.T) {
	balance := core.Rupees(750)
	in := core.Debtor{
		Key:              "k1",
		ID:               "AB-101",
		Name:             "Ravi",
		DebtAmount:       core.Rupees(1000),
		DebtDate:         core.NewDate(2024, 3, 5),
		RemainingBalance: &balance,
		Payments: []core.PrincipalPayment{
			{Date: core.NewDate(2024, 4, 1), Amount: core.Rupees(250), Method: core.MethodCheque},
		},
	}
	raw, err := json.Marshal(encodeDebtor(in))
	require.NoError(t, err)

	out, err := DecodeDebtor(raw, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, in.Key, out.Key)
	assert.Equal(t, in.Payments, out.Payments)
	require.NotNil(t, out.RemainingBalance)
	assert.Equal(t, balance, *out.RemainingBalance)
}

func TestDecodeDebtors_BadEntriesKeepTheirDebtor(t *testing.T) {
	payload := `[
  {
    "_id": "a1",
    "name": "Ravi",
    "debtAmount": 1000,
    "debtDate": "2024-03-05",
    "interestPaidMonths": [
      {"month": "", "date": "2024-04-01", "amount": 20},
      {"month": "Apr-24", "date": "2024-05-01", "amount": 20}
    ]
  },
  {
    "_id": "a2",
    "name": "",
    "debtAmount": 500,
    "debtDate": "2024-03-06"
  },
  {
    "id": "AB-103",
    "name": "Meena",
    "debtAmount": 300,
    "debtDate": "2024-03-07",
    "interestPaidMonths": [
      {"month": "Mar-24", "date": "2024-04-02", "amount": "twenty"}
    ]
  },
  {
    "name": "Keyless",
    "debtDate": "2024-03-08"
  }
]`
	decoded, err := DecodeDebtors([]byte(payload), time.UTC)
	require.NoError(t, err)
	require.Len(t, decoded.Debtors, 3)
	require.Len(t, decoded.Rejected, 1)
	assert.Equal(t, 1, decoded.SkippedEntries)

	ravi := decoded.Debtors[0]
	require.Len(t, ravi.InterestPaid, 1)
	assert.Equal(t, "Apr-24", ravi.InterestPaid[0].Month)

	assert.Equal(t, "a2", decoded.Debtors[1].Key)
	assert.Empty(t, decoded.Debtors[1].Name)

	meena := decoded.Debtors[2]
	require.Len(t, meena.InterestPaid, 1)
	assert.True(t, meena.InterestPaid[0].Amount.IsZero())

	l := ledger.Aggregate(decoded.Debtors, core.NewDate(2024, 6, 1))
	given := 0
	for _, tx := range l.Transactions {
		if tx.Type == ledger.DebtGiven {
			given++
		}
	}
	assert.Equal(t, 3, given)
}
