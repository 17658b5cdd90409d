package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-ledger/internal/application/dto"
	"fraud-ledger/internal/testutil"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLedgerAPI_AccountAndTransactionFlow(t *testing.T) {
	a := testutil.NewApp(t, nil)
	h := a.Router()

	rec := do(t, h, http.MethodPost, "/api/v1/accounts",
		`{"account_id":"acct_http","email":"http@example.com","timestamp":"2026-01-01T09:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	account := decodeBody[dto.AccountResponse](t, rec)
	assert.Equal(t, "acct_http", account.AccountID)
	assert.Equal(t, "active", account.Status)

	rec = do(t, h, http.MethodPost, "/api/v1/accounts",
		`{"account_id":"acct_http","email":"again@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/accounts/acct_http/transactions",
		`{"amount":"75.00","currency":"usd","merchant_name":"Night Owl","merchant_category":"dining",
		  "timestamp":"2026-01-05T04:10:00Z","device_id":"dev_1","ip_address":"203.0.113.9"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	txn := decodeBody[dto.TransactionResponse](t, rec)
	assert.Equal(t, "USD", txn.Currency)
	assert.Equal(t, "flagged", txn.Status)
	require.NotNil(t, txn.FraudScore)
	assert.Equal(t, []string{"suspicious_timing"}, txn.FraudScore.Reasons)
	assert.Len(t, txn.FraudScore.Features, 11)

	rec = do(t, h, http.MethodGet, "/api/v1/transactions/"+txn.TransactionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, txn.TransactionID, decodeBody[dto.TransactionResponse](t, rec).TransactionID)

	rec = do(t, h, http.MethodGet, "/api/v1/transactions/flagged?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	flagged := decodeBody[dto.FlaggedTransactionsResponse](t, rec)
	assert.Equal(t, 1, flagged.Total)

	rec = do(t, h, http.MethodGet, "/api/v1/accounts/acct_http", "")
	require.Equal(t, http.StatusOK, rec.Code)
	account = decodeBody[dto.AccountResponse](t, rec)
	assert.Equal(t, 1, account.FraudFlags)
	require.NotNil(t, account.Profile)
	assert.Equal(t, 1, account.Profile.TransactionCount)
	assert.Equal(t, []string{"dev_1"}, account.Profile.KnownDevices)
}

func TestLedgerAPI_AccountEvents(t *testing.T) {
	a := testutil.NewApp(t, nil)
	h := a.Router()

	rec := do(t, h, http.MethodPost, "/api/v1/accounts", `{"account_id":"acct_ev","email":"ev@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/accounts/acct_ev/logins",
		`{"success":false,"failure_reason":"bad_password","ip_address":"198.51.100.1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "LoginAttempted", decodeBody[dto.EventResponse](t, rec).EventType)

	rec = do(t, h, http.MethodPost, "/api/v1/accounts/acct_ev/devices", `{"new_device_id":"dev_tablet","device_type":"tablet"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	evt := decodeBody[dto.EventResponse](t, rec)
	assert.Equal(t, "DeviceChanged", evt.EventType)
	assert.Equal(t, 2, evt.Version)

	rec = do(t, h, http.MethodPost, "/api/v1/accounts/acct_ev/locations",
		`{"latitude":48.8566,"longitude":2.3522,"context":"manual"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decodeBody[dto.EventResponse](t, rec).Version)

	rec = do(t, h, http.MethodPost, "/api/v1/accounts/acct_ev/locations",
		`{"latitude":120,"longitude":2.3522,"context":"manual"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedgerAPI_Errors(t *testing.T) {
	a := testutil.NewApp(t, nil)
	h := a.Router()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown account", http.MethodGet, "/api/v1/accounts/acct_none", "", http.StatusNotFound},
		{"unknown transaction", http.MethodGet, "/api/v1/transactions/txn_none", "", http.StatusNotFound},
		{"transaction for unknown account", http.MethodPost, "/api/v1/accounts/acct_none/transactions", `{"amount":"5"}`, http.StatusNotFound},
		{"malformed body", http.MethodPost, "/api/v1/accounts", `{"email":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/v1/accounts", `{"email":"x@example.com","colour":"red"}`, http.StatusBadRequest},
		{"invalid email", http.MethodPost, "/api/v1/accounts", `{"email":"not-an-email"}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/v1/transactions/flagged?limit=0", "", http.StatusBadRequest},
		{"unknown projection", http.MethodPost, "/api/v1/projections/NopeProjection/rebuild", "", http.StatusNotFound},
		{"training without data", http.MethodPost, "/api/v1/models/train", "", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, decodeBody[map[string]string](t, rec), "error")
		})
	}
}

func TestOperationsAPI_RebuildAndRescore(t *testing.T) {
	a := testutil.NewApp(t, nil)
	h := a.Router()

	rec := do(t, h, http.MethodPost, "/api/v1/accounts", `{"account_id":"acct_ops","email":"ops@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/projections/AccountProjection/rebuild", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[dto.ProjectionResponse](t, rec)
	assert.Equal(t, "AccountProjection", res.Projection)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, int64(1), res.Checkpoint)

	rec = do(t, h, http.MethodPost, "/api/v1/models/rescore", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, decodeBody[dto.RescoreResponse](t, rec).Total)
}

func TestHealthAPI(t *testing.T) {
	a := testutil.NewApp(t, nil)
	h := a.Router()

	rec := do(t, h, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "database")

	rec = do(t, h, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fraud_ledger_")
}
