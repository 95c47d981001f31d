package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bank-reconciliation-engine/internal/config"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/routes"
	"bank-reconciliation-engine/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const statement = `Txn Date,Narration,UTR No,Deposit Amt,Withdrawal Amt
05-03-2026,NEFT CR FROM GLOBEX CORP,UTR202603050001,"12,500.00",
06-03-2026,ATM WDL,,,2000.00
07-03-2026,broken row,,abc,
`

type server struct {
	db     *gorm.DB
	l      *testutil.Ledger
	engine *gin.Engine
}

func newServer(t *testing.T) *server {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	cfg := config.DefaultMatching()
	cfg.CandidateTimeout = 5 * time.Second

	r := gin.New()
	routes.RegisterRoutes(r, db, cfg)
	return &server{db: db, l: testutil.SeedLedger(t, db, "tenant-1"), engine: r}
}

func (s *server) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor", "reviewer@acme")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *server) upload(t *testing.T, csv string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "statement.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/bank-accounts/"+s.l.BankAccount.ID.String()+"/feed", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestFeedUpload(t *testing.T) {
	s := newServer(t)

	w := s.upload(t, statement)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 2, body["accepted_count"])
	assert.EqualValues(t, 1, body["rejected_count"])
	assert.Equal(t, "statement.csv", body["file"])

	again := decode(t, s.upload(t, statement))
	assert.EqualValues(t, 0, again["accepted_count"])
	assert.EqualValues(t, 3, again["rejected_count"])

	var count int64
	require.NoError(t, s.db.Model(&models.BankTransaction{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestFeedUploadJSONBody(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/api/bank-accounts/"+s.l.BankAccount.ID.String()+"/feed", []map[string]string{
		{"date": "2026-03-05", "description": "IMPS from Initech", "credit": "900.00"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["accepted_count"])
}

func TestFeedUnknownBankAccount(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/api/bank-accounts/"+uuid.NewString()+"/feed", []map[string]string{
		{"date": "2026-03-05", "description": "x", "credit": "1.00"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRerunAndSuspenseWriteOff(t *testing.T) {
	s := newServer(t)
	txn := s.l.Transaction(t, s.db, "64.00", "", "Nobody", testutil.Day(2026, time.March, 20))

	w := s.do(t, http.MethodPost, "/api/transactions/"+txn.ID.String()+"/rerun", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "suspense", decode(t, w)["decision"])

	w = s.do(t, http.MethodGet, "/api/tenants/tenant-1/suspense", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	items := list["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "64", list["outstanding_total"])
	entryID := items[0].(map[string]interface{})["id"].(string)

	w = s.do(t, http.MethodPost, "/api/suspense/"+entryID+"/write-off", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/suspense/"+entryID+"/write-off", map[string]string{"reason": "bank charges"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/suspense/"+entryID+"/write-off", map[string]string{"reason": "again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/transactions/"+txn.ID.String()+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["items"])

	w = s.do(t, http.MethodGet, "/api/tenants/tenant-1/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 2)
}

func TestReviewFlow(t *testing.T) {
	s := newServer(t)
	inv := s.l.Invoice(t, s.db, "INV-B1", "ACME CORPORATION", "10000.00", testutil.Day(2026, time.March, 1))
	txn := s.l.Transaction(t, s.db, "9950.00", "", "Acme Corp", testutil.Day(2026, time.March, 3))

	w := s.do(t, http.MethodGet, "/api/transactions/"+txn.ID.String()+"/suggestions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	suggestions := decode(t, w)["items"].([]interface{})
	require.NotEmpty(t, suggestions)
	first := suggestions[0].(map[string]interface{})
	assert.Equal(t, "manual_review", first["recommended_action"])
	assert.Equal(t, inv.ID.String(), first["candidate"].(map[string]interface{})["id"])

	w = s.do(t, http.MethodPost, "/api/transactions/"+txn.ID.String()+"/rerun", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.Equal(t, "review", res["decision"])
	matchID := res["match"].(map[string]interface{})["id"].(string)

	w = s.do(t, http.MethodPost, "/api/matches/"+matchID+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "confirmed", decode(t, w)["match"].(map[string]interface{})["status"])

	w = s.do(t, http.MethodPost, "/api/matches/"+matchID+"/reject", map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/transactions/"+txn.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "matched", decode(t, w)["status"])

	w = s.do(t, http.MethodGet, "/api/tenants/tenant-1/trial-balance?as_of=2100-01-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tb := decode(t, w)
	assert.Equal(t, tb["total_debits"], tb["total_credits"])
	assert.Equal(t, "9950", tb["total_debits"])
}

func TestManualMatchErrors(t *testing.T) {
	s := newServer(t)
	txn := s.l.Transaction(t, s.db, "10.00", "", "Someone", testutil.Day(2026, time.March, 20))

	w := s.do(t, http.MethodPost, "/api/transactions/not-a-uuid/manual-match", map[string]string{"target_id": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/transactions/"+txn.ID.String()+"/manual-match", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/transactions/"+txn.ID.String()+"/manual-match", map[string]string{"target_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/matches/"+uuid.NewString()+"/confirm", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLedgerEndpoints(t *testing.T) {
	s := newServer(t)
	path := "/api/tenants/tenant-1/journal-entries"

	w := s.do(t, http.MethodPost, path, map[string]interface{}{
		"entry_date":  "2026-03-10",
		"description": "Opening cash",
		"currency":    "INR",
		"lines": []map[string]string{
			{"account_id": s.l.BankGL.ID.String(), "direction": "debit", "amount": "500.00"},
			{"account_id": s.l.Revenue.ID.String(), "direction": "credit", "amount": "400.00"},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, path, map[string]interface{}{
		"entry_date":  "2026-03-10",
		"description": "Opening cash",
		"currency":    "INR",
		"lines": []map[string]string{
			{"account_id": s.l.BankGL.ID.String(), "direction": "debit", "amount": "500.00"},
			{"account_id": s.l.Revenue.ID.String(), "direction": "credit", "amount": "500.00"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entryID := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodGet, "/api/gl-accounts/"+s.l.BankGL.ID.String()+"/balance?as_of=2026-03-10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "500", decode(t, w)["normal"])

	w = s.do(t, http.MethodGet, "/api/gl-accounts/"+s.l.BankGL.ID.String()+"/balance?as_of=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/journal-entries/"+entryID+"/reverse", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/journal-entries/"+entryID+"/reverse", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPatch, "/api/gl-accounts/"+s.l.BankGL.ID.String(), map[string]string{"code": "1011"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPatch, "/api/gl-accounts/"+s.l.BankGL.ID.String(), map[string]string{"name": "HDFC Current"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HDFC Current", decode(t, w)["name"])
}

func TestSetupEndpoints(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/api/tenants/tenant-1/bank-accounts", map[string]string{"name": "ICICI"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/tenants/tenant-1/bank-accounts", map[string]string{
		"name":           "ICICI Current",
		"account_number": "000401",
		"currency":       "inr",
		"gl_account_id":  s.l.BankGL.ID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "INR", decode(t, w)["currency"])

	w = s.do(t, http.MethodGet, "/api/tenants/tenant-1/bank-accounts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 2)

	w = s.do(t, http.MethodGet, "/api/tenants/tenant-1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, s.l.Receivables.ID.String(), decode(t, w)["receivables_account_id"])

	w = s.do(t, http.MethodGet, "/api/tenants/nobody/settings", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.l.Invoice(t, s.db, "INV-77", "Wayne Enterprises", "77.00", testutil.Day(2026, time.March, 1))
	w = s.do(t, http.MethodGet, "/api/tenants/tenant-1/receivables?q="+strings.ToLower("WAYNE"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)
}
