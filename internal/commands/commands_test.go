package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/SscSPs/pfm_backend/internal/dto"
	"github.com/SscSPs/pfm_backend/internal/platform/config"
	"github.com/SscSPs/pfm_backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func testConfig() *config.Config {
	return &config.Config{
		StorageDriver:     config.StorageMemory,
		Port:              "0",
		JWTSecret:         "test-secret-key-that-is-long-enough",
		JWTIssuer:         "pfm-test",
		JWTExpiryDuration: time.Hour,
		RateLimit:         "1000-M",
		FrontendBaseURL:   "http://localhost:3000",
		SweepCron:         "0 2 * * *",
		SweepBatchSize:    10,
		SweepClaimLease:   time.Minute,
	}
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(func() (*config.Config, error) { return cfg, nil })
	var out, logs bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	cfg := testConfig()

	out, err := execute(t, cfg, "token", "user-7", "--expiry", "5m")
	require.NoError(t, err)

	claims, err := utils.ParseAndValidateJWT(strings.TrimSpace(out), cfg.JWTSecret, cfg.JWTIssuer)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenCommand_DisabledInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.IsProduction = true

	_, err := execute(t, cfg, "token", "user-7")
	assert.ErrorContains(t, err, "disabled in production")
}

func TestSweepCommand_EmptyStore(t *testing.T) {
	out, err := execute(t, testConfig(), "sweep", "--date", "2024-03-10")
	require.NoError(t, err)

	var result domain.SweepResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, domain.SweepResult{}, result)
}

func TestSweepCommand_InvalidDate(t *testing.T) {
	_, err := execute(t, testConfig(), "sweep", "--date", "10/03/2024")
	assert.ErrorContains(t, err, "invalid --date")
}

func TestReconcileCommand_UnknownAccount(t *testing.T) {
	_, err := execute(t, testConfig(), "reconcile", "missing-account")
	assert.ErrorContains(t, err, "looking up account missing-account")
}

func TestMigrateCommand_RequiresPostgres(t *testing.T) {
	_, err := execute(t, testConfig(), "migrate")
	assert.ErrorContains(t, err, "requires STORAGE_DRIVER=postgres")
}

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	_, err := execute(t, testConfig(), "--log-level", "loud", "token", "user-7")
	assert.ErrorContains(t, err, "invalid --log-level")
}

// APIFlowTestSuite drives the fully wired router against in-memory storage.
type APIFlowTestSuite struct {
	suite.Suite
	cfg    *config.Config
	app    *app
	router *gin.Engine
	token  string
}

func (s *APIFlowTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.cfg = testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := newApp(s.T().Context(), s.cfg, logger, false)
	s.Require().NoError(err)
	s.app = a

	s.router, err = buildRouter(s.cfg, logger, a.services, nil, utils.InitializePosthogClient("", "", logger))
	s.Require().NoError(err)

	s.token, err = utils.GenerateJWT("user-1", s.cfg.JWTSecret, time.Hour, s.cfg.JWTIssuer)
	s.Require().NoError(err)
}

func (s *APIFlowTestSuite) TearDownTest() {
	s.app.Close()
}

func (s *APIFlowTestSuite) request(method, path string, body any, out any) int {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if out != nil && w.Code < http.StatusBadRequest {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func (s *APIFlowTestSuite) createAccount(number string, opening string) dto.AccountResponse {
	var acc dto.AccountResponse
	code := s.request(http.MethodPost, "/api/v1/accounts", map[string]any{
		"name":           "Account " + number,
		"institution":    "Bank",
		"accountType":    "CHECKING",
		"accountNumber":  number,
		"currencyCode":   "USD",
		"openingBalance": opening,
	}, &acc)
	s.Require().Equal(http.StatusCreated, code)
	return acc
}

func (s *APIFlowTestSuite) TestHealthAndSwagger() {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "/accounts/{accountID}/reconcile")
}

func (s *APIFlowTestSuite) TestTransferUpdatesBothBalances() {
	from := s.createAccount("ACC-1", "1000")
	to := s.createAccount("ACC-2", "500")

	var txn dto.TransactionResponse
	code := s.request(http.MethodPost, "/api/v1/transactions", map[string]any{
		"accountID":       from.AccountID,
		"toAccountID":     to.AccountID,
		"transactionType": "TRANSFER",
		"amount":          "200",
		"date":            "2024-03-10T00:00:00Z",
	}, &txn)
	s.Require().Equal(http.StatusCreated, code)

	var got dto.AccountResponse
	s.Require().Equal(http.StatusOK, s.request(http.MethodGet, "/api/v1/accounts/"+from.AccountID, nil, &got))
	s.Equal("800", got.Balance.String())
	s.Require().Equal(http.StatusOK, s.request(http.MethodGet, "/api/v1/accounts/"+to.AccountID, nil, &got))
	s.Equal("700", got.Balance.String())

	var page dto.ListTransactionsResponse
	s.Require().Equal(http.StatusOK, s.request(http.MethodGet, "/api/v1/accounts/"+to.AccountID+"/transactions", nil, &page))
	s.Require().Len(page.Transactions, 1)
	s.Equal(txn.TransactionID, page.Transactions[0].TransactionID)

	var report domain.ReconciliationReport
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/accounts/"+from.AccountID+"/reconcile", map[string]any{"fix": false}, &report))
	s.True(report.Drift.IsZero())
	s.Equal(1, report.TransactionCount)

	s.Equal(http.StatusNoContent, s.request(http.MethodDelete, "/api/v1/transactions/"+txn.TransactionID, nil, nil))
	s.Require().Equal(http.StatusOK, s.request(http.MethodGet, "/api/v1/accounts/"+from.AccountID, nil, &got))
	s.Equal("1000", got.Balance.String())
}

func (s *APIFlowTestSuite) TestErrorMapping() {
	from := s.createAccount("ACC-1", "100")

	s.Equal(http.StatusBadRequest, s.request(http.MethodPost, "/api/v1/transactions", map[string]any{
		"accountID":       from.AccountID,
		"toAccountID":     "missing",
		"transactionType": "TRANSFER",
		"amount":          "10",
	}, nil))

	s.Equal(http.StatusConflict, s.request(http.MethodPost, "/api/v1/accounts", map[string]any{
		"name":          "Dup",
		"institution":   "Bank",
		"accountType":   "SAVINGS",
		"accountNumber": "ACC-1",
		"currencyCode":  "USD",
	}, nil))

	s.Equal(http.StatusBadRequest, s.request(http.MethodPost, "/api/v1/accounts", map[string]any{
		"name":          "Lowercase currency",
		"institution":   "Bank",
		"accountType":   "SAVINGS",
		"accountNumber": "ACC-9",
		"currencyCode":  "usd",
	}, nil))

	s.Equal(http.StatusNotFound, s.request(http.MethodGet, "/api/v1/transactions/missing", nil, nil))
	s.Equal(http.StatusNotFound, s.request(http.MethodGet, "/api/v1/accounts/missing", nil, nil))
}

func (s *APIFlowTestSuite) TestRecurringTemplateLifecycle() {
	acc := s.createAccount("ACC-1", "0")

	var txn dto.TransactionResponse
	code := s.request(http.MethodPost, "/api/v1/transactions", map[string]any{
		"accountID":       acc.AccountID,
		"transactionType": "INCOME",
		"amount":          "3000",
		"category":        "salary",
		"date":            "2024-01-31T00:00:00Z",
		"recurrence":      map[string]any{"isRecurring": true, "interval": "monthly"},
	}, &txn)
	s.Require().Equal(http.StatusCreated, code)

	var templates []dto.TransactionResponse
	s.Require().Equal(http.StatusOK, s.request(http.MethodGet, "/api/v1/recurring", nil, &templates))
	s.Require().Len(templates, 1)
	s.Require().NotNil(templates[0].Recurrence.NextRecurrence)
	s.Equal("2024-02-29", domain.FormatDate(*templates[0].Recurrence.NextRecurrence))

	var stopped dto.TransactionResponse
	s.Require().Equal(http.StatusOK, s.request(http.MethodPost, "/api/v1/recurring/"+txn.TransactionID+"/stop", nil, &stopped))
	s.False(stopped.Recurrence.IsRecurring)

	s.Equal(http.StatusBadRequest, s.request(http.MethodPost, "/api/v1/recurring/"+txn.TransactionID+"/stop", nil, nil))
}

func (s *APIFlowTestSuite) TestRequiresBearerToken() {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))
	s.Equal(http.StatusUnauthorized, w.Code)
}

func TestAPIFlowTestSuite(t *testing.T) {
	suite.Run(t, new(APIFlowTestSuite))
}
