package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
	"github.com/SscSPs/pfm_backend/internal/core/domain"
	portssvc "github.com/SscSPs/pfm_backend/internal/core/ports/services"
	"github.com/SscSPs/pfm_backend/internal/dto"
	"github.com/SscSPs/pfm_backend/internal/handlers"
	"github.com/SscSPs/pfm_backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock AccountService ---
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest, userID string) (*domain.Account, error) {
	args := m.Called(ctx, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockAccountService) GetAccountByID(ctx context.Context, accountID string, userID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockAccountService) ListAccounts(ctx context.Context, userID string, limit int, offset int) ([]domain.Account, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}
func (m *MockAccountService) UpdateAccount(ctx context.Context, accountID string, req dto.UpdateAccountRequest, userID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockAccountService) DeleteAccount(ctx context.Context, accountID string, userID string) error {
	args := m.Called(ctx, accountID, userID)
	return args.Error(0)
}
func (m *MockAccountService) ReconcileAccount(ctx context.Context, accountID string, userID string, fix bool) (*domain.ReconciliationReport, error) {
	args := m.Called(ctx, accountID, userID, fix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationReport), args.Error(1)
}

// Ensure mock implements the interface
var _ portssvc.AccountSvcFacade = (*MockAccountService)(nil)

// --- Mock TransactionService ---
type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) GetTransaction(ctx context.Context, transactionID string, userID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionService) ListTransactions(ctx context.Context, userID string, params dto.ListTransactionsParams) (*dto.ListTransactionsResponse, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListTransactionsResponse), args.Error(1)
}
func (m *MockTransactionService) ListRecurringTemplates(ctx context.Context, userID string) ([]domain.Transaction, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}
func (m *MockTransactionService) CreateTransaction(ctx context.Context, req dto.CreateTransactionRequest, userID string) (*domain.Transaction, error) {
	args := m.Called(ctx, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionService) UpdateTransaction(ctx context.Context, transactionID string, req dto.UpdateTransactionRequest, userID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionService) DeleteTransaction(ctx context.Context, transactionID string, userID string) error {
	args := m.Called(ctx, transactionID, userID)
	return args.Error(0)
}
func (m *MockTransactionService) StopRecurrence(ctx context.Context, transactionID string, userID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

var _ portssvc.TransactionSvcFacade = (*MockTransactionService)(nil)

// --- Test Suite ---
type HandlerTestSuite struct {
	suite.Suite
	router                 *gin.Engine
	mockAccountService     *MockAccountService
	mockTransactionService *MockTransactionService
	jwtSecret              string
	userID                 string
}

// generateTestToken creates a dummy JWT for testing.
func (suite *HandlerTestSuite) generateTestToken(userID string) string {
	claims := jwt.RegisteredClaims{
		Issuer:    "pfm-test",
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(suite.jwtSecret))
	if err != nil {
		suite.FailNow("Failed to sign test token", err.Error())
	}
	return signed
}

func (suite *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.Require().NoError(handlers.RegisterValidators())

	suite.router = gin.New()
	suite.jwtSecret = "test-secret-key-that-is-long-enough"
	suite.userID = uuid.NewString()

	suite.mockAccountService = new(MockAccountService)
	suite.mockTransactionService = new(MockTransactionService)

	v1 := suite.router.Group("/api/v1", middleware.AuthMiddleware(suite.jwtSecret, "pfm-test"))
	handlers.RegisterAccountRoutes(v1, suite.mockAccountService, suite.mockTransactionService)
	handlers.RegisterTransactionRoutes(v1, suite.mockTransactionService)
	handlers.RegisterRecurringRoutes(v1, suite.mockTransactionService)
}

func (suite *HandlerTestSuite) TearDownTest() {
	suite.mockAccountService.AssertExpectations(suite.T())
	suite.mockTransactionService.AssertExpectations(suite.T())
}

func (suite *HandlerTestSuite) serve(method, url string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, url, &buf)
	req.Header.Set("Authorization", "Bearer "+suite.generateTestToken(suite.userID))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

// --- Test Cases ---

func (suite *HandlerTestSuite) TestCreateAccount_Success() {
	opening := decimal.NewFromInt(250)
	req := dto.CreateAccountRequest{
		Name:           "Everyday",
		Institution:    "Bank",
		AccountType:    domain.Checking,
		AccountNumber:  "ACC-1",
		CurrencyCode:   "EUR",
		OpeningBalance: &opening,
	}
	created := &domain.Account{
		AccountID:      uuid.NewString(),
		UserID:         suite.userID,
		Name:           req.Name,
		Institution:    req.Institution,
		AccountType:    req.AccountType,
		AccountNumber:  req.AccountNumber,
		CurrencyCode:   req.CurrencyCode,
		OpeningBalance: opening,
		Balance:        opening,
		IsActive:       true,
	}
	suite.mockAccountService.On("CreateAccount", mock.Anything, mock.MatchedBy(func(r dto.CreateAccountRequest) bool {
		return r.AccountNumber == "ACC-1" && r.OpeningBalance != nil && r.OpeningBalance.Equal(opening)
	}), suite.userID).Return(created, nil).Once()

	w := suite.serve(http.MethodPost, "/api/v1/accounts", req)

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.AccountResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(created.AccountID, resp.AccountID)
	suite.True(resp.Balance.Equal(opening))
}

func (suite *HandlerTestSuite) TestCreateAccount_BindingErrors() {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing name", body: map[string]any{"institution": "Bank", "accountType": "CHECKING", "accountNumber": "A", "currencyCode": "USD"}},
		{name: "unknown type", body: map[string]any{"name": "n", "institution": "Bank", "accountType": "PIGGY", "accountNumber": "A", "currencyCode": "USD"}},
		{name: "bad currency", body: map[string]any{"name": "n", "institution": "Bank", "accountType": "CASH", "accountNumber": "A", "currencyCode": "US"}},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			w := suite.serve(http.MethodPost, "/api/v1/accounts", tt.body)
			suite.Equal(http.StatusBadRequest, w.Code)
		})
	}
}

func (suite *HandlerTestSuite) TestGetAccount_NotFound() {
	accountID := uuid.NewString()
	suite.mockAccountService.On("GetAccountByID", mock.Anything, accountID, suite.userID).
		Return(nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, accountID)).Once()

	w := suite.serve(http.MethodGet, "/api/v1/accounts/"+accountID, nil)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestListAccounts_PassesPaging() {
	suite.mockAccountService.On("ListAccounts", mock.Anything, suite.userID, 5, 10).
		Return([]domain.Account{}, nil).Once()

	w := suite.serve(http.MethodGet, "/api/v1/accounts?limit=5&offset=10", nil)

	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"accounts":[]}`, w.Body.String())
}

func (suite *HandlerTestSuite) TestDeleteAccount_ConflictAfterRetries() {
	accountID := uuid.NewString()
	suite.mockAccountService.On("DeleteAccount", mock.Anything, accountID, suite.userID).
		Return(fmt.Errorf("%w: counterpart set kept changing", apperrors.ErrConflict)).Once()

	w := suite.serve(http.MethodDelete, "/api/v1/accounts/"+accountID, nil)

	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *HandlerTestSuite) TestListAccountTransactions_ScopesToAccount() {
	accountID := uuid.NewString()
	suite.mockAccountService.On("GetAccountByID", mock.Anything, accountID, suite.userID).
		Return(&domain.Account{AccountID: accountID, UserID: suite.userID}, nil).Once()
	suite.mockTransactionService.On("ListTransactions", mock.Anything, suite.userID, mock.MatchedBy(func(p dto.ListTransactionsParams) bool {
		return p.AccountID == accountID && p.Limit == 10 && p.TransactionType == "EXPENSE" &&
			p.From != nil && domain.FormatDate(*p.From) == "2024-03-01"
	})).Return(&dto.ListTransactionsResponse{Transactions: []dto.TransactionResponse{}}, nil).Once()

	w := suite.serve(http.MethodGet, "/api/v1/accounts/"+accountID+"/transactions?limit=10&type=EXPENSE&from=2024-03-01", nil)

	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlerTestSuite) TestReconcileAccount_WithoutBodyDoesNotFix() {
	accountID := uuid.NewString()
	report := &domain.ReconciliationReport{
		AccountID:       accountID,
		StoredBalance:   decimal.NewFromInt(82),
		ExpectedBalance: decimal.NewFromInt(70),
		Drift:           decimal.NewFromInt(-12),
	}
	suite.mockAccountService.On("ReconcileAccount", mock.Anything, accountID, suite.userID, false).Return(report, nil).Once()

	w := suite.serve(http.MethodPost, "/api/v1/accounts/"+accountID+"/reconcile", nil)

	suite.Equal(http.StatusOK, w.Code)
	var got domain.ReconciliationReport
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	suite.True(got.Drift.Equal(decimal.NewFromInt(-12)))
}

func (suite *HandlerTestSuite) TestCreateTransaction_AccountNotFound() {
	suite.mockTransactionService.On("CreateTransaction", mock.Anything, mock.AnythingOfType("dto.CreateTransactionRequest"), suite.userID).
		Return(nil, fmt.Errorf("%w: acc-2", apperrors.ErrAccountNotFound)).Once()

	w := suite.serve(http.MethodPost, "/api/v1/transactions", map[string]any{
		"accountID":       "acc-1",
		"toAccountID":     "acc-2",
		"transactionType": "TRANSFER",
		"amount":          "10.50",
	})

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.JSONEq(`{"error":"Referenced account not found"}`, w.Body.String())
}

func (suite *HandlerTestSuite) TestUpdateTransaction_InternalErrorIsOpaque() {
	txnID := uuid.NewString()
	suite.mockTransactionService.On("UpdateTransaction", mock.Anything, txnID, mock.Anything, suite.userID).
		Return(nil, apperrors.Persistence("ledger apply", errors.New("connection reset"))).Once()

	w := suite.serve(http.MethodPut, "/api/v1/transactions/"+txnID, map[string]any{"description": "groceries"})

	suite.Equal(http.StatusInternalServerError, w.Code)
	suite.JSONEq(`{"error":"Failed to update transaction"}`, w.Body.String())
}

func (suite *HandlerTestSuite) TestDeleteTransaction_NoContent() {
	txnID := uuid.NewString()
	suite.mockTransactionService.On("DeleteTransaction", mock.Anything, txnID, suite.userID).Return(nil).Once()

	w := suite.serve(http.MethodDelete, "/api/v1/transactions/"+txnID, nil)

	suite.Equal(http.StatusNoContent, w.Code)
}

func (suite *HandlerTestSuite) TestStopRecurrence_NotRecurring() {
	txnID := uuid.NewString()
	suite.mockTransactionService.On("StopRecurrence", mock.Anything, txnID, suite.userID).
		Return(nil, fmt.Errorf("%w: transaction %s is not recurring", apperrors.ErrValidation, txnID)).Once()

	w := suite.serve(http.MethodPost, "/api/v1/recurring/"+txnID+"/stop", nil)

	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestListRecurring() {
	next := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	suite.mockTransactionService.On("ListRecurringTemplates", mock.Anything, suite.userID).Return([]domain.Transaction{{
		TransactionID:   "tpl-1",
		UserID:          suite.userID,
		AccountID:       "acc-1",
		TransactionType: domain.Expense,
		Amount:          decimal.NewFromInt(15),
		Recurrence: domain.Recurrence{
			IsRecurring:    true,
			Interval:       domain.Monthly,
			NextRecurrence: &next,
		},
	}}, nil).Once()

	w := suite.serve(http.MethodGet, "/api/v1/recurring", nil)

	suite.Equal(http.StatusOK, w.Code)
	var got []dto.TransactionResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	suite.Require().Len(got, 1)
	suite.Equal("tpl-1", got[0].TransactionID)
	suite.Equal([]string{}, got[0].Tags)
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}
