package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/integration/panel"
	"github.com/isp-backoffice/internal/integration/payment"
	"github.com/isp-backoffice/internal/integration/registrar"
	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/service"
	"github.com/isp-backoffice/internal/tasks"
	"github.com/isp-backoffice/internal/testutil"
	"github.com/isp-backoffice/internal/validator"
	"github.com/isp-backoffice/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	engine  *gin.Engine
	svc     *service.Services
	queue   *tasks.RecordingEnqueuer
	gateway *payment.MockGateway
	admin   string
	staff   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validator.RegisterTags())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := &testServer{
		t:       t,
		queue:   &tasks.RecordingEnqueuer{},
		gateway: payment.NewMockGateway(),
	}
	reg2 := registrar.NewMockClient("mock")
	pc := panel.NewMockClient()
	s.svc = service.New(service.Options{
		DB: testutil.NewDB(t),
		Billing: config.BillingConfig{
			BaseCurrency:     "USD",
			HomeCountry:      "US",
			InvoicePrefix:    "INV",
			QuotePrefix:      "QUO",
			PaymentTermsDays: 14,
			QuoteValidDays:   30,
		},
		Auth:      config.AuthConfig{JWTSecret: "router-secret", Issuer: "isp-backoffice", TokenTTL: time.Hour},
		Queue:     s.queue,
		Gateway:   s.gateway,
		Metrics:   m,
		Registrar: func(*model.Registrar) (registrar.Client, error) { return reg2, nil },
		Panel:     func(*model.HostingServer) (panel.Client, error) { return pc, nil },
	})
	s.engine = SetupRouter(Options{
		Services:    s.svc,
		Queue:       s.queue,
		Metrics:     m,
		Gatherer:    reg,
		CorsOrigins: []string{"http://localhost:5173"},
	})

	ctx := context.Background()
	_, err := s.svc.Auth.CreateUser(ctx, dto.CreateUserRequest{Email: "admin@example.com", Password: "admin-pass", Role: model.RoleAdmin})
	require.NoError(t, err)
	_, err = s.svc.Auth.CreateUser(ctx, dto.CreateUserRequest{Email: "staff@example.com", Password: "staff-pass"})
	require.NoError(t, err)
	s.admin = s.login("admin@example.com", "admin-pass")
	s.staff = s.login("staff@example.com", "staff-pass")
	return s
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// call 发送请求并断言状态码, 返回解码后的 data
func (s *testServer) call(method, path, token string, body interface{}, status int, out interface{}) apiResponse {
	s.t.Helper()
	w := s.do(method, path, token, body)
	require.Equal(s.t, status, w.Code, w.Body.String())
	var resp apiResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	if out != nil {
		require.NoError(s.t, json.Unmarshal(resp.Data, out))
	}
	return resp
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	var out dto.LoginResponse
	s.call(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: email, Password: password}, http.StatusOK, &out)
	require.NotEmpty(s.t, out.Token)
	return out.Token
}

type pageOf[T any] struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	List     []T   `json:"list"`
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "backoffice_http_requests_total")

	resp := s.call(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "admin@example.com", Password: "nope"}, http.StatusUnauthorized, nil)
	assert.NotZero(t, resp.Code)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	s.call(http.MethodGet, "/api/v1/customers", "", nil, http.StatusUnauthorized, nil)
	s.call(http.MethodGet, "/api/v1/customers", "garbage", nil, http.StatusUnauthorized, nil)

	var me dto.UserResponse
	s.call(http.MethodGet, "/api/v1/auth/me", s.staff, nil, http.StatusOK, &me)
	assert.Equal(t, "staff@example.com", me.Email)

	// 普通员工不能管理用户与配置
	s.call(http.MethodGet, "/api/v1/users", s.staff, nil, http.StatusForbidden, nil)
	s.call(http.MethodPost, "/api/v1/currencies", s.staff, dto.CreateCurrencyRequest{Code: "USD", Name: "US Dollar", IsBase: true}, http.StatusForbidden, nil)

	var users pageOf[dto.UserResponse]
	s.call(http.MethodGet, "/api/v1/users", s.admin, nil, http.StatusOK, &users)
	assert.EqualValues(t, 2, users.Total)

	s.call(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/active", users.List[0].ID), s.admin, gin.H{}, http.StatusBadRequest, nil)

	var adminID uint
	for _, u := range users.List {
		if u.Email == "admin@example.com" {
			adminID = u.ID
		}
	}
	s.call(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/active", adminID), s.admin, gin.H{"active": false}, http.StatusConflict, nil)
}

func TestBillingFlow(t *testing.T) {
	s := newTestServer(t)

	var usd dto.CurrencyResponse
	s.call(http.MethodPost, "/api/v1/currencies", s.admin, dto.CreateCurrencyRequest{Code: "USD", Name: "US Dollar", Symbol: "$", IsBase: true}, http.StatusCreated, &usd)
	assert.True(t, usd.IsBase)
	s.call(http.MethodPost, "/api/v1/currencies", s.admin, dto.CreateCurrencyRequest{Code: "EUR", Name: "Euro", Symbol: "€", ExchangeRate: 500_000}, http.StatusCreated, nil)
	s.call(http.MethodPost, "/api/v1/currencies", s.admin, dto.CreateCurrencyRequest{Code: "XYZ", Name: "Bogus"}, http.StatusBadRequest, nil)

	var conv dto.ConvertResponse
	s.call(http.MethodGet, "/api/v1/currencies/convert?amount=1000&from=USD&to=EUR", s.staff, nil, http.StatusOK, &conv)
	assert.EqualValues(t, 500, conv.Result)
	assert.NotEmpty(t, conv.Formatted)

	var cust dto.CustomerResponse
	s.call(http.MethodPost, "/api/v1/customers", s.staff, dto.CreateCustomerRequest{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Country: "US"}, http.StatusCreated, &cust)
	s.call(http.MethodPost, "/api/v1/customers", s.staff, dto.CreateCustomerRequest{FirstName: "Ada", Email: "ADA@example.com", Country: "US"}, http.StatusConflict, nil)
	s.call(http.MethodGet, "/api/v1/customers/999", s.staff, nil, http.StatusNotFound, nil)
	s.call(http.MethodGet, "/api/v1/customers/abc", s.staff, nil, http.StatusBadRequest, nil)

	var customers pageOf[dto.CustomerResponse]
	s.call(http.MethodGet, "/api/v1/customers?search=ada", s.staff, nil, http.StatusOK, &customers)
	assert.EqualValues(t, 1, customers.Total)

	var inv dto.InvoiceResponse
	s.call(http.MethodPost, "/api/v1/invoices", s.staff, dto.CreateInvoiceRequest{
		CustomerID: cust.ID,
		Items:      []dto.LineItemRequest{{Description: "Consulting", Quantity: 2, UnitPrice: 500}},
	}, http.StatusCreated, &inv)
	assert.Equal(t, model.InvoiceStatusDraft, inv.Status)
	assert.EqualValues(t, 1000, inv.Total)

	// 草稿账单不能收款
	s.call(http.MethodPost, "/api/v1/payments", s.staff, dto.RecordPaymentRequest{InvoiceID: inv.ID, Amount: 100, Method: model.PayMethodManual}, http.StatusConflict, nil)

	s.call(http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/issue", inv.ID), s.staff, nil, http.StatusOK, &inv)
	assert.Equal(t, model.InvoiceStatusIssued, inv.Status)
	assert.Contains(t, s.queue.Types(), tasks.TypeSendEmail)

	var p dto.PaymentResponse
	s.call(http.MethodPost, "/api/v1/payments", s.staff, dto.RecordPaymentRequest{InvoiceID: inv.ID, Amount: 1000, Method: model.PayMethodManual}, http.StatusCreated, &p)
	assert.EqualValues(t, 1000, p.Amount)

	s.call(http.MethodGet, fmt.Sprintf("/api/v1/invoices/%d", inv.ID), s.staff, nil, http.StatusOK, &inv)
	assert.Equal(t, model.InvoiceStatusPaid, inv.Status)

	var balance dto.CreditBalanceResponse
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/customers/%d/credit", cust.ID), s.staff, dto.AddCreditRequest{Amount: 250, Description: "goodwill"}, http.StatusOK, &balance)
	assert.EqualValues(t, 250, balance.Balance)
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/customers/%d/credit/remove", cust.ID), s.staff, dto.AddCreditRequest{Amount: 1000, Description: "too much"}, http.StatusBadRequest, nil)

	var dash dto.DashboardResponse
	s.call(http.MethodGet, "/api/v1/dashboard", s.staff, nil, http.StatusOK, &dash)
	assert.EqualValues(t, 1, dash.CustomersByStatus[model.CustomerStatusActive])
}

func TestAsyncEndpoints(t *testing.T) {
	s := newTestServer(t)

	var r dto.RegistrarResponse
	s.call(http.MethodPost, "/api/v1/registrars", s.admin, dto.CreateRegistrarRequest{Name: "Mock", Kind: "mock"}, http.StatusCreated, &r)

	var queued dto.EnqueuedResponse
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/registrars/%d/sync", r.ID), s.admin, nil, http.StatusAccepted, &queued)
	s.call(http.MethodPost, "/api/v1/registrars/999/sync", s.admin, nil, http.StatusNotFound, nil)
	s.call(http.MethodPost, "/api/v1/registrars/sync", s.admin, nil, http.StatusAccepted, nil)
	s.call(http.MethodPost, "/api/v1/hosting/servers/sync", s.admin, nil, http.StatusAccepted, nil)
	assert.Equal(t, []string{tasks.TypeTldPriceSync, tasks.TypeTldPriceSyncAll, tasks.TypeHostingSyncAll}, s.queue.Types())

	var res dto.PriceSyncResponse
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/registrars/%d/sync?wait=true", r.ID), s.admin, nil, http.StatusOK, &res)
	assert.Equal(t, r.ID, res.RegistrarID)

	s.queue.Err = fmt.Errorf("redis down")
	s.call(http.MethodPost, "/api/v1/registrars/sync", s.admin, nil, http.StatusInternalServerError, nil)
}

func TestDnsExport(t *testing.T) {
	s := newTestServer(t)

	var cust dto.CustomerResponse
	s.call(http.MethodPost, "/api/v1/customers", s.staff, dto.CreateCustomerRequest{CompanyName: "Example Ltd", Email: "ops@example.com", Country: "GB"}, http.StatusCreated, &cust)

	var zone dto.DnsZoneResponse
	s.call(http.MethodPost, "/api/v1/dns-zones", s.staff, dto.CreateDnsZoneRequest{
		Name:       "example.com",
		CustomerID: cust.ID,
		PrimaryNS:  "ns1.host.net",
		AdminEmail: "hostmaster@example.com",
	}, http.StatusCreated, &zone)

	s.call(http.MethodPost, fmt.Sprintf("/api/v1/dns-zones/%d/records", zone.ID), s.staff, dto.DnsRecordRequest{Name: "@", Type: "A", Content: "192.0.2.1"}, http.StatusCreated, nil)
	s.call(http.MethodPost, fmt.Sprintf("/api/v1/dns-zones/%d/records", zone.ID), s.staff, dto.DnsRecordRequest{Name: "www", Type: "BOGUS", Content: "x"}, http.StatusBadRequest, nil)

	w := s.do(http.MethodGet, fmt.Sprintf("/api/v1/dns-zones/%d/export", zone.ID), s.staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "$ORIGIN example.com.")
	assert.Contains(t, w.Body.String(), "192.0.2.1")
}
