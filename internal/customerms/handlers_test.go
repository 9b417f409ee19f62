package customerms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/levelsliving/internal/roles"
	"github.com/example/levelsliving/internal/token"
)

type testEnv struct {
	app    *App
	store  *MemStore
	tokens *token.Service
	srv    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  NewMemStore(),
		tokens: token.New([]byte("test-secret"), 15*time.Minute, 168*time.Hour, nil),
	}
	env.app = NewApp(env.store, env.store, env.tokens, nil, 50, 100)
	env.srv = httptest.NewServer(env.app.Router())
	t.Cleanup(env.srv.Close)
	return env
}

// tokenFor seeds a user with the role and mints an access token for it.
func (e *testEnv) tokenFor(t *testing.T, role string) string {
	t.Helper()
	id := uuid.NewString()
	e.store.SeedIdentity(id, role+"@example.com", role)
	raw, _, err := e.tokens.IssueAccess(id, role+"@example.com", role)
	require.NoError(t, err)
	return raw
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (e *testEnv) create(t *testing.T, bearer string, in map[string]interface{}) map[string]interface{} {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/customers", bearer, in)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", body)
	return body["customer"].(map[string]interface{})
}

func TestCreateCustomer(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.tokenFor(t, roles.CustomerService)

	customer := env.create(t, bearer, map[string]interface{}{
		"customer_contact":     "+6591234567",
		"customer_street":      "123 Orchard Road",
		"customer_unit":        "#05-01",
		"customer_postal_code": "238123",
		"housing_type":         "Condo",
		"delivery_preferences": map[string]interface{}{"leave_at_door": true},
	})

	require.NotEmpty(t, customer["customer_id"])
	require.Equal(t, "+6591234567", customer["customer_contact"])
	require.Equal(t, true, customer["is_active"])
	// Geocoded from the postal code.
	require.InDelta(t, 1.3048, customer["latitude"].(float64), 1e-9)
	require.InDelta(t, 103.8198, customer["longitude"].(float64), 1e-9)
	// Communication preferences default when absent.
	comms := customer["communication_preferences"].(map[string]interface{})
	require.Equal(t, true, comms["sms"])
	require.Equal(t, false, comms["email"])
	delivery := customer["delivery_preferences"].(map[string]interface{})
	require.Equal(t, true, delivery["leave_at_door"])
}

func TestCreateCustomerValidation(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.tokenFor(t, roles.Admin)

	resp, body := env.do(t, http.MethodPost, "/customers", bearer, map[string]interface{}{
		"customer_contact":     "12345",
		"customer_postal_code": "not-a-postal",
		"housing_type":         "Treehouse",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Len(t, body["errors"], 3)
}

func TestCreateCustomerDuplicateContact(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.tokenFor(t, roles.HQ)

	in := map[string]interface{}{
		"customer_contact":     "91234567",
		"customer_postal_code": "560123",
	}
	env.create(t, bearer, in)

	resp, body := env.do(t, http.MethodPost, "/customers", bearer, in)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "CUSTOMER_EXISTS", body["error_code"])
}

func TestGetCustomerByIDAndContact(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.tokenFor(t, roles.Admin)
	created := env.create(t, bearer, map[string]interface{}{
		"customer_contact":     "81234567",
		"customer_postal_code": "640123",
	})
	id := created["customer_id"].(string)

	// Single-record reads are open to field roles too.
	driver := env.tokenFor(t, roles.Driver)
	resp, body := env.do(t, http.MethodGet, "/customers/"+id, driver, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "81234567", body["customer_contact"])

	warehouse := env.tokenFor(t, roles.Warehouse)
	resp, body = env.do(t, http.MethodGet, "/customers/contact/81234567", warehouse, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, id, body["customer_id"])

	resp, _ = env.do(t, http.MethodGet, "/customers/"+uuid.NewString(), driver, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchRoleGate(t *testing.T) {
	env := newTestEnv(t)

	// Field roles can read single records but not run searches.
	driver := env.tokenFor(t, roles.Driver)
	resp, _ := env.do(t, http.MethodGet, "/customers", driver, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/customers", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSearchFiltersAndPagination(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.tokenFor(t, roles.CustomerService)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		contact := fmt.Sprintf("9123456%d", i)
		housing := "HDB"
		if i%2 == 1 {
			housing = "Condo"
		}
		require.NoError(t, env.store.CreateCustomer(context.Background(), &Customer{
			ID:          uuid.NewString(),
			Contact:     contact,
			Street:      fmt.Sprintf("Block %d Yishun Ave", i),
			PostalCode:  "730123",
			HousingType: housing,
			IsActive:    true,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	resp, body := env.do(t, http.MethodGet, "/customers?housing_type=HDB", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["customers"], 3)
	page := body["pagination"].(map[string]interface{})
	require.EqualValues(t, 3, page["total"])
	require.Equal(t, false, page["has_more"])

	// Newest first, two per page.
	resp, body = env.do(t, http.MethodGet, "/customers?limit=2&offset=0", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	customers := body["customers"].([]interface{})
	require.Len(t, customers, 2)
	require.Equal(t, "91234564", customers[0].(map[string]interface{})["customer_contact"])
	page = body["pagination"].(map[string]interface{})
	require.EqualValues(t, 5, page["total"])
	require.Equal(t, true, page["has_more"])

	resp, body = env.do(t, http.MethodGet, "/customers?limit=2&offset=4", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["customers"], 1)
	require.Equal(t, false, body["pagination"].(map[string]interface{})["has_more"])

	// Substring filters combine.
	resp, body = env.do(t, http.MethodGet, "/customers?contact=4560&street=Yishun", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["customers"], 1)
}

func TestSearchLimitClampedToMax(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.tokenFor(t, roles.Admin)

	resp, body := env.do(t, http.MethodGet, "/customers?limit=500", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 100, body["pagination"].(map[string]interface{})["limit"])

	resp, _ = env.do(t, http.MethodGet, "/customers?limit=zero", bearer, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/customers?offset=-1", bearer, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.tokenFor(t, roles.CustomerService)

	resp, body := env.do(t, http.MethodPost, "/customers/validate", bearer, map[string]interface{}{
		"customer_contact":     "+6591234567",
		"customer_postal_code": "238123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["valid"])

	resp, body = env.do(t, http.MethodPost, "/customers/validate", bearer, map[string]interface{}{
		"customer_contact": "bogus",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, false, body["valid"])
	require.NotEmpty(t, body["errors"])

	// Dry-run never writes.
	none, _, err := env.store.Search(context.Background(), SearchQuery{Limit: 10})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestStaleRoleTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	// Token claims admin but the live record says driver: searches 403.
	id := uuid.NewString()
	env.store.SeedIdentity(id, "demoted@example.com", roles.Driver)
	raw, _, err := env.tokens.IssueAccess(id, "demoted@example.com", roles.Admin)
	require.NoError(t, err)

	resp, _ := env.do(t, http.MethodGet, "/customers", raw, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Token for a user the shared table no longer vouches for: 401.
	ghost, _, err := env.tokens.IssueAccess(uuid.NewString(), "ghost@example.com", roles.Admin)
	require.NoError(t, err)
	resp, _ = env.do(t, http.MethodGet, "/customers", ghost, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "customer-service", body["service"])
	require.Equal(t, "connected", body["database"])
	require.Equal(t, "disconnected", body["redis"])
}
