package customerms

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/levelsliving/internal/httpx"
)

func (a *App) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if errs := Validate(&in); len(errs) > 0 {
		httpx.ValidationErrors(w, errs)
		return
	}

	lat, lon := Geocode(in.PostalCode)
	delivery := in.DeliveryPreferences
	if delivery == nil {
		delivery = map[string]interface{}{}
	}
	communication := in.CommunicationPreferences
	if communication == nil {
		communication = map[string]interface{}{"sms": true, "email": false}
	}

	customer := &Customer{
		ID:                       uuid.NewString(),
		Contact:                  in.Contact,
		Street:                   in.Street,
		Unit:                     in.Unit,
		PostalCode:               in.PostalCode,
		HousingType:              in.HousingType,
		Latitude:                 lat,
		Longitude:                lon,
		DeliveryPreferences:      delivery,
		CommunicationPreferences: communication,
		IsActive:                 true,
	}
	if err := a.store.CreateCustomer(r.Context(), customer); err != nil {
		if errors.Is(err, ErrContactTaken) {
			httpx.Error(w, http.StatusConflict, "CUSTOMER_EXISTS", "Customer with this contact number already exists")
			return
		}
		log.Printf("create customer: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	created, err := a.store.CustomerByID(r.Context(), customer.ID)
	if err != nil || created == nil {
		// The insert succeeded; fall back to what we wrote.
		created = customer
	}
	log.Printf("customer created: %s", customer.Contact)
	httpx.JSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Customer created successfully",
		"customer": created,
	})
}

func (a *App) handleGetByID(w http.ResponseWriter, r *http.Request) {
	customer, err := a.store.CustomerByID(r.Context(), mux.Vars(r)["id"])
	a.writeCustomer(w, customer, err)
}

func (a *App) handleGetByContact(w http.ResponseWriter, r *http.Request) {
	customer, err := a.store.CustomerByContact(r.Context(), mux.Vars(r)["contact"])
	a.writeCustomer(w, customer, err)
}

func (a *App) writeCustomer(w http.ResponseWriter, customer *Customer, err error) {
	if err != nil {
		log.Printf("get customer: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	if customer == nil {
		httpx.Error(w, http.StatusNotFound, "NOT_FOUND", "Customer not found")
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (a *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := SearchQuery{
		PostalCode:  params.Get("postal_code"),
		HousingType: params.Get("housing_type"),
		Contact:     params.Get("contact"),
		Street:      params.Get("street"),
		Limit:       a.defaultPageSize,
	}
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		q.Limit = n
	}
	if q.Limit > a.maxPageSize {
		q.Limit = a.maxPageSize
	}
	if raw := params.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "offset must be a non-negative integer")
			return
		}
		q.Offset = n
	}

	customers, total, err := a.store.Search(r.Context(), q)
	if err != nil {
		log.Printf("search customers: %v", err)
		httpx.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"customers": customers,
		"pagination": map[string]interface{}{
			"total":    total,
			"limit":    q.Limit,
			"offset":   q.Offset,
			"has_more": q.Offset+q.Limit < total,
		},
	})
}

// handleValidate runs the same checks as creation without touching the
// store, so upstream forms can pre-flight customer data.
func (a *App) handleValidate(w http.ResponseWriter, r *http.Request) {
	var in CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if errs := Validate(&in); len(errs) > 0 {
		httpx.JSON(w, http.StatusBadRequest, map[string]interface{}{
			"valid":  false,
			"errors": errs,
		})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{
		"valid":   true,
		"message": "Customer data is valid",
	})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if a.pingStore(r.Context()) {
		dbStatus = "connected"
	}
	redisStatus := "disconnected"
	if p, ok := a.revocations.(interface{ Ping(context.Context) error }); ok && p.Ping(r.Context()) == nil {
		redisStatus = "connected"
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"service":  "customer-service",
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
