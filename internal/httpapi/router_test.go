package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-listings/internal/auth"
	"github.com/goliatone/go-listings/internal/users"
	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/query"
)

// mockListings records the last call and returns canned results.
type mockListings struct {
	calls     []string
	requester string
	raw       map[string]any
	params    query.Params
	rows      map[string]listing.Listing
	err       error
}

func (m *mockListings) Search(_ context.Context, params query.Params) (listing.Page, error) {
	m.calls = append(m.calls, "Search")
	m.params = params
	if m.err != nil {
		return listing.Page{}, m.err
	}
	page := listing.Page{Listings: []listing.Listing{m.rows["lst-1"]}, Pagination: listing.NewPagination(1, 1, 10)}
	return page, nil
}

func (m *mockListings) Get(_ context.Context, id string) (listing.Listing, error) {
	m.calls = append(m.calls, "Get:"+id)
	l, ok := m.rows[id]
	if !ok {
		return listing.Listing{}, listing.NewNotFoundError("listing", id)
	}
	return l, nil
}

func (m *mockListings) Create(_ context.Context, requester string, raw map[string]any) (listing.Listing, error) {
	m.calls = append(m.calls, "Create")
	m.requester, m.raw = requester, raw
	if m.err != nil {
		return listing.Listing{}, m.err
	}
	return listing.Listing{ID: "lst-new", Title: fmt.Sprint(raw["title"]), CreatedBy: requester}, nil
}

func (m *mockListings) Update(_ context.Context, requester, id string, raw map[string]any) (listing.Listing, error) {
	m.calls = append(m.calls, "Update:"+id)
	m.requester, m.raw = requester, raw
	if m.err != nil {
		return listing.Listing{}, m.err
	}
	l := m.rows[id]
	l.Title = fmt.Sprint(raw["title"])
	return l, nil
}

func (m *mockListings) Delete(_ context.Context, requester, id string) error {
	m.calls = append(m.calls, "Delete:"+id)
	m.requester = requester
	return m.err
}

type mockAccounts struct {
	calls []string
	err   error
}

func (m *mockAccounts) record(call string) error {
	m.calls = append(m.calls, call)
	return m.err
}

func (m *mockAccounts) Register(_ context.Context, c users.Credentials) (users.User, error) {
	if err := m.record("Register:" + c.Email); err != nil {
		return users.User{}, err
	}
	return users.User{ID: "user-9", Email: c.Email}, nil
}

func (m *mockAccounts) Login(_ context.Context, c users.Credentials) (string, error) {
	if err := m.record("Login:" + c.Email); err != nil {
		return "", err
	}
	return "signed-token", nil
}

func (m *mockAccounts) AddFavorite(_ context.Context, userID, listingID string) error {
	return m.record("AddFavorite:" + userID + ":" + listingID)
}

func (m *mockAccounts) RemoveFavorite(_ context.Context, userID, listingID string) error {
	return m.record("RemoveFavorite:" + userID + ":" + listingID)
}

func (m *mockAccounts) Favorites(_ context.Context, userID string) ([]listing.Listing, error) {
	if err := m.record("Favorites:" + userID); err != nil {
		return nil, err
	}
	return []listing.Listing{{ID: "lst-1"}}, nil
}

func (m *mockAccounts) Recommend(_ context.Context, senderID string, req users.RecommendRequest) (users.RecommendResult, error) {
	if err := m.record("Recommend:" + senderID + ":" + req.RecipientEmail + ":" + req.ListingID); err != nil {
		return users.RecommendResult{}, err
	}
	return users.RecommendResult{
		Recipient: users.User{ID: "user-2", Email: req.RecipientEmail},
		Listing:   listing.Listing{ID: req.ListingID, Title: "Sunny Loft"},
	}, nil
}

func (m *mockAccounts) Recommendations(_ context.Context, userID string) ([]listing.Listing, error) {
	if err := m.record("Recommendations:" + userID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *mockAccounts) SearchUsers(_ context.Context, requester, fragment string) ([]users.User, error) {
	if err := m.record("SearchUsers:" + requester + ":" + fragment); err != nil {
		return nil, err
	}
	return []users.User{{ID: "user-3", Email: "frank@example.com"}}, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixture struct {
	handler  http.Handler
	listings *mockListings
	accounts *mockAccounts
	token    string
	pingErr  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, err := issuer.Issue("user-1", "owner@example.com")
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		listings: &mockListings{rows: map[string]listing.Listing{
			"lst-1": {ID: "lst-1", Title: "Sunny Loft", CreatedBy: "user-1"},
		}},
		accounts: &mockAccounts{},
		token:    token,
	}
	f.handler = NewHandler(Deps{
		Listings: f.listings,
		Accounts: f.accounts,
		Tokens:   issuer,
		Health:   pingerFunc(func(context.Context) error { return f.pingErr }),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodGet, "/healthz", "", false); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	f.pingErr = errors.New("db down")
	rec := f.do(t, http.MethodGet, "/healthz", "", false)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if decode(t, rec)["status"] != "unavailable" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestSearchListings(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/properties?city=Austin&minPrice=1000&page=2", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.listings.params["city"] != "Austin" || f.listings.params["minPrice"] != "1000" || f.listings.params["page"] != "2" {
		t.Errorf("unexpected params %v", f.listings.params)
	}

	body := decode(t, rec)
	rows, _ := body["listings"].([]any)
	if len(rows) != 1 {
		t.Errorf("expected one listing, got %v", body["listings"])
	}
	pagination, _ := body["pagination"].(map[string]any)
	if pagination["total"] != float64(1) || pagination["pages"] != float64(1) {
		t.Errorf("unexpected pagination %v", pagination)
	}
}

func TestGetListing(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/properties/lst-1", "", false)
	if rec.Code != http.StatusOK || decode(t, rec)["title"] != "Sunny Loft" {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/properties/missing", "", false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if _, ok := decode(t, rec)["message"]; !ok {
		t.Errorf("expected message in body, got %s", rec.Body.String())
	}
}

func TestCreateListing(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/properties", `{"title":"Loft","price":1800.50}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.listings.requester != "user-1" {
		t.Errorf("expected requester from token, got %q", f.listings.requester)
	}
	if n, ok := f.listings.raw["price"].(json.Number); !ok || n.String() != "1800.50" {
		t.Errorf("expected price as json.Number, got %#v", f.listings.raw["price"])
	}
	if decode(t, rec)["createdBy"] != "user-1" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestCreateListing_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		authed  bool
		header  string
		svcErr  error
		status  int
		fields  []any
		reached bool
	}{
		{name: "anonymous", body: `{}`, status: http.StatusUnauthorized},
		{name: "bad token", body: `{}`, header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "not bearer", body: `{}`, header: "Basic abc", status: http.StatusUnauthorized},
		{name: "empty body", body: ``, authed: true, status: http.StatusBadRequest},
		{name: "array body", body: `[1,2]`, authed: true, status: http.StatusBadRequest},
		{name: "null body", body: `null`, authed: true, status: http.StatusBadRequest},
		{
			name:    "invalid fields",
			body:    `{"price":"abc"}`,
			authed:  true,
			svcErr:  listing.NewValidationError("invalid numeric fields", "price"),
			status:  http.StatusBadRequest,
			fields:  []any{"price"},
			reached: true,
		},
		{
			name:    "unknown owner",
			body:    `{"title":"x"}`,
			authed:  true,
			svcErr:  listing.NewNotFoundError("user", "user-1"),
			status:  http.StatusNotFound,
			reached: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.listings.err = tt.svcErr

			req := httptest.NewRequest(http.MethodPost, "/api/properties", strings.NewReader(tt.body))
			if tt.authed {
				req.Header.Set("Authorization", "Bearer "+f.token)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if reached := len(f.listings.calls) > 0; reached != tt.reached {
				t.Errorf("expected service reached=%v, calls %v", tt.reached, f.listings.calls)
			}
			if tt.fields != nil {
				if got := decode(t, rec)["fields"]; fmt.Sprint(got) != fmt.Sprint(tt.fields) {
					t.Errorf("expected fields %v, got %v", tt.fields, got)
				}
			}
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/properties/lst-1", `{"title":"Renamed"}`, true)
	if rec.Code != http.StatusOK || decode(t, rec)["title"] != "Renamed" {
		t.Fatalf("unexpected update response %d %s", rec.Code, rec.Body.String())
	}

	f.listings.err = listing.NewForbiddenError("only the owner may modify listing lst-1")
	rec = f.do(t, http.MethodPut, "/api/properties/lst-1", `{"title":"x"}`, true)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}

	f.listings.err = nil
	rec = f.do(t, http.MethodDelete, "/api/properties/lst-1", "", true)
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Deleted" {
		t.Errorf("unexpected delete response %d %s", rec.Code, rec.Body.String())
	}
	if got := f.listings.calls[len(f.listings.calls)-1]; got != "Delete:lst-1" {
		t.Errorf("unexpected last call %q", got)
	}
}

func TestDependencyErrorIsOpaque(t *testing.T) {
	f := newFixture(t)
	f.listings.err = listing.WrapDependency(errors.New("pq: password authentication failed"), "store query failed")

	rec := f.do(t, http.MethodGet, "/api/properties", "", false)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "pq:") {
		t.Errorf("driver error leaked into body: %s", rec.Body.String())
	}
	if decode(t, rec)["message"] != "store query failed" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestAuthRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@example.com","password":"secret1"}`, false)
	if rec.Code != http.StatusCreated || decode(t, rec)["userId"] != "user-9" {
		t.Errorf("unexpected register response %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"secret1"}`, false)
	if rec.Code != http.StatusOK || decode(t, rec)["token"] != "signed-token" {
		t.Errorf("unexpected login response %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login", `{bad`, false)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}

	f.accounts.err = listing.NewConflictError("email already registered")
	rec = f.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@example.com","password":"secret1"}`, false)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	f.accounts.err = listing.NewUnauthorizedError("invalid credentials")
	rec = f.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"nope"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestFavoriteRoutes(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodGet, "/api/favorites", "", false); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for anonymous favorites, got %d", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/favorites", `{"propertyId":"lst-1"}`, true)
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "Added to favorites" {
		t.Errorf("unexpected add response %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/favorites", "", true)
	var favs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &favs); err != nil || len(favs) != 1 {
		t.Errorf("unexpected favorites %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodDelete, "/api/favorites/lst-1", "", true)
	if rec.Code != http.StatusOK {
		t.Errorf("unexpected remove response %d", rec.Code)
	}

	want := []string{"AddFavorite:user-1:lst-1", "Favorites:user-1", "RemoveFavorite:user-1:lst-1"}
	if fmt.Sprint(f.accounts.calls) != fmt.Sprint(want) {
		t.Errorf("expected calls %v, got %v", want, f.accounts.calls)
	}
}

func TestRecommendationRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/recommendations", `{"recipientEmail":"b@example.com","propertyId":"lst-1"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected recommend response %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["recipient"].(map[string]any)["email"] != "b@example.com" || body["property"].(map[string]any)["title"] != "Sunny Loft" {
		t.Errorf("unexpected body %v", body)
	}

	rec = f.do(t, http.MethodGet, "/api/recommendations", "", true)
	body = decode(t, rec)
	if body["count"] != float64(0) || fmt.Sprint(body["recommendations"]) != "[]" {
		t.Errorf("expected empty recommendations, got %v", body)
	}

	rec = f.do(t, http.MethodGet, "/api/recommendations/search?email=fran", "", true)
	body = decode(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("unexpected search response %v", body)
	}
	if got := f.accounts.calls[len(f.accounts.calls)-1]; got != "SearchUsers:user-1:fran" {
		t.Errorf("unexpected call %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{listing.NewValidationError("bad"), http.StatusBadRequest},
		{listing.NewNotFoundError("listing", "x"), http.StatusNotFound},
		{listing.NewForbiddenError("no"), http.StatusForbidden},
		{listing.NewConflictError("dup"), http.StatusConflict},
		{listing.NewUnauthorizedError("who"), http.StatusUnauthorized},
		{listing.WrapDependency(errors.New("x"), "down"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
