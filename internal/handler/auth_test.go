package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/comanda-pos/api/internal/auth"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	byEmail map[string]database.Staff
	byID    map[uuid.UUID]database.Staff
}

func newMockStore() *mockAuthStore {
	return &mockAuthStore{
		byEmail: make(map[string]database.Staff),
		byID:    make(map[uuid.UUID]database.Staff),
	}
}

func (m *mockAuthStore) addStaff(s database.Staff) {
	m.byEmail[s.Email] = s
	m.byID[s.ID] = s
}

func (m *mockAuthStore) GetStaffByEmail(_ context.Context, email string) (database.Staff, error) {
	s, ok := m.byEmail[email]
	if !ok {
		return database.Staff{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockAuthStore) GetStaffByID(_ context.Context, id uuid.UUID) (database.Staff, error) {
	s, ok := m.byID[id]
	if !ok {
		return database.Staff{}, pgx.ErrNoRows
	}
	return s, nil
}

// --- Helpers ---

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeTestStaff(t *testing.T) database.Staff {
	t.Helper()
	return database.Staff{
		ID:             uuid.New(),
		Email:          "cashier@test.com",
		HashedPassword: hashPassword(t, "correct-password"),
		FullName:       "Test Cashier",
		Role:           database.StaffRoleCASHIER,
		IsActive:       true,
	}
}

func authRouter(store handler.AuthStore) http.Handler {
	r := chi.NewRouter()
	handler.NewAuthHandler(store, testSecret).RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockStore()
	staff := makeTestStaff(t)
	store.addStaff(staff)

	rr := postJSON(t, authRouter(store), "/auth/login", map[string]string{
		"email":    "cashier@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	accessToken, _ := resp["access_token"].(string)
	if accessToken == "" {
		t.Fatal("expected non-empty access_token")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}

	staffResp, ok := resp["staff"].(map[string]interface{})
	if !ok {
		t.Fatal("expected staff object in response")
	}
	if staffResp["email"] != "cashier@test.com" {
		t.Errorf("staff email: got %v, want cashier@test.com", staffResp["email"])
	}
	if staffResp["role"] != "CASHIER" {
		t.Errorf("staff role: got %v, want CASHIER", staffResp["role"])
	}

	claims, err := auth.ValidateToken(testSecret, accessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.StaffID != staff.ID || claims.Role != "CASHIER" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLogin_Rejected(t *testing.T) {
	store := newMockStore()
	store.addStaff(makeTestStaff(t))
	inactive := makeTestStaff(t)
	inactive.ID = uuid.New()
	inactive.Email = "former@test.com"
	inactive.IsActive = false
	store.addStaff(inactive)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"email": "cashier@test.com", "password": "wrong"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "nobody@test.com", "password": "x"}, http.StatusUnauthorized},
		{"inactive staff", map[string]string{"email": "former@test.com", "password": "correct-password"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"email": "cashier@test.com"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, authRouter(store), "/auth/login", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

// --- Refresh tests ---

func TestRefresh_ValidToken(t *testing.T) {
	store := newMockStore()
	staff := makeTestStaff(t)
	store.addStaff(staff)

	refreshToken, err := auth.GenerateRefreshToken(testSecret, staff.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := postJSON(t, authRouter(store), "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
}

func TestRefresh_Rejected(t *testing.T) {
	store := newMockStore()
	staff := makeTestStaff(t)
	store.addStaff(staff)

	accessToken, err := auth.GenerateToken(testSecret, staff.ID, "CASHIER")
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}
	orphan, err := auth.GenerateRefreshToken(testSecret, uuid.New())
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"garbage", "not-a-valid-token", http.StatusUnauthorized},
		{"access token", accessToken, http.StatusUnauthorized},
		{"unknown staff", orphan, http.StatusUnauthorized},
		{"missing", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, authRouter(store), "/auth/refresh", map[string]string{"refresh_token": tt.token})
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
