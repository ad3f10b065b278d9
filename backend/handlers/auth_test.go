package handlers

import (
	"net/http"
	"testing"
)

func TestRegisterLoginLogout(t *testing.T) {
	srv := setupTestServer(t, "http://127.0.0.1:0")
	c := newClient(t, srv)

	var reg struct {
		User userView `json:"user"`
	}
	if code := c.do("POST", "/api/auth/register", credentials{Email: " Alice@Example.com ", Password: "secret123"}, &reg); code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", code)
	}
	if reg.User.Email != "alice@example.com" || reg.User.ID == 0 {
		t.Errorf("Unexpected user %+v", reg.User)
	}

	// Registration starts a session.
	var me struct {
		User userView `json:"user"`
	}
	if code := c.do("GET", "/api/auth/me", nil, &me); code != http.StatusOK || me.User.ID != reg.User.ID {
		t.Errorf("Expected session for new user, got %d %+v", code, me.User)
	}

	if code := c.do("POST", "/api/auth/logout", nil, nil); code != http.StatusOK {
		t.Fatalf("Logout: expected 200, got %d", code)
	}
	if code := c.do("GET", "/api/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("Expected 401 after logout, got %d", code)
	}

	if code := c.do("POST", "/api/auth/login", credentials{Email: "alice@example.com", Password: "secret123"}, nil); code != http.StatusOK {
		t.Fatalf("Login: expected 200, got %d", code)
	}
	if code := c.do("GET", "/api/auth/me", nil, nil); code != http.StatusOK {
		t.Errorf("Expected 200 after login, got %d", code)
	}
}

func TestRegister_Validation(t *testing.T) {
	srv := setupTestServer(t, "http://127.0.0.1:0")
	c := newClient(t, srv)
	c.register("bob@example.com")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"short password", credentials{Email: "x@example.com", Password: "123"}, http.StatusBadRequest},
		{"missing email", credentials{Password: "secret123"}, http.StatusBadRequest},
		{"duplicate", credentials{Email: "BOB@example.com", Password: "secret123"}, http.StatusConflict},
		{"not json", "just a string", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if code := newClient(t, srv).do("POST", "/api/auth/register", tt.body, nil); code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, code)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := setupTestServer(t, "http://127.0.0.1:0")
	newClient(t, srv).register("carol@example.com")

	c := newClient(t, srv)
	if code := c.do("POST", "/api/auth/login", credentials{Email: "carol@example.com", Password: "wrong-pass"}, nil); code != http.StatusUnauthorized {
		t.Errorf("Wrong password: expected 401, got %d", code)
	}
	if code := c.do("POST", "/api/auth/login", credentials{Email: "nobody@example.com", Password: "secret123"}, nil); code != http.StatusUnauthorized {
		t.Errorf("Unknown user: expected 401, got %d", code)
	}
	if code := c.do("GET", "/api/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("Failed login must not start a session, got %d", code)
	}
}
