package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func register(t *testing.T, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(payload))
	return doRequest(req)
}

func login(t *testing.T, email string, password string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(payload))
	return doRequest(req)
}

func TestRegisterAndLogin(t *testing.T) {
	rr := register(t, map[string]string{
		"email":           "sam@campus.edu",
		"username":        "sam",
		"displayName":     "Sam",
		"password":        "hunter22",
		"confirmPassword": "hunter22",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", rr.Code, rr.Body.String())
	}

	rr = login(t, "sam@campus.edu", "hunter22")
	if rr.Code != http.StatusOK {
		t.Fatalf("login returned %d", rr.Code)
	}

	var jwtCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "JWT" {
			jwtCookie = c
		}
	}
	if jwtCookie == nil {
		t.Fatal("login did not set the JWT cookie")
	}

	req := httptest.NewRequest("GET", "/api/auth/isLoggedIn", nil)
	req.AddCookie(jwtCookie)
	if rr := doRequest(req); rr.Code != http.StatusOK {
		t.Errorf("isLoggedIn with fresh cookie returned %d", rr.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	register(t, map[string]string{
		"email":           "riley@campus.edu",
		"username":        "riley",
		"displayName":     "Riley",
		"password":        "secret1",
		"confirmPassword": "secret1",
	})

	if rr := login(t, "riley@campus.edu", "wrong"); rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong password returned %d, want 401", rr.Code)
	}
	if rr := login(t, "nobody@campus.edu", "secret1"); rr.Code != http.StatusUnauthorized {
		t.Errorf("unknown email returned %d, want 401", rr.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		body map[string]string
		want string // field expected in the error map
	}{
		{
			name: "bad email",
			body: map[string]string{"email": "not-an-email", "username": "jo", "displayName": "Jo", "password": "secret1", "confirmPassword": "secret1"},
			want: "Email",
		},
		{
			name: "password mismatch",
			body: map[string]string{"email": "jo@campus.edu", "username": "jo", "displayName": "Jo", "password": "secret1", "confirmPassword": "different"},
			want: "Password",
		},
		{
			name: "short password",
			body: map[string]string{"email": "jo@campus.edu", "username": "jo", "displayName": "Jo", "password": "ab", "confirmPassword": "ab"},
			want: "Password",
		},
		{
			name: "missing username",
			body: map[string]string{"email": "jo@campus.edu", "displayName": "Jo", "password": "secret1", "confirmPassword": "secret1"},
			want: "Username",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := register(t, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("register returned %d, want 400", rr.Code)
			}

			var fieldErrors map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &fieldErrors); err != nil {
				t.Fatal(err)
			}
			if _, ok := fieldErrors[tc.want]; !ok {
				t.Errorf("error map %v is missing field %q", fieldErrors, tc.want)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	body := map[string]string{
		"email":           "dup@campus.edu",
		"username":        "dup",
		"displayName":     "Dup",
		"password":        "secret1",
		"confirmPassword": "secret1",
	}

	if rr := register(t, body); rr.Code != http.StatusCreated {
		t.Fatalf("first register returned %d", rr.Code)
	}

	rr := register(t, body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register returned %d, want 400", rr.Code)
	}

	var fieldErrors map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &fieldErrors); err != nil {
		t.Fatal(err)
	}
	if fieldErrors["Email"] != "taken" {
		t.Errorf("error map = %v, want Email taken", fieldErrors)
	}
}
