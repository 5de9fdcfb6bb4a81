package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticVerifier(t *testing.T) {
	verifier := NewStaticVerifier("secret-credential")

	if err := verifier.Verify(context.Background(), "secret-credential"); err != nil {
		t.Errorf("matching credential rejected: %v", err)
	}
	if err := verifier.Verify(context.Background(), "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("wrong credential: err = %v, want ErrUnauthorized", err)
	}
	if err := verifier.Verify(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("empty credential: err = %v, want ErrUnauthorized", err)
	}
}

func TestStaticVerifierEmptySecretRejectsEverything(t *testing.T) {
	verifier := NewStaticVerifier("")
	if err := verifier.Verify(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestRemoteVerifier(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantOK     bool
		wantReject bool
	}{
		{"accepted", http.StatusOK, true, false},
		{"rejected", http.StatusUnauthorized, false, true},
		{"forbidden", http.StatusForbidden, false, true},
		{"provider error", http.StatusInternalServerError, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := NewRemoteVerifier(server.URL).Verify(context.Background(), "some-token")
			if gotAuth != "Bearer some-token" {
				t.Errorf("forwarded header = %q", gotAuth)
			}
			switch {
			case tt.wantOK:
				if err != nil {
					t.Errorf("err = %v, want nil", err)
				}
			case tt.wantReject:
				if !errors.Is(err, ErrUnauthorized) {
					t.Errorf("err = %v, want ErrUnauthorized", err)
				}
			default:
				if err == nil || errors.Is(err, ErrUnauthorized) {
					t.Errorf("err = %v, want a non-rejection failure", err)
				}
			}
		})
	}
}

func TestRemoteVerifierEmptyTokenSkipsRequest(t *testing.T) {
	err := NewRemoteVerifier("http://unused.invalid").Verify(context.Background(), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"well formed", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer abc123", "abc123"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"scheme only", "Bearer", ""},
		{"padded token", "Bearer   abc123", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := BearerToken(r); got != tt.want {
				t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
