package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketalerts/internal/auth"
)

type fakeRefresher struct {
	updated int
	err     error
	calls   int
}

func (f *fakeRefresher) Refresh(_ context.Context) (int, error) {
	f.calls++
	return f.updated, f.err
}

type fakeVerifier struct {
	err error
}

func (f *fakeVerifier) Verify(_ context.Context, token string) error {
	if token == "" {
		return auth.ErrUnauthorized
	}
	return f.err
}

func refreshRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/refresh-prices", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestRefreshPricesRejectsNonPost(t *testing.T) {
	refresher := &fakeRefresher{}
	h := New(nil, refresher, &fakeVerifier{})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := httptest.NewRecorder()
		h.RefreshPricesHandler(w, httptest.NewRequest(method, "/refresh-prices", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: status = %d, want 405", method, w.Code)
		}
	}
	if refresher.calls != 0 {
		t.Errorf("refresh calls = %d, want 0", refresher.calls)
	}
}

func TestRefreshPricesRequiresCredential(t *testing.T) {
	refresher := &fakeRefresher{}
	h := New(nil, refresher, &fakeVerifier{})

	w := httptest.NewRecorder()
	h.RefreshPricesHandler(w, refreshRequest(""))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing credential: status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	h = New(nil, refresher, &fakeVerifier{err: auth.ErrUnauthorized})
	h.RefreshPricesHandler(w, refreshRequest("wrong"))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("invalid credential: status = %d, want 401", w.Code)
	}

	if refresher.calls != 0 {
		t.Errorf("refresh calls = %d, want 0 for rejected requests", refresher.calls)
	}
}

func TestRefreshPricesVerificationFailure(t *testing.T) {
	refresher := &fakeRefresher{}
	h := New(nil, refresher, &fakeVerifier{err: errors.New("identity provider unreachable")})

	w := httptest.NewRecorder()
	h.RefreshPricesHandler(w, refreshRequest("token"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 when verification itself fails", w.Code)
	}
	if refresher.calls != 0 {
		t.Errorf("refresh calls = %d, want 0", refresher.calls)
	}
}

func TestRefreshPricesSuccess(t *testing.T) {
	refresher := &fakeRefresher{updated: 7}
	h := New(nil, refresher, &fakeVerifier{})

	w := httptest.NewRecorder()
	h.RefreshPricesHandler(w, refreshRequest("token"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if refresher.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", refresher.calls)
	}

	var body struct {
		Message string         `json:"message"`
		Data    map[string]int `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Data["updated"] != 7 {
		t.Errorf("updated = %d, want 7", body.Data["updated"])
	}
}

func TestRefreshPricesRefreshFailure(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("provider down")}
	h := New(nil, refresher, &fakeVerifier{})

	w := httptest.NewRecorder()
	h.RefreshPricesHandler(w, refreshRequest("token"))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
