package verify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openlobby/LobbyPipe/internal/models"
)

func TestNewHTTPMatcherRequiresURL(t *testing.T) {
	if _, err := NewHTTPMatcher(); err == nil {
		t.Error("matcher without a URL should be rejected")
	}
}

func TestHTTPMatcherMatch(t *testing.T) {
	var gotImage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotImage = req.Image
		json.NewEncoder(w).Encode(map[string]any{
			"success":    true,
			"identity":   "E100",
			"confidence": 0.94,
		})
	}))
	defer srv.Close()

	m, err := NewHTTPMatcher(WithMatcherURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	frame := []byte("fake-jpeg-bytes")
	res, err := m.Match(context.Background(), frame)
	if err != nil {
		t.Fatalf("Match: unexpected error: %v", err)
	}
	if !res.Success || res.Identity != "E100" || res.Confidence != 0.94 {
		t.Errorf("Match = %+v, want success/E100/0.94", res)
	}
	if gotImage != base64.StdEncoding.EncodeToString(frame) {
		t.Errorf("service received %q, want base64 of the frame", gotImage)
	}
}

func TestHTTPMatcherNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "no face found"})
	}))
	defer srv.Close()

	m, _ := NewHTTPMatcher(WithMatcherURL(srv.URL))
	res, err := m.Match(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Match: unexpected error: %v", err)
	}
	if res.Success {
		t.Error("no-match response should report Success=false")
	}
}

func TestHTTPMatcherBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, _ := NewHTTPMatcher(WithMatcherURL(srv.URL))
	if _, err := m.Match(context.Background(), []byte("frame")); !errors.Is(err, models.ErrMatcherUnavailable) {
		t.Errorf("Match on 500 = %v, want ErrMatcherUnavailable", err)
	}
}

func TestHTTPMatcherUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	m, _ := NewHTTPMatcher(WithMatcherURL(srv.URL))
	if _, err := m.Match(context.Background(), []byte("frame")); !errors.Is(err, models.ErrMatcherUnavailable) {
		t.Errorf("Match on refused connection = %v, want ErrMatcherUnavailable", err)
	}
}

func TestStaticMatcher(t *testing.T) {
	m := &StaticMatcher{Result: models.CaptureResult{Success: true, Identity: "E100", Confidence: 1}}
	res, err := m.Match(context.Background(), nil)
	if err != nil || !res.Success || res.Identity != "E100" {
		t.Errorf("StaticMatcher = %+v, %v", res, err)
	}

	wantErr := errors.New("down")
	m = &StaticMatcher{Err: wantErr}
	if _, err := m.Match(context.Background(), nil); !errors.Is(err, wantErr) {
		t.Errorf("StaticMatcher error = %v, want configured error", err)
	}
}
