package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "test-token", nil)
}

func TestPing(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode(APIStatus{Message: "API running."})
	})

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestGetState(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states/light.desk" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(State{
			EntityID:   "light.desk",
			State:      "on",
			Attributes: map[string]any{"friendly_name": "Desk Lamp"},
		})
	})

	state, err := client.GetState(context.Background(), "light.desk")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if state.State != "on" {
		t.Errorf("state = %q", state.State)
	}
}

func TestCallService(t *testing.T) {
	var body map[string]any
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/services/light/turn_on" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte("[]"))
	})

	err := client.CallService(context.Background(), "light", "turn_on",
		map[string]any{"area_id": "office", "brightness_pct": 60})
	if err != nil {
		t.Fatalf("CallService: %v", err)
	}
	if body["area_id"] != "office" {
		t.Errorf("body = %v", body)
	}
}

func TestAPIErrorIncludesBody(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	err := client.Ping(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGetEntitiesFiltersByDomain(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]State{
			{EntityID: "light.desk", State: "on"},
			{EntityID: "sensor.temp", State: "72"},
			{EntityID: "light.kitchen", State: "off"},
		})
	})

	entities, err := client.GetEntities(context.Background(), "light")
	if err != nil {
		t.Fatalf("GetEntities: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("len = %d, want 2", len(entities))
	}
	for _, e := range entities {
		if e.Domain != "light" {
			t.Errorf("domain = %q", e.Domain)
		}
	}
}
