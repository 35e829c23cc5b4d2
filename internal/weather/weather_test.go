package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Hezy4/LEO/internal/tools"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	// The handler echoes back its own absolute gridpoint URL, like the
	// real API does, so Forecast must follow it verbatim.
	var baseURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/points/"):
			w.Write([]byte(`{"properties":{"forecast":"` + baseURL + `/gridpoints/EWX/1,2/forecast"}}`))
		case r.URL.Path == "/gridpoints/EWX/1,2/forecast":
			w.Write([]byte(`{"properties":{"periods":[
				{"name":"Tonight","temperature":68,"temperatureUnit":"F","shortForecast":"Clear"},
				{"name":"Saturday","temperature":95,"temperatureUnit":"F","shortForecast":"Sunny"},
				{"name":"Saturday Night","temperature":74,"temperatureUnit":"F","shortForecast":"Clear"}
			]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	baseURL = srv.URL
	return NewClient(srv.URL)
}

// A non-default base URL (a caching proxy, say) must not replace the
// gridpoint forecast URL the points lookup returned.
func TestForecastFollowsGridpointURL(t *testing.T) {
	var gotPaths []string
	var baseURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		if strings.HasPrefix(r.URL.Path, "/points/") {
			w.Write([]byte(`{"properties":{"forecast":"` + baseURL + `/gridpoints/HGX/65,97/forecast"}}`))
			return
		}
		w.Write([]byte(`{"properties":{"periods":[{"name":"Tonight","temperature":60,"temperatureUnit":"F"}]}}`))
	}))
	defer srv.Close()
	baseURL = srv.URL

	if _, err := NewClient(srv.URL).Forecast(context.Background(), 29.7604, -95.3698); err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(gotPaths) != 2 || gotPaths[1] != "/gridpoints/HGX/65,97/forecast" {
		t.Errorf("request paths = %v, want the returned gridpoint path second", gotPaths)
	}
}

func TestForecast(t *testing.T) {
	client := newTestClient(t)

	periods, err := client.Forecast(context.Background(), 30.2672, -97.7431)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(periods) != 3 {
		t.Fatalf("periods = %d, want 3", len(periods))
	}
	if periods[0].Name != "Tonight" || periods[0].Temperature != 68 {
		t.Errorf("periods[0] = %+v", periods[0])
	}
}

func TestForecastTool(t *testing.T) {
	registry := tools.NewRegistry()
	RegisterTool(registry, newTestClient(t))

	out, err := registry.Execute(context.Background(), "weather.forecast",
		map[string]any{"latitude": 30.2672, "longitude": -97.7431, "periods": float64(2)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Tonight") || strings.Contains(out, "Saturday Night") {
		t.Errorf("out = %s", out)
	}

	if _, err := registry.Execute(context.Background(), "weather.forecast", map[string]any{}); err == nil {
		t.Error("expected error for missing coordinates")
	}
}
