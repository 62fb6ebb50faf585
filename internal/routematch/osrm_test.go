package routematch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-polyline"

	"fleet-journeys/internal/config"
	"fleet-journeys/internal/models"
)

func newTestOSRMClient(url string) *OSRMClient {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewOSRMClient(config.Matching{
		OSRMBaseURL:        url,
		SearchRadiusMeters: 30,
		RequestTimeout:     time.Second,
	}, log)
}

func matchSamples() []models.PositionSample {
	return []models.PositionSample{
		{VehicleID: "KA-01", Timestamp: 1000, Lat: 12.9700, Lon: 77.5900, Speed: 30},
		{VehicleID: "KA-01", Timestamp: 1010, Lat: 12.9710, Lon: 77.5905, Speed: 30},
		{VehicleID: "KA-01", Timestamp: 1020, Lat: 12.9720, Lon: 77.5910, Speed: 30},
	}
}

func TestMatchRequestAndDecode(t *testing.T) {
	geometry := polyline.EncodeCoords([][]float64{
		{12.97, 77.59},
		{12.971, 77.5905},
		{12.972, 77.591},
	})

	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprintf(w, `{"code":"Ok","matchings":[{"geometry":%q}]}`, geometry)
	}))
	defer srv.Close()

	points, err := newTestOSRMClient(srv.URL).Match(context.Background(), matchSamples())
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	// lon,lat order in the path
	if !strings.HasPrefix(gotPath, "/match/v1/driving/77.590000,12.970000;") {
		t.Errorf("request path = %s, want lon,lat coordinate order", gotPath)
	}
	if !strings.Contains(gotQuery, "timestamps=1000;1010;1020") {
		t.Errorf("query = %s, want per-point timestamps", gotQuery)
	}
	if !strings.Contains(gotQuery, "radiuses=30;30;30") {
		t.Errorf("query = %s, want per-point radiuses", gotQuery)
	}
	if !strings.Contains(gotQuery, "gaps=ignore") || !strings.Contains(gotQuery, "tidy=true") {
		t.Errorf("query = %s, want gaps=ignore and tidy=true", gotQuery)
	}

	if len(points) != 3 {
		t.Fatalf("decoded points = %d, want 3", len(points))
	}
	if points[0].Lat != 12.97 || points[0].Lon != 77.59 {
		t.Errorf("points[0] = %+v, want (12.97, 77.59)", points[0])
	}
}

func TestMatchFailsOnNonOkCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoMatch","matchings":[]}`))
	}))
	defer srv.Close()

	if _, err := newTestOSRMClient(srv.URL).Match(context.Background(), matchSamples()); err == nil {
		t.Fatal("Match succeeded on NoMatch code, want error")
	}
}

func TestMatchFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newTestOSRMClient(srv.URL).Match(context.Background(), matchSamples()); err == nil {
		t.Fatal("Match succeeded on HTTP 502, want error")
	}
}

func TestMatchRequiresTwoPoints(t *testing.T) {
	if _, err := newTestOSRMClient("http://unused").Match(context.Background(), matchSamples()[:1]); err == nil {
		t.Fatal("Match succeeded with one point, want error")
	}
}
