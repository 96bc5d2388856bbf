package external

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/opennow/core/internal/models"
)

type stubProvider struct {
	name    string
	result  []Projection
	err     error
	calls   int
	callsMu sync.Mutex
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) FetchNearby(context.Context, float64, float64, int) ([]Projection, error) {
	p.callsMu.Lock()
	p.calls++
	p.callsMu.Unlock()
	return p.result, p.err
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: make(map[string]string)} }

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value.(string)
	return nil
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func proj(id string) Projection {
	return Projection{
		ID:          id,
		Name:        "Test Shop",
		Category:    "Cafe",
		Location:    "Somewhere",
		Coordinates: models.NewGeoPoint(1, 2),
		Status:      models.StatusUncertain,
		Source:      SourceOSM,
	}
}

func TestFetchNearbyFirstSuccessShortCircuits(t *testing.T) {
	first := &stubProvider{name: "a", result: []Projection{proj("a_1")}}
	second := &stubProvider{name: "b", result: []Projection{proj("b_1")}}
	svc := NewService([]Provider{first, second}, nil, time.Minute, zap.NewNop())

	got, err := svc.FetchNearby(context.Background(), 35.0, 139.0, 2000)
	if err != nil {
		t.Fatalf("FetchNearby: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a_1" {
		t.Errorf("got %+v, want first provider's result", got)
	}
	if second.calls != 0 {
		t.Errorf("second provider called %d times, want 0", second.calls)
	}
}

func TestFetchNearbyFallsBackOnFailure(t *testing.T) {
	failing := &stubProvider{name: "a", err: errors.New("upstream 500")}
	working := &stubProvider{name: "b", result: []Projection{proj("b_1")}}
	svc := NewService([]Provider{failing, working}, nil, time.Minute, zap.NewNop())

	got, err := svc.FetchNearby(context.Background(), 35.0, 139.0, 2000)
	if err != nil {
		t.Fatalf("FetchNearby: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b_1" {
		t.Errorf("got %+v, want fallback provider's result", got)
	}
	if failing.calls != 1 {
		t.Errorf("failing provider called %d times, want 1", failing.calls)
	}
}

func TestFetchNearbyAllFail(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("boom a")}
	b := &stubProvider{name: "b", err: errors.New("boom b")}
	svc := NewService([]Provider{a, b}, nil, time.Minute, zap.NewNop())

	_, err := svc.FetchNearby(context.Background(), 0, 0, 100)
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	if !strings.Contains(err.Error(), "boom b") {
		t.Errorf("error %q should wrap the last provider failure", err)
	}
}

func TestFetchNearbyDemoTerminates(t *testing.T) {
	failing := &stubProvider{name: "a", err: errors.New("down")}
	svc := NewService([]Provider{failing, NewDemoProvider()}, nil, time.Minute, zap.NewNop())

	got, err := svc.FetchNearby(context.Background(), 35.66, 139.70, 2000)
	if err != nil {
		t.Fatalf("FetchNearby: %v", err)
	}
	if len(got) != demoShopCount {
		t.Fatalf("got %d projections, want %d", len(got), demoShopCount)
	}
	for _, p := range got {
		if !strings.HasPrefix(p.ID, "demo_") {
			t.Errorf("projection id %q missing demo_ prefix", p.ID)
		}
		if p.Source != SourceDemo {
			t.Errorf("projection source = %q, want %q", p.Source, SourceDemo)
		}
		if !p.Coordinates.IsValid() {
			t.Errorf("projection %q has invalid coordinates %+v", p.ID, p.Coordinates)
		}
	}
}

func TestFetchNearbyCaches(t *testing.T) {
	provider := &stubProvider{name: "a", result: []Projection{proj("a_1")}}
	cache := newMemCache()
	svc := NewService([]Provider{provider}, cache, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		got, err := svc.FetchNearby(context.Background(), 35.0, 139.0, 2000)
		if err != nil {
			t.Fatalf("FetchNearby #%d: %v", i+1, err)
		}
		if len(got) != 1 || got[0].ID != "a_1" {
			t.Errorf("FetchNearby #%d: got %+v", i+1, got)
		}
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1 (cache miss only)", provider.calls)
	}

	// A different radius is a different cache entry.
	if _, err := svc.FetchNearby(context.Background(), 35.0, 139.0, 500); err != nil {
		t.Fatalf("FetchNearby different radius: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("provider called %d times, want 2", provider.calls)
	}
}

func TestGoogleStatusMapping(t *testing.T) {
	open, closed := true, false
	tests := []struct {
		name  string
		place googlePlace
		want  models.ShopStatus
	}{
		{"permanently closed wins", googlePlace{BusinessStatus: "CLOSED_PERMANENTLY", RegularOpeningHours: &struct {
			OpenNow *bool `json:"openNow"`
		}{OpenNow: &open}}, models.StatusClosed},
		{"temporarily closed", googlePlace{BusinessStatus: "CLOSED_TEMPORARILY"}, models.StatusClosed},
		{"open now", googlePlace{BusinessStatus: "OPERATIONAL", RegularOpeningHours: &struct {
			OpenNow *bool `json:"openNow"`
		}{OpenNow: &open}}, models.StatusOpen},
		{"closed now", googlePlace{BusinessStatus: "OPERATIONAL", RegularOpeningHours: &struct {
			OpenNow *bool `json:"openNow"`
		}{OpenNow: &closed}}, models.StatusClosed},
		{"no signal", googlePlace{BusinessStatus: "OPERATIONAL"}, models.StatusUncertain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := googleStatus(tt.place); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGoogleCategoryMapping(t *testing.T) {
	tests := []struct {
		types []string
		want  string
	}{
		{[]string{"pharmacy", "store"}, "Pharmacy"},
		{[]string{"atm"}, "Bank"},
		{[]string{"restaurant"}, "Cafe"},
		{[]string{"convenience_store"}, "General Store"},
		{[]string{"hardware_store"}, "Hardware Store"},
		{nil, "Other"},
	}

	for _, tt := range tests {
		if got := googleCategory(tt.types); got != tt.want {
			t.Errorf("googleCategory(%v) = %q, want %q", tt.types, got, tt.want)
		}
	}
}

func TestOSMCategoryMapping(t *testing.T) {
	tests := []struct {
		tags map[string]string
		want string
	}{
		{map[string]string{"shop": "supermarket"}, "General Store"},
		{map[string]string{"shop": "convenience"}, "General Store"},
		{map[string]string{"amenity": "pharmacy"}, "Pharmacy"},
		{map[string]string{"amenity": "bank"}, "Bank"},
		{map[string]string{"amenity": "atm"}, "Bank"},
		{map[string]string{"amenity": "fuel"}, "Gas Station"},
		{map[string]string{"shop": "florist"}, "Other"},
	}

	for _, tt := range tests {
		if got := osmCategory(tt.tags); got != tt.want {
			t.Errorf("osmCategory(%v) = %q, want %q", tt.tags, got, tt.want)
		}
	}
}
