package shop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/opennow/core/internal/models"
)

// memShopStore is an in-memory ShopStore with the same atomicity guarantees
// as the Mongo implementation: ApplyReport is a single locked mutation.
type memShopStore struct {
	mu    sync.Mutex
	shops map[primitive.ObjectID]*models.ShopModel

	lookupMissOnce bool // next FindByExternalID misses even on a present record
}

func newMemShopStore() *memShopStore {
	return &memShopStore{shops: make(map[primitive.ObjectID]*models.ShopModel)}
}

func (m *memShopStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.ShopModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.shops[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memShopStore) FindByExternalID(_ context.Context, externalID string) (*models.ShopModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupMissOnce {
		m.lookupMissOnce = false
		return nil, nil
	}
	for _, s := range m.shops {
		if s.ExternalID == externalID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memShopStore) Insert(_ context.Context, shop *models.ShopModel) (*models.ShopModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if shop.ExternalID != "" {
		for _, s := range m.shops {
			if s.ExternalID == shop.ExternalID {
				return nil, ErrDuplicateExternalID
			}
		}
	}
	cp := *shop
	cp.ID = primitive.NewObjectID()
	m.shops[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memShopStore) ApplyReport(_ context.Context, id primitive.ObjectID, status models.ShopStatus, now time.Time) (*models.ShopModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[id]
	if !ok {
		return nil, nil
	}
	s.Status = status
	s.LastStatusUpdate = now
	s.ReportCount++
	cp := *s
	return &cp, nil
}

func (m *memShopStore) MarkStale(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.shops {
		if s.Status == models.StatusUncertain {
			continue
		}
		if s.LastStatusUpdate.Before(cutoff) {
			s.Status = models.StatusUncertain
			n++
		}
	}
	return n, nil
}

func (m *memShopStore) List(_ context.Context, _ ListQuery) ([]models.ShopModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ShopModel, 0, len(m.shops))
	for _, s := range m.shops {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memShopStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shops)
}

type memLogStore struct {
	mu      sync.Mutex
	entries []models.StatusLogModel
}

func (m *memLogStore) Append(_ context.Context, entry *models.StatusLogModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memLogStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestService(shops *memShopStore, logs *memLogStore) *Service {
	return NewService(shops, logs, time.Hour, zap.NewNop())
}

func seedShop(t *testing.T, store *memShopStore, shop models.ShopModel) primitive.ObjectID {
	t.Helper()
	created, err := store.Insert(context.Background(), &shop)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return created.ID
}

func validDetails() *ShopDetailsDTO {
	return &ShopDetailsDTO{
		Name:        "Ramen Yokocho",
		Category:    "Restaurant",
		Location:    "2nd Street",
		Coordinates: models.NewGeoPoint(139.70, 35.66),
	}
}

func TestReportStatusByObjectID(t *testing.T) {
	shops := newMemShopStore()
	logs := &memLogStore{}
	svc := newTestService(shops, logs)

	id := seedShop(t, shops, models.ShopModel{
		Name:        "Corner Bakery",
		Status:      models.StatusUncertain,
		Coordinates: models.NewGeoPoint(0, 0),
	})

	got, err := svc.ReportStatus(context.Background(), id.Hex(), ReportStatusDTO{Status: models.StatusClosed}, "10.0.0.1")
	if err != nil {
		t.Fatalf("ReportStatus: %v", err)
	}
	if got.Status != models.StatusClosed {
		t.Errorf("status = %s, want CLOSED", got.Status)
	}
	if got.ReportCount != 1 {
		t.Errorf("reportCount = %d, want 1", got.ReportCount)
	}
	if logs.count() != 1 {
		t.Errorf("log entries = %d, want 1", logs.count())
	}
}

func TestReportStatusUnknownWithoutDetails(t *testing.T) {
	svc := newTestService(newMemShopStore(), &memLogStore{})

	_, err := svc.ReportStatus(context.Background(), "gmap:abc123", ReportStatusDTO{Status: models.StatusOpen}, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReportStatusRejectsUnreportable(t *testing.T) {
	shops := newMemShopStore()
	svc := newTestService(shops, &memLogStore{})
	id := seedShop(t, shops, models.ShopModel{Name: "x", Status: models.StatusOpen})

	for _, status := range []models.ShopStatus{models.StatusUncertain, "MAYBE", ""} {
		_, err := svc.ReportStatus(context.Background(), id.Hex(), ReportStatusDTO{Status: status}, "")
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("status %q: err = %v, want ValidationError", status, err)
		}
	}
}

func TestReportStatusMigratesExternalShop(t *testing.T) {
	shops := newMemShopStore()
	logs := &memLogStore{}
	svc := newTestService(shops, logs)

	const extID = "osm:node/12345"
	dto := ReportStatusDTO{Status: models.StatusOpen, ShopDetails: validDetails()}

	first, err := svc.ReportStatus(context.Background(), extID, dto, "10.0.0.2")
	if err != nil {
		t.Fatalf("first report: %v", err)
	}
	if first.ExternalID != extID {
		t.Errorf("externalId = %q, want %q", first.ExternalID, extID)
	}
	if first.ReportCount != 1 {
		t.Errorf("reportCount after migration = %d, want 1", first.ReportCount)
	}
	if shops.count() != 1 {
		t.Fatalf("shop records = %d, want 1", shops.count())
	}

	// Second report on the same external id must hit the migrated record.
	second, err := svc.ReportStatus(context.Background(), extID, ReportStatusDTO{Status: models.StatusClosed}, "10.0.0.3")
	if err != nil {
		t.Fatalf("second report: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second report created a new record")
	}
	if second.ReportCount != 2 {
		t.Errorf("reportCount = %d, want 2", second.ReportCount)
	}
	if shops.count() != 1 {
		t.Errorf("shop records = %d, want 1", shops.count())
	}
	if logs.count() != 2 {
		t.Errorf("log entries = %d, want 2", logs.count())
	}
}

func TestReportStatusMigrationValidation(t *testing.T) {
	svc := newTestService(newMemShopStore(), &memLogStore{})

	noName := validDetails()
	noName.Name = "   "
	badCoords := validDetails()
	badCoords.Coordinates = models.GeoPoint{Type: "Point", Coordinates: []float64{200, 95}}

	for name, details := range map[string]*ShopDetailsDTO{
		"blank name":      noName,
		"bad coordinates": badCoords,
	} {
		_, err := svc.ReportStatus(context.Background(), "ext-1", ReportStatusDTO{Status: models.StatusOpen, ShopDetails: details}, "")
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: err = %v, want ValidationError", name, err)
		}
	}
}

func TestReportStatusMigrationRace(t *testing.T) {
	shops := newMemShopStore()
	logs := &memLogStore{}
	svc := newTestService(shops, logs)

	const extID = "gmap:race"
	winnerID := seedShop(t, shops, models.ShopModel{
		ExternalID:  extID,
		Name:        "Winner",
		Status:      models.StatusOpen,
		ReportCount: 1,
		Coordinates: models.NewGeoPoint(0, 0),
	})
	// Simulate the interleaving: the initial lookup misses because the
	// winner has not committed yet, the insert then collides on the unique
	// externalId index, and the retry lookup resolves the winner.
	shops.lookupMissOnce = true
	got, err := svc.ReportStatus(context.Background(), extID, ReportStatusDTO{Status: models.StatusClosed, ShopDetails: validDetails()}, "")
	if err != nil {
		t.Fatalf("raced report: %v", err)
	}
	if got.ID != winnerID {
		t.Errorf("raced report landed on %s, want winner %s", got.ID.Hex(), winnerID.Hex())
	}
	if got.ReportCount != 2 {
		t.Errorf("winner reportCount = %d, want 2", got.ReportCount)
	}
	if shops.count() != 1 {
		t.Errorf("shop records = %d, want 1", shops.count())
	}
}

func TestReportStatusConcurrentIncrements(t *testing.T) {
	shops := newMemShopStore()
	svc := newTestService(shops, &memLogStore{})
	id := seedShop(t, shops, models.ShopModel{
		Name:        "Busy Cafe",
		Status:      models.StatusUncertain,
		Coordinates: models.NewGeoPoint(0, 0),
	})

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		status := models.StatusOpen
		if i%2 == 1 {
			status = models.StatusClosed
		}
		go func(st models.ShopStatus) {
			defer wg.Done()
			if _, err := svc.ReportStatus(context.Background(), id.Hex(), ReportStatusDTO{Status: st}, ""); err != nil {
				t.Errorf("concurrent report: %v", err)
			}
		}(status)
	}
	wg.Wait()

	final, err := shops.FindByID(context.Background(), id)
	if err != nil || final == nil {
		t.Fatalf("final lookup: %v", err)
	}
	if final.ReportCount != n {
		t.Errorf("reportCount = %d, want %d", final.ReportCount, n)
	}
}

func TestSweepStale(t *testing.T) {
	shops := newMemShopStore()
	svc := newTestService(shops, &memLogStore{})
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	staleID := seedShop(t, shops, models.ShopModel{
		Name:             "Stale",
		Status:           models.StatusOpen,
		LastStatusUpdate: base.Add(-61 * time.Minute),
	})
	freshID := seedShop(t, shops, models.ShopModel{
		Name:             "Fresh",
		Status:           models.StatusClosed,
		LastStatusUpdate: base.Add(-59 * time.Minute),
	})
	uncertainID := seedShop(t, shops, models.ShopModel{
		Name:             "Already uncertain",
		Status:           models.StatusUncertain,
		LastStatusUpdate: base.Add(-10 * time.Hour),
	})

	n, err := svc.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if n != 1 {
		t.Errorf("modified = %d, want 1", n)
	}

	stale, _ := shops.FindByID(context.Background(), staleID)
	if stale.Status != models.StatusUncertain {
		t.Errorf("stale shop status = %s, want UNCERTAIN", stale.Status)
	}
	if !stale.LastStatusUpdate.Equal(base.Add(-61 * time.Minute)) {
		t.Errorf("sweep must not touch lastStatusUpdate")
	}

	fresh, _ := shops.FindByID(context.Background(), freshID)
	if fresh.Status != models.StatusClosed {
		t.Errorf("fresh shop status = %s, want CLOSED", fresh.Status)
	}

	_, _ = shops.FindByID(context.Background(), uncertainID)

	// Second pass finds nothing: the sweep is idempotent.
	n, err = svc.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("second SweepStale: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep modified = %d, want 0", n)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemShopStore(), &memLogStore{})

	_, err := svc.Create(context.Background(), CreateShopDTO{Name: "  "}, "")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("blank name: err = %v, want ValidationError", err)
	}

	_, err = svc.Create(context.Background(), CreateShopDTO{
		Name:        "No coords",
		Coordinates: models.GeoPoint{},
	}, "")
	if !errors.As(err, &verr) {
		t.Errorf("missing coordinates: err = %v, want ValidationError", err)
	}
}

func TestCreateDefaults(t *testing.T) {
	shops := newMemShopStore()
	svc := newTestService(shops, &memLogStore{})

	created, err := svc.Create(context.Background(), CreateShopDTO{
		Name:        "Minimal",
		Coordinates: models.NewGeoPoint(13.4, 52.5),
		OpenTime:    "09:00", // partial pair, must be dropped
	}, "10.0.0.9")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != models.StatusOpen {
		t.Errorf("default status = %s, want OPEN", created.Status)
	}
	if created.ReportCount != 1 {
		t.Errorf("reportCount = %d, want 1", created.ReportCount)
	}
	if created.Category != defaultCategory || created.Location != defaultLocation {
		t.Errorf("defaults not applied: %q / %q", created.Category, created.Location)
	}
	if created.OpenTime != "" || created.CloseTime != "" {
		t.Errorf("partial hours pair kept: %q-%q", created.OpenTime, created.CloseTime)
	}
}

func TestGetResolvesByEitherIdentity(t *testing.T) {
	shops := newMemShopStore()
	svc := newTestService(shops, &memLogStore{})
	id := seedShop(t, shops, models.ShopModel{
		ExternalID:  "gmap:xyz",
		Name:        "Dual identity",
		Status:      models.StatusOpen,
		Coordinates: models.NewGeoPoint(0, 0),
	})

	byOID, err := svc.Get(context.Background(), id.Hex())
	if err != nil {
		t.Fatalf("get by ObjectID: %v", err)
	}
	byExt, err := svc.Get(context.Background(), "gmap:xyz")
	if err != nil {
		t.Fatalf("get by externalId: %v", err)
	}
	if byOID.ID != byExt.ID {
		t.Errorf("identities resolve to different records")
	}

	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}
