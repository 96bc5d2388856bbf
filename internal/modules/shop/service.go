package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/opennow/core/internal/models"
)

const (
	defaultCategory = "Unknown"
	defaultLocation = "Unknown Location"
)

// Service implements shop retrieval, status reporting with identity
// resolution, and the staleness sweep.
type Service struct {
	shops     ShopStore
	logs      StatusLogStore
	staleness time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(shops ShopStore, logs StatusLogStore, staleness time.Duration, logger *zap.Logger) *Service {
	return &Service{
		shops:     shops,
		logs:      logs,
		staleness: staleness,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns shops in the requested mode, each decorated with its derived
// display state.
func (s *Service) List(ctx context.Context, q ListQuery) ([]ShopView, error) {
	shops, err := s.shops.List(ctx, q)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]ShopView, 0, len(shops))
	for _, m := range shops {
		views = append(views, newShopView(m, DeriveDisplay(m.Status, m.OpenTime, m.CloseTime, now)))
	}
	return views, nil
}

// Get returns a single shop by ObjectID hex or externalId.
func (s *Service) Get(ctx context.Context, id string) (*ShopView, error) {
	shop, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, ErrNotFound
	}
	v := newShopView(*shop, DeriveDisplay(shop.Status, shop.OpenTime, shop.CloseTime, s.now()))
	return &v, nil
}

// Create persists a directly submitted shop. The submission counts as the
// first report, so reportCount starts at 1 and a log entry is recorded.
func (s *Service) Create(ctx context.Context, dto CreateShopDTO, ip string) (*models.ShopModel, error) {
	if strings.TrimSpace(dto.Name) == "" {
		return nil, ValidationError("name is required")
	}
	if !dto.Coordinates.IsValid() {
		return nil, ValidationError("coordinates must be a GeoJSON Point with [longitude, latitude]")
	}

	status := dto.Status
	if status == "" {
		status = models.StatusOpen
	}
	if !status.Valid() {
		return nil, ValidationError(fmt.Sprintf("invalid status %q", dto.Status))
	}

	now := s.now()
	openTime, closeTime := normalizeHours(dto.OpenTime, dto.CloseTime)
	shop := &models.ShopModel{
		Name:             strings.TrimSpace(dto.Name),
		Category:         orDefault(dto.Category, defaultCategory),
		Location:         orDefault(dto.Location, defaultLocation),
		Status:           status,
		LastStatusUpdate: now,
		ReportCount:      1,
		OpenTime:         openTime,
		CloseTime:        closeTime,
		Coordinates:      dto.Coordinates,
	}

	created, err := s.shops.Insert(ctx, shop)
	if err != nil {
		return nil, err
	}
	if created.Status.Reportable() {
		s.appendLog(ctx, created.ID, created.Status, models.SourceCommunity, ip, now)
	}
	return created, nil
}

// ReportStatus applies a community or owner status report against the shop
// identified by id, which may be a local ObjectID hex or an external place
// id. Unknown external ids are migrated into the local store on first
// report, so the report lands with reportCount exactly 1.
func (s *Service) ReportStatus(ctx context.Context, id string, dto ReportStatusDTO, ip string) (*models.ShopModel, error) {
	if !dto.Status.Reportable() {
		return nil, ValidationError("status must be OPEN or CLOSED")
	}
	source := dto.Source
	if source == "" {
		source = models.SourceCommunity
	}
	if !source.Valid() {
		return nil, ValidationError(fmt.Sprintf("invalid source %q", dto.Source))
	}

	shop, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if shop == nil {
		shop, err = s.migrate(ctx, id, dto, now)
	} else {
		shop, err = s.applyExisting(ctx, shop.ID, dto.Status, now)
	}
	if err != nil {
		return nil, err
	}

	s.appendLog(ctx, shop.ID, dto.Status, source, ip, now)
	return shop, nil
}

// SweepStale demotes every OPEN/CLOSED shop that has not been confirmed
// within the staleness window back to UNCERTAIN. Safe to run on overlap: a
// second pass finds nothing left to modify.
func (s *Service) SweepStale(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.staleness)
	n, err := s.shops.MarkStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("marked stale shops as uncertain", zap.Int64("count", n))
	}
	return n, nil
}

// resolve tries ObjectID first, then externalId. (nil, nil) means unknown.
func (s *Service) resolve(ctx context.Context, id string) (*models.ShopModel, error) {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		shop, err := s.shops.FindByID(ctx, oid)
		if err != nil {
			return nil, err
		}
		if shop != nil {
			return shop, nil
		}
	}
	return s.shops.FindByExternalID(ctx, id)
}

// migrate creates the local record for a first-time external report. The
// report itself is folded into the insert: status and reportCount=1 land in
// one write.
func (s *Service) migrate(ctx context.Context, externalID string, dto ReportStatusDTO, now time.Time) (*models.ShopModel, error) {
	details := dto.ShopDetails
	if details == nil {
		return nil, ErrNotFound
	}
	if strings.TrimSpace(details.Name) == "" {
		return nil, ValidationError("shopDetails.name is required to create the shop")
	}
	if !details.Coordinates.IsValid() {
		return nil, ValidationError("shopDetails.coordinates must be a GeoJSON Point with [longitude, latitude]")
	}

	openTime, closeTime := normalizeHours(details.OpenTime, details.CloseTime)
	fresh := &models.ShopModel{
		ExternalID:       externalID,
		Name:             strings.TrimSpace(details.Name),
		Category:         orDefault(details.Category, defaultCategory),
		Location:         orDefault(details.Location, defaultLocation),
		Status:           dto.Status,
		LastStatusUpdate: now,
		ReportCount:      1,
		OpenTime:         openTime,
		CloseTime:        closeTime,
		Coordinates:      details.Coordinates,
	}

	created, err := s.shops.Insert(ctx, fresh)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, ErrDuplicateExternalID) {
		return nil, err
	}

	// Lost the migration race: another report created the record first.
	// Report against the winner instead of failing the request.
	existing, ferr := s.shops.FindByExternalID(ctx, externalID)
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, fmt.Errorf("externalId %q raced on insert but is not resolvable", externalID)
	}
	return s.applyExisting(ctx, existing.ID, dto.Status, now)
}

func (s *Service) applyExisting(ctx context.Context, id primitive.ObjectID, status models.ShopStatus, now time.Time) (*models.ShopModel, error) {
	shop, err := s.shops.ApplyReport(ctx, id, status, now)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, ErrNotFound
	}
	return shop, nil
}

// appendLog records the audit entry. Log failures are reported but never
// fail the request; the shop update already committed.
func (s *Service) appendLog(ctx context.Context, shopID primitive.ObjectID, status models.ShopStatus, source models.ReportSource, ip string, at time.Time) {
	entry := &models.StatusLogModel{
		ShopID:     shopID,
		Status:     status,
		Source:     source,
		ReportedAt: at,
		IPAddress:  ip,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logger.Warn("status log append failed",
			zap.String("shopId", shopID.Hex()),
			zap.Error(err),
		)
	}
}

func normalizeHours(openTime, closeTime string) (string, string) {
	openTime = strings.TrimSpace(openTime)
	closeTime = strings.TrimSpace(closeTime)
	// A partial pair is useless for derivation, drop it.
	if openTime == "" || closeTime == "" {
		return "", ""
	}
	return openTime, closeTime
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
