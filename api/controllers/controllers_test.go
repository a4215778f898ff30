package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/catalog"
	"github.com/angelmondragon/cakestore-backend/internal/clock"
	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubCatalog struct {
	kind *enums.ProductKind
	err  error
}

func (s *stubCatalog) List(_ context.Context, kind *enums.ProductKind) ([]catalog.ProductDTO, error) {
	s.kind = kind
	return []catalog.ProductDTO{}, s.err
}

func (s *stubCatalog) Get(_ context.Context, id uuid.UUID) (*catalog.ProductDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.ProductDTO{ID: id, Kind: enums.ProductKindStocked, Name: "Brownie"}, nil
}

type stubCapacity struct {
	from, to types.Date
	date     types.Date
	max      int
	err      error
}

func (s *stubCapacity) ListSlots(_ context.Context, from, to types.Date) ([]capacity.SlotDTO, error) {
	s.from, s.to = from, to
	return []capacity.SlotDTO{}, s.err
}

func (s *stubCapacity) UpdateMaxCapacity(_ context.Context, date types.Date, maxCapacity int) (*capacity.SlotDTO, error) {
	s.date, s.max = date, maxCapacity
	if s.err != nil {
		return nil, s.err
	}
	return &capacity.SlotDTO{Date: date, MaxCapacity: maxCapacity}, nil
}

func withParam(r *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	HealthReady("dev", logger.Nop(), map[string]Pinger{"db": ok, "redis": ok}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-Cakestore-Env"))

	rec = httptest.NewRecorder()
	HealthReady("dev", logger.Nop(), map[string]Pinger{"db": ok, "redis": down}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dependency":"redis"`)
}

func TestProductListParsesKind(t *testing.T) {
	svc := &stubCatalog{}
	rec := httptest.NewRecorder()
	ProductList(svc, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?kind=made_to_order", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.kind)
	assert.Equal(t, enums.ProductKindMadeToOrder, *svc.kind)

	rec = httptest.NewRecorder()
	ProductList(svc, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?kind=pies", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductDetail(t *testing.T) {
	id := uuid.New()
	svc := &stubCatalog{}
	req := withParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id.String(), nil), "productId", id.String())
	rec := httptest.NewRecorder()
	ProductDetail(svc, logger.Nop()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Brownie")

	svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	rec = httptest.NewRecorder()
	ProductDetail(svc, logger.Nop()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSlotListDefaultsToBookingWindow(t *testing.T) {
	svc := &stubCapacity{}
	clk := clock.NewFixed(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	policy := fulfillment.DefaultPolicy()

	rec := httptest.NewRecorder()
	SlotList(svc, clk, policy, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.NewDate(2026, 10, 19), svc.from)
	assert.Equal(t, types.NewDate(2026, 11, 18), svc.to)

	rec = httptest.NewRecorder()
	SlotList(svc, clk, policy, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/v1/capacity?from=2026-12-01&to=2026-12-07", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.NewDate(2026, 12, 1), svc.from)
	assert.Equal(t, types.NewDate(2026, 12, 7), svc.to)
}

func TestAdminCapacityUpdate(t *testing.T) {
	svc := &stubCapacity{}
	req := withParam(httptest.NewRequest(http.MethodPut, "/api/admin/v1/capacity/2026-10-25", strings.NewReader(`{"max_capacity":80}`)), "date", "2026-10-25")
	rec := httptest.NewRecorder()
	AdminCapacityUpdate(svc, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.NewDate(2026, 10, 25), svc.date)
	assert.Equal(t, 80, svc.max)

	for _, body := range []string{`{}`, `{"max_capacity":-1}`} {
		req = withParam(httptest.NewRequest(http.MethodPut, "/api/admin/v1/capacity/2026-10-25", strings.NewReader(body)), "date", "2026-10-25")
		rec = httptest.NewRecorder()
		AdminCapacityUpdate(svc, logger.Nop()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeConflict, "max capacity below reserved")
	req = withParam(httptest.NewRequest(http.MethodPut, "/api/admin/v1/capacity/2026-10-25", strings.NewReader(`{"max_capacity":1}`)), "date", "2026-10-25")
	rec = httptest.NewRecorder()
	AdminCapacityUpdate(svc, logger.Nop()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
