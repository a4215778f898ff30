package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

type stubEstimator struct {
	lines  []fulfillment.Line
	result *fulfillment.Estimate
	err    error
}

func (s *stubEstimator) Estimate(_ context.Context, lines []fulfillment.Line) (*fulfillment.Estimate, error) {
	s.lines = lines
	return s.result, s.err
}

type validateResponse struct {
	Data struct {
		EarliestDate *string `json:"earliest_date"`
		Available    bool    `json:"available"`
		HorizonEnd   string  `json:"horizon_end"`
		Message      string  `json:"message"`
		Issues       []struct {
			ProductID string `json:"product_id"`
			Requested int    `json:"requested"`
			Available int    `json:"available"`
		} `json:"issues"`
	} `json:"data"`
}

func TestValidateReturnsEarliestDate(t *testing.T) {
	cake := uuid.New()
	cookies := uuid.New()
	svc := &stubEstimator{result: &fulfillment.Estimate{
		Today:        types.NewDate(2026, 10, 19),
		HorizonEnd:   types.NewDate(2026, 11, 18),
		EarliestDate: types.NewDate(2026, 10, 21),
		Available:    true,
		Lines: []fulfillment.LineEstimate{
			{ProductID: cake, Kind: enums.ProductKindMadeToOrder, Quantity: 1, Date: types.NewDate(2026, 10, 21), Available: true},
			{ProductID: cookies, Kind: enums.ProductKindStocked, Quantity: 5, Date: types.NewDate(2026, 10, 20), Available: true},
		},
		StockIssues: []fulfillment.StockIssue{{ProductID: cookies, Requested: 5, Available: 3}},
	}}

	body := `{"items":[{"product_id":"` + cake.String() + `","quantity":1},{"product_id":"` + cookies.String() + `","quantity":5}]}`
	rec := httptest.NewRecorder()
	Validate(svc, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/validate", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload validateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotNil(t, payload.Data.EarliestDate)
	assert.Equal(t, "2026-10-21", *payload.Data.EarliestDate)
	assert.True(t, payload.Data.Available)
	assert.Equal(t, "2026-11-18", payload.Data.HorizonEnd)
	require.Len(t, payload.Data.Issues, 1)
	assert.Equal(t, 3, payload.Data.Issues[0].Available)
	assert.Contains(t, payload.Data.Message, "short on stock")

	require.Len(t, svc.lines, 2)
	assert.Equal(t, fulfillment.Line{ProductID: cake, Quantity: 1}, svc.lines[0])
}

func TestValidateUnavailableHasNullDate(t *testing.T) {
	svc := &stubEstimator{result: &fulfillment.Estimate{
		HorizonEnd: types.NewDate(2026, 11, 18),
		Available:  false,
	}}
	body := `{"items":[{"product_id":"` + uuid.NewString() + `","quantity":60}]}`
	rec := httptest.NewRecorder()
	Validate(svc, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/validate", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload validateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Nil(t, payload.Data.EarliestDate)
	assert.False(t, payload.Data.Available)
	assert.Equal(t, "no production slot available through 2026-11-18", payload.Data.Message)
	assert.NotNil(t, payload.Data.Issues)
}

func TestValidateRejectsEmptyCart(t *testing.T) {
	svc := &stubEstimator{}
	rec := httptest.NewRecorder()
	Validate(svc, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/validate", strings.NewReader(`{"items":[]}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.lines)
}
