package cart

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

type ValidateCartItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0,max=10000"`
}

type ValidateCartRequest struct {
	Items []ValidateCartItem `json:"items" validate:"required,min=1,max=100,dive"`
}

func (r ValidateCartRequest) lines() []fulfillment.Line {
	lines := make([]fulfillment.Line, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, fulfillment.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

type StockIssueDTO struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

type LineEstimateDTO struct {
	ProductID uuid.UUID         `json:"product_id"`
	Kind      enums.ProductKind `json:"kind"`
	Quantity  int               `json:"quantity"`
	Date      types.Date        `json:"date"`
	Available bool              `json:"available"`
}

// ValidateCartResponse answers when the cart could be delivered. EarliestDate is null when
// nothing fits inside the booking horizon.
type ValidateCartResponse struct {
	EarliestDate types.Date        `json:"earliest_date"`
	Available    bool              `json:"available"`
	HorizonEnd   types.Date        `json:"horizon_end"`
	Message      string            `json:"message"`
	Issues       []StockIssueDTO   `json:"issues"`
	Lines        []LineEstimateDTO `json:"lines"`
}

func newValidateCartResponse(est fulfillment.Estimate) ValidateCartResponse {
	out := ValidateCartResponse{
		EarliestDate: est.EarliestDate,
		Available:    est.Available,
		HorizonEnd:   est.HorizonEnd,
		Issues:       make([]StockIssueDTO, 0, len(est.StockIssues)),
		Lines:        make([]LineEstimateDTO, 0, len(est.Lines)),
	}
	for _, issue := range est.StockIssues {
		out.Issues = append(out.Issues, StockIssueDTO{
			ProductID: issue.ProductID,
			Requested: issue.Requested,
			Available: issue.Available,
		})
	}
	for _, line := range est.Lines {
		dto := LineEstimateDTO{
			ProductID: line.ProductID,
			Kind:      line.Kind,
			Quantity:  line.Quantity,
			Available: line.Available,
		}
		if line.Available {
			dto.Date = line.Date
		}
		out.Lines = append(out.Lines, dto)
	}
	out.Message = estimateMessage(est)
	return out
}

func estimateMessage(est fulfillment.Estimate) string {
	switch {
	case !est.Available:
		return fmt.Sprintf("no production slot available through %s", est.HorizonEnd)
	case len(est.StockIssues) > 0:
		return fmt.Sprintf("earliest delivery %s, some items are short on stock", est.EarliestDate)
	default:
		return fmt.Sprintf("earliest delivery %s", est.EarliestDate)
	}
}
