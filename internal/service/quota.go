package service

import (
	"fmt"

	"github.com/nianhua/banquet-reservation/internal/model"
	"github.com/nianhua/banquet-reservation/internal/repository"
)

// SelectedGood is one line of a booking request's goods selection.
type SelectedGood struct {
	GoodsID  uint64 `json:"goods_id"`
	Quantity int    `json:"quantity"`
}

// Consumption is the total resource footprint of a goods selection:
// how many seats it entitles per zone and how much service stock it
// draws.
type Consumption struct {
	Front       int
	Middle      int
	Back        int
	Makeup      int
	Photography int
}

// Seats returns the total seat entitlement across all zones.
func (c Consumption) Seats() int { return c.Front + c.Middle + c.Back }

// ForZone returns the seat entitlement of a single zone.
func (c Consumption) ForZone(z model.Zone) int {
	switch z {
	case model.ZoneFront:
		return c.Front
	case model.ZoneMiddle:
		return c.Middle
	case model.ZoneBack:
		return c.Back
	}
	return 0
}

// ComputeConsumption folds a goods selection into its total resource
// footprint.  Every selected good must appear in the catalog slice;
// quantities must be positive.
func ComputeConsumption(catalog []model.Goods, selection []SelectedGood) (Consumption, error) {
	byID := make(map[uint64]*model.Goods, len(catalog))
	for i := range catalog {
		byID[catalog[i].ID] = &catalog[i]
	}

	var total Consumption
	for _, sel := range selection {
		if sel.Quantity <= 0 {
			return Consumption{}, fmt.Errorf("%w: goods %d has non-positive quantity %d", ErrValidation, sel.GoodsID, sel.Quantity)
		}
		g, ok := byID[sel.GoodsID]
		if !ok {
			return Consumption{}, fmt.Errorf("%w: goods %d", repository.ErrNotFound, sel.GoodsID)
		}

		switch g.Category {
		case model.CategoryMakeup:
			total.Makeup += sel.Quantity
		case model.CategoryPhotography:
			total.Photography += sel.Quantity
		}

		zones, err := g.ConsumptionMap()
		if err != nil {
			return Consumption{}, fmt.Errorf("%w: goods %d: %v", ErrValidation, g.ID, err)
		}
		for _, zc := range zones {
			n := zc.Count * sel.Quantity
			switch zc.Zone {
			case model.ZoneFront:
				total.Front += n
			case model.ZoneMiddle:
				total.Middle += n
			case model.ZoneBack:
				total.Back += n
			}
		}
	}
	return total, nil
}

// ZoneQuotaError reports a zone whose selected seat count does not
// match what the purchased goods entitle.
type ZoneQuotaError struct {
	Zone     model.Zone
	Required int
	Selected int
}

func (e *ZoneQuotaError) Error() string {
	return fmt.Sprintf("zone %s requires %d seat(s), %d selected", e.Zone, e.Required, e.Selected)
}

// Unwrap lets callers match ZoneQuotaError against ErrValidation.
func (e *ZoneQuotaError) Unwrap() error { return ErrValidation }

// ValidateZoneQuota checks that the chosen seats match the goods
// entitlement exactly, zone by zone.  Picking fewer seats than paid
// for is rejected just like picking more, so a booking can never
// strand part of its entitlement.
func ValidateZoneQuota(seats []model.Seat, want Consumption) error {
	var got Consumption
	for _, s := range seats {
		switch s.Zone {
		case model.ZoneFront:
			got.Front++
		case model.ZoneMiddle:
			got.Middle++
		case model.ZoneBack:
			got.Back++
		default:
			return fmt.Errorf("%w: seat %d has unknown zone %q", ErrValidation, s.ID, s.Zone)
		}
	}
	for _, z := range model.Zones {
		if got.ForZone(z) != want.ForZone(z) {
			return &ZoneQuotaError{Zone: z, Required: want.ForZone(z), Selected: got.ForZone(z)}
		}
	}
	return nil
}
