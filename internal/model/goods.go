package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Goods categories.  Makeup and photography goods consume the
// corresponding per-date service stock; goods carrying a
// zone-consumption map additionally consume seats.
const (
	CategorySeating     = "seating"
	CategoryMakeup      = "makeup"
	CategoryPhotography = "photography"
	CategoryBundle      = "bundle"
)

// ZoneConsumption is one entry of a good's zone-consumption map: how
// many seats in the named zone one unit of the good consumes.  The
// map is stored as an ordered JSON array so that validation output is
// stable.
type ZoneConsumption struct {
	Zone  Zone `json:"zone"`
	Count int  `json:"count"`
}

// Goods is a purchasable catalog item.  Prices are captured into
// booking line items at creation time; later catalog edits never
// change what an existing booking owes.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – display name.
//  Description     – catalog description.
//  Category        – one of the Category* constants.
//  PriceCents      – unit price.
//  ZoneConsumption – raw JSON zone-consumption map; empty for pure
//                    service goods, which do not constrain seats.
//  Active          – inactive goods cannot be booked.
type Goods struct {
	ID              uint64    // goods.id
	Name            string    // goods.name
	Description     string    // goods.description
	Category        string    // goods.category
	PriceCents      int64     // goods.price_cents
	ZoneConsumption string    // goods.zone_consumption (JSON)
	Active          bool      // goods.status = 1
	CreatedAt       time.Time // goods.created_at
	UpdatedAt       time.Time // goods.updated_at
}

// ConsumptionMap decodes the good's zone-consumption configuration.
// A missing or empty column yields a nil slice, meaning the good does
// not consume seats.  Unknown zones in the configuration are a data
// error and are rejected rather than silently skipped.
func (g *Goods) ConsumptionMap() ([]ZoneConsumption, error) {
	if g.ZoneConsumption == "" {
		return nil, nil
	}
	var entries []ZoneConsumption
	if err := json.Unmarshal([]byte(g.ZoneConsumption), &entries); err != nil {
		return nil, fmt.Errorf("goods %d (%s): bad zone consumption config: %w", g.ID, g.Name, err)
	}
	for _, e := range entries {
		if !e.Zone.Valid() {
			return nil, fmt.Errorf("goods %d (%s): unknown zone %q in consumption config", g.ID, g.Name, e.Zone)
		}
		if e.Count < 0 {
			return nil, fmt.Errorf("goods %d (%s): negative seat count in consumption config", g.ID, g.Name)
		}
	}
	return entries, nil
}
