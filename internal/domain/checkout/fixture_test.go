package checkout

import (
	"fmt"
	"time"

	"github.com/sanosuguru/go-seat-checkout/internal/domain/cart"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/sale"
	"github.com/sanosuguru/go-seat-checkout/internal/domain/seat"
)

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// newInventory は販売中の販売枠1つ・エリア1つ・席種 st-a(1000円) を持つ在庫を返す
func newInventory() Inventory {
	return Inventory{
		Seats: map[string]*seat.Seat{},
		SeatTypes: map[string]*seat.SeatType{
			"st-a": {ID: "st-a", SaleID: "sale-1", Name: "S席", Price: 1000},
		},
		Options: map[string]*seat.Option{},
		Areas: map[string]*seat.Area{
			"area-1": {ID: "area-1", Name: "1階", Displayable: true},
		},
		Sales: map[string]*sale.Sale{
			"sale-1": {
				ID:         "sale-1",
				ScheduleID: "schedule-1",
				Status:     sale.StatusOnSale,
				StartAt:    baseTime.Add(-24 * time.Hour),
				EndAt:      baseTime.Add(24 * time.Hour),
			},
		},
		UnitGroupSizes: map[string]int{},
	}
}

// addSingleSeats は1席販売の座席を追加し、カート行を返す
func addSingleSeats(inv Inventory, seatTypeID string, n int) []cart.Line {
	lines := make([]cart.Line, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-seat-%d", seatTypeID, len(inv.Seats)+1)
		inv.Seats[id] = &seat.Seat{
			ID:         id,
			SeatTypeID: seatTypeID,
			AreaID:     "area-1",
			SalesMode:  seat.SalesModeSingle,
			Status:     seat.StatusAvailable,
		}
		lines = append(lines, cart.Line{SeatID: id})
	}
	return lines
}

// addUnitGroup はユニット販売の座席を size 席追加し、カート行を返す
func addUnitGroup(inv Inventory, seatTypeID, groupID string, size int) []cart.Line {
	inv.UnitGroupSizes[groupID] = size
	lines := make([]cart.Line, 0, size)
	for i := 0; i < size; i++ {
		id := fmt.Sprintf("%s-%d", groupID, i+1)
		inv.Seats[id] = &seat.Seat{
			ID:          id,
			SeatTypeID:  seatTypeID,
			AreaID:      "area-1",
			SalesMode:   seat.SalesModeUnit,
			UnitGroupID: strPtr(groupID),
			Status:      seat.StatusAvailable,
		}
		lines = append(lines, cart.Line{SeatID: id})
	}
	return lines
}
