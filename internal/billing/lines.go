package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/clinic-billing/internal/records"
)

// Synthetic line used when a checkout carries no service codes.
const (
	VisitServiceCode = "VISIT"
	VisitDescription = "General Visit"
)

// ChargeLine is a billed line before payments are attached.
type ChargeLine struct {
	Date          time.Time
	AppointmentID string
	ServiceCode   string
	Description   string
	Charge        decimal.Decimal
}

// SynthesizeLines emits one line per service code on the appointment's
// checkout, or a single VISIT line when the checkout has no codes. An
// appointment without a checkout has no financial record and yields nil.
func SynthesizeLines(apt records.Appointment) []ChargeLine {
	if apt.Checkout == nil {
		return nil
	}

	if len(apt.Checkout.ServiceCodes) == 0 {
		charge := decimal.Zero
		if apt.TotalAmount != nil {
			charge = decimal.NewFromFloat(*apt.TotalAmount)
		}
		return []ChargeLine{{
			Date:          apt.AppointmentDate,
			AppointmentID: apt.ID,
			ServiceCode:   VisitServiceCode,
			Description:   VisitDescription,
			Charge:        charge,
		}}
	}

	lines := make([]ChargeLine, 0, len(apt.Checkout.ServiceCodes))
	for _, code := range apt.Checkout.ServiceCodes {
		lines = append(lines, ChargeLine{
			Date:          apt.AppointmentDate,
			AppointmentID: apt.ID,
			ServiceCode:   code.Code,
			Description:   code.Description,
			Charge:        code.Total(),
		})
	}
	return lines
}
