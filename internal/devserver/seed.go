package devserver

import (
	"github.com/shopspring/decimal"

	"wellnest/core/internal/models"
)

func (s *state) seed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.services = []models.Service{
		{
			ID:              "svc_deep_tissue",
			Name:            "Deep Tissue Massage",
			Category:        "massage",
			Description:     "Sixty minutes of firm-pressure massage for muscle tension.",
			Price:           decimal.RequireFromString("65.00"),
			DurationMinutes: 60,
			Postcode:        "E1 6AN",
			Rating:          4.8,
		},
		{
			ID:              "svc_sports_massage",
			Name:            "Sports Massage",
			Category:        "massage",
			Description:     "Recovery massage for runners and cyclists.",
			Price:           decimal.RequireFromString("55.00"),
			DurationMinutes: 45,
			Postcode:        "N1 9GU",
			Rating:          4.6,
		},
		{
			ID:              "svc_vinyasa",
			Name:            "Vinyasa Flow",
			Category:        "yoga",
			Description:     "Small-group flow class, all levels welcome.",
			Price:           decimal.RequireFromString("18.50"),
			DurationMinutes: 75,
			Postcode:        "E1 7PT",
			Rating:          4.9,
		},
		{
			ID:              "svc_sound_bath",
			Name:            "Sound Bath",
			Category:        "meditation",
			Description:     "Guided relaxation with singing bowls.",
			Price:           decimal.RequireFromString("22.00"),
			DurationMinutes: 50,
			Postcode:        "SE1 9SG",
			Rating:          4.5,
		},
	}

	for _, loc := range []models.Location{
		{
			ID:            "loc_shoreditch",
			Name:          "Shoreditch Studio",
			City:          "London",
			Postcode:      "E1 6AN",
			TargetAmount:  decimal.RequireFromString("50000.00"),
			RaisedAmount:  decimal.RequireFromString("12500.00"),
			MinInvestment: decimal.RequireFromString("10.00"),
		},
		{
			ID:            "loc_bankside",
			Name:          "Bankside Spa",
			City:          "London",
			Postcode:      "SE1 9SG",
			TargetAmount:  decimal.RequireFromString("120000.00"),
			RaisedAmount:  decimal.RequireFromString("119990.00"),
			MinInvestment: decimal.RequireFromString("5.00"),
		},
	} {
		l := loc
		s.locations[l.ID] = &l
	}
}
