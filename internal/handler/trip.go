package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	ID             string          `json:"id"`
	DepartureCity  string          `json:"departure_city"`
	ArrivalCity    string          `json:"arrival_city"`
	DepartureTime  time.Time       `json:"departure_time"`
	ArrivalTime    *time.Time      `json:"arrival_time,omitempty"`
	Price          decimal.Decimal `json:"price"`
	TotalSeats     int             `json:"total_seats"`
	AvailableSeats int             `json:"available_seats"`
	Status         string          `json:"status"`
	DriverName     string          `json:"driver_name,omitempty"`
	DriverPhone    string          `json:"driver_phone,omitempty"`
	VehicleNumber  string          `json:"vehicle_number,omitempty"`
}

func toTripResponse(t *domain.Trip) TripResponse {
	resp := TripResponse{
		ID:             t.ID,
		DepartureCity:  t.DepartureCity,
		ArrivalCity:    t.ArrivalCity,
		DepartureTime:  t.DepartureTime,
		Price:          t.Price,
		TotalSeats:     t.TotalSeats,
		AvailableSeats: t.AvailableSeats,
		Status:         string(t.Status),
		DriverName:     t.DriverName,
		DriverPhone:    t.DriverPhone,
		VehicleNumber:  t.VehicleNumber,
	}
	if !t.ArrivalTime.IsZero() {
		arrival := t.ArrivalTime
		resp.ArrivalTime = &arrival
	}
	return resp
}

// SearchTrips handles GET /v1/trips?departure_city=&arrival_city=&date=YYYY-MM-DD
func (h *TripHandler) SearchTrips(c *gin.Context) {
	trips, err := h.tripService.Search(c.Request.Context(), service.SearchTripsRequest{
		DepartureCity: c.Query("departure_city"),
		ArrivalCity:   c.Query("arrival_city"),
		Date:          c.Query("date"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, toTripResponse(t))
	}

	respondJSON(c, http.StatusOK, gin.H{"trips": out})
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"trip": toTripResponse(trip)})
}
