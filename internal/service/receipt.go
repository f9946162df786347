package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/jelani-tech/minibus-booking-backend/internal/domain"
	"github.com/jelani-tech/minibus-booking-backend/internal/repository"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	repos repository.Repositories
	now   func() time.Time
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(repos repository.Repositories) *ReceiptService {
	return &ReceiptService{
		repos: repos,
		now:   time.Now,
	}
}

// GenerateReceipt builds the receipt of a confirmed booking owned by the requester.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, bookingID, requesterID string) (*domain.Receipt, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	booking, err := s.repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !booking.IsOwnedBy(requesterID) {
		return nil, ErrForbidden
	}

	if booking.Status != domain.BookingStatusConfirmed {
		return nil, ErrInvalidState
	}

	payment, err := s.repos.Payments.GetByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.PaymentStatusCompleted {
		return nil, ErrInvalidState
	}

	trip, err := s.repos.Trips.GetByID(ctx, booking.TripID)
	if err != nil {
		return nil, err
	}

	return &domain.Receipt{
		Number:         receiptNumber(booking.ID),
		BookingID:      booking.ID,
		PassengerName:  booking.PassengerName,
		PassengerPhone: booking.PassengerPhone,
		DepartureCity:  trip.DepartureCity,
		ArrivalCity:    trip.ArrivalCity,
		DepartureTime:  trip.DepartureTime,
		VehicleNumber:  trip.VehicleNumber,
		NumberOfSeats:  booking.NumberOfSeats,
		UnitPrice:      trip.Price,
		TotalPrice:     booking.TotalPrice,
		PaymentMethod:  payment.Method,
		TransactionID:  payment.TransactionID,
		PaidAt:         payment.UpdatedAt,
		IssuedAt:       s.now(),
	}, nil
}

// RenderPDF lays the receipt out on a single A4 page.
func (s *ReceiptService) RenderPDF(receipt *domain.Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Receipt "+receipt.Number, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BOOKING RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Receipt No : " + receipt.Number,
		"Issued     : " + receipt.IssuedAt.Format("2006-01-02 15:04"),
		"Booking    : " + receipt.BookingID,
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Trip")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 12)
	lines = []string{
		fmt.Sprintf("Route      : %s - %s", receipt.DepartureCity, receipt.ArrivalCity),
		"Departure  : " + receipt.DepartureTime.Format("2006-01-02 15:04"),
		"Vehicle    : " + safe(receipt.VehicleNumber, "-"),
		"Passenger  : " + receipt.PassengerName,
		"Phone      : " + receipt.PassengerPhone,
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Payment")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 12)
	lines = []string{
		fmt.Sprintf("Seats      : %d x %s", receipt.NumberOfSeats, formatXOF(receipt.UnitPrice.StringFixed(0))),
		"Method     : " + string(receipt.PaymentMethod),
		"Reference  : " + receipt.TransactionID,
		"Paid       : " + receipt.PaidAt.Format("2006-01-02 15:04"),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Total: "+formatXOF(receipt.TotalPrice.StringFixed(0)))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Present this receipt to the driver at boarding. One receipt covers every seat of the booking.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func receiptNumber(bookingID string) string {
	id := strings.ReplaceAll(bookingID, "-", "")
	if len(id) > 10 {
		id = id[:10]
	}
	return "RCPT-" + strings.ToUpper(id)
}

func formatXOF(amount string) string {
	return amount + " XOF"
}

func safe(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
