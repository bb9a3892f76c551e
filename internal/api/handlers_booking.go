package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/export"
	"github.com/adiselav/CabanApp/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type availabilityResponse struct {
	CabinID  int64          `json:"cabin_id"`
	CheckIn  models.Date    `json:"check_in"`
	CheckOut models.Date    `json:"check_out"`
	Rooms    []*models.Room `json:"rooms"`
}

type stayQuery struct {
	checkIn  models.Date
	checkOut models.Date
	guests   int
}

func parseStayQuery(r *http.Request) (stayQuery, error) {
	var q stayQuery
	var err error
	if q.checkIn, err = queryDate(r, "check_in"); err != nil {
		return q, err
	}
	if q.checkOut, err = queryDate(r, "check_out"); err != nil {
		return q, err
	}
	if q.guests, err = queryInt(r, "guests"); err != nil {
		return q, err
	}
	return q, nil
}

func (s *HTTPServer) availableRooms(w http.ResponseWriter, r *http.Request) {
	cabinID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	q, err := parseStayQuery(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rooms, err := s.svc.Booking.CheckAvailability(r.Context(), cabinID, q.checkIn, q.checkOut, q.guests)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		CabinID:  cabinID,
		CheckIn:  q.checkIn,
		CheckOut: q.checkOut,
		Rooms:    rooms,
	})
}

func (s *HTTPServer) searchCabins(w http.ResponseWriter, r *http.Request) {
	q, err := parseStayQuery(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	results, err := s.svc.Booking.SearchCabins(r.Context(), q.checkIn, q.checkOut, r.URL.Query().Get("location"), q.guests)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cabins": results})
}

func (s *HTTPServer) createReservation(w http.ResponseWriter, r *http.Request) {
	var in domain.ReservationInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	reservation, err := s.svc.Booking.CreateReservation(r.Context(), caller(r), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

func (s *HTTPServer) getReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	reservation, err := s.svc.Booking.GetReservation(r.Context(), caller(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) updateReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var in domain.ReservationInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	reservation, err := s.svc.Booking.UpdateReservation(r.Context(), caller(r), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) cancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Booking.CancelReservation(r.Context(), caller(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) listMyReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := s.svc.Booking.ListUserReservations(r.Context(), caller(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeReservations(w, reservations)
}

func (s *HTTPServer) listAllReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := s.svc.Booking.ListAllReservations(r.Context(), caller(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeReservations(w, reservations)
}

func (s *HTTPServer) listCabinReservations(w http.ResponseWriter, r *http.Request) {
	cabinID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_, reservations, err := s.svc.Booking.ListCabinReservations(r.Context(), caller(r), cabinID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeReservations(w, reservations)
}

// exportCabinReservations renders the workbook fully before writing headers,
// so a rendering failure still produces a clean error response.
func (s *HTTPServer) exportCabinReservations(w http.ResponseWriter, r *http.Request) {
	cabinID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	cabin, reservations, err := s.svc.Booking.ListCabinReservations(r.Context(), caller(r), cabinID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.CabinReservations(&buf, cabin, reservations); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", contentDisposition(export.FileName(cabin, time.Now())))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Warn().Err(err).Int64("cabin_id", cabinID).Msg("Failed to stream export")
	}
}

func writeReservations(w http.ResponseWriter, reservations []*models.Reservation) {
	if reservations == nil {
		reservations = []*models.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}
