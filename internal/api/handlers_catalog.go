package api

import (
	"net/http"

	"github.com/adiselav/CabanApp/internal/auth"
	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/models"
)

func caller(r *http.Request) models.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

func (s *HTTPServer) listCabins(w http.ResponseWriter, r *http.Request) {
	cabins, err := s.svc.Catalog.ListCabins(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if cabins == nil {
		cabins = []*models.Cabin{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cabins": cabins})
}

func (s *HTTPServer) getCabin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	cabin, err := s.svc.Catalog.GetCabin(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cabin)
}

func (s *HTTPServer) createCabin(w http.ResponseWriter, r *http.Request) {
	var in domain.CabinInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	cabin, err := s.svc.Catalog.CreateCabin(r.Context(), caller(r), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cabin)
}

func (s *HTTPServer) updateCabin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var in domain.CabinInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	cabin, err := s.svc.Catalog.UpdateCabin(r.Context(), caller(r), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cabin)
}

func (s *HTTPServer) deleteCabin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Catalog.DeleteCabin(r.Context(), caller(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) listRooms(w http.ResponseWriter, r *http.Request) {
	cabinID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rooms, err := s.svc.Catalog.ListRooms(r.Context(), cabinID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *HTTPServer) createRoom(w http.ResponseWriter, r *http.Request) {
	cabinID, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var in domain.RoomInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	room, err := s.svc.Catalog.CreateRoom(r.Context(), caller(r), cabinID, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *HTTPServer) getRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	room, err := s.svc.Catalog.GetRoom(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) updateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var in domain.RoomInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	room, err := s.svc.Catalog.UpdateRoom(r.Context(), caller(r), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Catalog.DeleteRoom(r.Context(), caller(r), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
