package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"crowdmeter/internal/app"
	"crowdmeter/internal/domain"
)

type Handlers struct {
	Q *app.SearchService
	C *app.CommandService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/venues/search", h.searchVenues)
	s.mux.Put("/v1/venues/{id}/status", h.reportStatus)
	s.mux.Get("/v1/venues/{id}/features/{feature}", h.featureEnabled)
	s.mux.Post("/v1/push/subscriptions", h.subscribe)
	s.mux.Delete("/v1/push/subscriptions", h.unsubscribe)
	s.mux.Post("/v1/reservations", h.createReservation)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// ---- search ----

type searchItem struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	Status    string     `json:"status,omitempty"`
	Lat       *float64   `json:"lat,omitempty"`
	Lng       *float64   `json:"lng,omitempty"`
	DistanceM *int       `json:"distance_m,omitempty"`
	IconURL   *string    `json:"icon_url,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type searchResponse struct {
	Items   []searchItem `json:"items"`
	Total   int          `json:"total"`
	Message string       `json:"message"`
}

func (h *Handlers) searchVenues(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	var q domain.SearchQuery

	if v := qs.Get("category"); v != "" {
		q.Category = &v
	}
	if v := qs.Get("status"); v != "" {
		st, err := domain.ParseStatus(v)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		q.Status = &st
	}

	latS, lngS := qs.Get("lat"), qs.Get("lng")
	if latS != "" || lngS != "" {
		lat, err1 := strconv.ParseFloat(latS, 64)
		lng, err2 := strconv.ParseFloat(lngS, 64)
		if err1 != nil || err2 != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Request", "lat and lng must both be valid decimal degrees")
			return
		}
		q.Origin = &domain.Coords{Lat: lat, Lng: lng}
	}
	if v := qs.Get("radius_km"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Request", "radius_km must be a number")
			return
		}
		q.RadiusKm = &f
	}

	page, err := h.Q.Search(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := searchResponse{
		Items:   make([]searchItem, 0, len(page.Items)),
		Total:   page.Total,
		Message: fmt.Sprintf("%d件の店舗が見つかりました", page.Total),
	}
	for _, it := range page.Items {
		si := searchItem{
			ID:        it.Venue.ID,
			Name:      it.Venue.Name,
			Category:  it.Venue.Category,
			Status:    string(it.Status),
			DistanceM: it.DistanceM,
			IconURL:   it.Venue.IconURL,
			UpdatedAt: it.UpdatedAt,
		}
		if it.Venue.Coords != nil {
			si.Lat, si.Lng = &it.Venue.Coords.Lat, &it.Venue.Coords.Lng
		}
		resp.Items = append(resp.Items, si)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- status report ----

type reportStatusRequest struct {
	Status string `json:"status"`
}

type availabilityResponse struct {
	VenueID   int64     `json:"venue_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Handlers) reportStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "identity headers missing")
		return
	}
	venueID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "venue id must be a number")
		return
	}
	var req reportStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}

	rec, err := h.C.ReportStatus(r.Context(), id, venueID, req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		VenueID:   rec.VenueID,
		Status:    string(rec.Status),
		UpdatedAt: rec.UpdatedAt,
	})
}

// ---- feature flags ----

func (h *Handlers) featureEnabled(w http.ResponseWriter, r *http.Request) {
	venueID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "venue id must be a number")
		return
	}
	enabled, err := h.Q.FeatureEnabled(r.Context(), venueID, chi.URLParam(r, "feature"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// ---- push subscriptions ----

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (h *Handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	id, _ := identityFrom(r) // anonymous subscriptions are fine
	if err := h.C.Subscribe(r.Context(), id, req.Endpoint, req.Keys.P256dh, req.Keys.Auth); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r)
	if err := h.C.Unsubscribe(r.Context(), id, r.URL.Query().Get("endpoint")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- reservations ----

type createReservationRequest struct {
	VenueID   int64   `json:"venue_id"`
	PartySize int     `json:"party_size"`
	ArrivalAt string  `json:"arrival_at"` // RFC 3339
	Contact   *string `json:"contact,omitempty"`
}

type reservationResponse struct {
	ID        string    `json:"id"`
	VenueID   int64     `json:"venue_id"`
	PartySize int       `json:"party_size"`
	ArrivalAt time.Time `json:"arrival_at"`
}

func (h *Handlers) createReservation(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	arrival, err := time.Parse(time.RFC3339, req.ArrivalAt)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "arrival_at must be RFC 3339")
		return
	}

	res, err := h.C.CreateReservation(r.Context(), req.VenueID, req.PartySize, arrival, req.Contact)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationResponse{
		ID:        res.ID,
		VenueID:   res.VenueID,
		PartySize: res.PartySize,
		ArrivalAt: res.ArrivalAt,
	})
}
