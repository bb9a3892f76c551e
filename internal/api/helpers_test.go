package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adiselav/CabanApp/internal/auth"
	"github.com/adiselav/CabanApp/internal/config"
	"github.com/adiselav/CabanApp/internal/database"
	"github.com/adiselav/CabanApp/internal/events"
	"github.com/adiselav/CabanApp/internal/models"
	"github.com/adiselav/CabanApp/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789"

var (
	ownerID    = models.Identity{UserID: 1, Email: "owner@example.ro", Role: models.RoleOwner}
	travelerID = models.Identity{UserID: 7, Email: "ana@example.ro", Role: models.RoleTraveler}
	strangerID = models.Identity{UserID: 8, Email: "ion@example.ro", Role: models.RoleTraveler}
	adminID    = models.Identity{UserID: 99, Email: "admin@example.ro", Role: models.RoleAdmin}
)

type apiFixture struct {
	t        *testing.T
	db       *database.DB
	verifier *auth.Verifier
	booking  *service.BookingService
	server   *HTTPServer
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		HTTP:      config.APIHTTPConfig{Enabled: true},
		GRPC:      config.APIGRPCConfig{Enabled: true},
		Auth:      config.APIAuthConfig{JWTSecret: testSecret, Issuer: "cabanapp"},
		RateLimit: config.APIRateLimitConfig{RPS: 1000, Burst: 1000},
	}
}

func newAPIFixture(t *testing.T, cfg config.APIConfig) *apiFixture {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	booking := service.NewBookingService(db, bus, nil, nil, config.BookingConfig{}, &logger)
	catalog := service.NewCatalogService(db, bus, nil, &logger)
	reviews := service.NewReviewService(db, db, bus, config.ReviewsConfig{}, &logger)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	srv := NewHTTPServer(cfg, Services{
		Booking: booking,
		Catalog: catalog,
		Reviews: reviews,
		Health:  db,
	}, verifier, &logger)

	return &apiFixture{t: t, db: db, verifier: verifier, booking: booking, server: srv}
}

func (f *apiFixture) token(id models.Identity) string {
	f.t.Helper()
	token, err := f.verifier.Issue(id, time.Hour)
	require.NoError(f.t, err)
	return token
}

// do sends a request as id; a zero identity sends no Authorization header.
func (f *apiFixture) do(id models.Identity, method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id.UserID != 0 {
		req.Header.Set("Authorization", "Bearer "+f.token(id))
	}

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}

type cabinJSON struct {
	ID           int64   `json:"id"`
	OwnerID      int64   `json:"owner_id"`
	Name         string  `json:"name"`
	ScoreAverage float64 `json:"score_average"`
	ReviewCount  int     `json:"review_count"`
}

type roomJSON struct {
	ID            int64  `json:"id"`
	CabinID       int64  `json:"cabin_id"`
	Number        int    `json:"number"`
	Capacity      int    `json:"capacity"`
	PricePerNight string `json:"price_per_night"`
}

type reservationJSON struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	CheckIn    string     `json:"check_in"`
	CheckOut   string     `json:"check_out"`
	GuestCount int        `json:"guest_count"`
	TotalPrice string     `json:"total_price"`
	Rooms      []roomJSON `json:"rooms"`
}

// seedCabin creates a cabin owned by ownerID with one room per price.
func (f *apiFixture) seedCabin(name string, prices ...string) (cabinJSON, []roomJSON) {
	f.t.Helper()

	rec := f.do(ownerID, http.MethodPost, "/api/v1/cabins", map[string]any{
		"name":          name,
		"location":      "Bucegi",
		"altitude":      2000,
		"contact_email": "cabana@example.ro",
		"contact_phone": "0722123456",
	})
	requireStatus(f.t, rec, http.StatusCreated)
	cabin := decode[cabinJSON](f.t, rec)

	rooms := make([]roomJSON, 0, len(prices))
	for i, price := range prices {
		rec := f.do(ownerID, http.MethodPost, "/api/v1/cabins/"+itoa(cabin.ID)+"/rooms", map[string]any{
			"number":          i + 1,
			"capacity":        2,
			"price_per_night": price,
		})
		requireStatus(f.t, rec, http.StatusCreated)
		rooms = append(rooms, decode[roomJSON](f.t, rec))
	}
	return cabin, rooms
}

func stayBody(checkIn, checkOut string, guests int, rooms ...roomJSON) map[string]any {
	ids := make([]int64, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	return map[string]any{
		"check_in":    checkIn,
		"check_out":   checkOut,
		"guest_count": guests,
		"room_ids":    ids,
	}
}

func newRequest(method, path, authorization string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func withToken(f *apiFixture, req *http.Request, id models.Identity) *http.Request {
	req.Header.Set("Authorization", "Bearer "+f.token(id))
	return req
}

func serve(f *apiFixture, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func configRate(rps float64, burst int) config.APIRateLimitConfig {
	return config.APIRateLimitConfig{RPS: rps, Burst: burst}
}
