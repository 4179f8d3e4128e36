package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/tailorly/marketplace-backend/internal/config"
	"github.com/tailorly/marketplace-backend/internal/database"
	"github.com/tailorly/marketplace-backend/internal/geo"
	"github.com/tailorly/marketplace-backend/internal/i18n"
	"github.com/tailorly/marketplace-backend/internal/services"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

type stubGateway struct {
	mu       sync.Mutex
	sessions map[string]*services.CheckoutSession
	err      error
}

func (g *stubGateway) CreateCheckoutSession(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	id := fmt.Sprintf("cs_test_%d", len(g.sessions)+1)
	s := &services.CheckoutSession{ID: id, URL: "https://checkout.example/" + id, BookingID: req.BookingID}
	g.sessions[id] = s
	copied := *s
	return &copied, nil
}

func (g *stubGateway) GetCheckoutSession(ctx context.Context, id string) (*services.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	copied := *s
	return &copied, nil
}

func (g *stubGateway) ParseWebhook(payload []byte, signature string) (*services.WebhookEvent, error) {
	if signature != "valid" {
		return nil, errors.New("signature mismatch")
	}
	return &services.WebhookEvent{ID: "evt", Type: "ping"}, nil
}

func (g *stubGateway) markPaid(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[id].Paid = true
}

type discardStore struct{}

func (discardStore) UploadFile(ctx context.Context, file multipart.File, header *multipart.FileHeader, options services.UploadOptions) (*services.UploadResult, error) {
	key := options.Folder + "/" + uuid.NewString() + ".png"
	return &services.UploadResult{URL: "/uploads/" + key, Key: key, Size: header.Size}, nil
}

func (discardStore) DeleteFile(ctx context.Context, key string) error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Error   *utils.APIError `json:"error"`
}

type routerSuite struct {
	suite.Suite
	db      *gorm.DB
	gateway *stubGateway
	engine  *gin.Engine
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(routerSuite))
}

func (s *routerSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(i18n.Initialize())
}

func (s *routerSuite) SetupTest() {
	cfg := &config.Config{
		Environment: "test",
		Database: config.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
			LogLevel:   "silent",
		},
		JWT:      config.JWTConfig{SecretKey: "router-test-secret"},
		Payment:  config.PaymentConfig{Currency: "inr", MinimumAmount: 0.5, TimeoutSeconds: 5},
		Search:   config.SearchConfig{GeoDistanceMode: "auto", DefaultRadiusKm: 10},
		Upload:   config.UploadConfig{MaxServiceImages: 3, MaxReviewImages: 3, MaxFileSizeMB: 1},
		Frontend: config.FrontendConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		AWS:      config.AWSConfig{AccessKeyID: "unused"},
	}

	db, err := database.Initialize(cfg.Database)
	s.Require().NoError(err)
	s.Require().NoError(database.RunMigrations(db))
	s.Require().NoError(database.SeedInitialData(db))
	s.T().Cleanup(func() { database.Close(db) })

	strategy, err := geo.New(cfg.GeoMode())
	s.Require().NoError(err)

	s.db = db
	s.gateway = &stubGateway{sessions: map[string]*services.CheckoutSession{}}
	s.engine = Initialize(Dependencies{
		DB:      db,
		Config:  cfg,
		Gateway: s.gateway,
		Storage: discardStore{},
		Geo:     strategy,
	})
}

func (s *routerSuite) token(username, role string) string {
	token, err := utils.GenerateJWT(uuid.New(), username, username+"@example.com", role, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *routerSuite) do(method, path, token string, body interface{}, headers ...string) (int, envelope) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (s *routerSuite) decode(raw json.RawMessage, v interface{}) {
	s.Require().NoError(json.Unmarshal(raw, v))
}

func (s *routerSuite) requireError(code int, env envelope, wantStatus int, wantCode string) {
	s.Require().Equal(wantStatus, code)
	s.Require().NotNil(env.Error)
	s.Equal(wantCode, env.Error.Code)
}

func (s *routerSuite) TestHealth() {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "healthy")
}

func (s *routerSuite) TestAuthentication() {
	code, env := s.do(http.MethodGet, "/me", "", nil)
	s.requireError(code, env, http.StatusUnauthorized, "UNAUTHORIZED")

	code, env = s.do(http.MethodGet, "/me", "not-a-jwt", nil)
	s.requireError(code, env, http.StatusUnauthorized, "UNAUTHORIZED")

	token := s.token("meera", "tailor")
	for _, prefix := range []string{"", "/api/v1"} {
		code, env = s.do(http.MethodGet, prefix+"/me", token, nil)
		s.Require().Equal(http.StatusOK, code)
		var me struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		}
		s.decode(env.Data, &me)
		s.Equal("meera", me.Username)
		s.Equal("tailor", me.Role)
	}
}

func (s *routerSuite) TestPublicCatalogue() {
	code, env := s.do(http.MethodGet, "/specializations", "", nil)
	s.Require().Equal(http.StatusOK, code)
	var specs []struct {
		Slug string `json:"slug"`
	}
	s.decode(env.Data, &specs)
	s.Len(specs, len(database.DefaultSpecializations))

	code, env = s.do(http.MethodGet, "/tailors/nobody", "", nil)
	s.requireError(code, env, http.StatusNotFound, "NOT_FOUND")
	s.Equal("Tailor not found", env.Error.Message)

	code, env = s.do(http.MethodGet, "/tailors?lat=12.9", "", nil)
	s.requireError(code, env, http.StatusBadRequest, "INVALID_INPUT")
}

func (s *routerSuite) TestLocalizedErrors() {
	customer := s.token("ravi", "customer")
	path := "/bookings/" + uuid.NewString()

	code, env := s.do(http.MethodGet, path, customer, nil, "Accept-Language", "hi-IN,hi;q=0.9")
	s.requireError(code, env, http.StatusNotFound, "NOT_FOUND")
	s.Equal("बुकिंग नहीं मिली", env.Error.Message)

	code, env = s.do(http.MethodGet, path, customer, nil, "Accept-Language", "fr-FR")
	s.requireError(code, env, http.StatusNotFound, "NOT_FOUND")
	s.Equal("Booking not found", env.Error.Message)

	// A malformed id is simply not found.
	code, env = s.do(http.MethodGet, "/bookings/not-a-uuid", customer, nil)
	s.requireError(code, env, http.StatusNotFound, "NOT_FOUND")
}

type bookingBody struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	PriceSnapshot float64 `json:"price_snapshot"`
	ServiceName   string  `json:"service_name"`
}

func (s *routerSuite) TestBookingJourney() {
	tailor := s.token("meera", "tailor")
	customer := s.token("ravi", "customer")
	stranger := s.token("anu", "customer")

	code, env := s.do(http.MethodPatch, "/tailors/me", tailor, gin.H{
		"bio":             "Bridal specialist",
		"specializations": []string{"Blouse Tailoring"},
	})
	s.Require().Equal(http.StatusOK, code, env.Error)

	code, env = s.do(http.MethodPost, "/tailors/me/services", tailor, gin.H{
		"name": "Designer Blouse Tailoring", "price": 850, "duration_days": 5,
	})
	s.Require().Equal(http.StatusCreated, code)
	var service struct {
		ID string `json:"id"`
	}
	s.decode(env.Data, &service)

	code, env = s.do(http.MethodPost, "/bookings", customer, gin.H{"service": service.ID, "pickup_date": "01/02/2026"})
	s.requireError(code, env, http.StatusBadRequest, "INVALID_INPUT")

	code, env = s.do(http.MethodPost, "/bookings", customer, gin.H{
		"service": service.ID, "pickup_date": time.Now().UTC().Format("2006-01-02"),
	})
	s.Require().Equal(http.StatusCreated, code)
	var booking bookingBody
	s.decode(env.Data, &booking)
	s.Equal("pending", booking.Status)
	s.Equal(850.0, booking.PriceSnapshot)
	s.Equal("Designer Blouse Tailoring", booking.ServiceName)
	base := "/api/v1/bookings/" + booking.ID

	code, env = s.do(http.MethodPost, base+"/status", customer, gin.H{"status": "shipped"})
	s.requireError(code, env, http.StatusBadRequest, "INVALID_INPUT")

	code, env = s.do(http.MethodPost, base+"/status", stranger, gin.H{"status": "cancelled"})
	s.requireError(code, env, http.StatusForbidden, "PERMISSION_DENIED")

	code, env = s.do(http.MethodPost, base+"/status", customer, gin.H{"status": "accepted"})
	s.requireError(code, env, http.StatusConflict, "INVALID_TRANSITION")

	code, _ = s.do(http.MethodPost, base+"/status", tailor, gin.H{"status": "accepted"})
	s.Require().Equal(http.StatusOK, code)

	code, env = s.do(http.MethodPost, base+"/status", tailor, gin.H{"status": "pickup_ready"})
	s.requireError(code, env, http.StatusConflict, "INVALID_STATE")

	code, env = s.do(http.MethodPost, base+"/payment", customer, nil)
	s.Require().Equal(http.StatusOK, code)
	var payment struct {
		CheckoutURL string  `json:"checkout_url"`
		SessionID   string  `json:"session_id"`
		Amount      float64 `json:"amount"`
	}
	s.decode(env.Data, &payment)
	s.NotEmpty(payment.CheckoutURL)
	s.Equal(850.0, payment.Amount)

	code, env = s.do(http.MethodPost, base+"/mark-paid", customer, gin.H{"session_id": payment.SessionID})
	s.requireError(code, env, http.StatusPaymentRequired, "PAYMENT_NOT_CONFIRMED")

	s.gateway.markPaid(payment.SessionID)
	code, env = s.do(http.MethodPost, base+"/mark-paid", customer, gin.H{"session_id": payment.SessionID})
	s.Require().Equal(http.StatusOK, code)
	s.decode(env.Data, &booking)
	s.Equal("paid", booking.PaymentStatus)

	for _, status := range []string{"pickup_ready", "picked_up", "completed"} {
		code, env = s.do(http.MethodPost, base+"/status", tailor, gin.H{"status": status})
		s.Require().Equal(http.StatusOK, code, status)
	}

	code, env = s.do(http.MethodPost, "/reviews", customer, gin.H{"booking": booking.ID, "rating": 4, "comment": "Lovely fit"})
	s.Require().Equal(http.StatusCreated, code)

	code, env = s.do(http.MethodPost, "/reviews", customer, gin.H{"booking": booking.ID, "rating": 5})
	s.requireError(code, env, http.StatusConflict, "CONFLICT")

	code, env = s.do(http.MethodGet, "/tailors?specialization=blouse-tailoring", "", nil)
	s.Require().Equal(http.StatusOK, code)
	var results []struct {
		Username       string  `json:"username"`
		AvgRating      float64 `json:"avg_rating"`
		TotalReviews   int64   `json:"total_reviews"`
		MatchedService *struct {
			Name string `json:"name"`
		} `json:"matched_service"`
	}
	s.decode(env.Data, &results)
	s.Require().Len(results, 1)
	s.Equal("meera", results[0].Username)
	s.Equal(4.0, results[0].AvgRating)
	s.EqualValues(1, results[0].TotalReviews)
	s.Require().NotNil(results[0].MatchedService)
	s.Equal("Designer Blouse Tailoring", results[0].MatchedService.Name)

	code, env = s.do(http.MethodGet, base+"/history", customer, nil)
	s.Require().Equal(http.StatusOK, code)
	var history []struct {
		ToStatus string `json:"to_status"`
	}
	s.decode(env.Data, &history)
	s.Len(history, 4)
}

func (s *routerSuite) TestGatewayFailureIsBadGateway() {
	tailor := s.token("meera", "tailor")
	customer := s.token("ravi", "customer")

	_, env := s.do(http.MethodPost, "/tailors/me/services", tailor, gin.H{"name": "Kurti", "price": 400, "duration_days": 2})
	var service struct {
		ID string `json:"id"`
	}
	s.decode(env.Data, &service)
	_, env = s.do(http.MethodPost, "/bookings", customer, gin.H{
		"service": service.ID, "pickup_date": time.Now().UTC().Format("2006-01-02"),
	})
	var booking bookingBody
	s.decode(env.Data, &booking)
	code, _ := s.do(http.MethodPost, "/bookings/"+booking.ID+"/status", tailor, gin.H{"status": "accepted"})
	s.Require().Equal(http.StatusOK, code)

	s.gateway.err = errors.New("stripe down")
	code, env = s.do(http.MethodPost, "/bookings/"+booking.ID+"/payment", customer, nil)
	s.requireError(code, env, http.StatusBadGateway, "GATEWAY_ERROR")
}

func (s *routerSuite) TestWebhookSignature() {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("Stripe-Signature", "forged")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("Stripe-Signature", "valid")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)
}

func (s *routerSuite) TestServiceImageUpload() {
	tailor := s.token("meera", "tailor")
	_, env := s.do(http.MethodPost, "/tailors/me/services", tailor, gin.H{"name": "Lehenga", "price": 3000, "duration_days": 10})
	var service struct {
		ID string `json:"id"`
	}
	s.decode(env.Data, &service)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i := 0; i < 2; i++ {
		part, err := mw.CreateFormFile("images", fmt.Sprintf("look%d.png", i))
		s.Require().NoError(err)
		_, err = part.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n', 0, 0, 0, 0})
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/tailors/me/services/"+service.ID+"/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tailor)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var resp envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	var withImages struct {
		Images []struct {
			Position int `json:"position"`
		} `json:"images"`
	}
	s.decode(resp.Data, &withImages)
	s.Len(withImages.Images, 2)
}
