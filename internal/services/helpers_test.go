package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/tailorly/marketplace-backend/internal/config"
	"github.com/tailorly/marketplace-backend/internal/database"
	"github.com/tailorly/marketplace-backend/internal/geo"
	"github.com/tailorly/marketplace-backend/internal/models"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n', 0, 0, 0, 0}

// fakeGateway is an in-memory checkout provider.
type fakeGateway struct {
	mu       sync.Mutex
	sessions map[string]*CheckoutSession
	created  []CheckoutRequest
	gets     int
	err      error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*CheckoutSession{}}
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, req)
	id := fmt.Sprintf("cs_test_%d", len(g.created))
	s := &CheckoutSession{
		ID:          id,
		URL:         "https://checkout.example/" + id,
		BookingID:   req.BookingID,
		AmountTotal: ToMinorUnits(req.Amount),
	}
	g.sessions[id] = s
	copied := *s
	return &copied, nil
}

func (g *fakeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gets++
	if g.err != nil {
		return nil, g.err
	}
	s, ok := g.sessions[sessionID]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	copied := *s
	return &copied, nil
}

// ParseWebhook accepts {"id","type","session_id"} signed with "valid".
func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if signature != "valid" {
		return nil, errors.New("signature mismatch")
	}
	var body struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	event := &WebhookEvent{ID: body.ID, Type: body.Type}
	if body.Type == eventCheckoutCompleted {
		g.mu.Lock()
		s, ok := g.sessions[body.SessionID]
		g.mu.Unlock()
		if ok {
			copied := *s
			event.Session = &copied
		}
	}
	return event, nil
}

func (g *fakeGateway) markPaid(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[sessionID].Paid = true
}

// memoryStore keeps uploads in a map.
type memoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: map[string][]byte{}}
}

func (m *memoryStore) UploadFile(ctx context.Context, file multipart.File, header *multipart.FileHeader, options UploadOptions) (*UploadResult, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if !isValidImageType(data) {
		return nil, newError(KindInvalidInput, "upload.invalid_image", "invalid image file")
	}
	key := options.Folder + "/" + uuid.NewString() + ".png"
	m.mu.Lock()
	m.files[key] = data
	m.mu.Unlock()
	return &UploadResult{URL: "/uploads/" + key, Key: key, Size: int64(len(data)), MimeType: "image/png"}, nil
}

func (m *memoryStore) DeleteFile(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.files, key)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Database: config.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
			LogLevel:   "silent",
		},
		Payment: config.PaymentConfig{
			Currency:       "inr",
			MinimumAmount:  0.50,
			SuccessURL:     "http://localhost:5173/payment/success?booking={BOOKING_ID}&session_id={CHECKOUT_SESSION_ID}",
			CancelURL:      "http://localhost:5173/bookings/{BOOKING_ID}",
			TimeoutSeconds: 5,
		},
		Search: config.SearchConfig{
			GeoDistanceMode: "auto",
			DefaultRadiusKm: 10,
		},
		Upload: config.UploadConfig{
			MaxServiceImages: 3,
			MaxReviewImages:  2,
			MaxFileSizeMB:    1,
		},
	}
}

func openTestDB(t *testing.T, cfg *config.Config) *gorm.DB {
	t.Helper()
	db, err := database.Initialize(cfg.Database)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}

// fileHeaders builds n parsed multipart PNG uploads under field "images".
func fileHeaders(t *testing.T, n int, content []byte) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for i := 0; i < n; i++ {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="img%d.png"`, i))
		h.Set("Content-Type", "image/png")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["images"]
}

// serviceSuite wires every service against a fresh in-memory database.
type serviceSuite struct {
	suite.Suite
	ctx       context.Context
	cfg       *config.Config
	db        *gorm.DB
	gateway   *fakeGateway
	store     *memoryStore
	accounts  *AccountService
	providers *ProviderService
	bookings  *BookingService
	reviews   *ReviewService
	search    *SearchService
}

func (s *serviceSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = testConfig()
	s.db = openTestDB(s.T(), s.cfg)
	s.gateway = newFakeGateway()
	s.store = newMemoryStore()

	strategy, err := geo.New(s.cfg.GeoMode())
	s.Require().NoError(err)

	s.accounts = NewAccountService(s.db)
	s.providers = NewProviderService(s.db, s.store, s.cfg)
	s.bookings = NewBookingService(s.db, s.gateway, s.cfg)
	s.reviews = NewReviewService(s.db, NewRatingAggregator(), s.store, s.cfg)
	s.search = NewSearchService(s.db, strategy, nil, s.cfg)
}

func (s *serviceSuite) customer(username string) *models.Account {
	acc, err := s.accounts.Sync(s.ctx, Identity{ID: uuid.New(), Username: username, Role: "customer"})
	s.Require().NoError(err)
	return acc
}

func (s *serviceSuite) tailor(username string, loc *geo.Point) *models.Account {
	acc, err := s.accounts.Sync(s.ctx, Identity{ID: uuid.New(), Username: username, Role: "tailor"})
	s.Require().NoError(err)
	if loc != nil {
		acc, err = s.accounts.UpdateMe(s.ctx, acc, &UpdateAccountRequest{Latitude: &loc.Lat, Longitude: &loc.Lng})
		s.Require().NoError(err)
	}
	return acc
}

func (s *serviceSuite) offer(tailor *models.Account, name string, price float64, days int) *models.Service {
	svc, err := s.providers.CreateService(s.ctx, tailor, &ServiceRequest{
		Name:         &name,
		Price:        &price,
		DurationDays: &days,
	})
	s.Require().NoError(err)
	return svc
}

func (s *serviceSuite) book(customer *models.Account, svc *models.Service) *BookingView {
	view, err := s.bookings.CreateBooking(s.ctx, customer, &CreateBookingRequest{
		ServiceID:  svc.ID.String(),
		PickupDate: time.Now().UTC().Format("2006-01-02"),
	})
	s.Require().NoError(err)
	return view
}

func (s *serviceSuite) move(b *BookingView, actor uuid.UUID, to models.BookingStatus) {
	_, err := s.bookings.AttemptTransition(s.ctx, b.ID, actor, string(to))
	s.Require().NoError(err)
}

func (s *serviceSuite) pay(b *BookingView) {
	session, err := s.bookings.InitiatePayment(s.ctx, b.ID, b.CustomerID)
	s.Require().NoError(err)
	s.gateway.markPaid(session.SessionID)
	_, err = s.bookings.ConfirmPayment(s.ctx, b.ID, b.CustomerID, session.SessionID)
	s.Require().NoError(err)
}

// completed drives a fresh booking through the whole lifecycle.
func (s *serviceSuite) completed(customer *models.Account, svc *models.Service) *BookingView {
	b := s.book(customer, svc)
	s.move(b, b.ProviderAccountID, models.BookingStatusAccepted)
	s.pay(b)
	s.move(b, b.ProviderAccountID, models.BookingStatusPickupReady)
	s.move(b, b.ProviderAccountID, models.BookingStatusPickedUp)
	s.move(b, b.ProviderAccountID, models.BookingStatusCompleted)
	return b
}

func (s *serviceSuite) reload(id uuid.UUID) models.Booking {
	var b models.Booking
	s.Require().NoError(s.db.First(&b, "id = ?", id).Error)
	return b
}

func (s *serviceSuite) requireKind(err error, kind ErrorKind) {
	s.Require().Error(err)
	s.Equal(kind, KindOf(err), "unexpected error: %v", err)
}

func defaultPage() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20}
}
