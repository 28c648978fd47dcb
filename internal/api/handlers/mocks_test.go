package handlers_test

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"github.com/repuestosv/api/internal/api/middleware"
	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/services"
	"github.com/repuestosv/api/internal/utils"
)

// newTestEngine builds a bare engine with the authenticated subject injected,
// bypassing JWT validation.
func newTestEngine(userID utils.SixID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID.String())
		c.Next()
	})
	return r
}

// --- Mocks for service interfaces used by the handlers ---

// MockCatalogService implements services.ICatalogService
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) GetBrands(ctx context.Context) ([]models.Brand, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Brand), args.Error(1)
}

func (m *MockCatalogService) GetModels(ctx context.Context, brandID utils.SixID) ([]models.CarModel, error) {
	args := m.Called(ctx, brandID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CarModel), args.Error(1)
}

func (m *MockCatalogService) GetYears(ctx context.Context) ([]models.Year, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Year), args.Error(1)
}

func (m *MockCatalogService) GetItemTypes(ctx context.Context) ([]models.ItemType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ItemType), args.Error(1)
}

func (m *MockCatalogService) GetParts(ctx context.Context, itemTypeID utils.SixID) ([]models.Part, error) {
	args := m.Called(ctx, itemTypeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Part), args.Error(1)
}

func (m *MockCatalogService) ValidateSignature(ctx context.Context, sig models.ItemSignature) error {
	args := m.Called(ctx, sig)
	return args.Error(0)
}

// MockSearchService implements services.ISearchService
type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) SearchBuy(ctx context.Context, requesterID utils.SixID, sig models.ItemSignature, detailsText string, page, pageSize int) (*services.BuyResult, error) {
	args := m.Called(ctx, requesterID, sig, detailsText, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BuyResult), args.Error(1)
}

func (m *MockSearchService) SearchSell(ctx context.Context, filter services.DemandFilter, page, pageSize int) (*services.SellResult, error) {
	args := m.Called(ctx, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SellResult), args.Error(1)
}

// MockListingService implements services.IListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) Create(ctx context.Context, sellerID utils.SixID, input services.CreateListingInput) (*models.Listing, error) {
	args := m.Called(ctx, sellerID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) SetStatus(ctx context.Context, listingID, callerID utils.SixID, nextStatus string) (*models.Listing, error) {
	args := m.Called(ctx, listingID, callerID, nextStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) SearchActive(ctx context.Context, sig models.ItemSignature, excludeSellerID *utils.SixID, page, pageSize int) ([]models.Listing, int64, error) {
	args := m.Called(ctx, sig, excludeSellerID, page, pageSize)
	var listings []models.Listing
	if args.Get(0) != nil {
		listings = args.Get(0).([]models.Listing)
	}
	return listings, args.Get(1).(int64), args.Error(2)
}

func (m *MockListingService) CountActiveBySeller(ctx context.Context, sig models.ItemSignature, sellerID utils.SixID) (int64, error) {
	args := m.Called(ctx, sig, sellerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockListingService) DeactivateAllForSeller(ctx context.Context, sellerID utils.SixID) (int64, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockListingService) AddPhoto(ctx context.Context, listingID, callerID utils.SixID, key string) error {
	args := m.Called(ctx, listingID, callerID, key)
	return args.Error(0)
}

func (m *MockListingService) SetPhotoProcessed(ctx context.Context, listingID utils.SixID, key, processedKey string) error {
	args := m.Called(ctx, listingID, key, processedKey)
	return args.Error(0)
}

// MockDemandService implements services.IDemandService
type MockDemandService struct {
	mock.Mock
}

func (m *MockDemandService) UpsertOnMiss(ctx context.Context, requesterID utils.SixID, sig models.ItemSignature, detailsText string) (string, *models.Demand, error) {
	args := m.Called(ctx, requesterID, sig, detailsText)
	var demand *models.Demand
	if args.Get(1) != nil {
		demand = args.Get(1).(*models.Demand)
	}
	return args.String(0), demand, args.Error(2)
}

func (m *MockDemandService) FindByID(ctx context.Context, demandID utils.SixID) (*models.Demand, error) {
	args := m.Called(ctx, demandID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Demand), args.Error(1)
}

func (m *MockDemandService) SearchOpen(ctx context.Context, filter services.DemandFilter, page, pageSize int) ([]models.Demand, int64, error) {
	args := m.Called(ctx, filter, page, pageSize)
	var demands []models.Demand
	if args.Get(0) != nil {
		demands = args.Get(0).([]models.Demand)
	}
	return demands, args.Get(1).(int64), args.Error(2)
}

func (m *MockDemandService) ListByRequester(ctx context.Context, requesterID utils.SixID) ([]models.Demand, error) {
	args := m.Called(ctx, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Demand), args.Error(1)
}

func (m *MockDemandService) CloseAllForRequester(ctx context.Context, requesterID utils.SixID) (int64, error) {
	args := m.Called(ctx, requesterID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDemandService) CloseStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	args := m.Called(ctx, maxAge)
	return args.Get(0).(int64), args.Error(1)
}

// MockProfileService implements services.IProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) GetOrCreate(ctx context.Context, userID utils.SixID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) GetStatus(ctx context.Context, userID utils.SixID) (*services.ProfileStatus, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProfileStatus), args.Error(1)
}

func (m *MockProfileService) SetWhatsapp(ctx context.Context, userID utils.SixID, raw string) (*services.ProfileStatus, error) {
	args := m.Called(ctx, userID, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProfileStatus), args.Error(1)
}

func (m *MockProfileService) StartVerification(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockProfileService) ConfirmVerification(ctx context.Context, userID utils.SixID, code string) (*services.ProfileStatus, error) {
	args := m.Called(ctx, userID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProfileStatus), args.Error(1)
}

func (m *MockProfileService) EnsureSeller(ctx context.Context, userID utils.SixID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockProfileService) DebitTokensIfEnough(ctx context.Context, userID utils.SixID, amount int) (bool, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockProfileService) CreditTokens(ctx context.Context, userID utils.SixID, amount int) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

func (m *MockProfileService) SetListingService(ls services.IListingService) {
	m.Called(ls)
}

func (m *MockProfileService) SetDemandService(ds services.IDemandService) {
	m.Called(ds)
}

// MockRevealService implements services.IRevealService
type MockRevealService struct {
	mock.Mock
}

func (m *MockRevealService) Reveal(ctx context.Context, requesterID utils.SixID, target services.RevealTarget) (*services.RevealResult, error) {
	args := m.Called(ctx, requesterID, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RevealResult), args.Error(1)
}

// MockS3Storage implements storage.IS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePhotoUploadURL(ctx context.Context, sellerID, listingID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, sellerID, listingID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

// MockTaskEnqueuer implements services.TaskEnqueuer
type MockTaskEnqueuer struct {
	mock.Mock
}

func (m *MockTaskEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// sometime ensures a non-zero timestamp in fixtures.
func sometime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}
