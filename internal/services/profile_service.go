package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/repuestosv/api/internal/auth"
	"github.com/repuestosv/api/internal/config"
	"github.com/repuestosv/api/internal/db"
	"github.com/repuestosv/api/internal/models"
	"github.com/repuestosv/api/internal/ratelimit"
	"github.com/repuestosv/api/internal/utils"
)

// TaskTypeCodeDelivery is the asynq task type for WhatsApp verification code
// delivery. Declared here rather than in the tasks package because services
// enqueue it and tasks already imports services.
const TaskTypeCodeDelivery = "whatsapp:code:deliver"

// CodeDeliveryPayload is the payload of a TaskTypeCodeDelivery task.
type CodeDeliveryPayload struct {
	To   string `json:"to"`
	Code string `json:"code"`
}

// TaskEnqueuer is the slice of *asynq.Client the services need.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ProfileStatus is the completeness summary returned to the client.
type ProfileStatus struct {
	Role            string  `json:"role"`
	Tokens          int     `json:"tokens"`
	WhatsappE164    *string `json:"whatsappE164"`
	WhatsappStatus  string  `json:"whatsappStatus"`
	ProfileComplete bool    `json:"profileComplete"`
}

// IProfileService manages the marketplace-side user record: contact channel,
// role and token balance.
type IProfileService interface {
	GetOrCreate(ctx context.Context, userID utils.SixID) (*models.Profile, error)
	GetStatus(ctx context.Context, userID utils.SixID) (*ProfileStatus, error)
	// SetWhatsapp sets the contact number from raw user input, or clears it
	// when raw is empty. Clearing cascades: every active listing of the user
	// is deactivated and every open demand closed.
	SetWhatsapp(ctx context.Context, userID utils.SixID, raw string) (*ProfileStatus, error)
	StartVerification(ctx context.Context, userID utils.SixID) error
	ConfirmVerification(ctx context.Context, userID utils.SixID, code string) (*ProfileStatus, error)
	// EnsureSeller upgrades the role to seller. Never downgrades.
	EnsureSeller(ctx context.Context, userID utils.SixID) error
	// DebitTokensIfEnough atomically deducts amount when the balance covers
	// it. Returns false without mutating anything otherwise.
	DebitTokensIfEnough(ctx context.Context, userID utils.SixID, amount int) (bool, error)
	CreditTokens(ctx context.Context, userID utils.SixID, amount int) error

	SetListingService(ls IListingService)
	SetDemandService(ds IDemandService)
}

const profilesCollection = "profiles"

type profileService struct {
	db         *mongo.Database
	cfg        *config.Config
	limiter    ratelimit.Limiter
	taskClient TaskEnqueuer

	// Set after construction to break the profile<->listing/demand cycle.
	listingService IListingService
	demandService  IDemandService
}

// NewProfileService creates a new ProfileService. The listing and demand
// services must be injected via the setters before SetWhatsapp is used.
func NewProfileService(database *mongo.Database, cfg *config.Config, limiter ratelimit.Limiter, taskClient TaskEnqueuer) IProfileService {
	return &profileService{db: database, cfg: cfg, limiter: limiter, taskClient: taskClient}
}

func (s *profileService) SetListingService(ls IListingService) {
	s.listingService = ls
}

func (s *profileService) SetDemandService(ds IDemandService) {
	s.demandService = ds
}

// GetOrCreate returns the profile for userID, creating it with the signup
// token grant on first contact. The upsert makes concurrent first requests
// converge on one document.
func (s *profileService) GetOrCreate(ctx context.Context, userID utils.SixID) (*models.Profile, error) {
	collection := s.db.Collection(profilesCollection)
	now := time.Now().UTC()

	filter := bson.M{"_id": userID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"role":       models.RoleBuyer,
			"tokens":     s.cfg.SignupTokenGrant,
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var profile models.Profile
	if err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&profile); err != nil {
		return nil, fmt.Errorf("error upserting profile %s: %w", userID.String(), err)
	}
	return &profile, nil
}

func (s *profileService) GetStatus(ctx context.Context, userID utils.SixID) (*ProfileStatus, error) {
	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return statusOf(profile), nil
}

func statusOf(p *models.Profile) *ProfileStatus {
	st := &ProfileStatus{
		Role:            p.Role,
		Tokens:          p.Tokens,
		WhatsappStatus:  p.WhatsappStatus(),
		ProfileComplete: p.Complete(),
	}
	if p.Whatsapp != nil && p.Whatsapp.NumberE164 != "" {
		st.WhatsappE164 = &p.Whatsapp.NumberE164
	}
	return st
}

func (s *profileService) SetWhatsapp(ctx context.Context, userID utils.SixID, raw string) (*ProfileStatus, error) {
	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	collection := s.db.Collection(profilesCollection)
	now := time.Now().UTC()

	if raw == "" {
		return s.clearWhatsapp(ctx, profile, now)
	}

	normalized, err := utils.NormalizeE164(raw, s.cfg.DefaultCountryCode, s.cfg.LocalNumberDigits)
	if err != nil {
		return nil, ErrInvalidWhatsapp
	}

	// Setting the same number again is a no-op; verification state survives.
	if profile.Whatsapp != nil && profile.Whatsapp.NumberE164 == normalized {
		return statusOf(profile), nil
	}

	// Pre-check for a friendlier failure; the unique index is the arbiter.
	count, err := collection.CountDocuments(ctx, bson.M{
		"whatsapp.number_e164": normalized,
		"_id":                  bson.M{"$ne": userID},
	})
	if err != nil {
		return nil, fmt.Errorf("error checking whatsapp uniqueness: %w", err)
	}
	if count > 0 {
		return nil, ErrWhatsappInUse
	}

	wasComplete := profile.Complete()

	update := bson.M{
		"$set": bson.M{
			"whatsapp":   &models.WhatsappContact{NumberE164: normalized},
			"updated_at": now,
		},
	}
	if _, err := collection.UpdateByID(ctx, userID, update); err != nil {
		if db.IsDuplicateKeyOnIndex(err, db.IdxProfileWhatsapp) {
			return nil, ErrWhatsappInUse
		}
		return nil, fmt.Errorf("error setting whatsapp for %s: %w", userID.String(), err)
	}

	// A replacement number starts unverified, so anything published against
	// the old verified contact leaves the feeds until re-verification.
	if wasComplete {
		if err := s.cascadeContactLoss(ctx, profile.ID); err != nil {
			return nil, err
		}
	}

	profile.Whatsapp = &models.WhatsappContact{NumberE164: normalized}
	return statusOf(profile), nil
}

// clearWhatsapp removes the contact and cascades. A user without a reachable
// contact must not keep supply or demand visible in search.
func (s *profileService) clearWhatsapp(ctx context.Context, profile *models.Profile, now time.Time) (*ProfileStatus, error) {
	collection := s.db.Collection(profilesCollection)

	update := bson.M{
		"$unset": bson.M{"whatsapp": ""},
		"$set":   bson.M{"updated_at": now},
	}
	if _, err := collection.UpdateByID(ctx, profile.ID, update); err != nil {
		return nil, fmt.Errorf("error clearing whatsapp for %s: %w", profile.ID.String(), err)
	}

	if err := s.cascadeContactLoss(ctx, profile.ID); err != nil {
		return nil, err
	}

	profile.Whatsapp = nil
	return statusOf(profile), nil
}

// cascadeContactLoss deactivates the user's listings and closes their demands
// after the verified contact is gone.
func (s *profileService) cascadeContactLoss(ctx context.Context, userID utils.SixID) error {
	deactivated, err := s.listingService.DeactivateAllForSeller(ctx, userID)
	if err != nil {
		return fmt.Errorf("error deactivating listings after whatsapp loss: %w", err)
	}
	closed, err := s.demandService.CloseAllForRequester(ctx, userID)
	if err != nil {
		return fmt.Errorf("error closing demands after whatsapp loss: %w", err)
	}
	if deactivated > 0 || closed > 0 {
		log.Printf("Whatsapp contact lost for %s: deactivated %d listings, closed %d demands", userID.String(), deactivated, closed)
	}
	return nil
}

func (s *profileService) StartVerification(ctx context.Context, userID utils.SixID) error {
	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	if profile.Whatsapp == nil || profile.Whatsapp.NumberE164 == "" {
		return ErrAddWhatsappFirst
	}
	if profile.Whatsapp.Verified {
		return ErrAlreadyVerified
	}

	if last := profile.Whatsapp.CodeLastSentAt; last != nil && time.Since(*last) < s.cfg.VerificationResendWait {
		return ErrVerificationTooSoon
	}
	allowed, err := s.limiter.AllowFixed(ctx, "vercode:"+userID.String(), s.cfg.VerificationHourlyLimit, time.Hour)
	if err != nil {
		return fmt.Errorf("error checking verification rate limit: %w", err)
	}
	if !allowed {
		return ErrRateLimitExceeded
	}

	code, err := auth.GenerateVerificationCode()
	if err != nil {
		return err
	}
	hash, err := auth.HashVerificationCode(code)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	expires := now.Add(s.cfg.VerificationCodeTTL)
	update := bson.M{
		"$set": bson.M{
			"whatsapp.code_hash":         hash,
			"whatsapp.code_expires_at":   expires,
			"whatsapp.code_attempts":     0,
			"whatsapp.code_last_sent_at": now,
			"updated_at":                 now,
		},
	}
	if _, err := s.db.Collection(profilesCollection).UpdateByID(ctx, userID, update); err != nil {
		return fmt.Errorf("error storing verification code for %s: %w", userID.String(), err)
	}

	payload, err := json.Marshal(CodeDeliveryPayload{To: profile.Whatsapp.NumberE164, Code: code})
	if err != nil {
		return fmt.Errorf("error marshalling code delivery payload: %w", err)
	}
	task := asynq.NewTask(TaskTypeCodeDelivery, payload, asynq.Queue("critical"))
	if _, err := s.taskClient.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("error enqueuing code delivery: %w", err)
	}
	return nil
}

func (s *profileService) ConfirmVerification(ctx context.Context, userID utils.SixID, code string) (*ProfileStatus, error) {
	profile, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	wa := profile.Whatsapp
	if wa == nil || wa.NumberE164 == "" {
		return nil, ErrAddWhatsappFirst
	}
	if wa.Verified {
		return nil, ErrAlreadyVerified
	}
	if wa.CodeHash == "" || wa.CodeExpiresAt == nil || time.Now().After(*wa.CodeExpiresAt) {
		return nil, ErrVerificationExpired
	}
	if wa.CodeAttempts >= s.cfg.VerificationMaxAttempts {
		return nil, ErrVerificationExpired
	}

	collection := s.db.Collection(profilesCollection)
	now := time.Now().UTC()

	if !auth.CheckVerificationCode(code, wa.CodeHash) {
		if _, err := collection.UpdateByID(ctx, userID, bson.M{
			"$inc": bson.M{"whatsapp.code_attempts": 1},
			"$set": bson.M{"updated_at": now},
		}); err != nil {
			return nil, fmt.Errorf("error recording failed verification attempt: %w", err)
		}
		return nil, ErrVerificationBadCode
	}

	update := bson.M{
		"$set": bson.M{
			"whatsapp.verified":    true,
			"whatsapp.verified_at": now,
			"updated_at":           now,
		},
		"$unset": bson.M{
			"whatsapp.code_hash":         "",
			"whatsapp.code_expires_at":   "",
			"whatsapp.code_last_sent_at": "",
		},
	}
	if _, err := collection.UpdateByID(ctx, userID, update); err != nil {
		return nil, fmt.Errorf("error confirming verification for %s: %w", userID.String(), err)
	}

	wa.Verified = true
	wa.VerifiedAt = &now
	return statusOf(profile), nil
}

func (s *profileService) EnsureSeller(ctx context.Context, userID utils.SixID) error {
	_, err := s.db.Collection(profilesCollection).UpdateOne(ctx,
		bson.M{"_id": userID, "role": models.RoleBuyer},
		bson.M{"$set": bson.M{"role": models.RoleSeller, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("error upgrading role for %s: %w", userID.String(), err)
	}
	return nil
}

func (s *profileService) DebitTokensIfEnough(ctx context.Context, userID utils.SixID, amount int) (bool, error) {
	res := s.db.Collection(profilesCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": userID, "tokens": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"tokens": -amount}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("error debiting tokens for %s: %w", userID.String(), err)
	}
	return true, nil
}

func (s *profileService) CreditTokens(ctx context.Context, userID utils.SixID, amount int) error {
	_, err := s.db.Collection(profilesCollection).UpdateByID(ctx, userID,
		bson.M{"$inc": bson.M{"tokens": amount}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("error crediting tokens for %s: %w", userID.String(), err)
	}
	return nil
}
