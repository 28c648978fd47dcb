package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/repuestosv/api/internal/config"
	"github.com/repuestosv/api/internal/notify"
	"github.com/repuestosv/api/internal/services"
	"github.com/repuestosv/api/internal/utils"
)

// Task types. Code delivery is declared in the services package (services
// enqueue it); the rest live here.
const (
	TypeCodeDelivery  = services.TaskTypeCodeDelivery
	TypeImageProcess  = "image:process"
	TypeDemandCleanup = "demand:cleanup"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg            *config.Config
	sender         notify.Sender
	listingService services.IListingService
	demandService  services.IDemandService
	s3Client       *s3.Client
	taskClient     *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	sender notify.Sender,
	listingService services.IListingService,
	demandService services.IDemandService,
	s3Client *s3.Client,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		sender:         sender,
		listingService: listingService,
		demandService:  demandService,
		s3Client:       s3Client,
		taskClient:     taskClient,
	}
}

// SetupServer configures an Asynq server instance and its handler mux for the
// requested worker roles. The caller runs it.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeCodeDelivery, processor.HandleCodeDeliveryTask)
		mux.HandleFunc(TypeDemandCleanup, processor.HandleDemandCleanupTask)
		log.Println("Registered background task handlers.")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// EnqueueDemandCleanup schedules the first demand cleanup run; the handler
// re-enqueues itself afterwards.
func EnqueueDemandCleanup(client *asynq.Client) error {
	task := asynq.NewTask(TypeDemandCleanup, nil, asynq.Queue("low"))
	_, err := client.Enqueue(task)
	return err
}

// --- Task Handlers ---

// HandleCodeDeliveryTask delivers a WhatsApp verification code.
func (p *TaskProcessor) HandleCodeDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload services.CodeDeliveryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal code delivery payload: %v: %w", err, asynq.SkipRetry)
	}

	message := fmt.Sprintf("%s: your verification code is %s", p.cfg.AppName, payload.Code)
	if err := p.sender.Send(ctx, payload.To, message); err != nil {
		log.Printf("Code delivery to %s failed (will retry): %v", payload.To, err)
		return err
	}

	log.Printf("Verification code delivered to %s", payload.To)
	return nil
}

// ImageTaskPayload is the payload of a TypeImageProcess task.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	ListingID string `json:"listing_id"`
}

// HandleImageProcessTask downloads a freshly uploaded listing photo, resizes
// it to the configured maximum dimension, uploads the processed copy and
// attaches its key to the listing.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	listingID, err := utils.ParseSixID(payload.ListingID)
	if err != nil {
		log.Printf("Invalid ListingID in image task payload: %s", payload.ListingID)
		return fmt.Errorf("invalid listing ID in payload: %w", asynq.SkipRetry)
	}

	log.Printf("Processing photo: S3Key=%s, ListingID=%s", payload.S3Key, payload.ListingID)

	getObjectOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download photo from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		return fmt.Errorf("failed to read photo data: %w", err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Photo %s exceeds max size (%d > %d bytes). Skipping.", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("photo exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded photo %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.ImageMaxDimension)
	processed := img
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		processed = resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		log.Printf("Resized photo %s to %dx%d", payload.S3Key, processed.Bounds().Dx(), processed.Bounds().Dy())
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("failed to encode processed photo: %w", err)
	}
	if int64(buf.Len()) > maxSizeBytes {
		return fmt.Errorf("processed photo still exceeds max size: %w", asynq.SkipRetry)
	}

	processedKey := processedKeyFor(payload.S3Key)
	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(processedKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload processed photo: %w", err)
	}

	if err := p.listingService.SetPhotoProcessed(ctx, listingID, payload.S3Key, processedKey); err != nil {
		return fmt.Errorf("failed to update listing with processed photo: %w", err)
	}

	log.Printf("Photo processed: Key=%s, ProcessedKey=%s, ListingID=%s", payload.S3Key, processedKey, payload.ListingID)
	return nil
}

// processedKeyFor derives the object key of the resized copy.
func processedKeyFor(key string) string {
	if idx := strings.LastIndex(key, "."); idx > 0 {
		return key[:idx] + "_p.jpg"
	}
	return key + "_p.jpg"
}

// HandleDemandCleanupTask closes open demands older than the configured age
// and reschedules itself for the next day.
func (p *TaskProcessor) HandleDemandCleanupTask(ctx context.Context, t *asynq.Task) error {
	closed, err := p.demandService.CloseStale(ctx, p.cfg.DemandMaxAge)
	if err != nil {
		log.Printf("Demand cleanup failed: %v", err)
		return err
	}
	log.Printf("Demand cleanup closed %d stale demands.", closed)

	taskInfo, err := p.taskClient.EnqueueContext(ctx, t, asynq.ProcessIn(24*time.Hour), asynq.Queue("low"))
	if err != nil {
		log.Printf("ERROR failed to re-enqueue demand cleanup task: %v", err)
		return err
	}
	log.Printf("Re-enqueued demand cleanup task %s to run in 24h.", taskInfo.ID)
	return nil
}
