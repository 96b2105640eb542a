package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/likeface/internal/config"
	"github.com/Lllllllleong/likeface/internal/gcp"
	"github.com/Lllllllleong/likeface/internal/inference"
	"github.com/Lllllllleong/likeface/internal/latent"
	"github.com/Lllllllleong/likeface/internal/metrics"
	"github.com/Lllllllleong/likeface/internal/models"
)

// ObjectStore is where generated images are published.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, objectName string) error
	MakePublic(ctx context.Context, objectName string) error
	PublicURL(objectName string) string
}

// UserStore records the generated face on an existing user document.
type UserStore interface {
	UpdateLikeFace(ctx context.Context, userID, url string, at time.Time) error
}

// FaceMakerConfig holds the pipeline configuration.
type FaceMakerConfig struct {
	ParamsPath string
	OutputDir  string
	Settings   inference.Settings
}

// FaceMakerFunction holds the dependencies for the face generation logic.
type FaceMakerFunction struct {
	engine  inference.Engine
	objects ObjectStore
	users   UserStore
	config  FaceMakerConfig
	now     func() time.Time

	storageClient   *storage.Client
	firestoreClient *firestore.Client
}

// NewFaceMaker creates the Cloud Storage, Firestore and model-server clients
// described by cfg. The credentials file is read once, here.
func NewFaceMaker(ctx context.Context, cfg *config.Config) (*FaceMakerFunction, error) {
	storageClient, err := gcp.NewStorageClient(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.CredentialsFile)
	if err != nil {
		storageClient.Close()
		return nil, err
	}

	f := NewFaceMakerWith(
		inference.NewRemoteEngine(cfg.InferenceURL, cfg.InferenceTimeout),
		gcp.NewImageStore(storageClient, cfg.Bucket),
		gcp.NewUserRepository(firestoreClient, cfg.UsersCollection),
		FaceMakerConfig{
			ParamsPath: cfg.ParamsPath,
			OutputDir:  cfg.OutputDir,
			Settings:   inference.DefaultSettings(),
		},
	)
	f.storageClient = storageClient
	f.firestoreClient = firestoreClient

	slog.Info("Face maker initialized.", "bucket", cfg.Bucket, "collection", cfg.UsersCollection, "inferenceUrl", cfg.InferenceURL)
	return f, nil
}

// NewFaceMakerWith wires a FaceMakerFunction from already constructed collaborators.
func NewFaceMakerWith(engine inference.Engine, objects ObjectStore, users UserStore, cfg FaceMakerConfig) *FaceMakerFunction {
	return &FaceMakerFunction{
		engine:  engine,
		objects: objects,
		users:   users,
		config:  cfg,
		now:     time.Now,
	}
}

// Close releases the cloud clients created by NewFaceMaker.
func (f *FaceMakerFunction) Close() error {
	var firstErr error
	if f.firestoreClient != nil {
		firstErr = f.firestoreClient.Close()
	}
	if f.storageClient != nil {
		if err := f.storageClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Process generates a face, publishes it and stores its URL on the user's record.
//
// Parameters are reloaded on every call and every call writes the same file
// and object name, so concurrent calls may overwrite each other's image.
func (f *FaceMakerFunction) Process(ctx context.Context, req *models.MakeFaceRequest) (*models.MakeFaceResponse, error) {
	logCtx := slog.With("userId", req.UserID)
	logCtx.Info("Starting face generation.")

	s := f.config.Settings

	// --- 1. Load the generator weights ---
	err := f.stage(StageLoadParams, func() error {
		return f.engine.LoadParameters(f.config.ParamsPath)
	})
	if err != nil {
		return nil, f.fail(logCtx, err)
	}

	// --- 2. Derive the latent and run the forward pass ---
	z := latent.Gaussian(s.LatentSeed, s.BatchSize, s.LatentDim)
	var output *inference.Tensor
	err = f.stage(StageGenerate, func() error {
		var genErr error
		output, genErr = f.engine.Generate(ctx, inference.NewGenerateRequest(s, z))
		return genErr
	})
	if err != nil {
		return nil, f.fail(logCtx, err)
	}

	// --- 3. Convert to 8-bit images ---
	var images []inference.Image
	err = f.stage(StageEncode, func() error {
		var convErr error
		images, convErr = inference.ToUint8(output, s.DynamicRange)
		return convErr
	})
	if err != nil {
		return nil, f.fail(logCtx, err)
	}

	err = f.stage(StagePrepareOutput, func() error {
		if err := os.MkdirAll(f.config.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir %s: %w", f.config.OutputDir, err)
		}
		return nil
	})
	if err != nil {
		return nil, f.fail(logCtx, err)
	}

	// --- 4. Save, publish and record each image ---
	for i, img := range images {
		fileName := ImageFileName(s.LatentSeed, i)
		localPath := filepath.Join(f.config.OutputDir, fileName)
		objectName := ImageObjectName(f.config.OutputDir, fileName)

		if err := f.stage(StageEncode, func() error { return inference.WritePNG(localPath, img) }); err != nil {
			return nil, f.fail(logCtx, err)
		}
		if err := f.stage(StageUpload, func() error { return f.objects.Upload(ctx, localPath, objectName) }); err != nil {
			return nil, f.fail(logCtx, err)
		}
		if err := f.stage(StageMakePublic, func() error { return f.objects.MakePublic(ctx, objectName) }); err != nil {
			return nil, f.fail(logCtx, err)
		}
		publicURL := f.objects.PublicURL(objectName)
		logCtx.Info("Uploaded generated face.", "gcsObject", objectName, "publicUrl", publicURL)

		if err := f.stage(StageDatabase, func() error {
			return f.users.UpdateLikeFace(ctx, req.UserID, publicURL, f.now())
		}); err != nil {
			return nil, f.fail(logCtx, err)
		}
	}

	metrics.IncRequest("ok")
	logCtx.Info("Face generation complete.", "imageCount", len(images))
	return &models.MakeFaceResponse{ImageURL: models.MakeFaceOK}, nil
}

// ImageFileName is the file name of the i-th image generated from seed.
func ImageFileName(seed uint32, i int) string {
	return fmt.Sprintf("seed%d_%d.png", seed, i)
}

// ImageObjectName is the bucket object for fileName written under outputDir.
// A relative outputDir is kept as the object prefix, so the object mirrors the
// local path; an absolute one contributes only its last element.
func ImageObjectName(outputDir, fileName string) string {
	dir := filepath.Clean(outputDir)
	if filepath.IsAbs(dir) {
		dir = filepath.Base(dir)
	}
	dir = strings.TrimLeft(path.Clean(filepath.ToSlash(dir)), "/")
	if dir == "." || dir == "" {
		return fileName
	}
	return path.Join(dir, fileName)
}

// stage runs fn, timing it and tagging any error with the stage name.
func (f *FaceMakerFunction) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

func (f *FaceMakerFunction) fail(logCtx *slog.Logger, err error) error {
	stage := StageOf(err)
	metrics.IncStageError(stage)
	metrics.IncRequest("error")
	logCtx.Error("Face generation failed", "stage", stage, "error", err)
	return err
}
