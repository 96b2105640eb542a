package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Lllllllleong/likeface/internal/inference"
	"github.com/Lllllllleong/likeface/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	loadErr     error
	generateErr error
	loads       []string
	requests    []*inference.GenerateRequest
}

func (e *fakeEngine) LoadParameters(path string) error {
	e.loads = append(e.loads, path)
	if e.loadErr != nil {
		return e.loadErr
	}
	_, err := os.Stat(path)
	return err
}

func (e *fakeEngine) Generate(ctx context.Context, req *inference.GenerateRequest) (*inference.Tensor, error) {
	e.requests = append(e.requests, req)
	if e.generateErr != nil {
		return nil, e.generateErr
	}
	return &inference.Tensor{
		Shape: []int{1, 3, 2, 2},
		Data:  make([]float32, 12),
	}, nil
}

type upload struct {
	localPath  string
	objectName string
}

type fakeObjects struct {
	mu        sync.Mutex
	uploadErr error
	publicErr error
	uploads   []upload
	public    []string
}

func (o *fakeObjects) Upload(ctx context.Context, localPath, objectName string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.uploadErr != nil {
		return o.uploadErr
	}
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	o.uploads = append(o.uploads, upload{localPath, objectName})
	return nil
}

func (o *fakeObjects) MakePublic(ctx context.Context, objectName string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.publicErr != nil {
		return o.publicErr
	}
	o.public = append(o.public, objectName)
	return nil
}

func (o *fakeObjects) PublicURL(objectName string) string {
	return "https://storage.example/bucket/" + objectName
}

type userUpdate struct {
	userID string
	url    string
	at     time.Time
}

type fakeUsers struct {
	err     error
	updates []userUpdate
}

func (u *fakeUsers) UpdateLikeFace(ctx context.Context, userID, url string, at time.Time) error {
	if u.err != nil {
		return u.err
	}
	u.updates = append(u.updates, userUpdate{userID, url, at})
	return nil
}

type fixture struct {
	engine  *fakeEngine
	objects *fakeObjects
	users   *fakeUsers
	maker   *FaceMakerFunction
	dir     string
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	paramsPath := filepath.Join(dir, "styleGAN2_G_params.h5")
	require.NoError(t, os.WriteFile(paramsPath, []byte("weights"), 0o644))

	f := &fixture{
		engine:  &fakeEngine{},
		objects: &fakeObjects{},
		users:   &fakeUsers{},
		dir:     dir,
		now:     time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	f.maker = NewFaceMakerWith(f.engine, f.objects, f.users, FaceMakerConfig{
		ParamsPath: paramsPath,
		OutputDir:  filepath.Join(dir, "results"),
		Settings:   inference.DefaultSettings(),
	})
	f.maker.now = func() time.Time { return f.now }
	return f
}

func TestProcessSuccess(t *testing.T) {
	f := newFixture(t)

	res, err := f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, &models.MakeFaceResponse{ImageURL: "ok"}, res)

	wantObject := "results/seed954_0.png"
	wantLocal := filepath.Join(f.dir, "results", "seed954_0.png")
	require.Len(t, f.objects.uploads, 1)
	assert.Equal(t, upload{wantLocal, wantObject}, f.objects.uploads[0])
	assert.Equal(t, []string{wantObject}, f.objects.public)
	assert.FileExists(t, wantLocal)

	require.Len(t, f.users.updates, 1)
	assert.Equal(t, userUpdate{"user-1", "https://storage.example/bucket/" + wantObject, f.now}, f.users.updates[0])
}

func TestProcessUsesFixedSettings(t *testing.T) {
	f := newFixture(t)

	_, err := f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "a"})
	require.NoError(t, err)
	_, err = f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "b"})
	require.NoError(t, err)

	require.Len(t, f.engine.requests, 2)
	first, second := f.engine.requests[0], f.engine.requests[1]
	assert.Equal(t, first, second)

	assert.Len(t, first.StyleNoises, 2)
	require.Len(t, first.StyleNoises[0], 1)
	assert.Len(t, first.StyleNoises[0][0], 512)
	assert.Equal(t, 18, first.NumLayers)
	assert.Equal(t, 0.5, first.TruncationPsi)
	assert.Equal(t, int64(500), first.NoiseSeed)
	assert.Equal(t, 7, first.MixAfter)
	assert.Equal(t, 1, first.BatchSize)
}

func TestProcessReloadsParametersEveryCall(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "u"})
		require.NoError(t, err)
	}
	assert.Len(t, f.engine.loads, 3)
}

func TestProcessSameObjectKeyForDifferentUsers(t *testing.T) {
	f := newFixture(t)

	_, err := f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "alice"})
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "bob"})
	require.NoError(t, err)

	require.Len(t, f.objects.uploads, 2)
	assert.Equal(t, f.objects.uploads[0].objectName, f.objects.uploads[1].objectName)

	require.Len(t, f.users.updates, 2)
	assert.Equal(t, "alice", f.users.updates[0].userID)
	assert.Equal(t, "bob", f.users.updates[1].userID)
	assert.Equal(t, f.users.updates[0].url, f.users.updates[1].url)
	assert.True(t, f.users.updates[1].at.After(f.users.updates[0].at))
}

func TestProcessMissingParametersHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.maker.config.ParamsPath = filepath.Join(f.dir, "missing.h5")

	_, err := f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "u"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, StageLoadParams, StageOf(err))

	assert.Empty(t, f.engine.requests)
	assert.Empty(t, f.objects.uploads)
	assert.Empty(t, f.users.updates)
	assert.NoDirExists(t, filepath.Join(f.dir, "results"))
}

func TestProcessOutputDirIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "results"), 0o755))

	_, err := f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "u"})
	require.NoError(t, err)
	_, err = f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "u"})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(f.dir, "results"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "seed954_0.png", entries[0].Name())
}

func TestProcessStageFailures(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name      string
		setup     func(f *fixture)
		stage     string
		uploads   int
		published int
	}{
		{"generate", func(f *fixture) { f.engine.generateErr = boom }, StageGenerate, 0, 0},
		{"upload", func(f *fixture) { f.objects.uploadErr = boom }, StageUpload, 0, 0},
		{"make public", func(f *fixture) { f.objects.publicErr = boom }, StageMakePublic, 1, 0},
		{"database", func(f *fixture) { f.users.err = boom }, StageDatabase, 1, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f)

			res, err := f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "u"})
			assert.Nil(t, res)
			require.ErrorIs(t, err, boom)
			assert.Equal(t, tc.stage, StageOf(err))
			assert.Len(t, f.objects.uploads, tc.uploads)
			assert.Len(t, f.objects.public, tc.published)
			assert.Empty(t, f.users.updates)
		})
	}
}

func TestProcessLeavesImageOnDisk(t *testing.T) {
	f := newFixture(t)
	_, err := f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "u"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.dir, "results", "seed954_0.png"))
}

func TestImageObjectName(t *testing.T) {
	cases := []struct {
		outputDir string
		want      string
	}{
		{"results", "results/seed954_0.png"},
		{"./results/", "results/seed954_0.png"},
		{"out/faces", "out/faces/seed954_0.png"},
		{"/srv/results", "results/seed954_0.png"},
		{"/", "seed954_0.png"},
		{".", "seed954_0.png"},
	}
	for _, tc := range cases {
		t.Run(tc.outputDir, func(t *testing.T) {
			assert.Equal(t, tc.want, ImageObjectName(tc.outputDir, ImageFileName(954, 0)))
		})
	}
}

func TestProcessOutputDirFailureIsPrepareStage(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(f.dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	f.maker.config.OutputDir = filepath.Join(blocker, "results")

	_, err := f.maker.Process(context.Background(), &models.MakeFaceRequest{UserID: "u"})
	require.Error(t, err)
	assert.Equal(t, StagePrepareOutput, StageOf(err))
	assert.Empty(t, f.objects.uploads)
	assert.Empty(t, f.users.updates)
}

func TestStageOf(t *testing.T) {
	assert.Equal(t, "unknown", StageOf(errors.New("plain")))
	wrapped := &StageError{Stage: StageUpload, Err: errors.New("x")}
	assert.Equal(t, StageUpload, StageOf(wrapped))
	assert.Equal(t, "upload: x", wrapped.Error())
}
