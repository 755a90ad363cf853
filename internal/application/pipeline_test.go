package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"thermal-vision/internal/domain/entity"
)

type testPipeline struct {
	*Pipeline
	source     *fakeSessionSource
	redirector *fakeRedirector
	notifier   *fakeNotifier
	endpoint   *fakeEndpoint
	previewer  *fakePreviewer
}

func newTestPipeline(t *testing.T, session *entity.Session) *testPipeline {
	t.Helper()

	tp := &testPipeline{
		source:     newFakeSessionSource(session),
		redirector: &fakeRedirector{},
		notifier:   &fakeNotifier{},
		endpoint:   &fakeEndpoint{result: twoDetections()},
		previewer:  &fakePreviewer{},
	}
	tp.Pipeline = NewPipeline(PipelineDeps{
		Source:     tp.source,
		Redirector: tp.redirector,
		Notifier:   tp.notifier,
		Endpoint:   tp.endpoint,
		Previewer:  tp.previewer,
		Log:        testLog,
	})
	t.Cleanup(tp.Close)
	return tp
}

func signedIn() *entity.Session {
	return &entity.Session{UserID: "u-1", Email: "ops@example.com"}
}

func TestPipeline_ScenarioA_Success(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.NoError(t, err)

	res, err := p.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)

	current := p.Current()
	require.NotNil(t, current)
	require.Equal(t, 2, current.Count)
	require.Equal(t, len(current.Detections), current.Count)
	require.Equal(t, "img2", current.OutputImageURI)
	require.Equal(t, []string{"Person", "Dog"}, current.Labels())
	require.Equal(t, entity.SubmitIdle, p.State())
	require.Equal(t, entity.SubmitSucceeded, p.client.lastOutcome())

	for _, d := range current.Detections {
		require.GreaterOrEqual(t, d.Confidence, 0.0)
		require.LessOrEqual(t, d.Confidence, 1.0)
		require.True(t, d.BBox.Valid())
	}

	require.Equal(t, []byte("frame"), p.endpoint.last.Data)
	require.Equal(t, "thermal-frame.png", p.endpoint.last.Filename)
	require.Contains(t, p.notifier.Kinds(), entity.EventResultReplaced)
}

func TestPipeline_ScenarioB_InvalidFileType(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.NoError(t, err)
	_, err = p.Submit(ctx)
	require.NoError(t, err)
	before := p.Current()

	_, err = p.SelectFile(ctx, fakeFile{name: "notes.txt", contentType: "text/plain", data: "hello"})
	require.ErrorIs(t, err, entity.ErrInvalidFileType)

	require.Same(t, before, p.Current())
	require.Equal(t, "thermal-frame.png", p.Asset().Name)
	require.Equal(t, 1, p.endpoint.Calls())
	require.Contains(t, p.notifier.Notices(), "Please select a valid image file")
}

func TestPipeline_ScenarioC_ServiceErrorLeavesStoreUntouched(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.NoError(t, err)
	_, err = p.Submit(ctx)
	require.NoError(t, err)
	before := p.Current()

	p.endpoint.Respond(nil, &entity.DetectionServiceError{Message: "model unavailable"})
	_, err = p.Submit(ctx)

	var dse *entity.DetectionServiceError
	require.True(t, errors.As(err, &dse))
	require.Equal(t, "model unavailable", dse.Message)
	require.Same(t, before, p.Current())
	require.Equal(t, entity.SubmitIdle, p.State())
	require.Equal(t, entity.SubmitFailed, p.client.lastOutcome())
	require.Contains(t, p.notifier.Notices(), "model unavailable")

	// сразу можно повторить
	p.endpoint.Respond(twoDetections(), nil)
	_, err = p.Submit(ctx)
	require.NoError(t, err)
}

func TestPipeline_ScenarioD_NoImageSelected(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.Submit(ctx)
	require.ErrorIs(t, err, entity.ErrNoImageSelected)
	require.Zero(t, p.endpoint.Calls())
	require.Nil(t, p.Current())
	require.Contains(t, p.notifier.Notices(), "Please upload an image first")
}

func TestPipeline_ScenarioE_SignOutDuringSubmit(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.NoError(t, err)

	p.endpoint.started = make(chan struct{})
	p.endpoint.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(ctx)
		done <- err
	}()

	<-p.endpoint.started
	require.Equal(t, entity.SubmitSubmitting, p.State())

	p.source.Set(nil)
	require.Equal(t, 1, p.redirector.Count())
	require.True(t, p.Closed())
	require.Zero(t, p.source.Subscribers())

	close(p.endpoint.release)
	select {
	case err := <-done:
		require.ErrorIs(t, err, entity.ErrResultDiscarded)
	case <-time.After(time.Second):
		t.Fatal("submit did not return")
	}

	require.Nil(t, p.Current())
	require.Equal(t, entity.SubmitIdle, p.State())
	require.Empty(t, p.notifier.Notices())
}

func TestPipeline_SingleFlight(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.NoError(t, err)

	p.endpoint.started = make(chan struct{})
	p.endpoint.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(ctx)
		done <- err
	}()
	<-p.endpoint.started

	_, err = p.Submit(ctx)
	require.ErrorIs(t, err, entity.ErrAlreadyInProgress)
	require.Equal(t, 1, p.endpoint.Calls())
	require.Contains(t, p.notifier.Notices(), "Detection is already running, please wait")

	close(p.endpoint.release)
	require.NoError(t, <-done)
	require.Equal(t, 2, p.Current().Count)
	require.Equal(t, 1, p.endpoint.Calls())
}

func TestPipeline_NewSelectionClearsResultAndDiscardsInFlight(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("first"))
	require.NoError(t, err)
	_, err = p.Submit(ctx)
	require.NoError(t, err)
	require.NotNil(t, p.Current())

	p.endpoint.started = make(chan struct{})
	p.endpoint.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(ctx)
		done <- err
	}()
	<-p.endpoint.started

	_, err = p.SelectFile(ctx, pngFile("second"))
	require.NoError(t, err)
	require.Nil(t, p.Current())

	close(p.endpoint.release)
	require.ErrorIs(t, <-done, entity.ErrResultDiscarded)
	require.Nil(t, p.Current())
	require.Equal(t, "thermal-second.png", p.Asset().Name)
}

func TestPipeline_StaleDecodeIsDiscarded(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	slow := make(chan struct{})
	p.previewer.blocked = map[string]chan struct{}{"slow": slow}
	p.previewer.entered = make(chan string, 2)

	done := make(chan error, 1)
	go func() {
		_, err := p.SelectFile(ctx, pngFile("slow"))
		done <- err
	}()
	require.Equal(t, "slow", <-p.previewer.entered)

	asset, err := p.SelectFile(ctx, pngFile("fast"))
	require.NoError(t, err)
	require.Equal(t, "fast", <-p.previewer.entered)

	close(slow)
	require.ErrorIs(t, <-done, entity.ErrSelectionSuperseded)
	require.Same(t, asset, p.Asset())
	require.Equal(t, "data:preview,fast", p.Asset().Preview)
}

func TestPipeline_NoSessionRedirectsOnOpen(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()

	require.ErrorIs(t, p.Open(ctx), entity.ErrUnauthenticated)
	require.Equal(t, 1, p.redirector.Count())
	require.Zero(t, p.source.Subscribers())

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.ErrorIs(t, err, entity.ErrUnauthenticated)
	require.Nil(t, p.Asset())
}

func TestPipeline_SubmitWithoutSessionIssuesNoRequest(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.NoError(t, err)

	p.source.Set(nil)
	_, err = p.Submit(ctx)
	require.ErrorIs(t, err, entity.ErrUnauthenticated)
	require.Zero(t, p.endpoint.Calls())
}

func TestPipeline_SuccessFalseMessagePassesThrough(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.NoError(t, err)

	p.endpoint.Respond(nil, &entity.DetectionServiceError{Message: "X"})
	_, err = p.Submit(ctx)
	require.Equal(t, "X", UserMessage(err))
}

func TestPipeline_MalformedBecomesServiceError(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.NoError(t, err)

	p.endpoint.Respond(nil, entity.ErrMalformedResponse)
	_, err = p.Submit(ctx)

	var dse *entity.DetectionServiceError
	require.True(t, errors.As(err, &dse))
	require.Equal(t, msgMalformed, dse.Message)
	require.ErrorIs(t, err, entity.ErrMalformedResponse)
	require.Nil(t, p.Current())
}

func TestPipeline_TransportErrorGetsGenericMessage(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.NoError(t, err)

	p.endpoint.Respond(nil, errors.New("dial tcp: connection refused"))
	_, err = p.Submit(ctx)
	require.Equal(t, msgTransportFailure, UserMessage(err))
}

type fakeHistory struct {
	users []string
	err   error
}

func (h *fakeHistory) Record(ctx context.Context, userID string, result *entity.DetectionResult) (int64, error) {
	h.users = append(h.users, userID)
	return int64(len(h.users)), h.err
}

func (h *fakeHistory) ListByUser(ctx context.Context, userID string, limit int) ([]entity.HistoryEntry, error) {
	return nil, nil
}

func TestPipeline_RecordsHistory(t *testing.T) {
	p := newTestPipeline(t, signedIn())
	history := &fakeHistory{err: errors.New("disk full")}
	p.history = history
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))

	_, err := p.SelectFile(ctx, pngFile("frame"))
	require.NoError(t, err)

	// ошибка истории не мешает результату
	_, err = p.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"u-1"}, history.users)
	require.NotNil(t, p.Current())
}
