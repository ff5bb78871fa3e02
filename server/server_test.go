package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webtoondl/downloader"
	"webtoondl/models"
	"webtoondl/packager"
	_ "webtoondl/sites"
)

type fakeDownloader struct {
	mu       sync.Mutex
	gate     *downloader.Gate
	tracker  *downloader.Tracker
	requests []models.Request

	result *downloader.Result
	err    error
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{
		gate:    downloader.NewGate(2),
		tracker: downloader.NewTracker(time.Minute),
	}
}

func (f *fakeDownloader) Download(_ context.Context, req models.Request) (*downloader.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Request = req
	return &res, nil
}

func (f *fakeDownloader) Gate() *downloader.Gate       { return f.gate }
func (f *fakeDownloader) Tracker() *downloader.Tracker { return f.tracker }

func (f *fakeDownloader) lastRequest(t *testing.T) models.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func postDownload(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestDownloadSendsDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Tower_of_God_Ep3-abc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3 fake"), 0o644))

	dl := newFakeDownloader()
	dl.result = &downloader.Result{Artifact: &packager.Artifact{
		Path:        path,
		Filename:    "Tower_of_God_Ep3.pdf",
		ContentType: "application/pdf",
	}}
	e := New(dl, Options{})

	rec := postDownload(e, `{"mangaName":"Tower of God","episodeNum":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.3 fake", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `attachment; filename="Tower_of_God_Ep3.pdf"`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "artifact should be removed after sending")

	req := dl.lastRequest(t)
	assert.Equal(t, "Tower of God", req.Title)
	assert.Equal(t, 3, req.Episode)
	assert.Equal(t, models.FormatPDF, req.Format)
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), req.ID)
}

func TestDownloadDirectImages(t *testing.T) {
	dl := newFakeDownloader()
	dl.result = &downloader.Result{Images: []string{"data:image/png;base64,AAAA", "data:image/jpeg;base64,BBBB"}}
	e := New(dl, Options{})

	rec := postDownload(e, `{"mangaName":"Tower of God","episodeNum":"7","format":"IMAGES"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Images []string `json:"images"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, dl.result.Images, body.Images)

	req := dl.lastRequest(t)
	assert.Equal(t, 7, req.Episode)
	assert.Equal(t, models.FormatImages, req.Format)
}

func TestDownloadDefaultFormatFromOptions(t *testing.T) {
	dl := newFakeDownloader()
	dl.result = &downloader.Result{Images: []string{}}
	e := New(dl, Options{DefaultFormat: models.FormatImages})

	rec := postDownload(e, `{"mangaName":"x","episodeNum":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.FormatImages, dl.lastRequest(t).Format)
}

func TestDownloadClientRequestID(t *testing.T) {
	dl := newFakeDownloader()
	dl.result = &downloader.Result{Images: []string{}}
	e := New(dl, Options{})

	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(`{"mangaName":"x","episodeNum":1,"format":"images"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRequestID, "my-req.1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "my-req.1", dl.lastRequest(t).ID)
}

func TestDownloadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing title", `{"episodeNum":1}`, missingFieldsMessage},
		{"blank title", `{"mangaName":"   ","episodeNum":1}`, missingFieldsMessage},
		{"missing episode", `{"mangaName":"x"}`, missingFieldsMessage},
		{"zero episode", `{"mangaName":"x","episodeNum":0}`, missingFieldsMessage},
		{"negative episode", `{"mangaName":"x","episodeNum":-2}`, missingFieldsMessage},
		{"episode not a number", `{"mangaName":"x","episodeNum":"three"}`, missingFieldsMessage},
		{"malformed json", `{"mangaName":`, missingFieldsMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dl := newFakeDownloader()
			e := New(dl, Options{})

			rec := postDownload(e, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorBody(t, rec), tt.want)
			assert.Empty(t, dl.requests)
		})
	}
}

// refusingLauncher fails the test if a browser is ever requested
type refusingLauncher struct{ t *testing.T }

func (l refusingLauncher) Launch(context.Context) (downloader.Page, error) {
	l.t.Error("browser launched for an invalid request")
	return nil, errors.New("no browser")
}

type noImages struct{}

func (noImages) FetchImage(context.Context, string) ([]byte, error) {
	return nil, errors.New("no images")
}

func TestDownloadValidationFromManager(t *testing.T) {
	site, err := downloader.LookupSite("webtoons", "https://www.webtoons.test/en")
	require.NoError(t, err)

	manager, err := downloader.NewManager(downloader.DownloadConfig{
		Site:     site,
		Launcher: refusingLauncher{t},
		Fetcher:  downloader.NewFetcher(noImages{}, 1, 0),
		Tracker:  downloader.NewTracker(time.Minute),
	})
	require.NoError(t, err)
	e := New(manager, Options{})

	tests := []struct {
		name      string
		body      string
		requestID string
		want      string
	}{
		{"long title", `{"mangaName":"` + strings.Repeat("a", 201) + `","episodeNum":1}`, "", "too long"},
		{"unknown format", `{"mangaName":"x","episodeNum":1,"format":"docx"}`, "", `Unsupported format "docx" (supported: epub, images, pdf)`},
		{"bad request id", `{"mangaName":"x","episodeNum":1}`, "_hidden", "request id must start with a letter or digit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tt.requestID != "" {
				req.Header.Set(echo.HeaderXRequestID, tt.requestID)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorBody(t, rec), tt.want)
		})
	}
	assert.Empty(t, manager.Tracker().Tasks())
	assert.Equal(t, 0, manager.Gate().Active())
}

func TestDownloadErrorStatuses(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{&downloader.PipelineError{Kind: downloader.KindBusy, Op: "gate", Message: "Server is busy, try again later"}, http.StatusServiceUnavailable, "Server is busy, try again later"},
		{&downloader.PipelineError{Kind: downloader.KindNotFound, Op: "locate", Message: "Couldn't find the manga"}, http.StatusNotFound, "Couldn't find the manga"},
		{&downloader.PipelineError{Kind: downloader.KindFetchFailure, Op: "fetch", Message: "Failed to download image 2 of 5"}, http.StatusInternalServerError, "Failed to download image 2 of 5"},
		{&downloader.PipelineError{Kind: downloader.KindInvalidRequest, Op: "validate", Message: "bad id"}, http.StatusBadRequest, "bad id"},
		{errors.New("boom"), http.StatusInternalServerError, "Something went wrong: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			dl := newFakeDownloader()
			dl.err = tt.err
			e := New(dl, Options{})

			rec := postDownload(e, `{"mangaName":"x","episodeNum":1}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, errorBody(t, rec))
		})
	}
}

func TestEpisodeNumberUnmarshal(t *testing.T) {
	for in, want := range map[string]int{`5`: 5, `"12"`: 12, `" 4 "`: 4, `""`: 0, `null`: 0} {
		var n episodeNumber
		require.NoError(t, json.Unmarshal([]byte(in), &n), in)
		assert.Equal(t, want, int(n), in)
	}
	for _, in := range []string{`"abc"`, `1.5`, `true`} {
		var n episodeNumber
		assert.Error(t, json.Unmarshal([]byte(in), &n), in)
	}
}

// readEvents collects the data payloads of an SSE body
func readEvents(t *testing.T, body string) []ProgressEvent {
	t.Helper()
	var events []ProgressEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func getProgress(e *echo.Echo, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/progress"+query, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestProgressFollowsRequestUntilDone(t *testing.T) {
	dl := newFakeDownloader()
	require.NoError(t, dl.tracker.Start(models.Request{ID: "req-1", Title: "x", Episode: 1, Format: models.FormatPDF}))
	dl.tracker.SetProgress("req-1", 25.4, "Fetching images")

	go func() {
		time.Sleep(40 * time.Millisecond)
		dl.tracker.SetProgress("req-1", 74.6, "Packaging")
		time.Sleep(40 * time.Millisecond)
		dl.tracker.SetProgress("req-1", 100, "")
		dl.tracker.Complete("req-1")
	}()

	e := New(dl, Options{ProgressInterval: 10 * time.Millisecond})
	rec := getProgress(e, "?id=req-1")

	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-cache", rec.Header().Get(echo.HeaderCacheControl))

	events := readEvents(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, 25, events[0].Progress)
	assert.False(t, events[0].Done)

	last := events[len(events)-1]
	assert.True(t, last.Done)
	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, "completed", last.Status)
	assert.Equal(t, "req-1", last.ID)

	prev := -1
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Progress, prev)
		prev = ev.Progress
	}
	assert.Contains(t, events, ProgressEvent{ID: "req-1", Progress: 75, Status: "running", Message: "Packaging"})
}

func TestProgressReportsFailure(t *testing.T) {
	dl := newFakeDownloader()
	require.NoError(t, dl.tracker.Start(models.Request{ID: "req-2", Title: "x", Episode: 1}))
	dl.tracker.Fail("req-2", &downloader.PipelineError{Kind: downloader.KindNotFound, Op: "locate", Message: "Couldn't find the manga"})

	e := New(dl, Options{ProgressInterval: 10 * time.Millisecond})
	events := readEvents(t, getProgress(e, "?id=req-2").Body.String())

	require.Len(t, events, 1)
	assert.True(t, events[0].Done)
	assert.Equal(t, "failed", events[0].Status)
	assert.Equal(t, "Couldn't find the manga", events[0].Message)
}

func TestProgressIgnoresTasksFinishedBeforeSubscribing(t *testing.T) {
	dl := newFakeDownloader()
	require.NoError(t, dl.tracker.Start(models.Request{ID: "old", Title: "x", Episode: 1}))
	dl.tracker.Complete("old")
	time.Sleep(2 * time.Millisecond)

	e := New(dl, Options{ProgressInterval: 10 * time.Millisecond, ProgressIdle: 50 * time.Millisecond})
	events := readEvents(t, getProgress(e, "").Body.String())

	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, statusWaiting, ev.Status)
		assert.False(t, ev.Done)
		assert.Empty(t, ev.ID)
	}
}

func TestProgressLatestLocksOntoNewTask(t *testing.T) {
	dl := newFakeDownloader()

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = dl.tracker.Start(models.Request{ID: "first", Title: "x", Episode: 1})
		dl.tracker.SetProgress("first", 40, "")
		time.Sleep(30 * time.Millisecond)
		_ = dl.tracker.Start(models.Request{ID: "second", Title: "y", Episode: 2})
		time.Sleep(30 * time.Millisecond)
		dl.tracker.Complete("first")
	}()

	e := New(dl, Options{ProgressInterval: 10 * time.Millisecond, ProgressIdle: 5 * time.Second})
	events := readEvents(t, getProgress(e, "").Body.String())

	require.NotEmpty(t, events)
	assert.Equal(t, statusWaiting, events[0].Status)
	last := events[len(events)-1]
	assert.Equal(t, "first", last.ID)
	assert.True(t, last.Done)
	for _, ev := range events {
		assert.NotEqual(t, "second", ev.ID)
	}
}

func TestProgressStopsWhenClientLeaves(t *testing.T) {
	dl := newFakeDownloader()
	require.NoError(t, dl.tracker.Start(models.Request{ID: "slow", Title: "x", Episode: 1}))

	e := New(dl, Options{ProgressInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/progress?id=slow", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		e.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("progress stream did not stop after the client left")
	}
}

func TestProgressRejectsBadID(t *testing.T) {
	e := New(newFakeDownloader(), Options{})
	rec := getProgress(e, "?id=../../etc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	dl := newFakeDownloader()
	require.True(t, dl.gate.TryAcquire())
	require.NoError(t, dl.tracker.Start(models.Request{ID: "a", Title: "x", Episode: 1, Format: models.FormatEPUB}))

	e := New(dl, Options{})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Active)
	assert.Equal(t, 2, body.Ceiling)
	assert.Equal(t, []string{"epub", "images", "pdf"}, body.Formats)
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "a", body.Tasks[0].ID)
	assert.Equal(t, models.FormatEPUB, body.Tasks[0].Format)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(downloader.KindInvalidRequest))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(downloader.KindBusy))
	assert.Equal(t, http.StatusNotFound, StatusFor(downloader.KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(downloader.KindFetchFailure))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(downloader.KindInternal))
}

func TestRunStopsOnCancel(t *testing.T) {
	e := New(newFakeDownloader(), Options{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, e, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCORSAndStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>webtoondl</h1>"), 0o644))

	e := New(newFakeDownloader(), Options{StaticDir: dir, CORSOrigins: []string{"https://app.test"}})

	req := httptest.NewRequest(http.MethodOptions, "/download", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.test")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.test", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.test")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlExposeHeaders), echo.HeaderXRequestID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "webtoondl")
}
