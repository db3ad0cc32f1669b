package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRunner writes a fixed output file or fails
type stubRunner struct {
	err error
}

func (r stubRunner) RunTracked(ctx context.Context, input, outputDir string, tracker *pipeline.Progress) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	out := pipeline.OutputPath(input, outputDir)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", err
	}
	return out, os.WriteFile(out, []byte("%PDF-1.3 translated"), 0644)
}

func upload(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	part.Write(content)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/translate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func submit(t *testing.T, s *Server, router http.Handler) string {
	t.Helper()
	w := upload(t, router, "report.pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["taskId"])
	s.Wait()
	return resp["taskId"]
}

func TestHealthz(t *testing.T) {
	s := New(stubRunner{}, t.TempDir())
	defer s.Close()

	w := get(s.Router(), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestTranslateAndDownload(t *testing.T) {
	s := New(stubRunner{}, t.TempDir())
	defer s.Close()
	router := s.Router()

	taskID := submit(t, s, router)

	w := get(router, "/api/status/"+taskID)
	require.Equal(t, http.StatusOK, w.Code)
	var task Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, "report.pdf", task.SourceFile)
	assert.Equal(t, 1.0, task.Progress)
	assert.NotNil(t, task.CompletedAt)
	assert.NotContains(t, w.Body.String(), "outputPath", "server paths stay private")

	w = get(router, "/api/download/"+taskID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.3 translated", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report_translated.pdf")

	w = get(router, "/api/tasks")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Tasks []Task `json:"tasks"`
		Total int    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, taskID, list.Tasks[0].ID)
}

func TestTranslateFailure(t *testing.T) {
	s := New(stubRunner{err: types.NewAppError(types.ErrEmptyDocument, "document has no pages", nil)}, t.TempDir())
	defer s.Close()
	router := s.Router()

	taskID := submit(t, s, router)

	task, ok := s.tasks.GetTask(taskID)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Contains(t, task.Error, "no pages")

	w := get(router, "/api/download/"+taskID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranslateRejectsBadUploads(t *testing.T) {
	s := New(stubRunner{}, t.TempDir())
	defer s.Close()
	router := s.Router()

	w := upload(t, router, "notes.docx", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/translate", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, s.tasks.ListTasks())
}

func TestUnknownTask(t *testing.T) {
	s := New(stubRunner{}, t.TempDir())
	defer s.Close()
	router := s.Router()

	assert.Equal(t, http.StatusNotFound, get(router, "/api/status/nope").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/api/download/nope").Code)
}

func TestCloseCancelsRunningTasks(t *testing.T) {
	started := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, input, outputDir string, tracker *pipeline.Progress) (string, error) {
		close(started)
		<-ctx.Done()
		return "", types.NewAppError(types.ErrCancelled, "run cancelled", ctx.Err())
	})

	s := New(runner, t.TempDir())
	router := s.Router()
	w := upload(t, router, "doc.pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusOK, w.Code)

	<-started
	tasks := s.tasks.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, StatusProcessing, tasks[0].Status)

	s.Close()
	task, _ := s.tasks.GetTask(tasks[0].ID)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Contains(t, task.Error, "cancelled")
}

type runnerFunc func(ctx context.Context, input, outputDir string, tracker *pipeline.Progress) (string, error)

func (f runnerFunc) RunTracked(ctx context.Context, input, outputDir string, tracker *pipeline.Progress) (string, error) {
	return f(ctx, input, outputDir, tracker)
}

func TestTaskProgressFromTracker(t *testing.T) {
	tm := NewTaskManager()
	tracker := pipeline.NewProgress(nil)
	tm.AddTask(&Task{ID: "a", Status: StatusProcessing, tracker: tracker})

	task, ok := tm.GetTask("a")
	require.True(t, ok)
	assert.Equal(t, 0.0, task.Progress)
	assert.Nil(t, task.tracker)
}
