// Package server exposes the translation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/pipeline"
)

// MaxUploadSize bounds multipart memory for uploads
const MaxUploadSize = 100 << 20

// Runner translates one document; *pipeline.Pipeline implements it
type Runner interface {
	RunTracked(ctx context.Context, input, outputDir string, tracker *pipeline.Progress) (string, error)
}

// Server runs uploaded documents through a Runner in the background
type Server struct {
	runner    Runner
	tasks     *TaskManager
	uploadDir string
	outputDir string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Server storing uploads and results under dataDir
func New(runner Runner, dataDir string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		runner:    runner,
		tasks:     NewTaskManager(),
		uploadDir: filepath.Join(dataDir, "uploads"),
		outputDir: filepath.Join(dataDir, "outputs"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.MaxMultipartMemory = MaxUploadSize

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/translate", s.TranslateHandler)
		api.GET("/status/:taskId", s.GetStatusHandler)
		api.GET("/download/:taskId", s.DownloadHandler)
		api.GET("/tasks", s.GetTasksHandler)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then cancels running
// tasks and waits for them.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close cancels running tasks and waits for them to finish
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every background task has finished
func (s *Server) Wait() {
	s.wg.Wait()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("elapsed", time.Since(start)))
	}
}

// TranslateHandler 处理翻译请求
func (s *Server) TranslateHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing upload field \"file\""})
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .pdf files are supported"})
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		logger.Error("failed to create upload directory", err, logger.String("dir", s.uploadDir))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	taskID := uuid.New().String()
	sourcePath := filepath.Join(s.uploadDir, taskID+".pdf")
	if err := c.SaveUploadedFile(file, sourcePath); err != nil {
		logger.Error("failed to save upload", err, logger.String("taskId", taskID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	s.tasks.AddTask(&Task{
		ID:         taskID,
		SourceFile: filepath.Base(file.Filename),
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	})

	s.wg.Add(1)
	go s.process(taskID, sourcePath)

	logger.Info("translation task created",
		logger.String("taskId", taskID),
		logger.String("file", file.Filename))
	c.JSON(http.StatusOK, gin.H{"taskId": taskID, "message": "translation task created"})
}

// process 处理翻译任务
func (s *Server) process(taskID, sourcePath string) {
	defer s.wg.Done()
	log := logger.With(logger.String("taskId", taskID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("translation panicked", nil, logger.Any("panic", r))
			s.tasks.UpdateTask(taskID, func(t *Task) {
				t.Status = StatusFailed
				t.Error = "internal error"
			})
		}
	}()

	tracker := pipeline.NewProgress(func(e pipeline.Event) {
		s.tasks.UpdateTask(taskID, func(t *Task) {
			t.Stage = e.Stage
			t.Message = e.Message
			if e.Stage == pipeline.StageDegraded {
				t.Diagnostics = append(t.Diagnostics, pipeline.Diagnostic{Page: e.Page, Stage: e.Stage, Message: e.Message})
			}
		})
	})

	s.tasks.UpdateTask(taskID, func(t *Task) {
		t.Status = StatusProcessing
		t.tracker = tracker
	})

	outPath, err := s.runner.RunTracked(s.ctx, sourcePath, s.outputDir, tracker)
	if err != nil {
		log.Error("translation failed", err)
		percent := tracker.Snapshot().Percent
		s.tasks.UpdateTask(taskID, func(t *Task) {
			t.Status = StatusFailed
			t.Error = err.Error()
			t.Progress = float64(percent) / 100
		})
		return
	}

	now := time.Now()
	s.tasks.UpdateTask(taskID, func(t *Task) {
		t.Status = StatusCompleted
		t.Progress = 1
		t.OutputPath = outPath
		t.CompletedAt = &now
	})
	log.Info("translation completed", logger.String("output", outPath))
}

// GetStatusHandler 获取任务状态
func (s *Server) GetStatusHandler(c *gin.Context) {
	task, ok := s.tasks.GetTask(c.Param("taskId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// DownloadHandler 下载翻译后的文件
func (s *Server) DownloadHandler(c *gin.Context) {
	task, ok := s.tasks.GetTask(c.Param("taskId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if task.Status != StatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task not completed"})
		return
	}

	name := strings.TrimSuffix(task.SourceFile, filepath.Ext(task.SourceFile))
	c.FileAttachment(task.OutputPath, name+"_translated.pdf")
}

// GetTasksHandler 获取所有任务
func (s *Server) GetTasksHandler(c *gin.Context) {
	tasks := s.tasks.ListTasks()
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "total": len(tasks)})
}
