package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/moji/internal/language"
	"github.com/fmueller/moji/internal/metrics"
	"github.com/fmueller/moji/internal/pipeline"
	"github.com/fmueller/moji/internal/progress"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	formatJSON = "json"
	formatText = "text"
)

type handlers struct {
	transcriber    Transcriber
	models         ModelStatus
	metrics        *metrics.Metrics
	uploadDir      string
	maxUploadBytes int64
	logger         *zap.Logger
}

type transcriptionResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Language   string `json:"language"`
	Text       string `json:"text"`
	DurationMS int64  `json:"duration_ms"`
}

type languageResponse struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

func (h *handlers) health(c *gin.Context) {
	state := "unknown"
	if h.models != nil {
		state = h.models.State().String()
	}
	status := http.StatusOK
	if state == pipeline.ModelFailed.String() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "model": state})
}

func (h *handlers) languages(c *gin.Context) {
	options := language.Supported()
	out := make([]languageResponse, 0, len(options))
	for _, option := range options {
		code := option.Code
		if code == "" {
			code = language.Auto.String()
		}
		out = append(out, languageResponse{Code: code, Label: option.Label})
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) createTranscription(c *gin.Context) {
	started := time.Now()
	id := requestIDFrom(c)
	if c.Request.ContentLength > h.maxUploadBytes {
		abortWithError(c, &apiError{Kind: kindTooLarge, Message: fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes)})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, &apiError{Kind: kindTooLarge, Message: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		abortWithError(c, &apiError{Kind: kindBadRequest, Message: "multipart field \"file\" is required"})
		return
	}

	hint, err := language.Parse(c.PostForm("language"))
	if err != nil {
		abortWithError(c, &apiError{Kind: kindValidation, Message: err.Error()})
		return
	}
	format := strings.ToLower(c.DefaultPostForm("format", formatJSON))
	if format != formatJSON && format != formatText {
		abortWithError(c, &apiError{Kind: kindValidation, Message: fmt.Sprintf("format must be %q or %q", formatJSON, formatText)})
		return
	}

	h.metrics.ObserveUpload(file.Size)
	uploadPath, err := h.saveUpload(file)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, &apiError{Kind: kindInternal, Message: "could not store upload"})
		return
	}
	defer func() {
		if err := os.Remove(uploadPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("upload cleanup failed", zap.String("request_id", id), zap.String("path", uploadPath), zap.Error(err))
		}
	}()

	log := h.logger.With(zap.String("request_id", id))
	sink := progress.Func(func(fraction float64, stage string) {
		log.Debug("transcription progress", zap.Float64("fraction", fraction), zap.String("stage", stage))
	})

	text, err := h.transcriber.Transcribe(c.Request.Context(), pipeline.Request{
		ID:         id,
		SourcePath: uploadPath,
		Language:   hint,
	}, sink)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, fromPipelineError(err))
		return
	}

	if format == formatText {
		c.String(http.StatusOK, text)
		return
	}
	c.JSON(http.StatusOK, transcriptionResponse{
		ID:         id,
		Filename:   file.Filename,
		Language:   hint.String(),
		Text:       text,
		DurationMS: time.Since(started).Milliseconds(),
	})
}

// saveUpload copies the multipart file to a private temp file that keeps the
// original extension so ffmpeg can use it as a container hint.
func (h *handlers) saveUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.uploadDir, "moji-upload-*"+uploadExt(header.Filename))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	path := dst.Name()

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

func uploadExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
