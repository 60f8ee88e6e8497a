// handlers_csv.go - Table submission handler
package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/taxonomix/backend/internal/logging"
	"github.com/taxonomix/backend/internal/storage"
)

// AcceptedMessage is returned when a file has been queued.
const AcceptedMessage = "File accepted for processing"

// CSVHandlerImpl implements the CSVHandler interface
type CSVHandlerImpl struct {
	jobs    JobSubmitter
	uploads UploadStore
	logger  *zap.Logger
}

// NewCSVHandler creates a new submission handler. uploads may be nil, in
// which case raw files are not retained.
func NewCSVHandler(jobs JobSubmitter, uploads UploadStore, logger *zap.Logger) CSVHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVHandlerImpl{
		jobs:    jobs,
		uploads: uploads,
		logger:  logger.Named("csv"),
	}
}

type submitResponse struct {
	Message  string `json:"message"`
	TaskID   string `json:"taskId"`
	Filename string `json:"filename"`
}

// HandleSubmitCSV accepts a multipart "file" field and queues it for cleaning.
// It answers as soon as the job is started; outcome is read via progress.
func (h *CSVHandlerImpl) HandleSubmitCSV(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}

	src, err := file.Open()
	if err != nil {
		return NewBadRequestError("failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return NewBadRequestError("failed to read uploaded file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewValidationError("file")
	}

	name := filepath.Base(file.Filename)
	if h.uploads != nil {
		if _, err := h.uploads.SaveUpload(name, bytes.NewReader(data)); err != nil {
			if errors.Is(err, storage.ErrInvalidName) {
				return NewBadRequestError("invalid file name", err)
			}
			return NewInternalError("failed to store upload", err)
		}
	}

	id := h.jobs.Submit(name, data)
	h.logger.Info("file accepted",
		zap.String("job", logging.ShortID(id)),
		zap.String("file", name),
		zap.Int("bytes", len(data)))

	return c.JSON(http.StatusAccepted, submitResponse{
		Message:  AcceptedMessage,
		TaskID:   id,
		Filename: name,
	})
}
