// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"io"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/taxonomix/backend/internal/models"
	"github.com/taxonomix/backend/internal/storage"
)

// CSVHandler accepts tables for cleaning
type CSVHandler interface {
	HandleSubmitCSV(c echo.Context) error
}

// ProgressHandler reports job progress
type ProgressHandler interface {
	HandleProgress(c echo.Context) error
	HandleProgressStream(c echo.Context) error
}

// DownloadHandler serves cleaned outputs
type DownloadHandler interface {
	HandleDownload(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
	HandlePing(c echo.Context) error
}

// JobSubmitter starts background processing of an uploaded file.
// Implemented by *pipeline.Manager.
type JobSubmitter interface {
	Submit(filename string, data []byte) string
}

// ProgressSource reads the poll payload of a job.
// Implemented by *jobs.Tracker.
type ProgressSource interface {
	Status(ctx context.Context, id string) (models.Progress, error)
}

// UploadStore keeps the raw bytes of submitted files.
type UploadStore interface {
	SaveUpload(name string, r io.Reader) (int64, error)
}

// OutputStore looks up cleaned outputs by filename.
type OutputStore interface {
	Open(name string) (*os.File, *storage.FileInfo, error)
}
