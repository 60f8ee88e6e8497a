// handlers_download.go - Cleaned output download
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taxonomix/backend/internal/storage"
)

// DownloadHandlerImpl implements the DownloadHandler interface
type DownloadHandlerImpl struct {
	outputs OutputStore
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(outputs OutputStore) DownloadHandler {
	return &DownloadHandlerImpl{outputs: outputs}
}

// HandleDownload sends the cleaned table stored under :filename as a CSV attachment
func (h *DownloadHandlerImpl) HandleDownload(c echo.Context) error {
	name := c.Param("filename")
	if name == "" {
		return NewValidationError("filename")
	}

	f, info, err := h.outputs.Open(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return NewNotFoundError("file", name)
		}
		return NewInternalError("failed to open file", err)
	}
	defer f.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", info.Name))
	header.Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	return c.Stream(http.StatusOK, "text/csv; charset=utf-8", f)
}
