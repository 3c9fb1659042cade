package predict

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/neuroscan/neuroscan-api/internal/handler"
	"github.com/neuroscan/neuroscan-api/internal/reasoner"
	"github.com/neuroscan/neuroscan-api/internal/service/scan"
	apperrors "github.com/neuroscan/neuroscan-api/pkg/errors"
)

const maxImageSize = 20 << 20

// Handler exposes the public, stateless classification preview.
// Nothing is persisted and no authentication is required.
type Handler struct {
	scans scan.Service
}

func NewHandler(scans scan.Service) *Handler {
	return &Handler{scans: scans}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/predict", h.Predict)
}

func (h *Handler) Predict(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("file is required"))
		return
	}
	if fileHeader.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("file too large"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("failed to read file"))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("failed to read file"))
		return
	}

	// Optional demographics only influence the reasoning text.
	patient := reasoner.PatientContext{Gender: c.PostForm("gender")}
	if age, err := strconv.Atoi(c.PostForm("age")); err == nil && age > 0 {
		patient.Age = age
	}

	preview, err := h.scans.Predict(c.Request.Context(), image, fileHeader.Filename, patient)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(preview))
}
