package patient

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/neuroscan/neuroscan-api/internal/handler"
	"github.com/neuroscan/neuroscan-api/internal/middleware"
	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/internal/service/patient"
	"github.com/neuroscan/neuroscan-api/internal/service/scan"
	apperrors "github.com/neuroscan/neuroscan-api/pkg/errors"
)

// maxScanSize caps uploaded image size at 20 MiB.
const maxScanSize = 20 << 20

type Handler struct {
	patients patient.Service
	scans    scan.Service
}

func NewHandler(patients patient.Service, scans scan.Service) *Handler {
	return &Handler{patients: patients, scans: scans}
}

// RegisterRoutes wires the endpoints available to any authenticated user.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("/create", h.CreatePatient)
		patients.GET("/my-patients", h.ListPatients)
		patients.GET("/patient/:uid", h.GetPatientDetail)
		patients.GET("/patient/:uid/scans", h.ListPatientScans)
		patients.GET("/by-uid/:uid", h.GetPatientByUID)
		patients.POST("/upload-scan", h.UploadScan)
		patients.GET("/my-scans", h.ListMyScans)
	}
}

// RegisterDoctorRoutes wires the endpoints gated to the doctor role.
// The router applies RequireRole before this group.
func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("/scans", h.ListAllScans)
		patients.GET("/doctor-registry", h.DoctorRegistry)
		patients.GET("/scan/:id", h.GetScan)
		patients.POST("/scan/:id/review", h.AddReview)
		patients.GET("/scan/:id/reviews", h.ListScanReviews)
		patients.GET("/scan/:id/report", h.GetScanReport)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.patients.Create(c.Request.Context(), &req)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.patients.List(c.Request.Context())
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

func (h *Handler) GetPatientDetail(c *gin.Context) {
	detail, err := h.patients.GetDetail(c.Request.Context(), c.Param("uid"))
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(detail))
}

func (h *Handler) GetPatientByUID(c *gin.Context) {
	p, err := h.patients.GetByUID(c.Request.Context(), c.Param("uid"))
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

// UploadScan is the intake endpoint: a multipart form with the patient
// UID, the MRI image and an optional acquisition timestamp.
func (h *Handler) UploadScan(c *gin.Context) {
	userID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	patientUID := c.PostForm("patient_id")
	if patientUID == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("patient_id is required"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("file is required"))
		return
	}
	if fileHeader.Size > maxScanSize {
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

	created, err := h.scans.Ingest(c.Request.Context(), &scan.IngestRequest{
		PatientUID:  patientUID,
		Image:       image,
		Filename:    fileHeader.Filename,
		ScanDateRaw: c.PostForm("scan_date"),
		UploadedBy:  userID,
	})
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListMyScans(c *gin.Context) {
	userID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	scans, err := h.scans.ListByUploader(c.Request.Context(), userID)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(scans))
}

func (h *Handler) ListAllScans(c *gin.Context) {
	scans, err := h.scans.ListAll(c.Request.Context())
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(scans))
}

func (h *Handler) DoctorRegistry(c *gin.Context) {
	registry, err := h.patients.Registry(c.Request.Context())
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(registry))
}

func (h *Handler) ListPatientScans(c *gin.Context) {
	scans, err := h.scans.ListByPatientUID(c.Request.Context(), c.Param("uid"))
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(scans))
}

func (h *Handler) GetScan(c *gin.Context) {
	scanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid scan ID"))
		return
	}

	s, err := h.scans.Get(c.Request.Context(), scanID)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(s))
}

func (h *Handler) ListScanReviews(c *gin.Context) {
	scanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid scan ID"))
		return
	}

	reviews, err := h.scans.ListReviews(c.Request.Context(), scanID)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(reviews))
}

func (h *Handler) GetScanReport(c *gin.Context) {
	scanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid scan ID"))
		return
	}

	report, err := h.scans.GetReport(c.Request.Context(), scanID)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(report))
}

func (h *Handler) AddReview(c *gin.Context) {
	doctorID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	scanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid scan ID"))
		return
	}

	var req model.AddReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	review, err := h.scans.AddReview(c.Request.Context(), doctorID, scanID, &req)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(review))
}
