package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/platform/apierr"
	"github.com/yungbote/esgledger-backend/internal/platform/dbctx"
	"github.com/yungbote/esgledger-backend/internal/services"
)

type QaHandler struct {
	reviewService    services.ReviewService
	qaReportService  services.QaReportService
	migrationService services.MigrationService
}

func NewQaHandler(
	reviewService services.ReviewService,
	qaReportService services.QaReportService,
	migrationService services.MigrationService,
) *QaHandler {
	return &QaHandler{
		reviewService:    reviewService,
		qaReportService:  qaReportService,
		migrationService: migrationService,
	}
}

type reviewDatasetRequest struct {
	ReviewerID   uuid.UUID       `json:"reviewerId" binding:"required"`
	Status       domain.QaStatus `json:"status" binding:"required"`
	Comment      *string         `json:"comment,omitempty"`
	OverwriteAll bool            `json:"overwriteAll"`
}

func (h *QaHandler) ReviewDataset(c *gin.Context) {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return
	}
	var req reviewDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	records, err := h.reviewService.ReviewDataset(dbctx.Context{Ctx: c.Request.Context()},
		req.ReviewerID, datasetID, req.Status, req.Comment, req.OverwriteAll)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"records": records})
}

type reviewDataPointsRequest struct {
	ReviewerID uuid.UUID `json:"reviewerId" binding:"required"`
	Reviews    []struct {
		DataPointID uuid.UUID       `json:"dataPointId" binding:"required"`
		Status      domain.QaStatus `json:"status" binding:"required"`
		Comment     *string         `json:"comment,omitempty"`
	} `json:"reviews" binding:"required"`
}

func (h *QaHandler) ReviewDataPoints(c *gin.Context) {
	var req reviewDataPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reviews := make([]services.DataPointReview, 0, len(req.Reviews))
	for _, review := range req.Reviews {
		reviews = append(reviews, services.DataPointReview{
			DataPointID: review.DataPointID,
			Status:      review.Status,
			Comment:     review.Comment,
		})
	}
	records, err := h.reviewService.ReviewDataPoints(dbctx.Context{Ctx: c.Request.Context()}, req.ReviewerID, reviews)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"records": records})
}

func (h *QaHandler) CurrentStatus(c *gin.Context) {
	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject id"})
		return
	}
	record, err := h.reviewService.CurrentStatus(dbctx.Context{Ctx: c.Request.Context()}, subjectID)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": record})
}

func (h *QaHandler) History(c *gin.Context) {
	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject id"})
		return
	}
	records, err := h.reviewService.History(dbctx.Context{Ctx: c.Request.Context()}, subjectID)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *QaHandler) ReviewQueue(c *gin.Context) {
	subjectType := domain.SubjectType(c.DefaultQuery("subjectType", string(domain.SubjectTypeDataset)))
	if subjectType != domain.SubjectTypeDataset && subjectType != domain.SubjectTypeDataPoint {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject type"})
		return
	}
	records, err := h.reviewService.ReviewQueue(dbctx.Context{Ctx: c.Request.Context()}, subjectType)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *QaHandler) CurrentlyActive(c *gin.Context) {
	companyID, err := uuid.Parse(c.Query("companyId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return
	}
	dataType := c.Query("dataType")
	reportingPeriod := c.Query("reportingPeriod")
	if dataType == "" || reportingPeriod == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dataType and reportingPeriod required"})
		return
	}
	id, err := h.reviewService.CurrentlyActiveSubjectID(dbctx.Context{Ctx: c.Request.Context()},
		companyID, dataType, reportingPeriod)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	if id == uuid.Nil {
		c.JSON(http.StatusOK, gin.H{"currentlyActiveId": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"currentlyActiveId": id})
}

type createDatasetReportRequest struct {
	ReporterID uuid.UUID                         `json:"reporterId" binding:"required"`
	Report     map[string]services.QaReportEntry `json:"report" binding:"required"`
}

func (h *QaHandler) CreateDatasetReport(c *gin.Context) {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return
	}
	var req createDatasetReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := h.qaReportService.CreateForDataset(dbctx.Context{Ctx: c.Request.Context()},
		req.ReporterID, datasetID, req.Report)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"report": report})
}

func (h *QaHandler) GetDatasetReports(c *gin.Context) {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return
	}
	reports, err := h.qaReportService.GetForDataset(dbctx.Context{Ctx: c.Request.Context()}, datasetID)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

type setReportActiveRequest struct {
	Active bool `json:"active"`
}

func (h *QaHandler) SetReportActive(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}
	var req setReportActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.qaReportService.SetActive(dbctx.Context{Ctx: c.Request.Context()}, reportID, req.Active); err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type createDataPointReportRequest struct {
	ReporterID uuid.UUID              `json:"reporterId" binding:"required"`
	Entry      services.QaReportEntry `json:"entry" binding:"required"`
}

func (h *QaHandler) CreateDataPointReport(c *gin.Context) {
	dataPointID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data point id"})
		return
	}
	var req createDataPointReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := h.qaReportService.CreateForDataPoint(dbctx.Context{Ctx: c.Request.Context()},
		req.ReporterID, dataPointID, req.Entry)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"report": report})
}

func (h *QaHandler) MigrateDatasetReports(c *gin.Context) {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return
	}
	migrated, err := h.migrationService.MigrateAllForDataset(dbctx.Context{Ctx: c.Request.Context()}, datasetID)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"migrated": migrated})
}
