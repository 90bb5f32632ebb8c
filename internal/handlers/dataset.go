package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/events"
	"github.com/yungbote/esgledger-backend/internal/platform/apierr"
	"github.com/yungbote/esgledger-backend/internal/platform/dbctx"
	"github.com/yungbote/esgledger-backend/internal/services"
)

type DatasetHandler struct {
	datasetService services.DatasetService
}

func NewDatasetHandler(datasetService services.DatasetService) *DatasetHandler {
	return &DatasetHandler{datasetService: datasetService}
}

type storeDatasetRequest struct {
	DataType          string          `json:"dataType" binding:"required"`
	CompanyID         uuid.UUID       `json:"companyId" binding:"required"`
	CompanyName       string          `json:"companyName"`
	ReportingPeriod   string          `json:"reportingPeriod" binding:"required"`
	UploaderID        uuid.UUID       `json:"uploaderId" binding:"required"`
	Data              json.RawMessage `json:"data" binding:"required"`
	PresetStatus      *string         `json:"presetQaStatus,omitempty"`
	CopyQaFromDataset *uuid.UUID      `json:"copyQaFromDatasetId,omitempty"`
}

func (h *DatasetHandler) Store(c *gin.Context) {
	var req storeDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	storeReq := services.StoreDatasetRequest{
		DataType:        req.DataType,
		CompanyID:       req.CompanyID,
		CompanyName:     req.CompanyName,
		ReportingPeriod: req.ReportingPeriod,
		UploaderID:      req.UploaderID,
		Data:            req.Data,
		InitialQa: events.InitialQa{
			CopyFromDatasetID: req.CopyQaFromDataset,
		},
	}
	if req.PresetStatus != nil {
		status := domain.QaStatus(*req.PresetStatus)
		storeReq.InitialQa.PresetStatus = &status
	}

	dataset, err := h.datasetService.StoreDataset(dbctx.Context{Ctx: c.Request.Context()}, storeReq)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"dataset": dataset})
}

func (h *DatasetHandler) GetData(c *gin.Context) {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return
	}
	data, err := h.datasetService.GetDatasetData(dbctx.Context{Ctx: c.Request.Context()}, datasetID)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (h *DatasetHandler) GetDataPointIDs(c *gin.Context) {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return
	}
	ids, err := h.datasetService.GetDataPointIDs(dbctx.Context{Ctx: c.Request.Context()}, datasetID)
	if err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataPointIds": ids})
}

func (h *DatasetHandler) Delete(c *gin.Context) {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return
	}
	if err := h.datasetService.DeleteDataset(dbctx.Context{Ctx: c.Request.Context()}, datasetID); err != nil {
		c.JSON(apierr.StatusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
