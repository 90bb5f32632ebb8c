package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/esgledger-backend/internal/handlers"
)

type RouterConfig struct {
	DatasetHandler *handlers.DatasetHandler
	QaHandler      *handlers.QaHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Datasets
		api.POST("/datasets", cfg.DatasetHandler.Store)
		api.GET("/datasets/:id/data", cfg.DatasetHandler.GetData)
		api.GET("/datasets/:id/data-point-ids", cfg.DatasetHandler.GetDataPointIDs)
		api.DELETE("/datasets/:id", cfg.DatasetHandler.Delete)

		// Reviews
		api.POST("/qa/datasets/:id/review", cfg.QaHandler.ReviewDataset)
		api.POST("/qa/data-points/review", cfg.QaHandler.ReviewDataPoints)
		api.GET("/qa/subjects/:id/status", cfg.QaHandler.CurrentStatus)
		api.GET("/qa/subjects/:id/history", cfg.QaHandler.History)
		api.GET("/qa/review-queue", cfg.QaHandler.ReviewQueue)
		api.GET("/qa/currently-active", cfg.QaHandler.CurrentlyActive)

		// Reports
		api.POST("/qa/datasets/:id/reports", cfg.QaHandler.CreateDatasetReport)
		api.GET("/qa/datasets/:id/reports", cfg.QaHandler.GetDatasetReports)
		api.POST("/qa/reports/:id/active", cfg.QaHandler.SetReportActive)
		api.POST("/qa/data-points/:id/reports", cfg.QaHandler.CreateDataPointReport)
		api.POST("/qa/datasets/:id/migrate-reports", cfg.QaHandler.MigrateDatasetReports)
	}

	return router
}
