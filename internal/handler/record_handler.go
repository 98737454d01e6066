package handler

import (
	"errors"
	"net/http"

	"taxadmin/internal/service"
	"taxadmin/internal/upstream"
	"taxadmin/pkg/response"

	"github.com/gin-gonic/gin"
)

type RecordHandler struct {
	recordService service.RecordService
}

func NewRecordHandler(recordService service.RecordService) *RecordHandler {
	return &RecordHandler{recordService: recordService}
}

func (h *RecordHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	{
		api.GET("/countries", h.ListCountries)
		api.GET("/tax-records", h.ListRecords)
		api.PUT("/tax-records/:id", h.UpdateRecord)
		api.POST("/tax-records/refresh", h.Refresh)
	}
}

// ListCountries returns the known countries, optionally filtered by substring
// @Summary      List countries
// @Tags         countries
// @Produce      json
// @Param        search  query     string  false  "Case-insensitive substring filter"
// @Success      200     {object}  response.Response
// @Router       /api/countries [get]
func (h *RecordHandler) ListCountries(c *gin.Context) {
	countries := h.recordService.ListCountries(c.Request.Context(), c.Query("search"))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, countries))
}

// ListRecords returns the working set, restricted to the selected countries
// @Summary      List tax records
// @Tags         tax-records
// @Produce      json
// @Param        country  query     []string  false  "Country names to show; none means all"
// @Success      200      {object}  response.Response
// @Router       /api/tax-records [get]
func (h *RecordHandler) ListRecords(c *gin.Context) {
	records := h.recordService.ListRecords(c.Request.Context(), c.QueryArray("country"))
	c.JSON(http.StatusOK, response.Success(http.StatusOK, records))
}

// UpdateRecord changes a record's name and country via the upstream API
// @Summary      Update tax record
// @Tags         tax-records
// @Accept       json
// @Produce      json
// @Param        id       path  string                        true  "Record ID"
// @Param        payload  body  service.UpdateRecordRequest   true  "Edited fields"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      502  {object}  response.Response
// @Router       /api/tax-records/{id} [put]
func (h *RecordHandler) UpdateRecord(c *gin.Context) {
	id := c.Param("id")

	var req service.UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	record, err := h.recordService.UpdateRecord(c.Request.Context(), id, req)
	if err != nil {
		status := http.StatusBadRequest
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) {
			status = http.StatusBadGateway
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, record))
}

// Refresh re-runs the load sequence against the upstream API
// @Summary      Refresh the working set
// @Tags         tax-records
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      502  {object}  response.Response
// @Router       /api/tax-records/refresh [post]
func (h *RecordHandler) Refresh(c *gin.Context) {
	if err := h.recordService.Load(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, response.Error(http.StatusBadGateway, err.Error()))
		return
	}

	records := h.recordService.ListRecords(c.Request.Context(), nil)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, records))
}
