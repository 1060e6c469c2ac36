package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unibuild/controller/model"
	"github.com/unibuild/controller/queue"
)

// @Summary Create a build and queue it for dispatch.
// @Accept json
// @Produce json
// @Success 201 {object} model.Build
// @Failure 400
// @Failure 404 Project not found
// @Param build body queue.CreateBuildRequest true "Build parameters; branch defaults to the project default branch"
// @Router /v1/builds [post]
// @Tags V1
func (s *Server) apiV1CreateBuild(c *gin.Context) {
	var req queue.CreateBuildRequest
	if err := c.BindJSON(&req); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	build, err := s.Queue.CreateBuild(req)
	if err != nil {
		if errors.Is(err, queue.ErrProjectNotFound) {
			c.AbortWithError(http.StatusNotFound, err)
			return
		}
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusCreated, build)
}

// @Summary List recent builds, newest first.
// @Produce json
// @Success 200 {array} model.Build
// @Param projectId query int false "Filter by project"
// @Param limit query int false "Result limit, default 50"
// @Router /v1/builds [get]
// @Tags V1
func (s *Server) apiV1GetBuilds(c *gin.Context) {
	projectId, _ := strconv.ParseInt(c.DefaultQuery("projectId", "0"), 10, 64)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}

	var builds []model.Build
	if err := s.searchRecentBuilds(projectId).Limit(limit).Find(&builds); err != nil {
		c.AbortWithError(http.StatusInternalServerError, errors.New("Failed to get builds from database: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, builds)
}

// @Summary Get one build.
// @Produce json
// @Success 200 {object} model.Build
// @Failure 404
// @Param id path string true "Build id"
// @Router /v1/builds/{id} [get]
// @Tags V1
func (s *Server) apiV1GetBuild(c *gin.Context) {
	var build model.Build
	has, err := s.DB.ID(c.Param("id")).Get(&build)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, errors.New("Failed to get build from database: "+err.Error()))
		return
	}
	if !has {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, build)
}

// @Summary Get the log stream of one build.
// @Produce json
// @Success 200 {array} model.BuildLog
// @Param id path string true "Build id"
// @Router /v1/builds/{id}/logs [get]
// @Tags V1
func (s *Server) apiV1GetBuildLogs(c *gin.Context) {
	var logs []model.BuildLog
	if err := s.DB.Where("build_id = ?", c.Param("id")).Asc("id").Find(&logs); err != nil {
		c.AbortWithError(http.StatusInternalServerError, errors.New("Failed to get build logs from database: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, logs)
}

type cancelBuildRequest struct {
	Reason string `json:"reason,omitempty"`
}

// @Summary Cancel a build. The worker is informed out-of-band; this only
// records the terminal transition.
// @Accept json
// @Success 204
// @Failure 404
// @Param id path string true "Build id"
// @Param body body cancelBuildRequest false "Optional cancellation reason"
// @Router /v1/builds/{id}/cancel [post]
// @Tags V1
func (s *Server) apiV1CancelBuild(c *gin.Context) {
	var req cancelBuildRequest
	c.ShouldBindJSON(&req) // body is optional

	err := s.Queue.UpdateStatus(c.Param("id"), string(model.STATUS_CANCELLED), req.Reason)
	if err != nil {
		if errors.Is(err, queue.ErrBuildNotFound) {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type uploadResultRequest struct {
	Succeeded bool   `json:"succeeded"`
	Detail    string `json:"detail,omitempty"`
}

// @Summary Endpoint for the upload subsystem to report a deployment result.
// @Accept json
// @Success 204
// @Failure 400
// @Failure 404
// @Param id path string true "Build id"
// @Param result body uploadResultRequest true "Upload outcome"
// @Router /v1/builds/{id}/uploadResult [post]
// @Tags V1
func (s *Server) apiV1ReportUploadResult(c *gin.Context) {
	var req uploadResultRequest
	if err := c.BindJSON(&req); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	err := s.Queue.ReportUpload(c.Param("id"), req.Succeeded, req.Detail)
	if err != nil {
		if errors.Is(err, queue.ErrBuildNotFound) {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.Status(http.StatusNoContent)
}
