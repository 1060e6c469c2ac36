package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unibuild/controller/model"
)

// @Summary List the enabled processes of one pipeline phase in execution
// order. This is the list a worker must run strictly in the returned order.
// @Produce json
// @Success 200 {array} model.BuildProcess
// @Failure 400
// @Param id path int true "Pipeline id"
// @Param phase query string true "PreBuild or PostBuild"
// @Router /v1/pipelines/{id}/processes [get]
// @Tags V1
func (s *Server) apiV1GetPipelineProcesses(c *gin.Context) {
	pipelineId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	phase, ok := model.ParseProcessPhase(c.Query("phase"))
	if !ok {
		c.AbortWithError(http.StatusBadRequest, errors.New("Unknown phase, expected PreBuild or PostBuild"))
		return
	}

	processes, err := s.Queue.ListProcesses(pipelineId, phase)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, processes)
}
