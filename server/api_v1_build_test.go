package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xorm.io/xorm"

	"github.com/unibuild/controller/hub"
	"github.com/unibuild/controller/message"
	"github.com/unibuild/controller/model"
	"github.com/unibuild/controller/queue"
)

var testDBCounter int64

// nullBroadcaster drops every event; the REST layer is exercised without a
// running hub.
type nullBroadcaster struct{}

func (nullBroadcaster) BroadcastAll(message.Envelope)           {}
func (nullBroadcaster) BroadcastGroup(string, message.Envelope) {}

func newTestServer(t *testing.T) (*Server, *gin.Engine, *xorm.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	engine, err := xorm.NewEngine("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	require.NoError(t, engine.Sync2(
		new(model.Project),
		new(model.Build),
		new(model.BuildLog),
		new(model.BuildPipeline),
		new(model.BuildProcess),
		new(model.Setting),
	))

	s := &Server{
		DB:    engine,
		Queue: queue.NewService(engine, nullBroadcaster{}, nil),
		Hub:   hub.New(nil),
	}
	return s, s.NewRouter(), engine
}

func seedProject(t *testing.T, engine *xorm.Engine) *model.Project {
	t.Helper()
	project := &model.Project{
		Name:          "demo",
		RepositoryURL: "https://example.com/demo.git",
		DefaultBranch: "main",
		BuildPath:     "Builds/Client",
	}
	_, err := engine.Insert(project)
	require.NoError(t, err)
	return project
}

func perform(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateBuildEndpoint(t *testing.T) {
	_, router, engine := newTestServer(t)
	project := seedProject(t, engine)

	w := perform(router, http.MethodPost, "/api/v1/builds", queue.CreateBuildRequest{
		ProjectId: project.Id,
		Backend:   "Mono",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var build model.Build
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &build))
	assert.Equal(t, "main", build.Branch)
	assert.Equal(t, int64(1), build.BuildNumber)
	assert.Equal(t, model.STATUS_QUEUED, build.Status)
}

func TestCreateBuildEndpointUnknownProject(t *testing.T) {
	_, router, _ := newTestServer(t)

	w := perform(router, http.MethodPost, "/api/v1/builds", queue.CreateBuildRequest{
		ProjectId: 999,
		Backend:   "Mono",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetBuildEndpoint(t *testing.T) {
	s, router, engine := newTestServer(t)
	project := seedProject(t, engine)

	build, err := s.Queue.CreateBuild(queue.CreateBuildRequest{ProjectId: project.Id, Backend: "Mono"})
	require.NoError(t, err)

	w := perform(router, http.MethodGet, "/api/v1/builds/"+build.Id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodGet, "/api/v1/builds/bogus", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelBuildEndpoint(t *testing.T) {
	s, router, engine := newTestServer(t)
	project := seedProject(t, engine)

	build, err := s.Queue.CreateBuild(queue.CreateBuildRequest{ProjectId: project.Id, Backend: "Mono"})
	require.NoError(t, err)

	w := perform(router, http.MethodPost, "/api/v1/builds/"+build.Id+"/cancel", cancelBuildRequest{Reason: "not needed"})
	require.Equal(t, http.StatusNoContent, w.Code)

	var reloaded model.Build
	_, err = engine.ID(build.Id).Get(&reloaded)
	require.NoError(t, err)
	assert.Equal(t, model.STATUS_CANCELLED, reloaded.Status)
	assert.Equal(t, "not needed", reloaded.ErrorMessage)

	w = perform(router, http.MethodPost, "/api/v1/builds/bogus/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadResultEndpoint(t *testing.T) {
	s, router, engine := newTestServer(t)
	project := seedProject(t, engine)

	build, err := s.Queue.CreateBuild(queue.CreateBuildRequest{ProjectId: project.Id, Backend: "Mono"})
	require.NoError(t, err)

	w := perform(router, http.MethodPost, "/api/v1/builds/"+build.Id+"/uploadResult", uploadResultRequest{
		Succeeded: true,
		Detail:    "uploaded to steam",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	var reloaded model.Build
	_, err = engine.ID(build.Id).Get(&reloaded)
	require.NoError(t, err)
	assert.Equal(t, "uploaded to steam", reloaded.DeployStatus)
}

func TestPipelineProcessesEndpoint(t *testing.T) {
	_, router, engine := newTestServer(t)

	pipeline := &model.BuildPipeline{Name: "release"}
	_, err := engine.Insert(pipeline)
	require.NoError(t, err)

	for _, p := range []model.BuildProcess{
		{PipelineId: pipeline.Id, Name: "late", Phase: model.PHASE_PRE_BUILD, Order: 5, Enabled: true},
		{PipelineId: pipeline.Id, Name: "early", Phase: model.PHASE_PRE_BUILD, Order: 1, Enabled: true},
		{PipelineId: pipeline.Id, Name: "off", Phase: model.PHASE_PRE_BUILD, Order: 0, Enabled: false},
	} {
		p := p
		_, err := engine.Insert(&p)
		require.NoError(t, err)
	}

	w := perform(router, http.MethodGet, fmt.Sprintf("/api/v1/pipelines/%d/processes?phase=PreBuild", pipeline.Id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var processes []model.BuildProcess
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &processes))
	require.Len(t, processes, 2)
	assert.Equal(t, "early", processes[0].Name)
	assert.Equal(t, "late", processes[1].Name)

	w = perform(router, http.MethodGet, fmt.Sprintf("/api/v1/pipelines/%d/processes?phase=Sideways", pipeline.Id), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
