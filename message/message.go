// Package message defines the wire format shared by the broadcast hub and
// its clients: one JSON envelope per event plus the typed payloads.
package message

import "github.com/unibuild/controller/model"

// Outbound event types.
const (
	TYPE_BUILD_QUEUED              = "BuildQueued"
	TYPE_AGENT_CONNECTED           = "AgentConnected"
	TYPE_BUILD_PROGRESS            = "BuildProgress"
	TYPE_BUILD_STATUS_UPDATED      = "BuildStatusUpdated"
	TYPE_BUILD_LOG_ADDED           = "BuildLogAdded"
	TYPE_BUILD_COMPLETED           = "BuildCompleted"
	TYPE_BUILD_COMMIT_HASH_UPDATED = "BuildCommitHashUpdated"
)

// BuildGroup names the per-build viewer group.
func BuildGroup(buildID string) string {
	return "build-" + buildID
}

type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// BuildQueued announces a dispatched job to workers. It carries enough
// denormalized project data that a worker can start without a second
// request.
type BuildQueued struct {
	BuildId       string `json:"buildId"`
	BuildNumber   int64  `json:"buildNumber"`
	ProjectId     int64  `json:"projectId"`
	ProjectName   string `json:"projectName"`
	RepositoryURL string `json:"repositoryUrl"`
	Branch        string `json:"branch"`
	Backend       string `json:"backend"`
	BuildPath     string `json:"buildPath"`
	DeployBranch  string `json:"deployBranch,omitempty"`
}

type AgentConnected struct {
	AgentName string `json:"agentName"`
}

type BuildProgress struct {
	BuildId  string  `json:"buildId"`
	Stage    string  `json:"stage"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

type BuildStatusUpdated struct {
	BuildId      string            `json:"buildId"`
	Status       model.BuildStatus `json:"status"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}

type BuildLogAdded struct {
	BuildId string         `json:"buildId"`
	Log     model.BuildLog `json:"log"`
}

type BuildCompleted struct {
	BuildId    string `json:"buildId"`
	Success    bool   `json:"success"`
	OutputPath string `json:"outputPath,omitempty"`
	BuildSize  int64  `json:"buildSize,omitempty"`
}

type BuildCommitHashUpdated struct {
	BuildId    string `json:"buildId"`
	CommitHash string `json:"commitHash,omitempty"`
}
