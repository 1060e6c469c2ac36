package model

import "time"

type BuildStatus string
type LogLevel string
type BuildStage string

const (
	STATUS_QUEUED    BuildStatus = "Queued"
	STATUS_CLONING   BuildStatus = "Cloning"
	STATUS_BUILDING  BuildStatus = "Building"
	STATUS_PACKAGING BuildStatus = "Packaging"
	STATUS_UPLOADING BuildStatus = "Uploading"
	STATUS_SUCCESS   BuildStatus = "Success"
	STATUS_FAILED    BuildStatus = "Failed"
	STATUS_CANCELLED BuildStatus = "Cancelled"
)

const (
	LOG_LEVEL_INFO    LogLevel = "Info"
	LOG_LEVEL_WARNING LogLevel = "Warning"
	LOG_LEVEL_ERROR   LogLevel = "Error"
)

const (
	STAGE_CLONE   BuildStage = "Clone"
	STAGE_BUILD   BuildStage = "Build"
	STAGE_PACKAGE BuildStage = "Package"
	STAGE_UPLOAD  BuildStage = "Upload"
)

// IsTerminal reports whether no further transitions are expected.
func (s BuildStatus) IsTerminal() bool {
	return s == STATUS_SUCCESS || s == STATUS_FAILED || s == STATUS_CANCELLED
}

// ParseBuildStatus validates status text reported by a worker callback.
func ParseBuildStatus(text string) (BuildStatus, bool) {
	switch s := BuildStatus(text); s {
	case STATUS_QUEUED, STATUS_CLONING, STATUS_BUILDING, STATUS_PACKAGING,
		STATUS_UPLOADING, STATUS_SUCCESS, STATUS_FAILED, STATUS_CANCELLED:
		return s, true
	}
	return "", false
}

func ParseLogLevel(text string) (LogLevel, bool) {
	switch l := LogLevel(text); l {
	case LOG_LEVEL_INFO, LOG_LEVEL_WARNING, LOG_LEVEL_ERROR:
		return l, true
	}
	return "", false
}

func ParseBuildStage(text string) (BuildStage, bool) {
	switch s := BuildStage(text); s {
	case STAGE_CLONE, STAGE_BUILD, STAGE_PACKAGE, STAGE_UPLOAD:
		return s, true
	}
	return "", false
}

type Build struct {
	Id           string      `xorm:"pk 'id'" json:"id"`
	ProjectId    int64       `xorm:"index" json:"projectId"`
	BuildNumber  int64       `json:"buildNumber"`
	Branch       string      `json:"branch"`
	CommitHash   string      `json:"commitHash,omitempty"`
	Backend      string      `json:"backend"`
	Status       BuildStatus `json:"status"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	OutputPath   string      `json:"outputPath,omitempty"`
	OutputSize   int64       `json:"outputSize,omitempty"`
	DeployBranch string      `json:"deployBranch,omitempty"`
	DeployStatus string      `json:"deployStatus,omitempty"`
	// TriggeredBy holds the triggering user's name as supplied by the
	// caller, empty for system-triggered builds. User records live in an
	// external system, so no id resolution happens here and the same value
	// flows into notifications verbatim.
	TriggeredBy  string      `json:"triggeredBy,omitempty"`
	StartedAt    *time.Time  `json:"startedAt,omitempty"`
	CompletedAt  *time.Time  `json:"completedAt,omitempty"`
	CreatedAt    time.Time   `xorm:"created" json:"createdAt"`
	UpdatedAt    time.Time   `xorm:"updated" json:"updatedAt"`
}

// Duration is the wall time between start and completion, zero until both
// timestamps are set.
func (b *Build) Duration() time.Duration {
	if b.StartedAt == nil || b.CompletedAt == nil {
		return 0
	}
	return b.CompletedAt.Sub(*b.StartedAt)
}

type BuildLog struct {
	Id        int64      `json:"id"`
	BuildId   string     `xorm:"index" json:"buildId"`
	Level     LogLevel   `json:"level"`
	Stage     BuildStage `json:"stage"`
	Message   string     `xorm:"text" json:"message"`
	CreatedAt time.Time  `xorm:"created" json:"createdAt"`
}
