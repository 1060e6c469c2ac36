package model

import "time"

type ProcessPhase string
type ProcessType string

const (
	PHASE_PRE_BUILD  ProcessPhase = "PreBuild"
	PHASE_POST_BUILD ProcessPhase = "PostBuild"
)

const (
	PROCESS_DEFINE_SYMBOLS  ProcessType = "DefineSymbols"
	PROCESS_PLAYER_SETTINGS ProcessType = "PlayerSettings"
	PROCESS_SCENE_LIST      ProcessType = "SceneList"
	PROCESS_CUSTOM_CODE     ProcessType = "CustomCode"
	PROCESS_SHELL_COMMAND   ProcessType = "ShellCommand"
	PROCESS_FILE_COPY       ProcessType = "FileCopy"
)

func ParseProcessPhase(text string) (ProcessPhase, bool) {
	switch p := ProcessPhase(text); p {
	case PHASE_PRE_BUILD, PHASE_POST_BUILD:
		return p, true
	}
	return "", false
}

// BuildPipeline is a named, ordered collection of processes. ProjectId 0
// means the pipeline is global and usable by any project.
type BuildPipeline struct {
	Id        int64     `json:"id"`
	Name      string    `json:"name"`
	ProjectId int64     `xorm:"index" json:"projectId,omitempty"`
	CreatedAt time.Time `xorm:"created" json:"createdAt"`
}

// BuildProcess is one step of a pipeline. Order is only meaningful within
// (PipelineId, Phase); equal orders are tie-broken by insertion order.
type BuildProcess struct {
	Id         int64         `json:"id"`
	PipelineId int64         `xorm:"index" json:"pipelineId"`
	Name       string        `json:"name"`
	Phase      ProcessPhase  `json:"phase"`
	Order      int           `xorm:"'exec_order'" json:"order"`
	Enabled    bool          `json:"enabled"`
	Config     ProcessConfig `xorm:"json" json:"config"`
	CreatedAt  time.Time     `xorm:"created" json:"createdAt"`
}

// ProcessConfig is a tagged union; exactly one payload field matching Type
// is expected to be set. Workers interpret the payload, the controller only
// stores and hands it out.
type ProcessConfig struct {
	Type           ProcessType         `json:"type"`
	DefineSymbols  *DefineSymbolsSpec  `json:"defineSymbols,omitempty"`
	PlayerSettings map[string]string   `json:"playerSettings,omitempty"`
	SceneList      *SceneListSpec      `json:"sceneList,omitempty"`
	CustomCode     *CustomCodeSpec     `json:"customCode,omitempty"`
	ShellCommand   *ShellCommandSpec   `json:"shellCommand,omitempty"`
	FileCopy       *FileCopySpec       `json:"fileCopy,omitempty"`
}

type DefineSymbolsSpec struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

type SceneListSpec struct {
	Scenes []string `json:"scenes"`
	// Mode is "Include" or "Exclude".
	Mode string `json:"mode"`
}

type CustomCodeSpec struct {
	Code string `json:"code"`
}

type ShellCommandSpec struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

type FileCopySpec struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}
