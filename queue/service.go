// Package queue owns the build lifecycle: the state machine, the dispatch
// queue handing jobs to workers, and the hooks that fan state transitions
// out to the broadcast hub and the notification dispatcher.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"xorm.io/xorm"

	"github.com/unibuild/controller/message"
	"github.com/unibuild/controller/model"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrBuildNotFound   = errors.New("build not found")
)

// Broadcaster pushes events to connected viewers and workers. Broadcast
// failures are the implementation's problem; persisted state and broadcast
// are not transactional.
type Broadcaster interface {
	BroadcastAll(envelope message.Envelope)
	BroadcastGroup(group string, envelope message.Envelope)
}

// Notifier delivers a lifecycle notification. Implementations must return
// immediately; delivery happens detached from the state machine.
type Notifier interface {
	Dispatch(n model.BuildNotification)
}

// Service is the single writer of build state. All mutations come through
// its methods, each a single load-mutate-persist round trip with no
// optimistic concurrency token; concurrent callbacks for one build are
// last-write-wins.
type Service struct {
	db        *xorm.Engine
	broadcast Broadcaster
	notifier  Notifier

	queue   *fifo
	done    chan struct{}
	started bool
}

func NewService(db *xorm.Engine, broadcast Broadcaster, notifier Notifier) *Service {
	return &Service{
		db:        db,
		broadcast: broadcast,
		notifier:  notifier,
		queue:     newFifo(),
		done:      make(chan struct{}),
	}
}

// Start launches the single consumer goroutine. Only one build is ever
// being dispatched at a time; progress reporting for already-dispatched
// builds arrives through independent callbacks. Start and Stop are paired
// lifecycle calls from the owning goroutine.
func (s *Service) Start() {
	s.started = true
	go s.consume()
}

// Stop closes the queue and, when a consumer is running, waits for it to
// drain.
func (s *Service) Stop() {
	s.queue.Close()
	if s.started {
		<-s.done
	}
}

// QueueDepth is the number of builds waiting to be dispatched.
func (s *Service) QueueDepth() int {
	return s.queue.Len()
}

type CreateBuildRequest struct {
	ProjectId    int64  `json:"projectId"`
	Branch       string `json:"branch,omitempty"`
	Backend      string `json:"backend"`
	DeployBranch string `json:"deployBranch,omitempty"`
	TriggeredBy  string `json:"triggeredBy,omitempty"`
}

// CreateBuild persists a new build in Queued state and enqueues it. An
// omitted branch resolves to the project's default branch.
func (s *Service) CreateBuild(req CreateBuildRequest) (*model.Build, error) {
	var project model.Project
	has, err := s.db.ID(req.ProjectId).Get(&project)
	if err != nil {
		return nil, fmt.Errorf("failed to get project %d: %w", req.ProjectId, err)
	}
	if !has {
		return nil, ErrProjectNotFound
	}

	branch := req.Branch
	if branch == "" {
		branch = project.DefaultBranch
	}

	// Read-then-insert, not atomic against concurrent creates for the same
	// project. Builds are triggered by authenticated human/API action at
	// human cadence, not a hot path.
	var max int64
	if _, err := s.db.SQL("SELECT COALESCE(MAX(build_number), 0) FROM build WHERE project_id = ?", req.ProjectId).Get(&max); err != nil {
		return nil, fmt.Errorf("failed to get max build number for project %d: %w", req.ProjectId, err)
	}

	build := &model.Build{
		Id:           uuid.NewString(),
		ProjectId:    req.ProjectId,
		BuildNumber:  max + 1,
		Branch:       branch,
		Backend:      req.Backend,
		DeployBranch: req.DeployBranch,
		TriggeredBy:  req.TriggeredBy,
		Status:       model.STATUS_QUEUED,
	}
	if _, err := s.db.Insert(build); err != nil {
		return nil, fmt.Errorf("failed to insert build: %w", err)
	}

	s.EnqueueBuild(build.Id)
	return build, nil
}

// EnqueueBuild appends to the dispatch queue. Never blocks; ordering across
// concurrent enqueues is insertion order.
func (s *Service) EnqueueBuild(buildID string) {
	s.queue.Push(buildID)
}

func (s *Service) consume() {
	defer close(s.done)
	for {
		buildID, ok := s.queue.Pop()
		if !ok {
			return
		}
		// Per-iteration failures are logged and skipped; one bad id must
		// never stop processing of subsequent queued builds.
		s.announce(buildID)
	}
}

// announce broadcasts the job to all connected clients. There is no
// per-worker routing: exactly one worker is assumed to claim the job by
// starting to report progress. With two workers connected this is a
// documented race, kept as-is.
func (s *Service) announce(buildID string) {
	var build model.Build
	has, err := s.db.ID(buildID).Get(&build)
	if err != nil {
		log.Println("Error: Failed to load queued build:", err)
		return
	}
	if !has {
		log.Printf("Warning: Queued build %s no longer exists, skipping", buildID)
		return
	}

	var project model.Project
	has, err = s.db.ID(build.ProjectId).Get(&project)
	if err != nil {
		log.Println("Error: Failed to load project of queued build:", err)
		return
	}
	if !has {
		log.Printf("Warning: Project %d of queued build %s no longer exists, skipping", build.ProjectId, buildID)
		return
	}

	s.broadcast.BroadcastAll(message.Envelope{
		Type: message.TYPE_BUILD_QUEUED,
		Payload: message.BuildQueued{
			BuildId:       build.Id,
			BuildNumber:   build.BuildNumber,
			ProjectId:     project.Id,
			ProjectName:   project.Name,
			RepositoryURL: project.RepositoryURL,
			Branch:        build.Branch,
			Backend:       build.Backend,
			BuildPath:     project.BuildPath,
			DeployBranch:  build.DeployBranch,
		},
	})
}

// UpdateStatus applies a worker-reported status. The state machine is
// advisory: any (old, new) pair is accepted, since workers may fail before
// reaching expected milestones. Unknown status text is logged and ignored.
func (s *Service) UpdateStatus(buildID, statusText, errorMessage string) error {
	status, ok := model.ParseBuildStatus(statusText)
	if !ok {
		log.Printf("Warning: Ignoring unknown build status %q reported for build %s", statusText, buildID)
		return nil
	}

	var build model.Build
	has, err := s.db.ID(buildID).Get(&build)
	if err != nil {
		return fmt.Errorf("failed to get build %s: %w", buildID, err)
	}
	if !has {
		return ErrBuildNotFound
	}

	return s.applyStatus(&build, status, errorMessage)
}

// applyStatus persists the transition, broadcasts it, and fires the mapped
// notification event. Timestamps and notifications only move on an actual
// transition; repeated identical reports are idempotent.
func (s *Service) applyStatus(build *model.Build, status model.BuildStatus, errorMessage string) error {
	previous := build.Status
	build.Status = status
	build.ErrorMessage = errorMessage

	now := time.Now()
	cols := []string{"status", "error_message"}
	if status == model.STATUS_BUILDING && build.StartedAt == nil {
		build.StartedAt = &now
		cols = append(cols, "started_at")
	}
	if status.IsTerminal() && previous != status {
		build.CompletedAt = &now
		cols = append(cols, "completed_at")
	}

	if _, err := s.db.ID(build.Id).Cols(cols...).Update(build); err != nil {
		return fmt.Errorf("failed to update build %s: %w", build.Id, err)
	}

	s.broadcast.BroadcastAll(message.Envelope{
		Type: message.TYPE_BUILD_STATUS_UPDATED,
		Payload: message.BuildStatusUpdated{
			BuildId:      build.Id,
			Status:       build.Status,
			ErrorMessage: build.ErrorMessage,
		},
	})

	if event, ok := transitionEvent(previous, status); ok {
		s.notify(build, event)
	}
	return nil
}

// transitionEvent maps a (previous, new) status pair to the notification
// event it fires, if any. Notifications exist for job boundaries only;
// intermediate transitions are silent.
func transitionEvent(previous, next model.BuildStatus) (model.NotificationEvent, bool) {
	if previous == next {
		return "", false
	}
	switch {
	case previous == model.STATUS_QUEUED && next == model.STATUS_CLONING:
		return model.EVENT_BUILD_STARTED, true
	case next == model.STATUS_SUCCESS:
		return model.EVENT_BUILD_COMPLETED, true
	case next == model.STATUS_FAILED:
		return model.EVENT_BUILD_FAILED, true
	case next == model.STATUS_CANCELLED:
		return model.EVENT_BUILD_CANCELLED, true
	}
	return "", false
}

// notify hands a denormalized notification to the dispatcher. Never blocks
// on delivery and never fails the state machine.
func (s *Service) notify(build *model.Build, event model.NotificationEvent) {
	if s.notifier == nil {
		return
	}

	var project model.Project
	if has, err := s.db.ID(build.ProjectId).Get(&project); err != nil {
		log.Println("Error: Failed to load project for notification:", err)
	} else if !has {
		log.Printf("Warning: Project %d missing while notifying for build %s", build.ProjectId, build.Id)
	}

	var override json.RawMessage
	setting := model.Setting{Key: model.SETTING_NOTIFICATIONS_PROJECT_PREFIX + strconv.FormatInt(build.ProjectId, 10)}
	if has, err := s.db.Get(&setting); err != nil {
		log.Println("Error: Failed to load project notification override:", err)
	} else if has {
		override = json.RawMessage(setting.Value)
	}

	s.notifier.Dispatch(model.BuildNotification{
		Event:           event,
		BuildId:         build.Id,
		BuildNumber:     build.BuildNumber,
		ProjectName:     project.Name,
		Branch:          build.Branch,
		Status:          build.Status,
		ErrorMessage:    build.ErrorMessage,
		DurationSeconds: int64(build.Duration().Seconds()),
		SizeBytes:       build.OutputSize,
		TriggeredBy:     build.TriggeredBy,
		Timestamp:       time.Now(),
		ProjectOverride: override,
	})
}

// AddLog appends one log row and broadcasts it to the build's viewer group.
// No deduplication. Malformed level or stage text is logged and ignored.
func (s *Service) AddLog(buildID, levelText, messageText, stageText string) error {
	level, ok := model.ParseLogLevel(levelText)
	if !ok {
		log.Printf("Warning: Ignoring log with unknown level %q for build %s", levelText, buildID)
		return nil
	}
	stage, ok := model.ParseBuildStage(stageText)
	if !ok {
		log.Printf("Warning: Ignoring log with unknown stage %q for build %s", stageText, buildID)
		return nil
	}

	has, err := s.db.ID(buildID).Exist(&model.Build{})
	if err != nil {
		return fmt.Errorf("failed to check build %s: %w", buildID, err)
	}
	if !has {
		return ErrBuildNotFound
	}

	row := model.BuildLog{
		BuildId: buildID,
		Level:   level,
		Stage:   stage,
		Message: messageText,
	}
	if _, err := s.db.Insert(&row); err != nil {
		return fmt.Errorf("failed to insert build log: %w", err)
	}

	s.broadcast.BroadcastGroup(message.BuildGroup(buildID), message.Envelope{
		Type:    message.TYPE_BUILD_LOG_ADDED,
		Payload: message.BuildLogAdded{BuildId: buildID, Log: row},
	})
	return nil
}

// UpdateCommitHash records the resolved commit once the worker knows it.
// Broadcast separately since it may arrive after other progress events.
func (s *Service) UpdateCommitHash(buildID, commitHash string) error {
	var build model.Build
	has, err := s.db.ID(buildID).Get(&build)
	if err != nil {
		return fmt.Errorf("failed to get build %s: %w", buildID, err)
	}
	if !has {
		return ErrBuildNotFound
	}

	build.CommitHash = commitHash
	if _, err := s.db.ID(buildID).Cols("commit_hash").Update(&build); err != nil {
		return fmt.Errorf("failed to update commit hash of build %s: %w", buildID, err)
	}

	s.broadcast.BroadcastAll(message.Envelope{
		Type:    message.TYPE_BUILD_COMMIT_HASH_UPDATED,
		Payload: message.BuildCommitHashUpdated{BuildId: buildID, CommitHash: commitHash},
	})
	return nil
}

// CompleteBuild records the worker's final report: output artifact data plus
// the terminal transition, then announces completion to all clients.
func (s *Service) CompleteBuild(buildID string, success bool, outputPath string, buildSize int64) error {
	var build model.Build
	has, err := s.db.ID(buildID).Get(&build)
	if err != nil {
		return fmt.Errorf("failed to get build %s: %w", buildID, err)
	}
	if !has {
		return ErrBuildNotFound
	}

	build.OutputPath = outputPath
	build.OutputSize = buildSize
	if _, err := s.db.ID(buildID).Cols("output_path", "output_size").Update(&build); err != nil {
		return fmt.Errorf("failed to update output of build %s: %w", buildID, err)
	}

	status := model.STATUS_SUCCESS
	if !success {
		status = model.STATUS_FAILED
	}
	if err := s.applyStatus(&build, status, build.ErrorMessage); err != nil {
		return err
	}

	s.broadcast.BroadcastAll(message.Envelope{
		Type: message.TYPE_BUILD_COMPLETED,
		Payload: message.BuildCompleted{
			BuildId:    buildID,
			Success:    success,
			OutputPath: outputPath,
			BuildSize:  buildSize,
		},
	})
	return nil
}

// ReportUpload is the hook for the deployment collaborator. It records the
// deployment status and fires the matching upload notification; there is no
// broadcast event for uploads.
func (s *Service) ReportUpload(buildID string, succeeded bool, detail string) error {
	var build model.Build
	has, err := s.db.ID(buildID).Get(&build)
	if err != nil {
		return fmt.Errorf("failed to get build %s: %w", buildID, err)
	}
	if !has {
		return ErrBuildNotFound
	}

	build.DeployStatus = detail
	if _, err := s.db.ID(buildID).Cols("deploy_status").Update(&build); err != nil {
		return fmt.Errorf("failed to update deploy status of build %s: %w", buildID, err)
	}

	event := model.EVENT_UPLOAD_COMPLETED
	if !succeeded {
		event = model.EVENT_UPLOAD_FAILED
	}
	s.notify(&build, event)
	return nil
}

// ListProcesses returns the enabled processes of one pipeline phase in
// execution order: ascending Order, equal orders keeping insertion order.
// Disabled processes are excluded entirely, not merely skipped.
func (s *Service) ListProcesses(pipelineID int64, phase model.ProcessPhase) ([]model.BuildProcess, error) {
	var processes []model.BuildProcess
	err := s.db.
		Where("pipeline_id = ? AND phase = ? AND enabled = ?", pipelineID, phase, true).
		Asc("id").
		Find(&processes)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes of pipeline %d: %w", pipelineID, err)
	}

	// Stable sort over the id-ordered result; ties on Order must keep
	// insertion order, never a secondary key.
	sort.SliceStable(processes, func(i, j int) bool {
		return processes[i].Order < processes[j].Order
	})
	return processes, nil
}
