package server

import (
	"log"
	"time"

	"github.com/unibuild/controller/model"
)

const STALLED_BUILD_THRESHOLD = time.Hour

// CheckStalledBuilds logs builds whose worker stopped reporting, plus queue
// and connection stats. Operator visibility only: a build with a crashed
// worker stays in its last reported status until someone cancels it, it is
// never failed automatically.
func (s *Server) CheckStalledBuilds() {
	var stalled []model.Build
	err := s.searchStalledBuilds(time.Now().UTC().Add(-STALLED_BUILD_THRESHOLD)).Find(&stalled)
	if err != nil {
		log.Println("Error: Failed to find stalled builds:", err)
		return
	}

	for _, build := range stalled {
		log.Printf("Warning: Build %s (#%d of project %d) has been stuck in %s since %s",
			build.Id, build.BuildNumber, build.ProjectId, build.Status, build.UpdatedAt.Format(time.RFC3339))
	}

	log.Printf("Queue depth %d, %d clients connected (%d workers)",
		s.Queue.QueueDepth(), s.Hub.ClientCount(), s.Hub.WorkerCount())
}
