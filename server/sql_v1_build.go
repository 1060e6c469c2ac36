package server

import (
	"time"

	"xorm.io/xorm"

	"github.com/unibuild/controller/model"
)

func (s *Server) searchRecentBuilds(projectId int64) *xorm.Session {
	session := s.DB.Table("build").Desc("created_at")
	if projectId != 0 {
		session = session.Where("project_id = ?", projectId)
	}
	return session
}

func (s *Server) searchStalledBuilds(cutoff time.Time) *xorm.Session {
	return s.DB.Table("build").
		Where("status NOT IN (?, ?, ?) AND DATETIME(updated_at) < ?",
			model.STATUS_SUCCESS, model.STATUS_FAILED, model.STATUS_CANCELLED,
			cutoff).
		Asc("updated_at")
}
