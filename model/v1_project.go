package model

import "time"

// Project rows are authored through the CRUD API; the orchestration core
// only reads them to resolve branches and denormalize job announcements.
type Project struct {
	Id            int64     `json:"id"`
	Name          string    `xorm:"unique" json:"name"`
	RepositoryURL string    `xorm:"'repository_url'" json:"repositoryUrl"`
	DefaultBranch string    `json:"defaultBranch"`
	BuildPath     string    `json:"buildPath"`
	CreatedAt     time.Time `xorm:"created" json:"createdAt"`
}
