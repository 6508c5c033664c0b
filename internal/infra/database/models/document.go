package models

import (
	"time"
)

type Document struct {
	Collection  string    `json:"collection" gorm:"type:text;primaryKey"`
	Key         string    `json:"key" gorm:"column:doc_key;type:text;primaryKey"`
	Owner       string    `json:"owner" gorm:"type:text;index"`
	Description string    `json:"description" gorm:"type:text"`
	Data        string    `json:"data" gorm:"type:text"`
	Version     uint64    `json:"version" gorm:"not null"`
	CDate       time.Time `json:"cdate" gorm:"->;<-:create;not null"`
	MDate       time.Time `json:"mdate" gorm:"not null"`
}

// CommitLog is the audit trail of every committed write.
type CommitLog struct {
	ID         string    `json:"id" gorm:"primaryKey;type:text"`
	Collection string    `json:"collection" gorm:"type:text;index:commit_log_document"`
	Key        string    `json:"key" gorm:"column:doc_key;type:text;index:commit_log_document"`
	Kind       string    `json:"kind" gorm:"type:text"`
	Owner      string    `json:"owner" gorm:"type:text;index"`
	Version    uint64    `json:"version"`
	CDate      time.Time `json:"cdate" gorm:"not null"`
}
