package model

// Changelog is a persisted log entry for security events and edits.
type Changelog struct {
	Base
	Time     string
	Severity string
	Content  string `gorm:"type:text"`
	User     string
}

func (Changelog) TableName() string {
	return "changelogs"
}
