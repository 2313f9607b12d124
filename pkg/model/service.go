package model

import "gorm.io/datatypes"

// Service is an automation job definition. Running it is delegated to an
// executor outside this module.
type Service struct {
	Base
	Description    string
	Vendor         string
	Priority       int
	MaxProcesses   int
	CustomUsername string

	// ParameterizedForm is a YAML list of fields describing the input form
	// shown before a run.
	ParameterizedForm string `gorm:"type:text"`

	OptionalArgs datatypes.JSONMap

	Status string

	Devices []*Device `gorm:"many2many:service_devices"`
	Pools   []*Pool   `gorm:"many2many:service_pools"`
}

func (Service) TableName() string {
	return "services"
}
