package model

import "gorm.io/datatypes"

type Device struct {
	Base
	Model           string
	Vendor          string
	OperatingSystem string
	IPAddress       string
	Port            int
	Username        string
	Icon            string

	CustomProperties datatypes.JSONMap

	LastStatus string

	Pools []*Pool `gorm:"many2many:pool_devices"`
}

func (Device) TableName() string {
	return "devices"
}
