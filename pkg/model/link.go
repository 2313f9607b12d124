package model

import "gorm.io/gorm"

type Link struct {
	Base
	Description string
	Model       string
	Vendor      string

	SourceID      *uint
	Source        *Device
	DestinationID *uint
	Destination   *Device

	Pools []*Pool `gorm:"many2many:pool_links"`
}

func (Link) TableName() string {
	return "links"
}

// BeforeSave keeps the endpoint columns in line with the related devices,
// which are saved without their associations.
func (l *Link) BeforeSave(*gorm.DB) error {
	l.SourceID = deviceID(l.Source)
	l.DestinationID = deviceID(l.Destination)
	return nil
}

func deviceID(d *Device) *uint {
	if d == nil || d.ID == 0 {
		return nil
	}
	id := d.ID
	return &id
}
