package model

// Pool groups devices and links and scopes what its users can see.
type Pool struct {
	Base
	Description     string
	ManuallyDefined bool

	Devices []*Device `gorm:"many2many:pool_devices"`
	Links   []*Link   `gorm:"many2many:pool_links"`
	Users   []*User   `gorm:"many2many:pool_users"`
}

func (Pool) TableName() string {
	return "pools"
}
