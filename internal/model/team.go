package model

import "time"

// Team a club seen on any match payload, never deleted
type Team struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	Name      string    `gorm:"column:name;type:varchar(128);not null"`
	Venue     string    `gorm:"column:venue;type:varchar(128)"`
	IsTracked bool      `gorm:"column:is_tracked;type:boolean;not null;default:false"` // the analysed team
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ReferenceEntity shared shape of competition / conference / league rows
type ReferenceEntity struct {
	ID             string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	Name           string    `gorm:"column:name;type:varchar(128);not null"`
	Classification string    `gorm:"column:classification;type:varchar(64)"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type Competition struct {
	ReferenceEntity
}

type Conference struct {
	ReferenceEntity
}

type League struct {
	ReferenceEntity
}

func (Team) TableName() string        { return "teams" }
func (Competition) TableName() string { return "competitions" }
func (Conference) TableName() string  { return "conferences" }
func (League) TableName() string      { return "leagues" }
