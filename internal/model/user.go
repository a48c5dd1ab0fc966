package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// User is an account of the risk dashboard. Teachers read predictions of
// their courses and retrain models; admins can do everything.
// swagger:model User
type User struct {
	BaseModel
	Name      string     `gorm:"size:100;not null" json:"Name"`
	Email     string     `gorm:"size:100;unique;not null" json:"Email"`
	Password  string     `gorm:"size:100;not null" json:"-"`
	Role      UserRole   `gorm:"size:20;default:'teacher'" json:"Role"`
	Language  string     `gorm:"size:10;default:'zh'" json:"Language"`
	Disabled  bool       `gorm:"default:false" json:"Disabled"`
	LastLogin *time.Time `json:"LastLogin"`
	LastSeen  *time.Time `json:"LastSeen"`
}

func (User) TableName() string {
	return "users"
}
