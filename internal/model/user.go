package model

type UserRole string

const (
	Student UserRole = "student"
	Tutor   UserRole = "tutor"
	Parent  UserRole = "parent"
	Admin   UserRole = "admin"
)

// User mirrors the identity rows owned by the account service. The engine
// only reads them to resolve roles and parent links.
type User struct {
	IntModel
	Name     string   `gorm:"size:100;not null" json:"name"`
	Email    string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Role     UserRole `gorm:"size:20;default:'student'" json:"role"`
	ParentID *uint    `gorm:"index" json:"parentId,omitempty"`
}

func (User) TableName() string {
	return "users"
}
