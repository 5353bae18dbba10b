package model

type Skill struct {
	IntModel
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	TrackID     *uint  `gorm:"index" json:"trackId,omitempty"`
	Description string `gorm:"type:text" json:"description"`
}

func (Skill) TableName() string {
	return "skills"
}
