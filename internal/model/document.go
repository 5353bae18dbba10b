package model

import "time"

// Document is an uploaded source file. Rows are written once per upload.
type Document struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID         uint      `gorm:"not null;index" json:"ownerId"`
	Filename        string    `gorm:"size:255;not null" json:"filename"`
	MimeType        string    `gorm:"size:100;not null" json:"mimeType"`
	Size            int64     `gorm:"not null" json:"size"`
	ObjectKey       string    `gorm:"size:512;not null" json:"-"`
	URL             string    `gorm:"size:1024;not null" json:"url"`
	ExtractedText   string    `gorm:"type:text" json:"extractedText"`
	ExtractionError string    `gorm:"size:512" json:"extractionError,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (Document) TableName() string {
	return "documents"
}
