package documents

import "time"

// Document is an immutable uploaded file identity plus its optional
// watermark override. Page rasters live on disk under the content hash, not
// in this row.
type Document struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name              string    `gorm:"column:name;size:320;not null"`
	FilePath          string    `gorm:"column:file_path;size:512;not null"`
	FileHash          string    `gorm:"column:file_hash;size:64;not null;uniqueIndex"`
	FileType          string    `gorm:"column:file_type;size:16;not null"`
	TotalPages        int       `gorm:"column:total_pages;not null"`
	AccessToken       string    `gorm:"column:access_token;size:64;not null;uniqueIndex"`
	WatermarkSettings string    `gorm:"column:watermark_settings;type:text"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	CreatedBy         string    `gorm:"column:created_by;size:190"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}
