package watermark

import "time"

// StaticWatermark is a stored logo overlay managed by administrators and
// referenced by id from Settings. Disabled rows are kept but never rendered.
type StaticWatermark struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;size:190;not null"`
	FilePath  string    `gorm:"column:file_path;size:512;not null"`
	Position  string    `gorm:"column:position;size:32;not null;default:center"`
	Opacity   float64   `gorm:"column:opacity;not null;default:0.3"`
	Scale     float64   `gorm:"column:scale;not null;default:0.2"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (StaticWatermark) TableName() string {
	return "static_watermarks"
}
