package models

// OrderCounter is the single-row sequence behind human-facing order numbers.
type OrderCounter struct {
	Name  string `gorm:"column:name;primaryKey"`
	Value int64  `gorm:"column:value;not null;default:0"`
}

func (OrderCounter) TableName() string { return "order_counters" }
