package catalog

import (
	"time"

	"github.com/kbukum/imgprep/database"
)

// Run status values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one recorded prep run.
type Run struct {
	database.BaseModel
	Name        string
	Source      string
	Destination string
	Loaded      int
	Routed      int
	Status      string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Branches    []Branch `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// TableName pins the table created by the migrations.
func (Run) TableName() string { return "runs" }

// Duration is how long the run took.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Branch is the element count routed to one split branch of a run.
type Branch struct {
	ID      uint `gorm:"primaryKey"`
	RunID   string
	Branch  int
	Name    string
	Percent float64
	Count   int
}

// TableName pins the table created by the migrations.
func (Branch) TableName() string { return "run_branches" }
