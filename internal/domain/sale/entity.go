package sale

import "time"

// Status は販売の状態を表す
type Status string

const (
	StatusBeforeSale   Status = "before_sale"
	StatusOnSale       Status = "on_sale"
	StatusDiscontinued Status = "discontinued"
)

// Sale は開催回（スケジュール）に紐づく販売枠を表す
// 席種は必ずいずれかの販売枠に属する
type Sale struct {
	ID         string
	ScheduleID string
	Name       string
	Status     Status
	StartAt    time.Time
	EndAt      time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewSale は新しい販売枠を作成する
func NewSale(scheduleID, name string, startAt, endAt time.Time) *Sale {
	now := time.Now()
	return &Sale{
		ScheduleID: scheduleID,
		Name:       name,
		Status:     StatusBeforeSale,
		StartAt:    startAt,
		EndAt:      endAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsOnSale は販売中の状態かを返す
func (s *Sale) IsOnSale() bool {
	return s.Status == StatusOnSale
}

// InPeriod は指定時刻が販売期間内かを返す（両端を含む）
func (s *Sale) InPeriod(now time.Time) bool {
	return !now.Before(s.StartAt) && !now.After(s.EndAt)
}

// Validate は販売枠の検証を行う
func (s *Sale) Validate() error {
	if s.ScheduleID == "" {
		return ErrScheduleIDRequired
	}
	if s.Name == "" {
		return ErrSaleNameRequired
	}
	if s.EndAt.Before(s.StartAt) {
		return ErrInvalidSalePeriod
	}
	return nil
}
