package seat

import "time"

// Status は座席の状態を表す
type Status string

const (
	StatusAvailable       Status = "available"
	StatusTemporarilyHeld Status = "temporarily_held"
	StatusSold            Status = "sold"
	StatusWithdrawn       Status = "withdrawn"
)

// SalesMode は座席の販売単位を表す
type SalesMode string

const (
	// SalesModeSingle は1席ずつ販売する
	SalesModeSingle SalesMode = "single"
	// SalesModeUnit はユニット（ボックス席など）単位でまとめて販売する
	SalesModeUnit SalesMode = "unit"
)

// Seat は座席エンティティを表す
// 仮押さえ中の保持者は座席ロック側で管理し、ここには購入確定後の所有者のみを持つ
type Seat struct {
	ID          string
	SeatTypeID  string
	AreaID      string
	Row         string
	Number      string
	SalesMode   SalesMode
	UnitGroupID *string // ユニット販売の場合のみ
	Status      Status
	OwnerID     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int // 楽観的ロック用
}

// NewSeat は新しい座席を作成する
func NewSeat(seatTypeID, areaID, row, number string, mode SalesMode, unitGroupID *string) *Seat {
	now := time.Now()
	return &Seat{
		SeatTypeID:  seatTypeID,
		AreaID:      areaID,
		Row:         row,
		Number:      number,
		SalesMode:   mode,
		UnitGroupID: unitGroupID,
		Status:      StatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsAvailable は座席が販売可能かを返す
func (s *Seat) IsAvailable() bool {
	return s.Status == StatusAvailable
}

// IsOwned は購入者が既に割り当てられているかを返す
func (s *Seat) IsOwned() bool {
	return s.OwnerID != nil && *s.OwnerID != ""
}

// IsUnit はユニット販売の座席かを返す
func (s *Seat) IsUnit() bool {
	return s.SalesMode == SalesModeUnit
}

// Hold は決済処理中の状態にする
func (s *Seat) Hold() error {
	if s.Status != StatusAvailable {
		return ErrSeatNotAvailable
	}
	s.Status = StatusTemporarilyHeld
	s.UpdatedAt = time.Now()
	return nil
}

// Sell は座席を販売済みにして所有者を記録する
func (s *Seat) Sell(ownerID string) error {
	if s.Status != StatusTemporarilyHeld {
		return ErrSeatNotHeld
	}
	s.Status = StatusSold
	s.OwnerID = &ownerID
	s.UpdatedAt = time.Now()
	return nil
}

// Release は座席を販売可能な状態に戻す
func (s *Seat) Release() {
	s.Status = StatusAvailable
	s.OwnerID = nil
	s.UpdatedAt = time.Now()
}

// Validate は座席の検証を行う
func (s *Seat) Validate() error {
	if s.SeatTypeID == "" {
		return ErrSeatTypeIDRequired
	}
	if s.AreaID == "" {
		return ErrAreaIDRequired
	}
	if s.IsUnit() && (s.UnitGroupID == nil || *s.UnitGroupID == "") {
		return ErrUnitGroupRequired
	}
	return nil
}

// SeatType は席種（価格帯）を表す。席種は1つの販売枠に属する
type SeatType struct {
	ID     string
	SaleID string
	Name   string
	Price  int
}

// Option は席種に紐づくオプション（割引・追加料金）を表す
// PriceDelta は負の値（割引）を取りうる
type Option struct {
	ID         string
	SeatTypeID string
	Name       string
	PriceDelta int
}

// Area はエリアを表す
type Area struct {
	ID          string
	Name        string
	Displayable bool
}
