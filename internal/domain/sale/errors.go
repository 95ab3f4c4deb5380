package sale

import "errors"

// Sale ドメインのエラー定義
var (
	ErrSaleNotFound       = errors.New("販売枠が見つかりません")
	ErrScheduleIDRequired = errors.New("スケジュールIDは必須です")
	ErrSaleNameRequired   = errors.New("販売枠名は必須です")
	ErrInvalidSalePeriod  = errors.New("販売終了日時は販売開始日時より後である必要があります")
)
