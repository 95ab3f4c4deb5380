package seat

import "errors"

// Seat ドメインのエラー定義
var (
	ErrSeatNotFound           = errors.New("座席が見つかりません")
	ErrSeatNotAvailable       = errors.New("座席は販売可能な状態ではありません")
	ErrSeatNotHeld            = errors.New("座席は決済処理中ではありません")
	ErrSeatNotSold            = errors.New("座席は販売済みではありません")
	ErrSeatTypeIDRequired     = errors.New("席種IDは必須です")
	ErrAreaIDRequired         = errors.New("エリアIDは必須です")
	ErrUnitGroupRequired      = errors.New("ユニット販売の座席にはユニットIDが必要です")
	ErrOptimisticLockConflict = errors.New("楽観的ロックの競合が発生しました")
)
