package order

import "errors"

// Order ドメインのエラー定義
var (
	ErrOrderNotFound            = errors.New("注文が見つかりません")
	ErrOrderNotPending          = errors.New("注文は決済待ちではありません")
	ErrOrderNotCaptured         = errors.New("注文は売上確定されていません")
	ErrOrderAlreadyRefunded     = errors.New("注文は既に返金されています")
	ErrOrderNotRefundable       = errors.New("注文は返金できません")
	ErrOrderStatusConflict      = errors.New("注文の状態が他の処理により変更されています")
	ErrUserIDRequired           = errors.New("ユーザーIDは必須です")
	ErrLinesRequired            = errors.New("注文明細は必須です")
	ErrPaymentReferenceRequired = errors.New("決済参照は必須です")
	ErrInvalidTotal             = errors.New("合計金額は0以上である必要があります")
)
