package cart

import "errors"

// Cart ドメインのエラー定義
var (
	ErrCartNotFound             = errors.New("カートが見つかりません")
	ErrPaymentReferenceRequired = errors.New("決済参照は必須です")
)
