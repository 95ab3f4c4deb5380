package checkout

import "errors"

var (
	ErrEmptyCart        = errors.New("カートが空です")
	ErrUnresolvedLine   = errors.New("座席または席種を解決できません")
	ErrUnresolvedOption = errors.New("オプションを解決できません")
	ErrDuplicateLine    = errors.New("同じ座席の行が重複しています")
)
