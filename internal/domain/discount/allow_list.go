package discount

// AllowList は割引の適用対象を絞り込むIDの一覧
// 行が1件も無い場合は無制限（すべて許可）として扱う
type AllowList []string

// Restricted は絞り込みが設定されているかを返す
func (l AllowList) Restricted() bool {
	return len(l) > 0
}

// Allows はIDが許可されているかを返す
func (l AllowList) Allows(id string) bool {
	if !l.Restricted() {
		return true
	}
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// AllowsAny はいずれかのIDが許可されているかを返す
func (l AllowList) AllowsAny(ids []string) bool {
	if !l.Restricted() {
		return true
	}
	for _, id := range ids {
		if l.Allows(id) {
			return true
		}
	}
	return false
}
