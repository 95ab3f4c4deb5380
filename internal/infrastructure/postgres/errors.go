package postgres

import "errors"

// ErrUnsupportedTx は TxManager 以外で開始されたトランザクションが渡された場合のエラー
var ErrUnsupportedTx = errors.New("このリポジトリでは扱えないトランザクションです")
