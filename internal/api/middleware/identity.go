package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	// UserIDKey は認証済みユーザーIDを保持するコンテキストキー
	UserIDKey = "user_id"
	// HeaderUserID は JWT を使わない環境でユーザーを識別するヘッダー
	HeaderUserID = "X-User-ID"
)

var (
	errMissingToken = errors.New("bearer token がありません")
	errMissingSub   = errors.New("sub クレームがありません")
)

// Identity はリクエストのユーザーを識別するミドルウェア
// jwtSecret が設定されている場合は HS256 の Bearer トークンの sub を、
// 空の場合は X-User-ID ヘッダーをユーザーIDとして扱う
func Identity(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var userID string
			if jwtSecret != "" {
				sub, err := subjectFromRequest(c.Request(), jwtSecret)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが無効です")
				}
				userID = sub
			} else {
				userID = strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
			}
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
			}
			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}

// UserID は Identity が設定したユーザーIDを返す。未設定の場合は空文字
func UserID(c echo.Context) string {
	if v, ok := c.Get(UserIDKey).(string); ok {
		return v
	}
	return ""
}

func subjectFromRequest(r *http.Request, secret string) (string, error) {
	auth := r.Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", errMissingToken
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errMissingSub
	}
	return sub, nil
}
