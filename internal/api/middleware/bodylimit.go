// bodylimit.go — ограничение размера тела запроса.
package middleware

import (
	"errors"
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/zk-Lokomotive/zkl-sui-sol/internal/api/errors"
)

// MaxBodyBytes — предел тела запроса API.
// Самый крупный допустимый запрос — сообщение моста с подписями полного
// набора guardian-ов в base64 и 16 аккаунтами — занимает меньше 5 КиБ.
const MaxBodyBytes int64 = 16 << 10

// BodyLimit отклоняет запросы с Content-Length больше limit ответом 413.
// Тело остальных запросов (в том числе chunked) читается не дальше limit:
// чтение за пределом возвращает *http.MaxBytesError, см. IsBodyTooLarge.
// Должен стоять перед RequestValidator, который читает тело целиком.
func BodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := chimw.RequestSize(limit)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				apierrors.PayloadTooLarge(w, fmt.Sprintf("Тело запроса больше %d байт", limit))
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// IsBodyTooLarge сообщает, что чтение тела упёрлось в предел размера.
func IsBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}
