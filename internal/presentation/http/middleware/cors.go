package middleware

import "net/http"

// CORS JSON APIを別オリジンのフロントエンドから呼べるようにする
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Session-ID, X-Request-ID")
		h.Set("Access-Control-Expose-Headers", "X-Session-ID, X-Request-ID")
		h.Set("Access-Control-Max-Age", "3600")

		// プリフライトはここで終了
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
