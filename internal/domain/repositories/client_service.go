package repositories

import "net/http"

// HTTPClientPool hands out the shared HTTP client used to reach the backend.
type HTTPClientPool interface {
	Client() *http.Client

	// リソースのクリーンアップ
	Close() error
}
