package services

import (
	"net"
	"net/http"
	"sync"
	"time"

	"tomato-demo/internal/domain/repositories"
)

// HTTPClientConfig holds the transport settings for the backend connection.
type HTTPClientConfig struct {
	Timeout             time.Duration
	MaxIdleConnsPerHost int
}

type httpClientPool struct {
	config    HTTPClientConfig
	client    *http.Client
	transport *http.Transport
	mutex     sync.RWMutex
}

// NewHTTPClientPool builds the client lazily on first use.
func NewHTTPClientPool(config HTTPClientConfig) repositories.HTTPClientPool {
	if config.MaxIdleConnsPerHost <= 0 {
		config.MaxIdleConnsPerHost = 4
	}
	return &httpClientPool{
		config: config,
	}
}

func (p *httpClientPool) Client() *http.Client {
	p.mutex.RLock()
	if p.client != nil {
		defer p.mutex.RUnlock()
		return p.client
	}
	p.mutex.RUnlock()

	p.mutex.Lock()
	defer p.mutex.Unlock()

	// ダブルチェックロッキング
	if p.client != nil {
		return p.client
	}

	p.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   p.config.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	p.client = &http.Client{
		Timeout:   p.config.Timeout,
		Transport: p.transport,
	}

	return p.client
}

func (p *httpClientPool) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.transport != nil {
		p.transport.CloseIdleConnections()
	}
	p.client = nil
	p.transport = nil
	return nil
}
