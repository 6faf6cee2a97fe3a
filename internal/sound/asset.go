package sound

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// maxAssetBytes bounds the downloaded sound file.
const maxAssetBytes = 8 << 20

// Asset downloads the remote sound once and serves the cached bytes.
type Asset struct {
	URL    string
	Client *http.Client

	mu   sync.Mutex
	data []byte
}

func NewAsset(url string) *Asset {
	return &Asset{URL: url, Client: &http.Client{Timeout: 15 * time.Second}}
}

// Bytes returns the asset, fetching it on first use. Failed fetches are not
// cached.
func (a *Asset) Bytes(ctx context.Context) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.data != nil {
		return a.data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sound: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch sound: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("read sound: %w", err)
	}
	a.data = b
	return b, nil
}
