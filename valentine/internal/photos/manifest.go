// CLAUDE:SUMMARY photos.json loader (file or http URL); failures degrade to an empty manifest.
package photos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/valentine/horosafe"
)

// ErrManifestUnavailable wraps every manifest load failure.
var ErrManifestUnavailable = errors.New("photos: manifest unavailable")

// Manifest is the already-parsed photos.json document.
type Manifest struct {
	Couples []string `json:"couples"`
	Kids    []string `json:"kids"`
}

// Pools is the pair of pools built from one manifest.
type Pools struct {
	Couples Pool
	Kids    Pool
}

// Pools builds deduplicated pools from the manifest lists.
func (m Manifest) Pools() Pools {
	return Pools{Couples: NewPool(m.Couples), Kids: NewPool(m.Kids)}
}

// FetchManifest reads the manifest at src, which is either a local path or
// an http(s) URL. Errors wrap ErrManifestUnavailable.
func FetchManifest(ctx context.Context, src string, client *http.Client) (Manifest, error) {
	var data []byte
	var err error
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		data, err = fetchHTTP(ctx, src, client)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: decode: %v", ErrManifestUnavailable, err)
	}
	return m, nil
}

func fetchHTTP(ctx context.Context, url string, client *http.Client) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
}

// LoadManifest is FetchManifest for callers that must never see a load
// error: any failure is logged and an empty manifest is returned.
func LoadManifest(ctx context.Context, src string, client *http.Client, logger *slog.Logger) Manifest {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := FetchManifest(ctx, src, client)
	if err != nil {
		logger.Warn("photos: using empty manifest", "src", src, "error", err)
		return Manifest{}
	}
	logger.Info("photos: manifest loaded", "src", src, "couples", len(m.Couples), "kids", len(m.Kids))
	return m
}
