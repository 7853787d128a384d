// workers/player_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"survivor-pool/metrics"
	"survivor-pool/models"
	"survivor-pool/store"
)

// RemotePlayer is one entry of the profile service's change feed.
type RemotePlayer struct {
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Lives         *int      `json:"lives,omitempty"`
	AccountStatus string    `json:"account_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PlayerChangesResponse is the top-level structure of the sync service response.
type PlayerChangesResponse struct {
	Users []RemotePlayer `json:"users"`
}

// PlayerSyncWorker mirrors players (and their global life count) from the
// profile service into the local players table.
type PlayerSyncWorker struct {
	players      store.PlayerStore
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
	metrics      *metrics.Recorder
}

func NewPlayerSyncWorker(players store.PlayerStore, baseURL, endpointPath, serviceToken string, interval time.Duration, client *http.Client, rec *metrics.Recorder) *PlayerSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PlayerSyncWorker{
		players:      players,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   client,
		metrics:      rec,
	}
}

// Start runs until ctx is cancelled.
func (w *PlayerSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Player Sync Worker (profile service → players)…")
	go w.run(ctx)
}

func (w *PlayerSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		log.Printf("[SYNC] ⚠️ Initial player sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				log.Printf("[SYNC] ❌ Player sync failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Player Sync Worker stopped")
			return
		}
	}
}

// SyncOnce fetches changes since the newest local update and upserts them.
func (w *PlayerSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since, err := w.players.LatestPlayerUpdate(ctx)
	if err != nil {
		return 0, fmt.Errorf("read last sync time: %w", err)
	}

	remote, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(remote) == 0 {
		return 0, nil
	}

	players := make([]models.Player, 0, len(remote))
	for _, r := range remote {
		if r.ExternalID == "" {
			continue
		}
		players = append(players, models.Player{
			ID:        r.ExternalID,
			Username:  r.Username,
			Email:     r.Email,
			Lives:     r.Lives,
			IsActive:  r.AccountStatus == "" || r.AccountStatus == "active",
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}

	n, err := w.players.UpsertPlayers(ctx, players)
	w.metrics.PlayersSynced(n)
	if err != nil {
		return n, fmt.Errorf("upsert players: %w", err)
	}
	log.Printf("[SYNC] ✅ Synced %d player(s) since %s", n, since.UTC().Format(time.RFC3339))
	return n, nil
}

func (w *PlayerSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemotePlayer, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", endpointURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service returned %d: %s", resp.StatusCode, string(body))
	}

	var out PlayerChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return out.Users, nil
}
