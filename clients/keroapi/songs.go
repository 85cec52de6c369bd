package keroapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/song"
)

// SongSummary is a catalog search hit without timing data.
type SongSummary struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration"`
	CoverURL string  `json:"coverUrl,omitempty"`
	Status   string  `json:"status,omitempty"`
}

type searchResponse struct {
	Songs []SongSummary `json:"songs"`
}

// SearchSongs queries the catalog by free text.
func (c *KeroApiClient) SearchSongs(ctx context.Context, query string) ([]SongSummary, error) {
	endpoint := fmt.Sprintf("%s?q=%s", SearchEndpoint, url.QueryEscape(query))
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to search songs: %w", err)
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	return response.Songs, nil
}

// GetSong fetches the full song detail including the lyric chart and
// pitch reference.
func (c *KeroApiClient) GetSong(ctx context.Context, songID string) (*song.Song, error) {
	endpoint := fmt.Sprintf(SongEndpoint, url.PathEscape(songID))
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get song %s: %w", songID, err)
	}

	var s song.Song
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	return &s, nil
}
