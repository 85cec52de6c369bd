// Package keroapi is the typed HTTP client for the song catalog and
// quiz generation API.
package keroapi

import (
	"github.com/WebRTC-Sync/kero-project-sub001/clients"
)

type KeroApiClient struct {
	*clients.BaseClient
}

func NewKeroApiClient(baseURL string) *KeroApiClient {
	client := &KeroApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader("Accept", "application/json")

	return client
}
