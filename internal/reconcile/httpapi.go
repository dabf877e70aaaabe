package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mander92/syuso-chat/internal/mentions"
)

// HTTPUnreadAPI talks to the chat service's unread endpoints.
type HTTPUnreadAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPUnreadAPI builds an HTTPUnreadAPI against baseURL.
func NewHTTPUnreadAPI(baseURL, token string) *HTTPUnreadAPI {
	return &HTTPUnreadAPI{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Snapshot fetches all non-zero counters for the authenticated user.
func (a *HTTPUnreadAPI) Snapshot(ctx context.Context) (map[string]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/unread", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unread snapshot: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Unread map[string]int `json:"unread"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Unread, nil
}

// Reset zeroes the caller's counter for one room.
func (a *HTTPUnreadAPI) Reset(ctx context.Context, roomKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/unread/"+roomKey+"/reset", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unread reset: unexpected status %d", resp.StatusCode)
	}
	return nil
}

var _ UnreadAPI = (*HTTPUnreadAPI)(nil)

// HTTPMemberAPI fetches room member rosters for mention completion.
type HTTPMemberAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPMemberAPI builds an HTTPMemberAPI against baseURL.
func NewHTTPMemberAPI(baseURL, token string) *HTTPMemberAPI {
	return &HTTPMemberAPI{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Members fetches the room's current roster.
func (a *HTTPMemberAPI) Members(ctx context.Context, roomKey string) ([]mentions.Member, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/rooms/"+roomKey+"/members", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("room members: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Members []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"members"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	members := make([]mentions.Member, 0, len(body.Members))
	for _, m := range body.Members {
		members = append(members, mentions.Member{ID: m.ID, Name: m.Name})
	}
	return members, nil
}

var _ MemberAPI = (*HTTPMemberAPI)(nil)
