package renewal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tokokas/backend/pkg/logger"
)

// HTTPRenewer calls the membership system's REST API. One POST per job;
// any non-2xx response is an error for the queue to log.
type HTTPRenewer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRenewer(baseURL string, client *http.Client) *HTTPRenewer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRenewer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (r *HTTPRenewer) RenewMembership(ctx context.Context, memberID string, productID string) error {
	return r.post(ctx, "/v1/memberships/renew", memberID, productID)
}

func (r *HTTPRenewer) RenewTraining(ctx context.Context, memberID string, productID string) error {
	return r.post(ctx, "/v1/trainings/renew", memberID, productID)
}

func (r *HTTPRenewer) post(ctx context.Context, path string, memberID string, productID string) error {
	payload, err := json.Marshal(map[string]string{
		"member_id":  memberID,
		"product_id": productID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("membership api returned status %d for %s", resp.StatusCode, path)
	}
	return nil
}

// LogOnlyRenewer is the fallback when no membership API is configured. It
// records the renewal intent so it can be replayed by hand.
type LogOnlyRenewer struct {
	Log *logger.Logger
}

func (r LogOnlyRenewer) RenewMembership(_ context.Context, memberID string, productID string) error {
	r.Log.Warn().
		Str("member_id", memberID).
		Str("product_id", productID).
		Msg("membership renewal skipped, no membership api configured")
	return nil
}

func (r LogOnlyRenewer) RenewTraining(_ context.Context, memberID string, productID string) error {
	r.Log.Warn().
		Str("member_id", memberID).
		Str("product_id", productID).
		Msg("training renewal skipped, no membership api configured")
	return nil
}
