/*
Package attachment integrates with the external receipt blob store.

PURPOSE:
  Implements ledger.Uploader against an HTTP blob-storage service
  (Cloudinary-style: POST multipart upload returning {url, id}, DELETE
  by id). The ledger treats this collaborator as best-effort: every
  caller logs and continues on failure.

RETRY POLICY:
  Uploads and deletes retry up to three attempts with exponential
  backoff (250ms, 500ms). The retry loop honours context cancellation,
  so an aborted upload never holds up a financial write that has
  already committed.

SEE ALSO:
  - ledger/store.go: The Uploader interface
  - ledger/recorder.go, ledger/rollback.go: Best-effort call sites
*/
package attachment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zurcherConstruction/ledger-service/ledger"
)

const (
	maxAttempts = 3
	baseBackoff = 250 * time.Millisecond
)

// Client talks to the receipt storage service over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logrus.Logger
}

func NewClient(baseURL, apiKey string, log *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type uploadResponse struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// Upload stores a receipt and returns its public URL and storage id.
func (c *Client) Upload(ctx context.Context, fileName string, data []byte) (string, string, error) {
	var resp uploadResponse
	err := c.withRetry(ctx, "upload", func() error {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
		if err := writer.Close(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		httpResp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
			return fmt.Errorf("%w: unexpected status %d", ledger.ErrAttachmentUpload, httpResp.StatusCode)
		}

		raw, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &resp)
	})
	if err != nil {
		return "", "", err
	}
	return resp.URL, resp.ID, nil
}

// Delete removes a previously uploaded receipt.
func (c *Client) Delete(ctx context.Context, storageID string) error {
	return c.withRetry(ctx, "delete", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
			c.baseURL+"/files/"+storageID, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		httpResp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		// 404 counts as deleted.
		if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusNoContent &&
			httpResp.StatusCode != http.StatusNotFound {
			return fmt.Errorf("unexpected status %d", httpResp.StatusCode)
		}
		return nil
	})
}

// withRetry runs fn up to maxAttempts times with exponential backoff.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		c.log.WithError(lastErr).WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
		}).Warn("receipt storage call failed")

		if attempt < maxAttempts {
			backoff := baseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
