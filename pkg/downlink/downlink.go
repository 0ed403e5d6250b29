// Package downlink announces filtered frames to a ground station queue.
package downlink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Item is one frame waiting for transmission.
type Item struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

type Client struct {
	endpoint string
	http     *retryablehttp.Client
	log      logrus.FieldLogger
}

func NewClient(endpoint string, retries int, timeout time.Duration, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.HTTPClient.Timeout = timeout
	c.Logger = log

	return &Client{endpoint: endpoint, http: c, log: log}
}

// Send posts the name and size of one item.
func (c *Client) Send(ctx context.Context, item Item) error {
	j, err := json.Marshal(item)

	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(j))

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)

	if err != nil {
		return err
	}
	res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	return nil
}

// Announce queues the file at path. Empty files are not sent.
func (c *Client) Announce(ctx context.Context, path string) (uint64, error) {
	info, err := os.Stat(path)

	if err != nil {
		return 0, err
	}

	if info.Size() == 0 {
		return 0, nil
	}

	item := Item{Name: filepath.Base(path), Size: uint64(info.Size())}

	if err := c.Send(ctx, item); err != nil {
		return 0, fmt.Errorf("could not announce %s: %w", item.Name, err)
	}

	c.log.WithFields(logrus.Fields{"path": path, "size": item.Size}).Debug("queued for downlink")

	return item.Size, nil
}

// AnnounceAll queues every path in order and returns the bytes queued. It
// stops at the first failure.
func (c *Client) AnnounceAll(ctx context.Context, paths []string) (uint64, error) {
	var total uint64

	for _, p := range paths {
		n, err := c.Announce(ctx, p)
		if err != nil {
			return total, err
		}
		total += n
	}

	return total, nil
}
