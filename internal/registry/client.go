// Package registry fetches published version lists from a sparse
// crates index over HTTP.
package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// VersionRecord is one line of the index file for a crate. Fields
// beyond the version string and the yanked flag are ignored.
type VersionRecord struct {
	Vers   string `json:"vers"`
	Yanked bool   `json:"yanked"`
}

// Client issues one HTTP request per crate name against the sharded
// index path scheme. Callers are expected to deduplicate and cache;
// the client itself performs a network round-trip on every call.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient builds a client for the given index endpoint. The token is
// attached as a bearer credential only when non-empty. A zero timeout
// leaves requests unbounded.
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}
}

// ShardPrefix computes the index path segment for a crate name: names
// of one or two characters use the length itself, three-character
// names use "3/<first char>", longer names split into two two-character
// segments.
func ShardPrefix(name string) string {
	switch {
	case len(name) <= 2:
		return fmt.Sprintf("%d", len(name))
	case len(name) == 3:
		return "3/" + name[0:1]
	default:
		return name[0:2] + "/" + name[2:4]
	}
}

// FetchVersions returns the non-yanked published versions for a crate
// in registry order (oldest first). A non-2xx response or a malformed
// index line fails the whole fetch; no partial results are returned.
func (c *Client) FetchVersions(ctx context.Context, name string) ([]string, error) {
	if name == "" {
		return nil, fmt.Errorf("empty crate name")
	}
	url := fmt.Sprintf("%s/%s/%s", c.endpoint, ShardPrefix(name), name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", name, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", name, resp.Status)
	}

	var versions []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record VersionRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("parse index line for %s: %w", name, err)
		}
		if record.Yanked {
			continue
		}
		versions = append(versions, record.Vers)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index body for %s: %w", name, err)
	}
	return versions, nil
}
