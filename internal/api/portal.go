// ABOUTME: Portal endpoints: resource search, multipart upload, download and file fetch
// ABOUTME: Upload streams the file through an io.Pipe instead of buffering it

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// UploadRequest describes one resource upload. Grades are sent comma-joined.
type UploadRequest struct {
	Title        string
	Grades       []string
	Subject      string
	ResourceType string
	Description  string
	FileName     string
	File         io.Reader
}

// SearchResources lists active resources matching q.
func (c *Client) SearchResources(ctx context.Context, q SearchQuery) (*ResourcePage, error) {
	var page ResourcePage
	if err := c.doJSON(ctx, http.MethodGet, "/resources/", q.values(), nil, &page); err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []Resource{}
	}
	return &page, nil
}

// UploadResource sends a multipart upload. Description is omitted when empty.
func (c *Client) UploadResource(ctx context.Context, up UploadRequest) (*Resource, error) {
	if up.File == nil {
		return nil, errors.New("upload requires a file")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, up))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/resources/", nil), pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var res Resource
	if err := c.do(req, &res); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &res, nil
}

func writeUploadForm(mw *multipart.Writer, up UploadRequest) error {
	fields := [][2]string{
		{"title", up.Title},
		{"grade", strings.Join(up.Grades, ",")},
		{"subject", up.Subject},
		{"resource_type", up.ResourceType},
	}
	if up.Description != "" {
		fields = append(fields, [2]string{"description", up.Description})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("writing field %s: %w", f[0], err)
		}
	}

	part, err := mw.CreateFormFile("file", up.FileName)
	if err != nil {
		return fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, up.File); err != nil {
		return fmt.Errorf("copying file: %w", err)
	}
	return mw.Close()
}

// Download spends points (server-side) and returns the URL of the file.
func (c *Client) Download(ctx context.Context, resourceID int64) (*DownloadResult, error) {
	var res DownloadResult
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/downloads/%d", resourceID), nil, nil, &res); err != nil {
		return nil, err
	}
	if res.DownloadURL == "" {
		return nil, errors.New("download response carried no download_url")
	}
	return &res, nil
}

// ResolveURL resolves a possibly relative download URL against the API host.
func (c *Client) ResolveURL(raw string) (*url.URL, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing download url: %w", err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

// Fetch streams the file behind a download URL into w and returns the byte count.
// The credential is only attached when the file lives on the API host.
func (c *Client) Fetch(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	u, err := c.ResolveURL(rawURL)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if token := c.Token(); token != "" && u.Host == c.baseURL.Host {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp, "")
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", u.Path, err)
	}
	return n, nil
}
