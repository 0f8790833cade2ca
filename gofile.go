package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// ==================== GOFILE UPLOAD ENGINE ====================

const (
	gofileAPIDefault    = "https://api.gofile.io"
	gofileServerPattern = "https://%s.gofile.io/uploadFile"
)

type GofileClient struct {
	apiURL    string
	uploadFmt string // Printf pattern taking the server name
	api       *http.Client
	upload    *http.Client
}

func NewGofileClient() *GofileClient {
	return &GofileClient{
		apiURL:    gofileAPIDefault,
		uploadFmt: gofileServerPattern,
		api:       &http.Client{Timeout: 30 * time.Second},
		// Uploads of big files take a while; 1 hour cap like the
		// old drive uploader.
		upload: &http.Client{Timeout: 3600 * time.Second},
	}
}

// PickServer asks the API which storage server to upload to.
func (c *GofileClient) PickServer(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/servers", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.api.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: gofile servers: %v", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: gofile servers returned %s", ErrTransientNetwork, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: gofile servers returned %s", ErrDestinationError, resp.Status)
	}

	var res struct {
		Status string `json:"status"`
		Data   struct {
			Servers []struct {
				Name string `json:"name"`
			} `json:"servers"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("%w: gofile servers: bad JSON: %v", ErrDestinationError, err)
	}
	if res.Status != "ok" || len(res.Data.Servers) == 0 {
		return "", fmt.Errorf("%w: gofile reported no servers (status %q)", ErrDestinationError, res.Status)
	}
	return res.Data.Servers[0].Name, nil
}

// Upload streams the file as multipart form data. io.Pipe keeps the
// whole thing out of RAM, the request body is produced as the reader
// is consumed. Returns the public download page.
func (c *GofileClient) Upload(ctx context.Context, server, fileName string, src io.Reader, size int64, reporter *ProgressReporter) (string, error) {
	if reporter != nil {
		src = &progressReader{r: src, stage: StageUpload, fileName: fileName, total: size, reporter: reporter}
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	uploadURL := fmt.Sprintf(c.uploadFmt, server)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.upload.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: gofile upload: %v", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: gofile upload returned %s", ErrTransientNetwork, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: gofile upload returned %s", ErrDestinationError, resp.Status)
	}

	var res struct {
		Status string `json:"status"`
		Data   struct {
			DownloadPage string `json:"downloadPage"`
			Message      string `json:"message"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("%w: gofile upload: bad JSON: %v", ErrDestinationError, err)
	}
	if res.Status != "ok" || res.Data.DownloadPage == "" {
		msg := res.Data.Message
		if msg == "" {
			msg = "unknown error"
		}
		return "", fmt.Errorf("%w: gofile said %q", ErrDestinationError, msg)
	}
	return res.Data.DownloadPage, nil
}
