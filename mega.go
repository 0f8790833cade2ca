package main

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// ==================== MEGA DOWNLOAD ENGINE ====================
//
// Public-file downloads only. A share link carries the node handle and
// the file key; the key never reaches Mega's servers. The API hands
// back the encrypted attributes plus a temporary download URL, and the
// content is AES-128-CTR decrypted while it streams.

const megaAPIDefault = "https://g.api.mega.co.nz/cs"

// MegaFile is a resolved public file: everything needed to stream it.
type MegaFile struct {
	Handle      string
	Name        string
	Size        int64
	DownloadURL string

	aesKey []byte // 16 bytes
	ctrIV  []byte // 16 bytes
}

type MegaClient struct {
	apiURL string
	api    *http.Client // short calls
	dl     *http.Client // streaming, no overall timeout
	seq    atomic.Int64
}

func NewMegaClient() *MegaClient {
	return &MegaClient{
		apiURL: megaAPIDefault,
		api:    &http.Client{Timeout: 30 * time.Second},
		dl:     &http.Client{},
	}
}

// parseMegaLink accepts the current and the legacy public link forms:
//
//	https://mega.nz/file/<handle>#<key>
//	https://mega.nz/#!<handle>!<key>
//
// (mega.io mirrors both.)
func parseMegaLink(link string) (handle, key string, err error) {
	u, perr := url.Parse(strings.TrimSpace(link))
	if perr != nil {
		return "", "", fmt.Errorf("%w: not a valid URL", ErrSourceUnavailable)
	}
	host := strings.ToLower(u.Host)
	if u.Scheme != "https" || (host != "mega.nz" && host != "mega.io" && host != "www.mega.nz" && host != "www.mega.io") {
		return "", "", fmt.Errorf("%w: not a mega.nz link", ErrSourceUnavailable)
	}

	frag := u.Fragment
	if strings.HasPrefix(u.Path, "/file/") {
		// The handle is exactly one path segment.
		rest := strings.TrimPrefix(u.Path, "/file/")
		if !strings.Contains(rest, "/") {
			handle = rest
			key = frag
		}
	} else if strings.HasPrefix(frag, "!") {
		// legacy: everything after # looks like !handle!key
		parts := strings.Split(strings.TrimPrefix(frag, "!"), "!")
		if len(parts) == 2 {
			handle, key = parts[0], parts[1]
		}
	}
	if handle == "" || key == "" {
		return "", "", fmt.Errorf("%w: link has no file handle or key", ErrSourceUnavailable)
	}
	return handle, key, nil
}

// unpackKey expands the 32-byte node key into the AES key and CTR IV.
func unpackKey(keyStr string) (aesKey, ctrIV []byte, err error) {
	raw, derr := base64.RawURLEncoding.DecodeString(strings.TrimRight(keyStr, "="))
	if derr != nil || len(raw) != 32 {
		return nil, nil, fmt.Errorf("%w: malformed file key", ErrSourceUnavailable)
	}
	aesKey = make([]byte, 16)
	for i := 0; i < 16; i++ {
		aesKey[i] = raw[i] ^ raw[i+16]
	}
	ctrIV = make([]byte, 16)
	copy(ctrIV, raw[16:24]) // high 8 bytes of the nonce, counter starts at 0
	return aesKey, ctrIV, nil
}

// decryptAttr opens the encrypted attribute block: AES-CBC, zero IV,
// zero-padded `MEGA{"n":"<name>", ...}`.
func decryptAttr(aesKey, attr []byte) (string, error) {
	if len(attr) == 0 || len(attr)%aes.BlockSize != 0 {
		return "", fmt.Errorf("bad attribute length %d", len(attr))
	}
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", err
	}
	plain := make([]byte, len(attr))
	cipher.NewCBCDecrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(plain, attr)
	plain = bytes.TrimRight(plain, "\x00")
	if !bytes.HasPrefix(plain, []byte("MEGA")) {
		return "", fmt.Errorf("attribute decryption failed (wrong key?)")
	}
	var a struct {
		Name string `json:"n"`
	}
	if err := json.Unmarshal(bytes.TrimPrefix(plain, []byte("MEGA")), &a); err != nil {
		return "", err
	}
	if a.Name == "" {
		return "", fmt.Errorf("attribute block has no file name")
	}
	return a.Name, nil
}

// FileInfo resolves a public link to name, size and a temporary
// download URL. No content bytes move yet.
func (c *MegaClient) FileInfo(ctx context.Context, link string) (*MegaFile, error) {
	handle, keyStr, err := parseMegaLink(link)
	if err != nil {
		return nil, err
	}
	aesKey, ctrIV, err := unpackKey(keyStr)
	if err != nil {
		return nil, err
	}

	reqBody, _ := json.Marshal([]map[string]any{{"a": "g", "g": 1, "ssl": 0, "p": handle}})
	apiURL := fmt.Sprintf("%s?id=%d", c.apiURL, c.seq.Add(1))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.api.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: mega api: %v", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: mega api returned %s", ErrTransientNetwork, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: mega api returned %s", ErrSourceUnavailable, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: mega api: %v", ErrTransientNetwork, err)
	}

	// The API answers either a bare error code (-3 = again, -9 = not
	// found, ...) or a one-element array whose element is the result
	// object or a per-command error code.
	if code, ok := parseMegaError(body); ok {
		return nil, megaCodeError(code)
	}
	var results []json.RawMessage
	if err := json.Unmarshal(body, &results); err != nil || len(results) == 0 {
		return nil, fmt.Errorf("%w: unexpected mega api response", ErrSourceUnavailable)
	}
	if code, ok := parseMegaError(results[0]); ok {
		return nil, megaCodeError(code)
	}

	var node struct {
		Size int64  `json:"s"`
		Attr string `json:"at"`
		URL  string `json:"g"`
	}
	if err := json.Unmarshal(results[0], &node); err != nil || node.URL == "" {
		return nil, fmt.Errorf("%w: unexpected mega api response", ErrSourceUnavailable)
	}

	attr, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(node.Attr, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: bad attribute encoding", ErrSourceUnavailable)
	}
	name, err := decryptAttr(aesKey, attr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	return &MegaFile{
		Handle:      handle,
		Name:        name,
		Size:        node.Size,
		DownloadURL: node.URL,
		aesKey:      aesKey,
		ctrIV:       ctrIV,
	}, nil
}

func parseMegaError(raw []byte) (int, bool) {
	var code int
	if err := json.Unmarshal(bytes.TrimSpace(raw), &code); err == nil && code < 0 {
		return code, true
	}
	return 0, false
}

func megaCodeError(code int) error {
	switch code {
	case -3: // EAGAIN
		return fmt.Errorf("%w: mega asked to retry (code %d)", ErrTransientNetwork, code)
	case -9:
		return fmt.Errorf("%w: file not found (code -9)", ErrSourceUnavailable)
	case -16:
		return fmt.Errorf("%w: file taken down (code -16)", ErrSourceUnavailable)
	default:
		return fmt.Errorf("%w: mega api error code %d", ErrSourceUnavailable, code)
	}
}

// Download streams the file content into w, decrypting on the fly.
// Progress samples go through the reporter per read.
func (c *MegaClient) Download(ctx context.Context, f *MegaFile, w io.Writer, reporter *ProgressReporter) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.DownloadURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.dl.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: mega download: %v", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: mega download returned %s", ErrTransientNetwork, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: mega download returned %s", ErrSourceUnavailable, resp.Status)
	}

	block, err := aes.NewCipher(f.aesKey)
	if err != nil {
		return err
	}
	iv := make([]byte, aes.BlockSize)
	copy(iv, f.ctrIV)

	var src io.Reader = resp.Body
	if reporter != nil {
		src = &progressReader{r: resp.Body, stage: StageDownload, fileName: f.Name, total: f.Size, reporter: reporter}
	}
	plain := cipher.StreamReader{S: cipher.NewCTR(block, iv), R: src}
	if _, err := io.Copy(w, plain); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrSourceTooLarge) {
			return err
		}
		return fmt.Errorf("%w: mega download interrupted: %v", ErrTransientNetwork, err)
	}
	return nil
}
