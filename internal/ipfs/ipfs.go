// Package ipfs uploads token images and metadata JSON to a pinning
// service, returning the content's public URI (spec §3 Token Metadata/
// Token Image, §4.2 create_project). Grounded on the Pinata pinFileToIPFS
// client used by the metadata uploader in the original migrator, rebuilt
// against net/http's multipart writer rather than a Rust HTTP client.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/moonzip/launchd/internal/apperrors"
)

// Uploader is the off-chain storage interface the Lifecycle Engine depends
// on; the HTTP-backed Client below is the only implementation, but tests
// substitute a fake.
type Uploader interface {
	Upload(ctx context.Context, bytes []byte, mime, name string) (uri string, err error)
}

// Config holds the pinning service's endpoint and credentials, populated
// from the active environment profile.
type Config struct {
	BaseURL string
	APIKey  string
	Gateway string
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.pinata.cloud"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

const pinEndpoint = "/pinning/pinFileToIPFS"

// Client uploads content to Pinata's pinning API and resolves it to a
// gateway URL.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New builds a Client.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinResult struct {
	IpfsHash string `json:"IpfsHash"`
}

// Upload pins content under name and returns its gateway URL. mime sets
// the content type of the uploaded file part; name is used both as its
// filename and as the pin name.
func (c *Client) Upload(ctx context.Context, content []byte, mime, name string) (string, error) {
	body, contentType, err := buildMultipartBody(content, mime, name)
	if err != nil {
		return "", apperrors.Fatal("ipfs: build multipart body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+pinEndpoint, body)
	if err != nil {
		return "", apperrors.Fatal("ipfs: build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Transient("ipfs: upload request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Transient("ipfs: read upload response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Transient(fmt.Sprintf("ipfs: upload failed with status %d", resp.StatusCode), fmt.Errorf("%s", respBody))
	}

	var result pinResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", apperrors.Fatal("ipfs: unmarshal upload response", err)
	}

	return c.gatewayURL(result.IpfsHash), nil
}

func (c *Client) gatewayURL(hash string) string {
	if c.cfg.Gateway != "" {
		return fmt.Sprintf("https://%s.mypinata.cloud/ipfs/%s", c.cfg.Gateway, hash)
	}
	return fmt.Sprintf("https://gateway.pinata.cloud/ipfs/%s", hash)
}

func buildMultipartBody(content []byte, mime, name string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	fileHeader := make(textproto.MIMEHeader)
	fileHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	fileHeader.Set("Content-Type", mime)
	filePart, err := writer.CreatePart(fileHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := filePart.Write(content); err != nil {
		return nil, "", err
	}

	metaJSON, err := json.Marshal(pinMetadata{Name: name})
	if err != nil {
		return nil, "", err
	}
	metaHeader := make(textproto.MIMEHeader)
	metaHeader.Set("Content-Disposition", `form-data; name="pinataMetadata"`)
	metaHeader.Set("Content-Type", "application/json")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf, writer.FormDataContentType(), nil
}
