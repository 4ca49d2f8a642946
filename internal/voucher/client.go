package voucher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"invoicesync/internal/model"
)

const (
	vouchersPath = "/vouchers"
	// maxResponseBody caps how much of a response body is read.
	maxResponseBody = 1 << 20
	defaultTimeout  = 30 * time.Second
)

// Client talks to the remote voucher service. Every call carries the bearer key it is given;
// the client holds no credential of its own.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a client for baseURL (e.g. https://api.lexoffice.io/v1). Each call runs
// under its own timeout; zero means the default of 30s.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		timeout: timeout,
	}
}

// CreateVoucher posts the voucher metadata and returns the created voucher.
// A 401 is returned as ErrUnauthorized so the caller can refresh the key.
func (c *Client) CreateVoucher(ctx context.Context, apiKey string, body model.VoucherRequest) (model.VoucherCreated, error) {
	var created model.VoucherCreated

	payload, err := json.Marshal(body)
	if err != nil {
		return created, fmt.Errorf("encode voucher: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+vouchersPath, bytes.NewReader(payload))
	if err != nil {
		return created, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return created, classify(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return created, classify(err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return created, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return created, &RejectedError{Step: StepVoucher, Status: resp.StatusCode, Message: remoteMessage(raw)}
	}

	if err := json.Unmarshal(raw, &created); err != nil {
		return created, fmt.Errorf("%w: decode voucher response: %v", ErrUnexpectedResponse, err)
	}
	if created.ID == "" {
		return created, fmt.Errorf("%w: voucher response without id", ErrUnexpectedResponse)
	}
	return created, nil
}

// UploadFile attaches a PDF to voucherID. Only 202 Accepted counts as success.
func (c *Client) UploadFile(ctx context.Context, apiKey, voucherID, filename string, content io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("type", model.FileTypeVoucher); err != nil {
		return err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s%s/%s/files", c.baseURL, vouchersPath, voucherID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode != http.StatusAccepted {
		return &RejectedError{Step: StepFile, Status: resp.StatusCode, Message: remoteMessage(raw)}
	}
	return nil
}

// classify separates deadline expiry from every other transport failure.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func remoteMessage(raw []byte) string {
	var body model.RemoteError
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Text()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
