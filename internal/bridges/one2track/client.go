package one2track

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/tracker"
)

const (
	// defaultRequestTimeout bounds one HTTP round trip.
	defaultRequestTimeout = 30 * time.Second

	// maxResponseBytes caps the device list body (10 MB).
	maxResponseBytes = 10 << 20

	// userAgent identifies the service to the portal.
	userAgent = "graytrack-one2track"
)

// Logger defines the logging interface used by the one2track package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ClientConfig configures a Client.
type ClientConfig struct {
	// DevicesURL is the absolute URL of the account device list.
	DevicesURL string

	// Username and Password are sent as HTTP basic auth when Username is set.
	Username string
	Password string

	// RequestTimeout bounds one HTTP request.
	// Default: 30 seconds.
	RequestTimeout time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Logger is optional structured logger.
	Logger Logger
}

// Client downloads the device list of one account.
//
// Client implements tracker.Fetcher.
type Client struct {
	devicesURL string
	username   string
	password   string
	http       *http.Client
	logger     Logger
}

// NewClient validates cfg and creates a Client.
//
// Returns:
//   - *Client: Ready to fetch
//   - error: ErrInvalidConfig if the URL is missing or not absolute
func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(cfg.DevicesURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: devices URL %q is not absolute", ErrInvalidConfig, cfg.DevicesURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var logger Logger = noopLogger{}
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	return &Client{
		devicesURL: u.String(),
		username:   cfg.Username,
		password:   cfg.Password,
		http:       httpClient,
		logger:     logger,
	}, nil
}

// Update fetches the full device list.
//
// There is no partial result: any transport, status, size or decoding
// problem fails the whole fetch.
func (c *Client) Update(ctx context.Context) ([]tracker.DeviceRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.devicesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting device list: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading device list: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, maxResponseBytes)
	}

	records, err := decodeDevices(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("device list fetched",
		"devices", len(records),
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return records, nil
}

// checkStatus maps non-200 responses to errors. A short body excerpt is
// kept for diagnostics.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256)) //nolint:errcheck // diagnostics only
	excerpt = bytes.TrimSpace(excerpt)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w: %d", ErrUnexpectedStatus, ErrUnauthorized, resp.StatusCode)
	}
	if len(excerpt) > 0 {
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, excerpt)
	}
	return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
}

// envelope is the {"device": {...}} wrapper some portal versions return.
type envelope struct {
	Device *tracker.DeviceRecord `json:"device"`
}

// decodeDevices accepts an array of bare records and/or envelopes.
func decodeDevices(body []byte) ([]tracker.DeviceRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	records := make([]tracker.DeviceRecord, 0, len(raw))
	for i, item := range raw {
		rec, err := decodeDevice(item)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %w", ErrDecode, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeDevice(item json.RawMessage) (tracker.DeviceRecord, error) {
	var env envelope
	if err := json.Unmarshal(item, &env); err != nil {
		return tracker.DeviceRecord{}, err
	}

	var rec tracker.DeviceRecord
	if env.Device != nil {
		rec = *env.Device
	} else if err := json.Unmarshal(item, &rec); err != nil {
		return tracker.DeviceRecord{}, err
	}
	if rec.UUID == "" {
		return tracker.DeviceRecord{}, errors.New("record has no uuid")
	}
	return rec, nil
}
