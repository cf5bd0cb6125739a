package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrExtractionFailed means the image was readable but no meter digits could
// be parsed from it; the caller should fall back to manual entry.
var ErrExtractionFailed = errors.New("ocr extraction failed")

// Result is the AI service's verdict on one meter image. The service sends
// meter_reading as a string; an empty string means OCR found no digits.
type Result struct {
	Status       string `json:"status"`
	MeterReading string `json:"meter_reading"`
	ImageValid   bool   `json:"image_valid"`
	Reason       string `json:"reason,omitempty"`

	// Reading is MeterReading parsed to a number; set only on success.
	Reading float64 `json:"-"`
}

// Client proxies meter-image validation to the external OCR/AI service. The
// service is an opaque dependency; this client only shapes the request and
// classifies the response.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ValidateMeter uploads the image and the user's claimed reading and returns
// the extracted reading. image is consumed fully; the caller owns cleanup of
// any backing file.
func (c *Client) ValidateMeter(ctx context.Context, image io.Reader, filename string, userReading float64) (*Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, image); err != nil {
		return nil, err
	}
	if err := mw.WriteField("user_reading", fmt.Sprintf("%g", userReading)); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate-meter", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ai service error: %d %s", resp.StatusCode, string(body))
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode ai response: %w", err)
	}

	if res.Status != "VALID" {
		return &res, fmt.Errorf("ai service returned status %q: %s", res.Status, res.Reason)
	}

	// A readable image with no digits is a client problem, not an upstream one.
	reading := strings.TrimSpace(res.MeterReading)
	if reading == "" {
		return &res, fmt.Errorf("%w: no meter digits detected in the image", ErrExtractionFailed)
	}
	v, err := strconv.ParseFloat(reading, 64)
	if err != nil {
		return &res, fmt.Errorf("%w: unreadable meter value %q", ErrExtractionFailed, reading)
	}
	res.Reading = v

	return &res, nil
}
