package ocr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestValidateMeter_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/validate-meter" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		if got := r.FormValue("user_reading"); got != "150.5" {
			t.Errorf("user_reading = %q", got)
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("missing image part: %v", err)
		}
		f.Close()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"VALID","meter_reading":"150","user_reading":"150.5","image_valid":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.ValidateMeter(context.Background(), strings.NewReader("fake-image"), "meter.jpg", 150.5)
	if err != nil {
		t.Fatalf("ValidateMeter failed: %v", err)
	}
	if res.Reading != 150.0 || !res.ImageValid {
		t.Errorf("unexpected result: %+v", res)
	}
}

// The service reports an empty meter_reading string when OCR finds no digits.
func TestValidateMeter_EmptyReading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"VALID","meter_reading":"","user_reading":"150","image_valid":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.ValidateMeter(context.Background(), strings.NewReader("fake-image"), "meter.jpg", 150)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestValidateMeter_GarbledReading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"VALID","meter_reading":"12a45","user_reading":"150","image_valid":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.ValidateMeter(context.Background(), strings.NewReader("fake-image"), "meter.jpg", 150)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestValidateMeter_NonValidStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"REJECTED","meter_reading":"","image_valid":false,"reason":"not a meter"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.ValidateMeter(context.Background(), strings.NewReader("fake-image"), "meter.jpg", 150)
	if err == nil || errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected a non-extraction error, got %v", err)
	}
}

func TestValidateMeter_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.ValidateMeter(context.Background(), strings.NewReader("fake-image"), "meter.jpg", 150)
	if err == nil || errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestValidateMeter_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.ValidateMeter(context.Background(), strings.NewReader("x"), "meter.jpg", 1)
	if err == nil {
		t.Fatalf("expected error for unreachable service")
	}
}
