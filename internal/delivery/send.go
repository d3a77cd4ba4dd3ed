package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	logx "discordmessenger/pkg/logx"
)

type httpClient struct {
	hc      *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(timeout time.Duration, limiter *rate.Limiter) *httpClient {
	return &httpClient{
		hc:      &http.Client{Timeout: timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()},
		limiter: limiter,
	}
}

func (c *httpClient) closeIdle() { c.hc.CloseIdleConnections() }

func (c *httpClient) post(ctx context.Context, url, contentType string, body []byte) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// waitForFile checks for path up to attempts times, sleeping interval after
// each miss, so a missing file fails after attempts*interval.
func waitForFile(ctx context.Context, path string, attempts int, interval time.Duration) error {
	if path == "" {
		return ErrScreenshotMissing
	}
	for i := 0; i < attempts; i++ {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return nil
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("%w: %s", ErrScreenshotMissing, path)
}

// multipartBody builds one request body. Either part may be absent.
func multipartBody(payload []byte, fileName string, file []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if len(payload) > 0 {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="payload_json"`)
		h.Set("Content-Type", "application/json; charset=utf-8")
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(payload); err != nil {
			return nil, "", err
		}
	}
	if file != nil {
		part, err := w.CreateFormFile("file", fileName)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// deliver posts to every URL in order and stops at the first failure. The
// screenshot is deleted only when every endpoint accepted it.
func (s *Service) deliver(ctx context.Context, embed *Embed, path string) (int64, error) {
	if err := waitForFile(ctx, path, s.cfg.PollAttempts, s.cfg.PollInterval); err != nil {
		return 0, err
	}
	file, err := os.ReadFile(path)
	if err != nil {
		s.deps.Bus.Print("Exception: " + err.Error())
		return 0, fmt.Errorf("read screenshot: %w", err)
	}

	var payload []byte
	if embed != nil {
		payload, err = json.Marshal(Payload{Embeds: []Embed{*embed}})
		if err != nil {
			return 0, fmt.Errorf("encode payload: %w", err)
		}
	}

	name := filepath.Base(path)
	s.log.Debug("sending",
		logx.String("file", name),
		logx.String("size", humanize.Bytes(uint64(len(file)))),
		logx.Bool("embed", embed != nil),
		logx.Int("webhooks", len(s.cfg.URLs)),
	)

	for i, url := range s.cfg.URLs {
		body, ct, err := multipartBody(payload, name, file)
		if err != nil {
			return 0, fmt.Errorf("build body: %w", err)
		}
		code, err := s.client.post(ctx, url, ct, body)
		if err != nil {
			s.deps.Bus.Print("Exception: " + err.Error())
			return 0, fmt.Errorf("webhook %d: %w", i, err)
		}
		if code < 200 || code > 299 {
			s.deps.Bus.Print(fmt.Sprintf("HTTP failed: %d %s", code, http.StatusText(code)))
			return 0, fmt.Errorf("%w: webhook %d: %d", ErrEndpointStatus, i, code)
		}
	}

	if err := os.Remove(path); err != nil {
		s.log.Warn("screenshot not removed", logx.String("path", path), logx.Err(err))
	}
	return int64(len(file)), nil
}
