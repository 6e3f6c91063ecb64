package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rbright/lilibet/internal/recorder"
)

const speechToTextPath = "/api/speech-to-text"

var (
	// ErrTranscriptionUnavailable covers network failures, non-2xx replies,
	// undecodable bodies, and timeouts.
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
	// ErrNoSpeechDetected means the service answered but recognized nothing.
	ErrNoSpeechDetected = errors.New("no speech detected")
)

// TranscriptionResult is the decoded speech-to-text reply.
type TranscriptionResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
}

// Transcribe uploads one recording as the multipart field "audio".
//
// The returned text is trimmed. There is no automatic retry.
func (c *Client) Transcribe(ctx context.Context, payload recorder.Payload) (TranscriptionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.transcribeTimeout)
	defer cancel()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, payload.Filename))
	header.Set("Content-Type", payload.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return TranscriptionResult{}, fmt.Errorf("create multipart audio part: %w", err)
	}
	if _, err := part.Write(payload.Data); err != nil {
		return TranscriptionResult{}, fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return TranscriptionResult{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, speechToTextPath, body)
	if err != nil {
		return TranscriptionResult{}, err
	}
	// net/http does not derive the multipart boundary header on its own.
	req.Header.Set("Content-Type", writer.FormDataContentType())

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logRequest(http.MethodPost, speechToTextPath, 0, started, err)
		if isTimeout(err) {
			return TranscriptionResult{}, fmt.Errorf("%w: timed out after %s", ErrTranscriptionUnavailable, c.transcribeTimeout)
		}
		return TranscriptionResult{}, fmt.Errorf("%w: %v", ErrTranscriptionUnavailable, err)
	}
	defer resp.Body.Close()
	c.logRequest(http.MethodPost, speechToTextPath, resp.StatusCode, started, nil)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return TranscriptionResult{}, fmt.Errorf("%w: %v", ErrTranscriptionUnavailable, decodeAPIError(resp))
	}

	var result TranscriptionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if isTimeout(err) {
			return TranscriptionResult{}, fmt.Errorf("%w: timed out reading response", ErrTranscriptionUnavailable)
		}
		return TranscriptionResult{}, fmt.Errorf("%w: decode response: %v", ErrTranscriptionUnavailable, err)
	}

	result.Text = strings.TrimSpace(result.Text)
	if !result.Success || result.Text == "" {
		return result, ErrNoSpeechDetected
	}
	return result, nil
}
