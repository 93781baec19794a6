// ABOUTME: Case file validation and multipart submission to /api/simulate.
// ABOUTME: A file must look like JSON (content type or .json name) before anything is sent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// CaseFile is a patient case ready to upload.
type CaseFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// CaseFileFromPath reads path and guesses its content type from the extension,
// the way a browser file picker would.
func CaseFileFromPath(path string) (CaseFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CaseFile{}, fmt.Errorf("reading case file: %w", err)
	}
	name := filepath.Base(path)
	return CaseFile{
		Name:        name,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Data:        data,
	}, nil
}

// ValidateCaseFile accepts a file whose content type is application/json or
// whose name ends in .json.
func ValidateCaseFile(name, contentType string) error {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "application/json" {
		return nil
	}
	if strings.HasSuffix(strings.ToLower(name), ".json") {
		return nil
	}
	return &ValidationError{Name: name, ContentType: contentType}
}

// Submit uploads f and returns the run id assigned by the backend.
func (c *Client) Submit(ctx context.Context, f CaseFile) (string, error) {
	if err := ValidateCaseFile(f.Name, f.ContentType); err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	hdr.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("creating form part: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return "", fmt.Errorf("writing form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.BaseURL+pathSimulate, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting case file: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		apiErr := errorFromResponse(resp, GenericSubmitFailure)
		log.Printf("client event=submit_failed status=%d request_id=%s detail=%q", apiErr.Status, apiErr.RequestID, apiErr.Detail)
		return "", apiErr
	}

	var out struct {
		RunID   string `json:"run_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding submit response: %w", err)
	}
	if out.RunID == "" {
		return "", &APIError{Status: resp.StatusCode, Detail: "response has no run_id", RequestID: req.Header.Get("X-Request-ID")}
	}
	log.Printf("client event=submitted run_id=%s file=%q", out.RunID, f.Name)
	return out.RunID, nil
}
