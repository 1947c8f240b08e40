package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CertificateIssuer is the external collaborator invoked on publish. The
// publish transition fails wholesale when issuance fails; a submission is
// never left published without a certificate.
type CertificateIssuer interface {
	Issue(ctx context.Context, submissionID, authorID string) (string, error)
}

// CertificateIssuerFunc allows using plain functions.
type CertificateIssuerFunc func(ctx context.Context, submissionID, authorID string) (string, error)

// Issue implements CertificateIssuer.
func (f CertificateIssuerFunc) Issue(ctx context.Context, submissionID, authorID string) (string, error) {
	return f(ctx, submissionID, authorID)
}

// HTTPCertificateIssuer calls the certificate service over HTTP.
type HTTPCertificateIssuer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCertificateIssuer constructs the client with a bounded timeout.
func NewHTTPCertificateIssuer(baseURL string, timeout time.Duration) *HTTPCertificateIssuer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCertificateIssuer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type issueCertificateRequest struct {
	SubmissionID string `json:"submission_id"`
	AuthorID     string `json:"author_id"`
}

type issueCertificateResponse struct {
	CertificateID string `json:"certificate_id"`
}

// Issue requests a certificate for a published submission.
func (c *HTTPCertificateIssuer) Issue(ctx context.Context, submissionID, authorID string) (string, error) {
	payload, err := json.Marshal(issueCertificateRequest{SubmissionID: submissionID, AuthorID: authorID})
	if err != nil {
		return "", fmt.Errorf("encode certificate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/certificates", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build certificate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call certificate issuer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("certificate issuer returned status %d", resp.StatusCode)
	}

	var body issueCertificateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode certificate response: %w", err)
	}
	if body.CertificateID == "" {
		return "", fmt.Errorf("certificate issuer returned empty certificate id")
	}
	return body.CertificateID, nil
}
