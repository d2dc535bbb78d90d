package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/evcraddock/propdesk/internal/report"
)

// UploadFile sends a file through POST /uploads/{provider}/direct.
func (c *Client) UploadFile(ctx context.Context, provider, filename, contentType string, r io.Reader) (*report.Uploaded, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating upload part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing upload: %w", err)
	}

	var up report.Uploaded
	path := "/uploads/" + url.PathEscape(provider) + "/direct"
	if _, err := c.call(ctx, http.MethodPost, path, mw.FormDataContentType(), body.Bytes(), &up); err != nil {
		return nil, err
	}
	return &up, nil
}

// Presign asks for a one-shot upload URL.
func (c *Client) Presign(ctx context.Context, fileName, contentType string) (*report.Presigned, error) {
	var p report.Presigned
	in := map[string]string{"fileName": fileName, "contentType": contentType}
	if err := c.do(ctx, http.MethodPost, "/uploads/presign", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutPresigned uploads the file body to a URL returned by Presign.
func (c *Client) PutPresigned(ctx context.Context, p *report.Presigned, contentType string, r io.Reader) (*report.Uploaded, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	var up report.Uploaded
	if _, err := c.call(ctx, http.MethodPut, p.UploadURL, contentType, data, &up); err != nil {
		return nil, err
	}
	return &up, nil
}

// Download copies a stored file, such as a handover PDF, into w.
func (c *Client) Download(ctx context.Context, fileURL string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, fileURL, "", nil)
	if err != nil {
		return 0, c.fail(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return 0, c.fail(ctx, &Error{Message: http.StatusText(resp.StatusCode), StatusCode: resp.StatusCode})
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, c.fail(ctx, &Error{Message: err.Error(), cause: err})
	}
	return n, nil
}
