package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const imageAccept = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"

// ImageCheck rejects a fetched body. A rejection moves FetchImage on to the
// next fingerprint.
type ImageCheck func(body []byte, contentType string) error

// FetchImage downloads an image, rotating through every fingerprint until one
// gets a 200 with an image content type and a non-empty body that check
// accepts. A nil check accepts any such body.
// referer is sent as-is; image CDNs reject hotlinks without it.
func (f *Fetcher) FetchImage(ctx context.Context, urlStr, referer string, check ImageCheck) ([]byte, string, error) {
	if err := validateURL(urlStr); err != nil {
		return nil, "", err
	}

	var errs []error
	for i, fp := range fingerprints {
		if i > 0 && f.opts.ImageRetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, "", &Error{URL: urlStr, Message: "image fetch canceled", Cause: ctx.Err()}
			case <-time.After(f.opts.ImageRetryDelay):
			}
		}

		body, contentType, err := f.fetchImageOnce(ctx, urlStr, referer, fp)
		if err == nil && check != nil {
			if cerr := check(body, contentType); cerr != nil {
				err = fmt.Errorf("body rejected: %w", cerr)
			}
		}
		if err == nil {
			return body, contentType, nil
		}
		f.logger.Debug("image fetch failed", "url", urlStr, "fingerprint", fp.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", fp.Name, err))
	}

	return nil, "", &Error{URL: urlStr, Message: "no fingerprint returned an image", Cause: errors.Join(errs...)}
}

func (f *Fetcher) fetchImageOnce(ctx context.Context, urlStr, referer string, fp Fingerprint) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, "", err
	}
	fp.Apply(req)
	req.Header.Set("Accept", imageAccept)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.clientFor(fp).Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, "", fmt.Errorf("unexpected content type %q", contentType)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if len(body) == 0 {
		return nil, "", errors.New("empty body")
	}
	return body, contentType, nil
}
