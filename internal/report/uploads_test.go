package report

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/evcraddock/propdesk/internal/db"
)

func testUploadTokens(t *testing.T) *UploadTokens {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "propdesk.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return NewUploadTokens(d, time.Minute)
}

func TestUploadTokenSingleUse(t *testing.T) {
	u := testUploadTokens(t)

	raw, expires, err := u.Issue("user-1", "uploads/x.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expires.After(time.Now()) {
		t.Errorf("expires %v is not in the future", expires)
	}

	key, mime, err := u.Consume(raw)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if key != "uploads/x.jpg" || mime != "image/jpeg" {
		t.Errorf("consume = (%q, %q)", key, mime)
	}

	if _, _, err := u.Consume(raw); !errors.Is(err, ErrUploadToken) {
		t.Errorf("second consume error = %v, want ErrUploadToken", err)
	}
}

func TestUploadTokenExpiredAndUnknown(t *testing.T) {
	u := testUploadTokens(t)

	raw, _, err := u.Issue("user-1", "uploads/y.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	u.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }

	if _, _, err := u.Consume(raw); !errors.Is(err, ErrUploadToken) {
		t.Errorf("expired consume error = %v, want ErrUploadToken", err)
	}
	if _, _, err := u.Consume("nope"); !errors.Is(err, ErrUploadToken) {
		t.Errorf("unknown consume error = %v, want ErrUploadToken", err)
	}

	n, err := u.Cleanup()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("cleanup removed %d, want 1", n)
	}
}
