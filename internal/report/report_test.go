package report

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/evcraddock/propdesk/internal/handover"
	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/snagging"
	"github.com/evcraddock/propdesk/internal/workflow"
)

func testStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return s
}

func readKey(t *testing.T, s *FileStore, key string) []byte {
	t.Helper()
	f, err := s.Open(key)
	if err != nil {
		t.Fatalf("open %s: %v", key, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

func TestFileStoreSaveOpenDelete(t *testing.T) {
	s := testStore(t)

	n, err := s.Save("uploads/a/photo.jpg", strings.NewReader("jpeg bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if n != 10 {
		t.Errorf("size = %d, want 10", n)
	}
	if got := readKey(t, s, "uploads/a/photo.jpg"); string(got) != "jpeg bytes" {
		t.Errorf("content = %q", got)
	}

	if err := s.Delete("uploads/a/photo.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Open("uploads/a/photo.jpg"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("open after delete: err = %v", err)
	}
	if err := s.Delete("uploads/a/photo.jpg"); err != nil {
		t.Errorf("deleting a missing file: %v", err)
	}
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	s := testStore(t)

	for _, key := range []string{"", "../etc/passwd", "a/../../b", "/abs", "a//b", `a\b`} {
		t.Run(key, func(t *testing.T) {
			if _, err := s.Save(key, strings.NewReader("x")); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("err = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestNewKeyAndURL(t *testing.T) {
	key := NewKey("uploads/local", "JPG")
	if !strings.HasPrefix(key, "uploads/local/") || !strings.HasSuffix(key, ".jpg") {
		t.Errorf("key = %q", key)
	}
	if NewKey("x", ".pdf") == NewKey("x", ".pdf") {
		t.Error("keys must be unique")
	}
	if got := URL("reports/a.pdf"); got != "/files/reports/a.pdf" {
		t.Errorf("URL = %q", got)
	}
	if got := KeyFromURL("/files/reports/a.pdf"); got != "reports/a.pdf" {
		t.Errorf("KeyFromURL = %q", got)
	}
}

func TestRenderHandover(t *testing.T) {
	s := testStore(t)
	r := NewRenderer(s)

	accepted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	notes := "Keys handed over in lobby. Ünit has 2 parking bays."
	sig := "Olivia Owner"
	h := &handover.Handover{
		ID:              "h1",
		UnitID:          "unit-1",
		OwnerID:         "owner-1",
		Status:          workflow.HandoverAccepted,
		Notes:           &notes,
		OwnerAcceptedAt: &accepted,
		OwnerSignature:  &sig,
		Items: []handover.Item{
			{Category: "Keys", Label: "Front door", ExpectedValue: "3", SortOrder: 1},
			{Category: "Meters", Label: "Electricity", ExpectedValue: "004512", SortOrder: 0},
		},
	}

	url, err := r.RenderHandover(h)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if url != "/files/reports/handover-h1.pdf" {
		t.Errorf("url = %q", url)
	}
	data := readKey(t, s, KeyFromURL(url))
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("not a PDF: %q", data[:min(len(data), 16)])
	}

	// Rendering again replaces the file at the same URL.
	again, err := r.RenderHandover(h)
	if err != nil {
		t.Fatalf("re-render: %v", err)
	}
	if again != url {
		t.Errorf("re-render url = %q, want %q", again, url)
	}
}

func TestRenderSnaggingAndRequest(t *testing.T) {
	s := testStore(t)
	r := NewRenderer(s)

	drawn := "data:image/png;base64,AAAA"
	sn := &snagging.Snagging{
		ID:             "s1",
		UnitID:         "unit-1",
		Title:          "Bathroom defects",
		Priority:       workflow.PriorityHigh,
		CreatedBy:      snagging.Creator{ID: "a1", Role: workflow.RoleAdmin, Name: "Ada"},
		OwnerSignature: &drawn,
		Items: []snagging.Item{
			{Category: "Tiles", Label: strings.Repeat("cracked ", 20), Images: []string{"uploads/x.jpg"}},
		},
	}
	url, err := r.RenderSnagging(sn)
	if err != nil {
		t.Fatalf("render snagging: %v", err)
	}
	if !bytes.HasPrefix(readKey(t, s, KeyFromURL(url)), []byte("%PDF-")) {
		t.Error("snagging output is not a PDF")
	}

	uses := int64(3)
	req := &request.Request{
		ID:          "r1",
		Type:        workflow.RequestGuestVisit,
		UnitID:      "unit-1",
		OwnerID:     "owner-1",
		ExpiresMode: workflow.ExpiresByUses,
		MaxUses:     &uses,
		Payload:     map[string]interface{}{"guestName": "Sam", "visitDate": "2026-04-01"},
	}
	url, err = r.RenderRequest(req)
	if err != nil {
		t.Fatalf("render request: %v", err)
	}
	if url != "/files/reports/request-r1.pdf" {
		t.Errorf("url = %q", url)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Errorf("got %q", got)
	}
	got := truncate(strings.Repeat("x", 50), 20)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("got %q", got)
	}
}
