package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/evcraddock/propdesk/internal/handover"
	"github.com/evcraddock/propdesk/internal/request"
	"github.com/evcraddock/propdesk/internal/snagging"
)

const dateLayout = "2 Jan 2006 15:04 MST"

// Renderer writes PDFs into a FileStore and returns their served URL.
// Rendering the same entity again overwrites the previous file.
type Renderer struct {
	files *FileStore
	now   func() time.Time
}

// NewRenderer creates a renderer storing into files.
func NewRenderer(files *FileStore) *Renderer {
	return &Renderer{files: files, now: func() time.Time { return time.Now().UTC() }}
}

// RenderHandover renders an accepted handover certificate.
func (r *Renderer) RenderHandover(h *handover.Handover) (string, error) {
	doc := r.newDoc("Unit handover certificate")
	doc.field("Handover", h.ID)
	doc.field("Unit", h.UnitID)
	doc.field("Owner", h.OwnerID)
	doc.field("Status", string(h.Status.Canonical()))
	doc.timeField("Scheduled", h.ScheduledAt)
	doc.timeField("Accepted by owner", h.OwnerAcceptedAt)
	if h.Notes != nil {
		doc.paragraph("Notes", *h.Notes)
	}

	if len(h.Items) > 0 {
		items := append([]handover.Item(nil), h.Items...)
		sort.SliceStable(items, func(i, j int) bool { return items[i].SortOrder < items[j].SortOrder })

		rows := make([][]string, len(items))
		for i, it := range items {
			rows[i] = []string{it.Category, it.Label, it.ExpectedValue, it.Status}
		}
		doc.table("Checklist", []string{"Category", "Item", "Expected", "Status"}, []float64{35, 70, 45, 30}, rows)
	}

	doc.signature("Administrator", h.AdminSignature)
	doc.signature("Owner", h.OwnerSignature)
	return r.save("handover", h.ID, doc)
}

// RenderSnagging renders an accepted snagging report.
func (r *Renderer) RenderSnagging(s *snagging.Snagging) (string, error) {
	doc := r.newDoc("Snagging report")
	doc.field("Report", s.ID)
	doc.field("Title", s.Title)
	doc.field("Unit", s.UnitID)
	doc.field("Priority", string(s.Priority))
	doc.field("Raised by", strings.TrimSpace(s.CreatedBy.Name+" ("+string(s.CreatedBy.Role)+")"))
	doc.timeField("Scheduled", s.ScheduledAt)
	doc.timeField("Accepted", s.AcceptedAt)
	if s.Description != "" {
		doc.paragraph("Description", s.Description)
	}

	if len(s.Items) > 0 {
		rows := make([][]string, len(s.Items))
		for i, it := range s.Items {
			rows[i] = []string{it.Category, it.Label, it.Location, it.Severity, fmt.Sprintf("%d", len(it.Images))}
		}
		doc.table("Defects", []string{"Category", "Defect", "Location", "Severity", "Photos"}, []float64{32, 62, 40, 28, 18}, rows)
	}

	doc.signature("Owner", s.OwnerSignature)
	return r.save("snagging", s.ID, doc)
}

// RenderRequest renders an approved request as a permit.
func (r *Renderer) RenderRequest(req *request.Request) (string, error) {
	doc := r.newDoc(req.Type.Label() + " permit")
	doc.field("Request", req.ID)
	doc.field("Type", string(req.Type))
	if req.UnitID != "" {
		doc.field("Unit", req.UnitID)
	}
	if len(req.TransferUnitIDs) > 0 {
		doc.field("Units", strings.Join(req.TransferUnitIDs, ", "))
	}
	doc.field("Owner", req.OwnerID)
	if req.ApprovedByAdmin != nil {
		doc.field("Approved by", *req.ApprovedByAdmin)
	}

	switch {
	case req.ExpiresAt != nil:
		doc.timeField("Valid until", req.ExpiresAt)
	case req.MaxUses != nil:
		doc.field("Valid for", fmt.Sprintf("%d uses", *req.MaxUses))
	default:
		doc.field("Valid", "until revoked")
	}

	if len(req.Payload) > 0 {
		keys := make([]string, 0, len(req.Payload))
		for k := range req.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([][]string, len(keys))
		for i, k := range keys {
			rows[i] = []string{k, fmt.Sprint(req.Payload[k])}
		}
		doc.table("Details", []string{"Field", "Value"}, []float64{50, 130}, rows)
	}
	return r.save("request", req.ID, doc)
}

func (r *Renderer) save(kind, id string, d *document) (string, error) {
	d.pdf.Ln(8)
	d.pdf.SetFont("Helvetica", "I", 8)
	d.text(0, 5, "Generated "+r.now().Format(dateLayout), "")

	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return "", fmt.Errorf("rendering %s %s: %w", kind, id, err)
	}
	key := fmt.Sprintf("reports/%s-%s.pdf", kind, id)
	if _, err := r.files.Save(key, &buf); err != nil {
		return "", err
	}
	return URL(key), nil
}

// document wraps fpdf with the few layout primitives the reports use.
type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (r *Renderer) newDoc(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("propdesk", true)
	pdf.AddPage()

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFont("Helvetica", "B", 18)
	d.text(0, 12, title, "")
	pdf.Ln(4)
	return d
}

func (d *document) text(w, h float64, s, border string) {
	d.pdf.CellFormat(w, h, d.tr(s), border, 1, "L", false, 0, "")
}

func (d *document) field(label, value string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.CellFormat(45, 6, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.text(0, 6, value, "")
}

func (d *document) timeField(label string, t *time.Time) {
	if t == nil {
		return
	}
	d.field(label, t.UTC().Format(dateLayout))
}

func (d *document) paragraph(heading, body string) {
	d.pdf.Ln(3)
	d.pdf.SetFont("Helvetica", "B", 11)
	d.text(0, 7, heading, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.MultiCell(0, 5, d.tr(body), "", "L", false)
}

func (d *document) table(heading string, header []string, widths []float64, rows [][]string) {
	d.pdf.Ln(3)
	d.pdf.SetFont("Helvetica", "B", 11)
	d.text(0, 7, heading, "")

	d.pdf.SetFont("Helvetica", "B", 9)
	d.pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		d.pdf.CellFormat(widths[i], 6, d.tr(h), "1", 0, "L", true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		for i, cell := range row {
			d.pdf.CellFormat(widths[i], 6, d.tr(truncate(cell, widths[i])), "1", 0, "L", false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *document) signature(who string, sig *string) {
	d.pdf.Ln(4)
	d.pdf.SetFont("Helvetica", "B", 10)
	d.text(0, 6, who+" signature", "")
	d.pdf.SetFont("Helvetica", "", 10)
	if sig == nil || *sig == "" {
		d.text(80, 10, "", "B")
		return
	}
	// Drawn signatures arrive as data URLs; only typed names are printed.
	if strings.HasPrefix(*sig, "data:") {
		d.text(80, 10, "(signed electronically)", "B")
		return
	}
	d.text(80, 10, *sig, "B")
}

// truncate keeps a cell on one line at 9pt Helvetica (about 2 mm per rune).
func truncate(s string, width float64) string {
	max := int(width / 2)
	r := []rune(s)
	if len(r) <= max || max < 2 {
		return s
	}
	return string(r[:max-1]) + "…"
}
