// Package report renders attendance rosters as the printable PDF sheet.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"rollcall/internal/attendance"
)

// InProgress is printed in the duration cell while a session is still active.
const InProgress = "Em andamento"

const (
	title      = "FORMULÁRIO DE TREINAMENTO / LISTA DE PRESENÇA"
	titleEN    = "TRAINING ROSTER FORM / ATTENDANCE LIST"
	noteEN     = "Note: When the training is carried out on board, it will not be necessary to fill in the location and email for employees that are fixed of the unit."
	notePT     = "Nota: Quando o treinamento for realizado a bordo não será preciso preencher a localização e e-mail para os empregados que são fixo da unidade."
	footerText = "Guia de Treinamento e Desenvolvimento / Training and Development Guide"
	footerCode = "3500-MSB60-HRSTD-0006-04"

	margin  = 12.7
	rowH    = 5.0
	minFont = 5.0
)

// Sheet is the data printed on one attendance sheet.
type Sheet struct {
	Session attendance.Session
	Rows    []attendance.RosterRow
}

// FromRoster adapts an assembled roster.
func FromRoster(r attendance.Roster) Sheet {
	return Sheet{Session: r.Session, Rows: r.Rows}
}

type column struct {
	top, bottom string
	width       float64
	align       string
}

// Relative widths; scaled to the printable width.
var columns = []column{
	{"Nº", "", 0.4, "C"},
	{"NOME COMPLETO", "FULL NAME", 2, "L"},
	{"EMAIL", "E-MAIL", 1.5, "L"},
	{"FUNÇÃO", "ROLE", 1.3, "L"},
	{"LOCALIZAÇÃO", "LOCATION", 1.3, "L"},
	{"EMPRESA", "COMPANY", 1, "L"},
}

// Exporter renders Sheets with go-pdf/fpdf using the core Helvetica font.
type Exporter struct {
	now func() time.Time
}

func NewExporter() *Exporter {
	return &Exporter{now: time.Now}
}

// Render writes the A4 sheet for s to w.
func (e *Exporter) Render(w io.Writer, s Sheet) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetCreationDate(e.now())
	pdf.SetCreator("rollcall", true)
	pdf.SetTitle(title, true)

	d := &drawer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pageW, _ := pdf.GetPageSize()
	d.width = pageW - 2*margin

	pdf.AddPage()
	d.header(s.Session)
	d.participants(s.Session, s.Rows)
	d.notes()

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

// Bytes renders s into memory.
func (e *Exporter) Bytes(s Sheet) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Render(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type drawer struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	width float64
}

// scale converts relative widths to millimetres that fill the printable width.
func (d *drawer) scale(rel ...float64) []float64 {
	total := 0.0
	for _, r := range rel {
		total += r
	}
	out := make([]float64, len(rel))
	for i, r := range rel {
		out[i] = d.width * r / total
	}
	return out
}

// cell prints text in a bordered cell, shrinking the font and then
// truncating so it never spills into the next cell.
func (d *drawer) cell(w, h float64, text, style string, size float64, align string, fill bool) {
	text = d.tr(text)
	d.pdf.SetFont("Helvetica", style, size)
	for size > minFont && d.pdf.GetStringWidth(text) > w-2 {
		size -= 0.5
		d.pdf.SetFont("Helvetica", style, size)
	}
	if d.pdf.GetStringWidth(text) > w-2 {
		for len(text) > 0 && d.pdf.GetStringWidth(text+"...") > w-2 {
			text = text[:len(text)-1]
		}
		text += "..."
	}
	d.pdf.CellFormat(w, h, text, "1", 0, align+"M", fill, 0, "")
}

func (d *drawer) header(s attendance.Session) {
	pdf := d.pdf
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(d.width, 6, d.tr(title), "", 1, "C", false, 0, "")
	pdf.CellFormat(d.width, 6, d.tr(titleEN), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	duration := InProgress
	if s.Duration != nil && *s.Duration != "" {
		duration = *s.Duration
	}
	w := d.scale(1.2, 2, 0.3, 0.8, 1, 1.2, 0.8)
	d.cell(w[0], 6, "INSTALAÇÃO / FACILITY:", "B", 7, "L", false)
	d.cell(w[1], 6, s.FacilityName, "B", 8, "L", false)
	d.cell(w[2], 6, "", "", 8, "L", false)
	d.cell(w[3], 6, "DATA / DATE:", "B", 7, "L", false)
	d.cell(w[4], 6, s.MeetingDate+" "+s.MeetingTime, "B", 8, "L", false)
	d.cell(w[5], 6, "DURAÇÃO / DURATION:", "B", 7, "L", false)
	d.cell(w[6], 6, duration, "B", 8, "L", false)
	pdf.Ln(-1)
	pdf.Ln(3)

	w = d.scale(2, 5.5)
	d.cell(w[0], 6, "TÍTULO DO CURSO / COURSE TITLE:", "B", 7, "L", false)
	d.cell(w[1], 6, s.CourseTitle, "", 8, "L", false)
	pdf.Ln(-1)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 7)
	lines := pdf.SplitText(d.tr(s.CourseContent), w[1]-2)
	h := max(6, float64(len(lines))*3.5+1)
	d.cell(w[0], h, "CONTEÚDO / CONTENT:", "B", 7, "L", false)
	x, y := pdf.GetXY()
	pdf.SetFont("Helvetica", "", 7)
	pdf.Rect(x, y, w[1], h, "D")
	pdf.SetXY(x+1, y+0.5)
	pdf.MultiCell(w[1]-2, 3.5, strings.Join(lines, "\n"), "", "L", false)
	pdf.SetXY(margin, y+h)
	pdf.Ln(3)

	w = d.scale(1.8, 1.8, 0.8, 1, 1.2, 0.9)
	d.cell(w[0], 6, "NOME DO INSTRUTOR / INSTRUCTOR NAME:", "B", 7, "L", false)
	d.cell(w[1], 6, s.InstructorName, "", 8, "L", false)
	d.cell(w[2], 6, "FUNÇÃO / ROLE:", "B", 7, "L", false)
	d.cell(w[3], 6, s.InstructorRole, "", 8, "L", false)
	d.cell(w[4], 6, "ASSINATURA / SIGNATURE:", "B", 7, "L", false)
	d.cell(w[5], 6, "", "", 8, "L", false)
	pdf.Ln(-1)
	d.cell(w[0], 6, "QUALIFICAÇÃO / QUALIFICATION:", "B", 7, "L", false)
	d.cell(d.width-w[0], 6, s.InstructorQualification, "", 8, "L", false)
	pdf.Ln(-1)
	pdf.Ln(4)
}

func (d *drawer) tableHeader(widths []float64) {
	pdf := d.pdf
	pdf.SetFillColor(211, 211, 211)
	pdf.SetFont("Helvetica", "B", 7)
	for i, c := range columns {
		pdf.CellFormat(widths[i], rowH-1, d.tr(c.top), "LTR", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	for i, c := range columns {
		pdf.CellFormat(widths[i], rowH-1, d.tr(c.bottom), "LBR", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func (d *drawer) participants(s attendance.Session, rows []attendance.RosterRow) {
	pdf := d.pdf
	rel := make([]float64, len(columns))
	for i, c := range columns {
		rel[i] = c.width
	}
	widths := d.scale(rel...)
	_, pageH := pdf.GetPageSize()

	d.tableHeader(widths)
	for i, r := range rows {
		if pdf.GetY()+rowH > pageH-margin {
			pdf.AddPage()
			d.tableHeader(widths)
		}
		fill := i%2 == 1
		if fill {
			pdf.SetFillColor(242, 242, 242)
		}
		email := r.Email
		if email == "" {
			email = attendance.PlaceholderEmail
		}
		location := r.Location
		if location == "" {
			location = s.Location
		}
		values := []string{fmt.Sprint(r.Sequence), r.Name, email, r.Profession, location, r.Employer}
		for j, v := range values {
			d.cell(widths[j], rowH, v, "", 7, columns[j].align, fill)
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func (d *drawer) notes() {
	pdf := d.pdf
	_, pageH := pdf.GetPageSize()
	if pdf.GetY()+24 > pageH-margin {
		pdf.AddPage()
	}
	pdf.SetTextColor(128, 128, 128)
	pdf.SetFont("Helvetica", "", 6)
	pdf.MultiCell(d.width, 3, d.tr(noteEN), "", "L", false)
	pdf.MultiCell(d.width, 3, d.tr(notePT), "", "L", false)
	pdf.Ln(2)
	pdf.MultiCell(d.width, 3, d.tr(footerText), "", "L", false)
	pdf.MultiCell(d.width, 3, footerCode, "", "L", false)
	pdf.SetTextColor(0, 0, 0)
}
