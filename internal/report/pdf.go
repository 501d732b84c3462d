package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const qrImageName = "packet-sha256"

// SavePDF renders an uplink sheet: summary, space packet envelope when
// present, one table row per command, and a QR code of the packet hash.
func SavePDF(sum Summary, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Uplink Packet", false)
	pdf.SetAuthor("uplinkctl", false)
	pdf.SetCreator("uplinkctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Uplink Packet "+emptyFallback(sum.Callsign, "-"))
	if err := addHashQR(pdf, sum.SHA256); err != nil {
		return err
	}
	addSummarySection(pdf, sum)
	if sum.Space != nil {
		addSpaceSection(pdf, sum)
	}
	addCommandsSection(pdf, sum.Commands)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

// addHashQR places the QR code in the top right corner, beside the summary.
func addHashQR(pdf *gofpdf.Fpdf, hash string) error {
	png, err := HashQR(hash, 256)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(png))
	pageW, _ := pdf.GetPageSize()
	_, _, right, _ := pdf.GetMargins()
	pdf.ImageOptions(qrImageName, pageW-right-35, 18, 35, 35, false, opts, 0, "")
	return nil
}

func addSummarySection(pdf *gofpdf.Fpdf, sum Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Callsign", value: emptyFallback(sum.Callsign, "-")},
		{label: "Declared Size", value: fmt.Sprintf("%d bytes", sum.Size)},
		{label: "Encoded Size", value: fmt.Sprintf("%d bytes", sum.Bytes)},
		{label: "Commands", value: strconv.Itoa(int(sum.NumCommands))},
		{label: "Headers", value: consistentLabel(sum)},
	}
	for _, item := range items {
		pdf.CellFormat(40, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(90, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Courier", "", 8)
	pdf.CellFormat(40, 5, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, "SHA-256 "+sum.SHA256, "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func addSpaceSection(pdf *gofpdf.Fpdf, sum Summary) {
	h := sum.Space
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Space Packet")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	rows := [][2]string{
		{"Type", h.Type.String()},
		{"APID", fmt.Sprintf("0x%03X", h.APID)},
		{"Sequence", fmt.Sprintf("%s #%d", h.SequenceFlag, h.SequenceCount)},
		{"Data Length", strconv.Itoa(int(h.DataLength))},
	}
	for _, r := range rows {
		pdf.CellFormat(40, 6, r[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, r[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addCommandsSection(pdf *gofpdf.Fpdf, rows []CommandRow) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Commands")
	pdf.Ln(9)

	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No commands.", "", "L", false)
		return
	}

	headers := []string{"#", "Tag", "Command", "Size", "Fields"}
	widths := []float64{10, 12, 40, 18, 100}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		values := []string{
			strconv.Itoa(row.Index),
			strconv.Itoa(int(row.Type)),
			row.Name,
			strconv.FormatUint(uint64(row.Size), 10),
			row.Fields,
		}
		renderTableRow(pdf, widths, values, 5)
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		// Pad short cells so every column draws the full row border.
		for len(lines) < maxLines {
			lines = append(lines, "")
		}
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func consistentLabel(sum Summary) string {
	if sum.Consistent {
		return "CONSISTENT"
	}
	return "INCONSISTENT: " + sum.Problem
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
