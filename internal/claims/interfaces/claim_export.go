package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	claims "fede-claims/internal/claims/domain"
	reimbursement "fede-claims/internal/reimbursement/domain"
)

// BuildClaimStatementPDF renders a minimal PDF statement for a claim. The
// calculation snapshot may be nil for drafts that were never submitted.
func BuildClaimStatementPDF(claim *claims.Claim, calc *reimbursement.Calculation) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Reimbursement Claim Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Claim: %s", claim.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Association: %s", claim.AssociationID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("User: %s", claim.UserID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Category: %s", claim.Category))
	pdf.Ln(5)
	if claim.Label != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Label: %s", claim.Label))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Expense date: %s", claim.ExpenseDate.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", claim.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	if calc == nil {
		pdf.Cell(0, 6, "No calculation recorded yet.")
		var buf bytes.Buffer
		if err := pdf.Output(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	pdf.Cell(0, 6, fmt.Sprintf("Reimbursable amount (EUR): %.2f", calc.ReimbursableAmount))
	pdf.Ln(8)

	// Breakdown table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(130, 6, "Step", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range calc.Breakdown {
		pdf.CellFormat(130, 6, line.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", line.Value), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(calc.Warnings) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Warnings")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 10)
		for _, warning := range calc.Warnings {
			pdf.Cell(0, 6, warning)
			pdf.Ln(5)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildClaimsXLSX renders an XLSX listing an association's claims with
// their calculation snapshots where present.
func BuildClaimsXLSX(associationID string, list []claims.Claim, calcs map[string]reimbursement.Calculation) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	claimsSheet := "claims"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(claimsSheet)

	var total float64
	for _, claim := range list {
		if calc, ok := calcs[claim.ID]; ok {
			total += calc.ReimbursableAmount
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "Reimbursement Claims Export")
	_ = f.SetCellValue(summarySheet, "A3", "Association")
	_ = f.SetCellValue(summarySheet, "B3", associationID)
	_ = f.SetCellValue(summarySheet, "A4", "Claims")
	_ = f.SetCellValue(summarySheet, "B4", len(list))
	_ = f.SetCellValue(summarySheet, "A5", "Total reimbursable (EUR)")
	_ = f.SetCellValue(summarySheet, "B5", reimbursement.Round2(total))
	_ = f.SetCellValue(summarySheet, "A6", "Generated")
	_ = f.SetCellValue(summarySheet, "B6", time.Now().UTC().Format(time.RFC3339))

	headers := []string{"Claim", "User", "Category", "Label", "Expense date", "Status", "Amount TTC", "Reimbursable", "Second validation"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(claimsSheet, cell, header)
	}
	for i, claim := range list {
		row := i + 2
		values := []any{
			claim.ID,
			claim.UserID,
			claim.Category,
			claim.Label,
			claim.ExpenseDate.Format("2006-01-02"),
			claim.Status,
			claim.AmountTTC,
			nil,
			nil,
		}
		if calc, ok := calcs[claim.ID]; ok {
			values[7] = calc.ReimbursableAmount
			values[8] = calc.RequiresSecondValidation
		}
		for col, value := range values {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(claimsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
