package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"loan-origination-api/models"
)

const historySheet = "History"

var historyExportHeaders = []string{"Created At", "Action", "Performed By", "Remarks", "Entry ID"}

// ExportHistory streams a loan application's history as an XLSX workbook.
func (lc *LoanApplicationController) ExportHistory(c *gin.Context) {
	loanApplicationID, ok := loanApplicationParam(c)
	if !ok {
		return
	}

	entries, err := lc.recorder.ListHistory(lc.txm.ReadScope(c.Request.Context()), loanApplicationID)
	if err != nil {
		lc.respondError(c, err, "Failed to load history")
		return
	}

	f, err := buildHistoryWorkbook(entries)
	if err != nil {
		lc.respondError(c, err, "Failed to build export")
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("loan-%s-history-%s.xlsx", loanApplicationID, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		lc.logger.Error("write history export", "loan_application_id", loanApplicationID, "err", err)
	}
}

func buildHistoryWorkbook(entries []models.LoanApplicationHistory) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	for col, header := range historyExportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.SetCellValue(historySheet, cell, header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	for i, entry := range entries {
		remarks := ""
		if entry.Remarks != nil {
			remarks = *entry.Remarks
		}
		values := []interface{}{
			entry.CreatedAt.UTC().Format(time.RFC3339),
			string(entry.Action),
			entry.PerformedByID,
			remarks,
			entry.ID,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				_ = f.Close()
				return nil, err
			}
			if err := f.SetCellValue(historySheet, cell, value); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
	}

	return f, nil
}
