package importer

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
)

// maxEmptyRowRun bounds how far past the data we scan. Spreadsheets edited by
// hand often report thousands of trailing formatted-but-empty rows.
const maxEmptyRowRun = 10

// Sheet holds the first worksheet of a workbook: a header row plus data rows.
// Trailing empty rows past maxEmptyRowRun consecutive blanks are dropped.
type Sheet struct {
	Headers []string
	// Rows holds the data rows in file order. Line numbers reported against
	// this slice are 1-based file line numbers, so Rows[i] is line i+2.
	Rows [][]string
}

// ReadSheet opens the workbook at path and reads its first worksheet.
func ReadSheet(path string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no worksheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "read worksheet")
	}
	if len(rows) == 0 {
		return nil, errors.New("worksheet has no header row")
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	sheet := &Sheet{Headers: headers}
	emptyRun := 0
	for _, row := range rows[1:] {
		if rowEmpty(row) {
			emptyRun++
			if emptyRun > maxEmptyRowRun {
				break
			}
			sheet.Rows = append(sheet.Rows, row)
			continue
		}
		emptyRun = 0
		sheet.Rows = append(sheet.Rows, row)
	}
	// drop the trailing blank run entirely
	for len(sheet.Rows) > 0 && rowEmpty(sheet.Rows[len(sheet.Rows)-1]) {
		sheet.Rows = sheet.Rows[:len(sheet.Rows)-1]
	}
	return sheet, nil
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// cellAt returns the trimmed cell value at col, tolerating short rows.
func cellAt(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
