package importer

// Localized spreadsheet headers are matched verbatim against these tables;
// unrecognized headers are ignored so files with extra columns keep working.

var customerHeaderToField = map[string]string{
	"姓名":    "name",
	"稱謂":    "title_pronoun",
	"電話":    "phone",
	"電子郵件":  "email",
	"需求格局":  "room_layouts",
	"需求坪數":  "room_sizes",
	"客戶標籤":  "customer_tags",
	"資料日期":  "info_date",
	"縣市":    "l1_district",
	"鄉鎮市區":  "l2_district",
}

var customerFieldToHeader = reverseHeaderMap(customerHeaderToField)

var blacklistHeaderToField = map[string]string{
	"姓名": "name",
	"電話": "phone",
}

var blacklistFieldToHeader = reverseHeaderMap(blacklistHeaderToField)

// customerExportFields fixes the column order of exported workbooks.
var customerExportFields = []string{
	"name", "title_pronoun", "phone", "email", "l1_district", "l2_district",
}

func reverseHeaderMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for header, field := range m {
		out[field] = header
	}
	return out
}

// columnMap maps 0-based column indexes to canonical field names. Columns with
// unrecognized headers map to nothing.
func columnMap(headers []string, headerToField map[string]string) map[int]string {
	out := make(map[int]string, len(headers))
	for i, h := range headers {
		if field, ok := headerToField[h]; ok {
			out[i] = field
		}
	}
	return out
}
