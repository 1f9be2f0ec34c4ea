package importer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/casavia/estate-crm/modules/crm/domain/district"
	"github.com/casavia/estate-crm/modules/crm/domain/estate"
	"github.com/casavia/estate-crm/modules/crm/domain/importerror"
	"github.com/casavia/estate-crm/modules/crm/domain/tag"
	"github.com/casavia/estate-crm/modules/crm/domain/task"
	"github.com/casavia/estate-crm/pkg/bgtasks"
)

var customerHeaders = []string{"姓名", "稱謂", "電話", "電子郵件", "需求格局", "需求坪數", "客戶標籤", "資料日期", "縣市", "鄉鎮市區"}

func writeWorkbook(t *testing.T, headers []string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	hdr := make([]interface{}, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &hdr))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "import.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

type fixture struct {
	imp       *Importer
	tasks     *memTaskRepo
	customers *memCustomerRepo
	blacklist *memBlacklistRepo
	errs      *memErrorRepo
	tags      *memTagRepo
	tenantID  uuid.UUID
	estateID  uuid.UUID
	creatorID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tenantID := uuid.New()
	estateID := uuid.New()

	fx := &fixture{
		tasks:     newMemTaskRepo(),
		customers: newMemCustomerRepo(),
		blacklist: newMemBlacklistRepo(),
		errs:      &memErrorRepo{},
		tags:      &memTagRepo{},
		tenantID:  tenantID,
		estateID:  estateID,
		creatorID: uuid.New(),
	}
	fx.tags.tags = []tag.Tag{tag.New(tenantID, "VIP")}

	districts := &memDistrictRepo{districts: []district.District{
		{Name: "臺北市", Districts: []district.SubDistrict{
			{Name: "大安區", Zip: "106"},
			{Name: "信義區", Zip: "110"},
		}},
	}}
	estates := &memEstateRepo{estates: map[uuid.UUID]estate.Estate{
		estateID: {ID: estateID, TenantID: tenantID, Name: "曦望花園"},
	}}

	fx.imp = New(fx.tasks, fx.customers, fx.blacklist, fx.errs, fx.tags, districts, estates)
	return fx
}

func (fx *fixture) importRecord(t *testing.T, path string, autoCreateTags bool) bgtasks.Record {
	t.Helper()
	params, err := json.Marshal(task.ImportCustomerXLSXParams{
		FSPath:           path,
		OriginalFileName: "customers.xlsx",
		EstateID:         fx.estateID,
		AutoCreateTags:   autoCreateTags,
	})
	require.NoError(t, err)
	return bgtasks.Record{
		ID:        uuid.New(),
		TenantID:  fx.tenantID,
		Type:      string(task.TypeImportCustomerXLSXToDraft),
		CreatorID: fx.creatorID,
		Trial:     1,
		Params:    params,
	}
}

func TestHandleCustomerImport_CleanRows(t *testing.T) {
	fx := newFixture(t)
	path := writeWorkbook(t, customerHeaders, [][]interface{}{
		{"王小明", "先生", "0912345678", "MING@example.com", "2房,3房", "20-30", "VIP", "2026-01-15", "台北市", "大安區"},
		{"林美麗", "小姐", "987654321", "", "套房", "15", "", "", "臺北市", "信義區"},
	})

	rec := fx.importRecord(t, path, false)
	result, err := fx.imp.HandleCustomerImport(context.Background(), rec)
	require.NoError(t, err)

	res := result.(task.ImportResult)
	require.Equal(t, 2, res.ImportCount)
	require.Equal(t, 0, res.ErrorCount)
	require.Empty(t, fx.errs.byTask(rec.ID))

	require.Len(t, fx.customers.drafts, 2)
	first := fx.customers.drafts[0]
	require.Equal(t, "886912345678", first.Phone)
	require.Equal(t, "ming@example.com", first.Email)
	require.Equal(t, []string{"2房", "3房"}, first.RoomLayouts)
	require.Equal(t, "臺北市", first.L1District)
	require.Equal(t, "大安區", first.L2District)
	require.Len(t, first.CustomerTags, 1)
	require.False(t, first.Dirty)
	require.Equal(t, rec.ID, first.InsertTaskID)

	second := fx.customers.drafts[1]
	require.Equal(t, "886987654321", second.Phone)
	require.False(t, second.Dirty)
}

func TestHandleCustomerImport_MissingKeyFieldsRejectRow(t *testing.T) {
	fx := newFixture(t)
	path := writeWorkbook(t, customerHeaders, [][]interface{}{
		{"", "", "0912345678", "", "", "", "", "", "", ""},
		{"無電話", "", "", "", "", "", "", "", "", ""},
		{"陳大文", "", "0922333444", "", "", "", "", "", "", ""},
	})

	rec := fx.importRecord(t, path, false)
	result, err := fx.imp.HandleCustomerImport(context.Background(), rec)
	require.NoError(t, err)

	res := result.(task.ImportResult)
	// staged rows plus key-rejected rows account for every data row
	require.Equal(t, 1, res.ImportCount)
	require.Len(t, fx.customers.drafts, 1)

	entries := fx.errs.byTask(rec.ID)
	require.Len(t, entries, 2)
	byLine := map[int]importerror.Entry{}
	for _, e := range entries {
		byLine[e.LineNumber] = e
	}
	require.Equal(t, "name", byLine[2].FieldName)
	require.Equal(t, importerror.KindMissing, byLine[2].Kind)
	require.Equal(t, "phone", byLine[3].FieldName)
	require.Equal(t, importerror.KindMissing, byLine[3].Kind)
}

func TestHandleCustomerImport_RepairableErrorsStageDirty(t *testing.T) {
	fx := newFixture(t)
	path := writeWorkbook(t, customerHeaders, [][]interface{}{
		{"王小明", "", "0912345678", "not-an-email", "2房,頂樓加蓋", "很大", "", "", "火星市", ""},
	})

	rec := fx.importRecord(t, path, false)
	result, err := fx.imp.HandleCustomerImport(context.Background(), rec)
	require.NoError(t, err)

	res := result.(task.ImportResult)
	require.Equal(t, 1, res.ImportCount)
	require.Equal(t, 4, res.ErrorCount)

	require.Len(t, fx.customers.drafts, 1)
	d := fx.customers.drafts[0]
	require.True(t, d.Dirty)
	require.Empty(t, d.Email)
	require.Equal(t, []string{"2房"}, d.RoomLayouts)
	require.Empty(t, d.RoomSizes)
	require.Empty(t, d.L1District)

	kinds := map[string]importerror.Kind{}
	for _, e := range fx.errs.byTask(rec.ID) {
		kinds[e.FieldName] = e.Kind
	}
	require.Equal(t, importerror.KindFormat, kinds["email"])
	require.Equal(t, importerror.KindInvalidValue, kinds["room_layouts"])
	require.Equal(t, importerror.KindFormat, kinds["room_sizes"])
	require.Equal(t, importerror.KindInvalidValue, kinds["l1_district"])
}

func TestHandleCustomerImport_TagResolution(t *testing.T) {
	fx := newFixture(t)
	path := writeWorkbook(t, customerHeaders, [][]interface{}{
		{"甲", "", "0911111111", "", "", "", "VIP,首購族", "", "", ""},
		{"乙", "", "0922222222", "", "", "", "首購族", "", "", ""},
	})

	t.Run("unknown tags are rejected without auto-create", func(t *testing.T) {
		fx := newFixture(t)
		rec := fx.importRecord(t, path, false)
		_, err := fx.imp.HandleCustomerImport(context.Background(), rec)
		require.NoError(t, err)

		require.Len(t, fx.customers.drafts[0].CustomerTags, 1)
		require.True(t, fx.customers.drafts[0].Dirty)
		require.Equal(t, 0, fx.tags.createCalls)

		entries := fx.errs.byTask(rec.ID)
		require.Len(t, entries, 2)
		require.Equal(t, "首購族", entries[0].FieldValue)
		require.Equal(t, importerror.KindInvalidValue, entries[0].Kind)
	})

	t.Run("auto-create inserts once and reuses", func(t *testing.T) {
		rec := fx.importRecord(t, path, true)
		_, err := fx.imp.HandleCustomerImport(context.Background(), rec)
		require.NoError(t, err)

		require.Equal(t, 1, fx.tags.createCalls)
		require.Len(t, fx.customers.drafts[0].CustomerTags, 2)
		require.Len(t, fx.customers.drafts[1].CustomerTags, 1)
		require.False(t, fx.customers.drafts[0].Dirty)
		require.Empty(t, fx.errs.byTask(rec.ID))
	})
}

func TestHandleCustomerImport_BatchedWrites(t *testing.T) {
	fx := newFixture(t)
	fx.imp.batchSize = 2

	rows := make([][]interface{}, 5)
	for i := range rows {
		rows[i] = []interface{}{"客戶", "", "091234567" + string(rune('0'+i)), "", "", "", "", "", "", ""}
	}
	path := writeWorkbook(t, customerHeaders, rows)

	rec := fx.importRecord(t, path, false)
	result, err := fx.imp.HandleCustomerImport(context.Background(), rec)
	require.NoError(t, err)

	require.Equal(t, 5, result.(task.ImportResult).ImportCount)
	require.Len(t, fx.customers.drafts, 5)
	// 2 + 2 + final flush of 1
	require.Equal(t, 3, fx.customers.draftCalls)
}

func TestHandleCustomerImport_UnknownEstateFailsPermanently(t *testing.T) {
	fx := newFixture(t)
	path := writeWorkbook(t, customerHeaders, nil)

	params, err := json.Marshal(task.ImportCustomerXLSXParams{FSPath: path, EstateID: uuid.New()})
	require.NoError(t, err)
	rec := bgtasks.Record{ID: uuid.New(), TenantID: fx.tenantID, Trial: 1, Params: params}

	_, err = fx.imp.HandleCustomerImport(context.Background(), rec)
	require.Error(t, err)
	require.True(t, bgtasks.IsPermanent(err))
}

func TestHandleCustomerImport_UnreadableFileFailsPermanently(t *testing.T) {
	fx := newFixture(t)
	params, err := json.Marshal(task.ImportCustomerXLSXParams{
		FSPath:   filepath.Join(t.TempDir(), "missing.xlsx"),
		EstateID: fx.estateID,
	})
	require.NoError(t, err)
	rec := bgtasks.Record{ID: uuid.New(), TenantID: fx.tenantID, Trial: 1, Params: params}

	_, err = fx.imp.HandleCustomerImport(context.Background(), rec)
	require.Error(t, err)
	require.True(t, bgtasks.IsPermanent(err))
}

func TestHandleCustomerImport_RetryRestagesFromScratch(t *testing.T) {
	fx := newFixture(t)
	path := writeWorkbook(t, customerHeaders, [][]interface{}{
		{"王小明", "", "0912345678", "", "", "", "", "", "", ""},
	})

	rec := fx.importRecord(t, path, false)
	_, err := fx.imp.HandleCustomerImport(context.Background(), rec)
	require.NoError(t, err)

	rec.Trial = 2
	_, err = fx.imp.HandleCustomerImport(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, fx.customers.drafts, 1)
}
