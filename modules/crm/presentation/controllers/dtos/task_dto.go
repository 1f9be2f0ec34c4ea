package dtos

import (
	"github.com/go-playground/validator/v10"

	"github.com/casavia/estate-crm/pkg/constants"
)

// CreateCustomerImportDTO carries the form fields of a customer import upload;
// the workbook itself travels as the multipart "file" part.
type CreateCustomerImportDTO struct {
	EstateID string `validate:"required,uuid"`
	// Minutes east of UTC.
	TimezoneOffset int `validate:"gte=-720,lte=840"`
	AutoCreateTags bool
}

// ResolveImportDTO approves or rejects a staged draft set.
type ResolveImportDTO struct {
	AllowMinorFormatErrors bool `json:"allow_minor_format_errors"`
}

// CreateExportDTO requests a workbook export of one estate.
type CreateExportDTO struct {
	EstateID string `json:"estate_id" validate:"required,uuid"`
}

func (d *CreateCustomerImportDTO) Ok() (map[string]string, bool) {
	return check(d)
}

func (d *CreateExportDTO) Ok() (map[string]string, bool) {
	return check(d)
}

func check(dto interface{}) (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	out := map[string]string{}
	for _, err := range errs.(validator.ValidationErrors) {
		out[err.Field()] = err.Tag()
	}
	return out, false
}
