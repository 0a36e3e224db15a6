// Package spreadsheet is the narrow read-only view of the Google Sheets API
// that the tools depend on.
package spreadsheet

import (
	"context"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// metadataFields limits spreadsheets.get to what get_sheet_info reports.
const metadataFields googleapi.Field = "properties(title,locale,timeZone)," +
	"sheets.properties(sheetId,title,index,gridProperties(rowCount,columnCount))"

// Client reads spreadsheet data. Each method performs exactly one API call.
type Client interface {
	// Values fetches a single A1 range.
	Values(ctx context.Context, spreadsheetID, rng string) (*sheets.ValueRange, error)
	// BatchValues fetches several ranges in one request, in request order.
	BatchValues(ctx context.Context, spreadsheetID string, ranges []string) (*sheets.BatchGetValuesResponse, error)
	// Spreadsheet fetches spreadsheet and per-sheet properties.
	Spreadsheet(ctx context.Context, spreadsheetID string) (*sheets.Spreadsheet, error)
}

// Service implements Client on top of a sheets.Service.
type Service struct {
	sheetsService *sheets.Service
}

var _ Client = (*Service)(nil)

// NewService wraps an authenticated sheets.Service.
func NewService(sheetsService *sheets.Service) *Service {
	return &Service{sheetsService: sheetsService}
}

func (s *Service) Values(ctx context.Context, spreadsheetID, rng string) (*sheets.ValueRange, error) {
	return s.sheetsService.Spreadsheets.Values.Get(spreadsheetID, rng).
		Context(ctx).
		Do()
}

func (s *Service) BatchValues(ctx context.Context, spreadsheetID string, ranges []string) (*sheets.BatchGetValuesResponse, error) {
	return s.sheetsService.Spreadsheets.Values.BatchGet(spreadsheetID).
		Ranges(ranges...).
		Context(ctx).
		Do()
}

func (s *Service) Spreadsheet(ctx context.Context, spreadsheetID string) (*sheets.Spreadsheet, error) {
	return s.sheetsService.Spreadsheets.Get(spreadsheetID).
		Fields(metadataFields).
		Context(ctx).
		Do()
}
