package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/api/sheets/v4"

	"github.com/ideaspaper/sheets-reader-mcp/internal/spreadsheet"
)

// Tool names.
const (
	ReadSheet          = "read_sheet"
	GetSheetInfo       = "get_sheet_info"
	ReadMultipleRanges = "read_multiple_ranges"
)

// ReadSheetArgs are the bound arguments of read_sheet.
type ReadSheetArgs struct {
	SpreadsheetID string `mapstructure:"spreadsheetId"`
	Range         string `mapstructure:"range"`
}

// SheetInfoArgs are the bound arguments of get_sheet_info.
type SheetInfoArgs struct {
	SpreadsheetID string `mapstructure:"spreadsheetId"`
}

// ReadRangesArgs are the bound arguments of read_multiple_ranges.
type ReadRangesArgs struct {
	SpreadsheetID string   `mapstructure:"spreadsheetId"`
	Ranges        []string `mapstructure:"ranges"`
}

// ReadSheetResult is the payload of read_sheet. Field order is the
// serialized key order.
type ReadSheetResult struct {
	Range          string  `json:"range"`
	MajorDimension string  `json:"majorDimension"`
	Values         [][]any `json:"values"`
	RowCount       int     `json:"rowCount"`
	ColumnCount    int     `json:"columnCount"`
}

// SheetInfo is the payload of get_sheet_info.
type SheetInfo struct {
	Title    string         `json:"title"`
	Locale   string         `json:"locale"`
	TimeZone string         `json:"timeZone"`
	Sheets   []SheetSummary `json:"sheets"`
}

// SheetSummary describes one tab of a spreadsheet.
type SheetSummary struct {
	Title          string   `json:"title"`
	SheetID        int64    `json:"sheetId"`
	Index          int64    `json:"index"`
	GridProperties GridSize `json:"gridProperties"`
}

// GridSize is the allocated size of a sheet grid.
type GridSize struct {
	RowCount    int64 `json:"rowCount"`
	ColumnCount int64 `json:"columnCount"`
}

// RangeValues is one entry of the read_multiple_ranges payload.
type RangeValues struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

// SheetTools holds the handlers for the spreadsheet tools.
type SheetTools struct {
	client spreadsheet.Client
}

// NewSheetTools creates the spreadsheet tool handlers around client.
func NewSheetTools(client spreadsheet.Client) *SheetTools {
	return &SheetTools{client: client}
}

// Definitions returns the spreadsheet tools in catalog order.
func (t *SheetTools) Definitions() []Definition {
	return []Definition{
		{
			Tool: mcp.NewTool(ReadSheet,
				mcp.WithDescription("Read cell values from a Google Sheets range"),
				mcp.WithTitleAnnotation("Read sheet"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("spreadsheetId", mcp.Required(), mcp.MinLength(1),
					mcp.Description("The ID of the spreadsheet")),
				mcp.WithString("range", mcp.Required(), mcp.MinLength(1),
					mcp.Description("Cell range in A1 notation, e.g. 'Sheet1!A1:D10'")),
			),
			Bind: Bind(t.ReadSheet),
		},
		{
			Tool: mcp.NewTool(GetSheetInfo,
				mcp.WithDescription("Get spreadsheet metadata: title, locale, time zone and its sheets"),
				mcp.WithTitleAnnotation("Get sheet info"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("spreadsheetId", mcp.Required(), mcp.MinLength(1),
					mcp.Description("The ID of the spreadsheet")),
			),
			Bind: Bind(t.GetSheetInfo),
		},
		{
			Tool: mcp.NewTool(ReadMultipleRanges,
				mcp.WithDescription("Read cell values from several ranges in one request"),
				mcp.WithTitleAnnotation("Read multiple ranges"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("spreadsheetId", mcp.Required(), mcp.MinLength(1),
					mcp.Description("The ID of the spreadsheet")),
				mcp.WithArray("ranges", mcp.Required(), mcp.MinItems(1),
					mcp.Items(map[string]any{"type": "string"}),
					mcp.Description("Cell ranges in A1 notation")),
			),
			Bind: Bind(t.ReadMultipleRanges),
		},
	}
}

// RegisterSheetTools registers the spreadsheet tools backed by client.
func RegisterSheetTools(reg *Registry, client spreadsheet.Client) error {
	for _, def := range NewSheetTools(client).Definitions() {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (t *SheetTools) ReadSheet(ctx context.Context, args ReadSheetArgs) (any, error) {
	vr, err := t.client.Values(ctx, args.SpreadsheetID, args.Range)
	if err != nil {
		return nil, err
	}
	if vr == nil {
		vr = &sheets.ValueRange{}
	}

	values := nonNilValues(vr.Values)
	columns := 0
	if len(values) > 0 {
		columns = len(values[0])
	}

	return ReadSheetResult{
		Range:          vr.Range,
		MajorDimension: vr.MajorDimension,
		Values:         values,
		RowCount:       len(values),
		ColumnCount:    columns,
	}, nil
}

func (t *SheetTools) GetSheetInfo(ctx context.Context, args SheetInfoArgs) (any, error) {
	ss, err := t.client.Spreadsheet(ctx, args.SpreadsheetID)
	if err != nil {
		return nil, err
	}

	info := SheetInfo{Sheets: []SheetSummary{}}
	if ss == nil {
		return info, nil
	}
	if p := ss.Properties; p != nil {
		info.Title = p.Title
		info.Locale = p.Locale
		info.TimeZone = p.TimeZone
	}

	for _, sheet := range ss.Sheets {
		if sheet == nil || sheet.Properties == nil {
			continue
		}
		props := sheet.Properties
		summary := SheetSummary{
			Title:   props.Title,
			SheetID: props.SheetId,
			Index:   props.Index,
		}
		if grid := props.GridProperties; grid != nil {
			summary.GridProperties = GridSize{
				RowCount:    grid.RowCount,
				ColumnCount: grid.ColumnCount,
			}
		}
		info.Sheets = append(info.Sheets, summary)
	}

	return info, nil
}

func (t *SheetTools) ReadMultipleRanges(ctx context.Context, args ReadRangesArgs) (any, error) {
	resp, err := t.client.BatchValues(ctx, args.SpreadsheetID, args.Ranges)
	if err != nil {
		return nil, err
	}

	out := []RangeValues{}
	if resp == nil {
		return out, nil
	}
	for _, vr := range resp.ValueRanges {
		if vr == nil {
			vr = &sheets.ValueRange{}
		}
		out = append(out, RangeValues{
			Range:  vr.Range,
			Values: nonNilValues(vr.Values),
		})
	}

	return out, nil
}

// nonNilValues converts the API's cell grid, which is omitted for empty
// ranges, into a slice that always serializes as an array.
func nonNilValues(values [][]interface{}) [][]any {
	if values == nil {
		return [][]any{}
	}
	return values
}
