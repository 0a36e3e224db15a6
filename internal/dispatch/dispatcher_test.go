package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/sheets/v4"

	"github.com/ideaspaper/sheets-reader-mcp/internal/spreadsheet/spreadsheettest"
	"github.com/ideaspaper/sheets-reader-mcp/internal/tools"
)

type observation struct {
	Tool    string
	Outcome Outcome
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveInvocation(tool string, outcome Outcome, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{Tool: tool, Outcome: outcome})
}

func newDispatcher(t *testing.T, stub *spreadsheettest.Stub, opts ...Option) *Dispatcher {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, tools.RegisterSheetTools(reg, stub))
	return New(reg, opts...)
}

func TestInvoke_UnknownTool(t *testing.T) {
	stub := &spreadsheettest.Stub{}
	res := newDispatcher(t, stub).Invoke(context.Background(), Invocation{Name: "nonexistent_tool", Arguments: map[string]any{}})

	assert.True(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "text", res.Content[0].Type)
	assert.Equal(t, "Unknown tool: nonexistent_tool", res.Content[0].Text)
	assert.Equal(t, OutcomeUnknownTool, res.Outcome())

	var unknown *tools.UnknownToolError
	assert.True(t, errors.As(res.Err(), &unknown))
	assert.Zero(t, stub.CallCount())
}

func TestInvoke_MissingRequiredArgumentSkipsUpstream(t *testing.T) {
	stub := &spreadsheettest.Stub{}
	res := newDispatcher(t, stub).Invoke(context.Background(), Invocation{
		Name:      tools.ReadSheet,
		Arguments: map[string]any{"spreadsheetId": "X"},
	})

	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "range")
	assert.Equal(t, OutcomeInvalidArguments, res.Outcome())

	var verr *ValidationError
	require.True(t, errors.As(res.Err(), &verr))
	assert.Equal(t, "range", verr.Field)
	assert.Zero(t, stub.CallCount())
}

func TestInvoke_ValidationFailures(t *testing.T) {
	cases := []struct {
		name  string
		tool  string
		args  map[string]any
		field string
	}{
		{"nil arguments", tools.GetSheetInfo, nil, "spreadsheetId"},
		{"null value", tools.GetSheetInfo, map[string]any{"spreadsheetId": nil}, "spreadsheetId"},
		{"empty id", tools.GetSheetInfo, map[string]any{"spreadsheetId": ""}, "spreadsheetId"},
		{"numeric id", tools.ReadSheet, map[string]any{"spreadsheetId": 42.0, "range": "A1"}, "spreadsheetId"},
		{"first missing field wins", tools.ReadSheet, map[string]any{}, "spreadsheetId"},
		{"ranges not array", tools.ReadMultipleRanges, map[string]any{"spreadsheetId": "X", "ranges": "A1"}, "ranges"},
		{"ranges empty", tools.ReadMultipleRanges, map[string]any{"spreadsheetId": "X", "ranges": []any{}}, "ranges"},
		{"ranges mixed", tools.ReadMultipleRanges, map[string]any{"spreadsheetId": "X", "ranges": []any{"A1", 3.0}}, "ranges[1]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &spreadsheettest.Stub{}
			res := newDispatcher(t, stub).Invoke(context.Background(), Invocation{Name: tc.tool, Arguments: tc.args})

			require.True(t, res.IsError)
			var verr *ValidationError
			require.True(t, errors.As(res.Err(), &verr), res.Text())
			assert.Equal(t, tc.field, verr.Field)
			assert.Contains(t, res.Text(), tc.field)
			assert.Zero(t, stub.CallCount())
		})
	}
}

func TestInvoke_ReadSheet(t *testing.T) {
	stub := &spreadsheettest.Stub{ValueRange: &sheets.ValueRange{
		Range:          "Sheet1!A1:B2",
		MajorDimension: "ROWS",
		Values:         [][]interface{}{{"a", "b"}, {"c", "d"}},
	}}
	res := newDispatcher(t, stub).Invoke(context.Background(), Invocation{
		Name:      tools.ReadSheet,
		Arguments: map[string]any{"spreadsheetId": "X", "range": "Sheet1!A1:B2"},
	})

	require.False(t, res.IsError, res.Text())
	require.Len(t, res.Content, 1)
	assert.NoError(t, res.Err())

	var payload struct {
		Range          string     `json:"range"`
		MajorDimension string     `json:"majorDimension"`
		Values         [][]string `json:"values"`
		RowCount       int        `json:"rowCount"`
		ColumnCount    int        `json:"columnCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &payload))
	assert.Equal(t, 2, payload.RowCount)
	assert.Equal(t, 2, payload.ColumnCount)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, payload.Values)
	assert.Equal(t, "ROWS", payload.MajorDimension)
	assert.Equal(t, 1, stub.CallCount())
}

func TestInvoke_ReadSheetKeyOrder(t *testing.T) {
	stub := &spreadsheettest.Stub{ValueRange: &sheets.ValueRange{
		Range:          "S!A1",
		MajorDimension: "ROWS",
		Values:         [][]interface{}{{"v"}},
	}}
	res := newDispatcher(t, stub).Invoke(context.Background(), Invocation{
		Name:      tools.ReadSheet,
		Arguments: map[string]any{"spreadsheetId": "X", "range": "S!A1"},
	})

	want := `{
  "range": "S!A1",
  "majorDimension": "ROWS",
  "values": [
    [
      "v"
    ]
  ],
  "rowCount": 1,
  "columnCount": 1
}`
	assert.Equal(t, want, res.Text())
}

func TestInvoke_GetSheetInfo(t *testing.T) {
	stub := &spreadsheettest.Stub{Metadata: &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: "Budget", Locale: "en_US", TimeZone: "UTC"},
		Sheets: []*sheets.Sheet{{Properties: &sheets.SheetProperties{
			Title: "Q1", SheetId: 5, Index: 0,
			GridProperties: &sheets.GridProperties{RowCount: 10, ColumnCount: 3},
		}}},
	}}
	res := newDispatcher(t, stub).Invoke(context.Background(), Invocation{
		Name:      tools.GetSheetInfo,
		Arguments: map[string]any{"spreadsheetId": "X"},
	})
	require.False(t, res.IsError, res.Text())

	want := `{
  "title": "Budget",
  "locale": "en_US",
  "timeZone": "UTC",
  "sheets": [
    {
      "title": "Q1",
      "sheetId": 5,
      "index": 0,
      "gridProperties": {
        "rowCount": 10,
        "columnCount": 3
      }
    }
  ]
}`
	assert.Equal(t, want, res.Text())
}

func TestInvoke_ReadMultipleRanges(t *testing.T) {
	stub := &spreadsheettest.Stub{Batch: &sheets.BatchGetValuesResponse{
		ValueRanges: []*sheets.ValueRange{
			{Range: "Sheet1!A1:A1", Values: [][]interface{}{{"x"}}},
			{Range: "Sheet1!B1:B1"},
		},
	}}
	res := newDispatcher(t, stub).Invoke(context.Background(), Invocation{
		Name: tools.ReadMultipleRanges,
		Arguments: map[string]any{
			"spreadsheetId": "X",
			"ranges":        []any{"Sheet1!A1:A1", "Sheet1!B1:B1"},
		},
	})
	require.False(t, res.IsError, res.Text())

	var payload []struct {
		Range  string      `json:"range"`
		Values *[][]string `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Text()), &payload))
	require.Len(t, payload, 2)
	assert.Equal(t, "Sheet1!A1:A1", payload[0].Range)
	assert.Equal(t, [][]string{{"x"}}, *payload[0].Values)
	require.NotNil(t, payload[1].Values, "absent values serialize as []")
	assert.Empty(t, *payload[1].Values)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"Sheet1!A1:A1", "Sheet1!B1:B1"}, calls[0].Ranges)
}

func TestInvoke_UpstreamErrorVerbatim(t *testing.T) {
	stub := &spreadsheettest.Stub{Err: errors.New("quota exceeded")}
	obs := &recordingObserver{}
	d := newDispatcher(t, stub, WithObserver(obs))

	var res *Result
	require.NotPanics(t, func() {
		res = d.Invoke(context.Background(), Invocation{
			Name:      tools.ReadSheet,
			Arguments: map[string]any{"spreadsheetId": "X", "range": "A1"},
		})
	})

	assert.True(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "Error: quota exceeded", res.Content[0].Text)

	var uerr *UpstreamError
	require.True(t, errors.As(res.Err(), &uerr))
	assert.Equal(t, tools.ReadSheet, uerr.Tool)
	assert.Equal(t, 1, stub.CallCount(), "no retry")
	assert.Equal(t, []observation{{Tool: tools.ReadSheet, Outcome: OutcomeUpstreamError}}, obs.obs)
}

func TestInvoke_Idempotent(t *testing.T) {
	stub := &spreadsheettest.Stub{Batch: &sheets.BatchGetValuesResponse{
		ValueRanges: []*sheets.ValueRange{{Range: "A1", Values: [][]interface{}{{"1", "2"}}}},
	}}
	d := newDispatcher(t, stub)
	inv := Invocation{
		Name:      tools.ReadMultipleRanges,
		Arguments: map[string]any{"spreadsheetId": "X", "ranges": []any{"A1"}},
	}

	first, err := json.Marshal(d.Invoke(context.Background(), inv))
	require.NoError(t, err)
	second, err := json.Marshal(d.Invoke(context.Background(), inv))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), `"isError":false`)
}

func TestInvoke_ObserverLabels(t *testing.T) {
	obs := &recordingObserver{}
	d := newDispatcher(t, &spreadsheettest.Stub{}, WithObserver(obs))
	ctx := context.Background()

	d.Invoke(ctx, Invocation{Name: "drop_table"})
	d.Invoke(ctx, Invocation{Name: tools.GetSheetInfo})
	d.Invoke(ctx, Invocation{Name: tools.GetSheetInfo, Arguments: map[string]any{"spreadsheetId": "X"}})

	assert.Equal(t, []observation{
		{Tool: UnknownToolLabel, Outcome: OutcomeUnknownTool},
		{Tool: tools.GetSheetInfo, Outcome: OutcomeInvalidArguments},
		{Tool: tools.GetSheetInfo, Outcome: OutcomeOK},
	}, obs.obs)
}

func TestInvoke_HandlerPanicBecomesResult(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.Definition{
		Tool: mcp.NewTool("explode"),
		Bind: tools.Bind(func(ctx context.Context, _ struct{}) (any, error) {
			panic("boom")
		}),
	}))

	res := New(reg).Invoke(context.Background(), Invocation{Name: "explode"})
	assert.True(t, res.IsError)
	assert.Equal(t, OutcomeInternalError, res.Outcome())
	assert.Equal(t, "Error: internal error", res.Text())
}

func TestInvoke_Concurrent(t *testing.T) {
	stub := &spreadsheettest.Stub{ValueRange: &sheets.ValueRange{Values: [][]interface{}{{"a"}}}}
	d := newDispatcher(t, stub)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := d.Invoke(context.Background(), Invocation{
				Name:      tools.ReadSheet,
				Arguments: map[string]any{"spreadsheetId": "X", "range": "A1"},
			})
			assert.False(t, res.IsError)
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, stub.CallCount())
}
