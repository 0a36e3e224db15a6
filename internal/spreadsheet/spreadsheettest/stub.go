// Package spreadsheettest provides an in-memory spreadsheet.Client for tests.
package spreadsheettest

import (
	"context"
	"sync"

	"google.golang.org/api/sheets/v4"

	"github.com/ideaspaper/sheets-reader-mcp/internal/spreadsheet"
)

// Call records one request made to a Stub.
type Call struct {
	Method        string
	SpreadsheetID string
	Ranges        []string
}

// Stub is a canned spreadsheet.Client. The zero value answers every call
// with an empty response. When Err is set every call fails with it.
type Stub struct {
	ValueRange *sheets.ValueRange
	Batch      *sheets.BatchGetValuesResponse
	Metadata   *sheets.Spreadsheet
	Err        error

	mu    sync.Mutex
	calls []Call
}

var _ spreadsheet.Client = (*Stub)(nil)

func (s *Stub) record(c Call) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many calls reached the stub.
func (s *Stub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *Stub) Values(ctx context.Context, spreadsheetID, rng string) (*sheets.ValueRange, error) {
	s.record(Call{Method: "Values", SpreadsheetID: spreadsheetID, Ranges: []string{rng}})
	if s.Err != nil {
		return nil, s.Err
	}
	if s.ValueRange == nil {
		return &sheets.ValueRange{Range: rng}, nil
	}
	return s.ValueRange, nil
}

func (s *Stub) BatchValues(ctx context.Context, spreadsheetID string, ranges []string) (*sheets.BatchGetValuesResponse, error) {
	s.record(Call{Method: "BatchValues", SpreadsheetID: spreadsheetID, Ranges: append([]string(nil), ranges...)})
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Batch == nil {
		return &sheets.BatchGetValuesResponse{SpreadsheetId: spreadsheetID}, nil
	}
	return s.Batch, nil
}

func (s *Stub) Spreadsheet(ctx context.Context, spreadsheetID string) (*sheets.Spreadsheet, error) {
	s.record(Call{Method: "Spreadsheet", SpreadsheetID: spreadsheetID})
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Metadata == nil {
		return &sheets.Spreadsheet{SpreadsheetId: spreadsheetID}, nil
	}
	return s.Metadata, nil
}
