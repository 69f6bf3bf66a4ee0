package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ldtran/home-inventory/internal/core/domain"
)

// Column headers of the backing sheet. Order is not significant; the
// reader keys rows off the header line.
const (
	colImage    = "Image"
	colName     = "Name"
	colQuantity = "Quantity"
	colNotes    = "Notes"
	colDate     = "Date"
	colVersion  = "Version"
)

// SheetStore talks to a hosted tabular sheet over HTTP: GET fetches the
// whole table as CSV, PUT replaces it. This mirrors the only primitives
// the backing API offers; there is no partial-row write, so every
// mutation above this adapter serializes the full collection back.
type SheetStore struct {
	client *http.Client
	url    string
}

func NewSheetStore(client *http.Client, url string) *SheetStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &SheetStore{client: client, url: url}
}

func (s *SheetStore) ReadAll(ctx context.Context) (domain.Collection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrStoreUnavailable, err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch sheet: %v", domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch sheet: status %d", domain.ErrStoreUnavailable, resp.StatusCode)
	}

	return decodeCSV(resp.Body)
}

func (s *SheetStore) WriteAll(ctx context.Context, c domain.Collection) error {
	var buf bytes.Buffer
	if err := encodeCSV(&buf, c); err != nil {
		return fmt.Errorf("%w: encode sheet: %v", domain.ErrStoreRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url, &buf)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrStoreUnavailable, err)
	}
	req.Header.Set("Content-Type", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: write sheet: %v", domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: write sheet: status %d", domain.ErrStoreRejected, resp.StatusCode)
	default:
		return fmt.Errorf("%w: write sheet: status %d", domain.ErrStoreUnavailable, resp.StatusCode)
	}
}

func decodeCSV(r io.Reader) (domain.Collection, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse sheet: %v", domain.ErrStoreUnavailable, err)
	}
	if len(rows) == 0 {
		return domain.Collection{}, nil
	}

	index := map[string]int{}
	for i, h := range rows[0] {
		index[strings.TrimSpace(h)] = i
	}
	if _, ok := index[colName]; !ok {
		return nil, fmt.Errorf("%w: sheet is missing the %s column", domain.ErrStoreUnavailable, colName)
	}

	field := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var coll domain.Collection
	for _, row := range rows[1:] {
		name := strings.TrimSpace(field(row, colName))
		if name == "" {
			continue // blank padding rows are common in hosted sheets
		}
		coll = append(coll, domain.Record{
			Image:    field(row, colImage),
			Name:     name,
			Quantity: parseIntOrZero(field(row, colQuantity)),
			Notes:    field(row, colNotes),
			Date:     field(row, colDate),
			Version:  parseIntOrZero(field(row, colVersion)),
		})
	}
	return coll, nil
}

func encodeCSV(w io.Writer, c domain.Collection) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{colImage, colName, colQuantity, colNotes, colDate, colVersion}); err != nil {
		return err
	}
	for _, rec := range c {
		row := []string{
			rec.Image,
			rec.Name,
			strconv.Itoa(rec.Quantity),
			rec.Notes,
			rec.Date,
			strconv.Itoa(rec.Version),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// parseIntOrZero coerces malformed or missing numeric cells to zero
// instead of failing the load. The engine logs the repair.
func parseIntOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
