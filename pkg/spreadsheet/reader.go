package spreadsheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Format selects the decoder used for an upload.
type Format string

const (
	FormatAuto      Format = ""
	FormatDelimited Format = "delimited"
	FormatXLSX      Format = "xlsx"
)

// ParseFormat maps a user supplied hint ("csv", "xlsx", ...) to a Format.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return FormatAuto, nil
	case "csv", "tsv", "txt", "delimited":
		return FormatDelimited, nil
	case "xlsx", "xlsm", "excel":
		return FormatXLSX, nil
	default:
		return FormatAuto, &FormatError{Reason: fmt.Sprintf("unsupported format %q", raw)}
	}
}

// Row is one non-blank record. Number is the 1-based physical row (or line)
// in the source file, so skipped blank rows do not shift it.
type Row struct {
	Number int
	Cells  []string
}

// RowReader yields rows in file order and returns io.EOF once exhausted.
// It cannot be rewound.
type RowReader interface {
	Next() (Row, error)
	Close() error
}

// FormatError reports an upload that cannot be decoded at all.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
)

const sniffSize = 4096

// DetectFormat picks a decoder from the leading bytes, falling back to the
// file extension. Legacy OLE2 workbooks are rejected.
func DetectFormat(name string, head []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case bytes.HasPrefix(head, ole2Magic), ext == ".xls":
		return FormatAuto, &FormatError{Reason: "legacy .xls workbooks are not supported; save the file as .xlsx or .csv"}
	case bytes.HasPrefix(head, zipMagic):
		return FormatXLSX, nil
	case ext == ".xlsx" || ext == ".xlsm":
		return FormatXLSX, nil
	default:
		return FormatDelimited, nil
	}
}

// OpenFile opens path and returns a reader over its rows. Closing the reader
// closes the file.
func OpenFile(path string, format Format) (RowReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	rr, err := Open(f, filepath.Base(path), format)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileRowReader{RowReader: rr, file: f}, nil
}

// Open decodes r. name is only used for extension based sniffing.
func Open(r io.Reader, name string, format Format) (RowReader, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, &FormatError{Reason: "unreadable upload", Err: err}
	}
	if format == FormatAuto {
		if format, err = DetectFormat(name, head); err != nil {
			return nil, err
		}
	}
	switch format {
	case FormatXLSX:
		return newXLSXReader(br)
	case FormatDelimited:
		return newDelimitedReader(br, head)
	default:
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported format %q", format)}
	}
}

type fileRowReader struct {
	RowReader
	file *os.File
}

func (f *fileRowReader) Close() error {
	err := f.RowReader.Close()
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	return err
}

type delimitedReader struct {
	csv *csv.Reader
}

func newDelimitedReader(br *bufio.Reader, head []byte) (*delimitedReader, error) {
	if bytes.HasPrefix(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, &FormatError{Reason: "unreadable upload", Err: err}
		}
		head = head[len(utf8BOM):]
	}
	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return &delimitedReader{csv: cr}, nil
}

func (d *delimitedReader) Next() (Row, error) {
	for {
		record, err := d.csv.Read()
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		if err != nil {
			return Row{}, &FormatError{Reason: "malformed delimited text", Err: err}
		}
		line, _ := d.csv.FieldPos(0)
		for _, cell := range record {
			if !utf8.ValidString(cell) {
				return Row{}, &FormatError{Reason: fmt.Sprintf("line %d is not valid UTF-8", line)}
			}
		}
		if isBlank(record) {
			continue
		}
		return Row{Number: line, Cells: record}, nil
	}
}

func (d *delimitedReader) Close() error { return nil }

// sniffDelimiter counts candidate separators outside quotes on the first line.
func sniffDelimiter(head []byte) rune {
	line := head
	if idx := bytes.IndexAny(head, "\r\n"); idx >= 0 {
		line = head[:idx]
	}
	candidates := []rune{',', ';', '\t', '|'}
	counts := make(map[rune]int, len(candidates))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}
	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

type xlsxReader struct {
	file *excelize.File
	rows *excelize.Rows
	n    int
}

func newXLSXReader(r io.Reader) (*xlsxReader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &FormatError{Reason: "corrupt spreadsheet", Err: err}
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, &FormatError{Reason: "spreadsheet has no sheets"}
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, &FormatError{Reason: "corrupt spreadsheet", Err: err}
	}
	return &xlsxReader{file: f, rows: rows}, nil
}

// Next returns formatted cell text, so numeric and date cells come back as
// the strings a user sees in the sheet.
func (x *xlsxReader) Next() (Row, error) {
	for x.rows.Next() {
		x.n++
		cells, err := x.rows.Columns()
		if err != nil {
			return Row{}, &FormatError{Reason: fmt.Sprintf("row %d unreadable", x.n), Err: err}
		}
		if isBlank(cells) {
			continue
		}
		return Row{Number: x.n, Cells: cells}, nil
	}
	if err := x.rows.Error(); err != nil {
		return Row{}, &FormatError{Reason: "corrupt spreadsheet", Err: err}
	}
	return Row{}, io.EOF
}

func (x *xlsxReader) Close() error {
	err := x.rows.Close()
	if cerr := x.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
