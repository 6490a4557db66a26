package catalog

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/franz/hidden-gems/internal/util"
)

// Format is the on-disk layout of an ingestion hand-off file
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatJSON  Format = "json" // a single JSON array
	FormatCSV   Format = "csv"
)

// DetectFormat picks a format from the file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: cannot infer format of %s (want .jsonl, .json or .csv)", util.ErrInvalidConfig, path)
}

// ReadResult holds the decoded records of one file.
// Errors lists records that could not be decoded; they are excluded from Records.
type ReadResult[T any] struct {
	Records []T
	Errors  []error
}

// ReadMovieFile reads movie records from path
func ReadMovieFile(path string) (*ReadResult[MovieRecord], error) {
	return readFile(path, movieFromRow)
}

// ReadReviewFile reads review records from path
func ReadReviewFile(path string) (*ReadResult[ReviewRecord], error) {
	return readFile(path, reviewFromRow)
}

// ReadMovies decodes movie records from r
func ReadMovies(r io.Reader, format Format) (*ReadResult[MovieRecord], error) {
	return readRecords(r, format, movieFromRow)
}

// ReadReviews decodes review records from r
func ReadReviews(r io.Reader, format Format) (*ReadResult[ReviewRecord], error) {
	return readRecords(r, format, reviewFromRow)
}

func readFile[T any](path string, fromRow func(map[string]string) T) (*ReadResult[T], error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return readRecords(f, format, fromRow)
}

func readRecords[T any](r io.Reader, format Format, fromRow func(map[string]string) T) (*ReadResult[T], error) {
	switch format {
	case FormatJSONL:
		return readJSONL[T](r)
	case FormatJSON:
		return readJSONArray[T](r)
	case FormatCSV:
		return readCSV(r, fromRow)
	}
	return nil, fmt.Errorf("%w: unknown format %q", util.ErrInvalidConfig, format)
}

// maxRecordSize bounds a single JSONL line. Review text can be long.
var maxRecordSize = 16 << 20

func readJSONL[T any](r io.Reader) (*ReadResult[T], error) {
	result := &ReadResult[T]{}
	reader := bufio.NewReaderSize(r, 64*1024)

	var buf []byte
	line := 0
	for {
		raw, oversized, err := readLine(reader, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read records: %w", err)
		}
		buf = raw
		line++
		if oversized {
			result.Errors = append(result.Errors, fmt.Errorf("%w: line %d exceeds %d bytes", util.ErrMalformedInput, line, maxRecordSize))
			continue
		}
		data := bytes.TrimSpace(raw)
		if len(data) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(data, &rec); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%w: line %d: %v", util.ErrMalformedInput, line, err))
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// readLine returns the next line without its terminator, reusing buf.
// Bytes past maxRecordSize are discarded and oversized is set; the reader
// is left at the start of the following line.
func readLine(r *bufio.Reader, buf []byte) (line []byte, oversized bool, err error) {
	line = buf[:0]
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && (len(line) > 0 || oversized) {
				return line, oversized, nil
			}
			return line, oversized, err
		}
		if !oversized && len(line)+len(chunk) > maxRecordSize {
			oversized = true
			line = line[:0]
		}
		if !oversized {
			line = append(line, chunk...)
		}
		if !isPrefix {
			return line, oversized, nil
		}
	}
}

func readJSONArray[T any](r io.Reader) (*ReadResult[T], error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON array: %w", err)
	}

	result := &ReadResult[T]{Records: make([]T, 0, len(raw))}
	for i, msg := range raw {
		var rec T
		if err := json.Unmarshal(msg, &rec); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%w: element %d: %v", util.ErrMalformedInput, i, err))
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func readCSV[T any](r io.Reader, fromRow func(map[string]string) T) (*ReadResult[T], error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return &ReadResult[T]{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	// Excel and pandas sometimes prepend a BOM
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	result := &ReadResult[T]{}
	row := 1
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%w: row %d: %v", util.ErrMalformedInput, row, err))
			continue
		}
		if len(fields) != len(header) {
			result.Errors = append(result.Errors, fmt.Errorf("%w: row %d has %d fields, header has %d",
				util.ErrMalformedInput, row, len(fields), len(header)))
			continue
		}
		values := make(map[string]string, len(header))
		for i, name := range header {
			values[name] = fields[i]
		}
		result.Records = append(result.Records, fromRow(values))
	}
	return result, nil
}

func movieFromRow(v map[string]string) MovieRecord {
	return MovieRecord{
		MovieID: v["movie_id"],
		Title:   v["title"],
		Genre:   GenreField(strings.Split(v["genre"], ",")),
		Rating:  StringOf(v["rating"]),
		Votes:   StringOf(v["votes"]),
		URL:     v["url"],
	}
}

func reviewFromRow(v map[string]string) ReviewRecord {
	return ReviewRecord{
		MovieID:    v["movie_id"],
		ReviewID:   StringOf(v["review_id"]),
		ReviewText: v["review_text"],
	}
}
