package loader

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	occerrors "github.com/mwangi/occlusion/errors"
	"github.com/mwangi/occlusion/id"
	"github.com/mwangi/occlusion/index"
)

// csvHeader is the only acceptable header line. Anything else is a
// malformed source.
const csvHeader = "uuid,visibility_level"

// parseCSV streams r as the wire format: a mandatory header line followed
// by one "<uuid>,<level>" record per line. Line numbers in error messages
// are 1-indexed, counting the header as line 1, so they match what a user
// would see opening the file in an editor.
func parseCSV(r io.Reader) ([]index.Entry, error) {
	br := bufio.NewReader(r)

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = 2
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, occerrors.WithKind(occerrors.KindSourceMalformed,
			fmt.Errorf("loader: empty source, expected header %q", csvHeader))
	}
	if err != nil {
		return nil, occerrors.WithKind(occerrors.KindSourceMalformed,
			fmt.Errorf("loader: line 1: reading header: %w", err))
	}
	if len(header) != 2 || header[0] != "uuid" || header[1] != "visibility_level" {
		return nil, occerrors.WithKind(occerrors.KindSourceMalformed,
			fmt.Errorf("loader: line 1: expected header %q, got %q", csvHeader, joinCSV(header)))
	}

	var entries []index.Entry
	line := 1
	for {
		record, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, occerrors.WithKind(occerrors.KindSourceMalformed,
				fmt.Errorf("loader: line %d: %w", line, err))
		}

		uuid, err := id.ParseUUID(record[0])
		if err != nil {
			return nil, occerrors.WithKind(occerrors.KindSourceMalformed,
				fmt.Errorf("loader: line %d: invalid uuid %q: %w", line, record[0], err))
		}

		level, err := strconv.ParseUint(record[1], 10, 64)
		if err != nil {
			return nil, occerrors.WithKind(occerrors.KindSourceMalformed,
				fmt.Errorf("loader: line %d: invalid visibility_level %q: %w", line, record[1], err))
		}
		if level > 255 {
			return nil, occerrors.WithKind(occerrors.KindSourceMalformed,
				fmt.Errorf("loader: line %d: visibility_level %d out of range [0,255]", line, level))
		}

		entries = append(entries, index.Entry{UUID: uuid, Level: uint8(level)})
	}

	return entries, nil
}

func joinCSV(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ","
		}
		out += f
	}
	return out
}
