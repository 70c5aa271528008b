// Package export renders normalized tables as CSV, chart series and terminal text.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

// Header is the fixed CSV column order.
var Header = []string{"entity", "indicator", "year", "value"}

var ErrBadHeader = errors.New("csv header must be entity,indicator,year,value")

// WriteCSV writes tbl with a header row. Absent values become empty cells.
func WriteCSV(w io.Writer, tbl indicator.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, o := range tbl.Observations {
		value := ""
		if o.Value != nil {
			value = strconv.FormatFloat(*o.Value, 'g', -1, 64)
		}
		if err := cw.Write([]string{o.Entity, o.Indicator, strconv.Itoa(o.Year), value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the output of WriteCSV back into a table.
func ReadCSV(r io.Reader) (indicator.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if err == io.EOF {
		return indicator.Table{}, nil
	}
	if err != nil {
		return indicator.Table{}, fmt.Errorf("read header: %w", err)
	}
	for i, col := range Header {
		if strings.TrimSpace(strings.TrimPrefix(head[i], "\ufeff")) != col {
			return indicator.Table{}, ErrBadHeader
		}
	}

	var obs []indicator.Observation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return indicator.Table{}, fmt.Errorf("line %d: %w", line, err)
		}
		year, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			return indicator.Table{}, fmt.Errorf("line %d: bad year %q", line, rec[2])
		}
		o := indicator.Observation{Entity: rec[0], Indicator: rec[1], Year: year}
		if v := strings.TrimSpace(rec[3]); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return indicator.Table{}, fmt.Errorf("line %d: bad value %q", line, rec[3])
			}
			o.Value = indicator.Float(f)
		}
		obs = append(obs, o)
	}
	return indicator.NewTable(obs...), nil
}
