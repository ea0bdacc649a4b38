package digest

import (
	"encoding/csv"
	"io"
)

var csvHeader = []string{"Title", "Summary", "Source", "URL", "Date"}

// CSVFormatter writes one row per summary with a header row.
type CSVFormatter struct{}

func NewCSV() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) Format(w io.Writer, input Input) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, item := range input.Items {
		if err := cw.Write([]string{item.Title, item.Summary, item.Source, item.URL, itemDate(item)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
