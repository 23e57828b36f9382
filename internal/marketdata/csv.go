package marketdata

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rocketlaunchr/dataframe-go"
	imports "github.com/rocketlaunchr/dataframe-go/imports"

	"github.com/aristath/allocator/internal/domain"
)

// DateColumn is the optional leading column holding the row date.
const DateColumn = "date"

var floatConverter = imports.Converter{
	ConcreteType: float64(0),
	ConverterFunc: func(in interface{}) (interface{}, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(in.(string)), 64)
		if err != nil {
			return math.NaN(), nil
		}
		return v, nil
	},
}

// LoadCSVFile reads a price history from disk.
func LoadCSVFile(ctx context.Context, path string) (*PriceHistory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price history: %w", err)
	}
	defer f.Close()
	return LoadCSV(ctx, f)
}

// LoadCSV reads a header row followed by one row per day. A column named
// "date" is kept as the row label, every other column is an asset. Rows with
// a missing or unparsable price are dropped.
func LoadCSV(ctx context.Context, r io.Reader) (*PriceHistory, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read price history: %w", err)
	}

	header, err := csv.NewReader(bytes.NewReader(body)).Read()
	if err != nil {
		return nil, domain.InvalidInputf("price history has no header: %v", err)
	}

	dictate := make(map[string]interface{}, len(header))
	var assets []string
	hasDate := false
	for _, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), DateColumn) {
			dictate[name] = imports.Converter{
				ConcreteType: "",
				ConverterFunc: func(in interface{}) (interface{}, error) {
					return strings.TrimSpace(in.(string)), nil
				},
			}
			hasDate = true
			continue
		}
		dictate[name] = floatConverter
		assets = append(assets, name)
	}
	if len(assets) == 0 {
		return nil, domain.InvalidInputf("price history has no asset columns")
	}

	df, err := imports.LoadFromCSV(ctx, bytes.NewReader(body), imports.CSVLoadOptions{
		DictateDataType: dictate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse price history: %w", err)
	}

	if err := dropIncomplete(ctx, df); err != nil {
		return nil, err
	}

	nrows := df.NRows(dataframe.Options{})
	prices := make([][]float64, nrows)
	for i := range prices {
		prices[i] = make([]float64, len(assets))
	}
	for j, name := range assets {
		idx, err := df.NameToColumn(name)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		series := df.Series[idx]
		for i := 0; i < nrows; i++ {
			prices[i][j] = series.Value(i, dataframe.Options{}).(float64)
		}
	}

	var dates []string
	if hasDate {
		idx, err := df.NameToColumn(headerName(header, DateColumn))
		if err != nil {
			return nil, fmt.Errorf("date column: %w", err)
		}
		dates = make([]string, nrows)
		for i := 0; i < nrows; i++ {
			dates[i], _ = df.Series[idx].Value(i, dataframe.Options{}).(string)
		}
	}

	return NewPriceHistory(assets, dates, prices)
}

// dropIncomplete removes rows holding a nil or NaN value. The frame is
// filtered in place: converted columns are generic series, which cannot be
// copied into a new frame.
func dropIncomplete(ctx context.Context, df *dataframe.DataFrame) error {
	filterFn := dataframe.FilterDataFrameFn(func(vals map[interface{}]interface{}, row, nRows int) (dataframe.FilterAction, error) {
		for _, val := range vals {
			if val == nil {
				return dataframe.DROP, nil
			}
			if v, ok := val.(float64); ok && math.IsNaN(v) {
				return dataframe.DROP, nil
			}
		}
		return dataframe.KEEP, nil
	})
	if _, err := dataframe.Filter(ctx, df, filterFn, dataframe.FilterOptions{InPlace: true}); err != nil {
		return fmt.Errorf("failed to filter price history: %w", err)
	}
	return nil
}

func headerName(header []string, want string) string {
	for _, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return h
		}
	}
	return want
}
