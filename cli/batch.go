package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/sphereloc/localize"
	"go.viam.com/sphereloc/store"
)

// batchRow is one CSV row and its outcome.
type batchRow struct {
	line int
	raw  map[string]interface{}
	req  localize.Request
	res  *localize.Result
	err  error

	// recordErr is set when the localization succeeded but could not be stored.
	recordErr error
}

// readBatch reads observations from CSV. Cells are keyed by the header; empty cells are left out so
// that optional columns may be blank.
func readBatch(r io.Reader) ([]*batchRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv is empty")
		}
		return nil, errors.Wrap(err, "cannot read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []*batchRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read csv line %d", line)
		}
		row := &batchRow{line: line, raw: map[string]interface{}{}}
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			v, err := cast.ToFloat64E(cell)
			if err != nil {
				// ParseRequest reports the field
				row.raw[header[i]] = cell
				continue
			}
			row.raw[header[i]] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func openBatchInput(c *cli.Context) (io.ReadCloser, error) {
	if c.NArg() != 1 {
		return nil, errors.New("expected exactly one csv file argument")
	}
	path := c.Args().First()
	if path == "-" {
		return io.NopCloser(c.App.Reader), nil
	}
	//nolint:gosec
	return os.Open(path)
}

// BatchAction localizes every row of a CSV file and prints a table plus depth statistics. Rows
// that fail are reported in the table and do not stop the batch. With --record, a row that
// cannot be stored keeps its localization and is marked in the table.
func BatchAction(c *cli.Context) (err error) {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	logger := newLogger(c)
	engine, err := s.engine(logger)
	if err != nil {
		return err
	}

	in, err := openBatchInput(c)
	if err != nil {
		return err
	}
	rows, err := readBatch(in)
	err = multierr.Combine(err, in.Close())
	if err != nil {
		return err
	}

	var st *store.Store
	if c.Bool(batchFlagRecord) {
		if s.storePath == "" {
			return errors.Errorf("--%s needs a store; pass --%s with an enabled store", batchFlagRecord, generalFlagConfig)
		}
		st, err = store.Open(c.Context, s.storePath, logger)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, st.Close())
		}()
	}

	for _, row := range rows {
		row.req, row.err = localize.ParseRequest(row.raw)
		if row.err != nil {
			continue
		}
		row.res, row.err = engine.Localize(row.req)
		if row.err != nil || st == nil {
			continue
		}
		if _, row.recordErr = st.Record(c.Context, store.Record{
			Request:           row.req,
			Point:             row.res.Point,
			Units:             engine.Units(),
			CalibrationSource: row.res.CalibrationSource,
		}); row.recordErr != nil {
			logger.Warnw("cannot record localization", "line", row.line, "error", row.recordErr)
		}
	}

	depths := printBatch(c, rows, engine.Units())
	if path := c.String(batchFlagPlot); path != "" {
		if err := plotDepths(path, depths, engine.Units()); err != nil {
			return err
		}
		printf(c, "depth histogram written to %s", path)
	}
	return nil
}

// printBatch prints one table row per CSV row and a depth summary, and returns the depths of the
// rows that localized.
func printBatch(c *cli.Context, rows []*batchRow, units string) []float64 {
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Line", "Center X", "Center Y", "Diameter", "X", "Y", "Z", "Error"})

	for _, row := range rows {
		if row.err != nil {
			t.AppendRow(table.Row{row.line, cell(row.raw, localize.FieldCenterX), cell(row.raw, localize.FieldCenterY),
				cell(row.raw, localize.FieldDiameter), "", "", "", row.err.Error()})
			continue
		}
		note := ""
		if row.recordErr != nil {
			note = "not recorded: " + row.recordErr.Error()
		}
		p := row.res.Point
		t.AppendRow(table.Row{row.line, row.req.CenterX, row.req.CenterY, row.req.Diameter,
			fmt.Sprintf("%.4f", p.X), fmt.Sprintf("%.4f", p.Y), fmt.Sprintf("%.4f", p.Z), note})
	}
	t.Render()

	depths := lo.FilterMap(rows, func(row *batchRow, _ int) (float64, bool) {
		if row.err != nil {
			return 0, false
		}
		return row.res.Point.Z, true
	})
	printf(c, "%d ok, %d failed", len(depths), len(rows)-len(depths))
	if unrecorded := lo.CountBy(rows, func(row *batchRow) bool { return row.recordErr != nil }); unrecorded > 0 {
		printf(c, "%d localized rows could not be recorded", unrecorded)
	}
	if len(depths) == 0 {
		return depths
	}
	summary, err := summarizeDepths(depths)
	if err != nil {
		printf(c, "cannot summarize depths: %v", err)
		return depths
	}
	printf(c, "depth (%s): mean=%.4f median=%.4f stddev=%.4f min=%.4f max=%.4f",
		units, summary.mean, summary.median, summary.stddev, summary.min, summary.max)
	return depths
}

// plotDepths saves a histogram of depths; the image format follows the file extension.
func plotDepths(path string, depths []float64, units string) error {
	if len(depths) == 0 {
		return errors.New("no localized rows to plot")
	}
	p := plot.New()
	p.Title.Text = "Sphere depth"
	p.X.Label.Text = fmt.Sprintf("z (%s)", units)
	p.Y.Label.Text = "observations"
	hist, err := plotter.NewHist(plotter.Values(depths), 16)
	if err != nil {
		return errors.Wrap(err, "cannot build depth histogram")
	}
	p.Add(hist)
	return errors.Wrapf(p.Save(6*vg.Inch, 4*vg.Inch, path), "cannot save plot %q", path)
}

type depthSummary struct {
	mean, median, stddev, min, max float64
}

func summarizeDepths(depths []float64) (depthSummary, error) {
	var summary depthSummary
	var err, errs error
	summary.mean, err = stats.Mean(depths)
	errs = multierr.Combine(errs, err)
	summary.median, err = stats.Median(depths)
	errs = multierr.Combine(errs, err)
	summary.stddev, err = stats.StandardDeviation(depths)
	errs = multierr.Combine(errs, err)
	summary.min, err = stats.Min(depths)
	errs = multierr.Combine(errs, err)
	summary.max, err = stats.Max(depths)
	errs = multierr.Combine(errs, err)
	return summary, errs
}

func cell(raw map[string]interface{}, field string) interface{} {
	if v, ok := raw[field]; ok {
		return v
	}
	return ""
}
