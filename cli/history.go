package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/sphereloc/store"
)

// HistoryAction lists the most recent recorded localizations.
func HistoryAction(c *cli.Context) (err error) {
	s, err := loadSettings(c)
	if err != nil {
		return err
	}
	path := s.storePath
	if c.IsSet(historyFlagDB) {
		path = c.String(historyFlagDB)
	}
	if path == "" {
		return errors.Errorf("no store; pass --%s or --%s", historyFlagDB, generalFlagConfig)
	}
	limit := c.Int(historyFlagLimit)
	if limit <= 0 {
		return errors.Errorf("--%s must be positive, got %d", historyFlagLimit, limit)
	}

	st, err := store.Open(c.Context, path, newLogger(c))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, st.Close())
	}()
	records, err := st.Recent(c.Context, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printf(c, "no localizations recorded in %s", path)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"ID", "Time", "Center", "Diameter", "X", "Y", "Z", "Units"})
	for _, rec := range records {
		t.AppendRow(table.Row{
			shortID(rec.ID),
			rec.CreatedAt.Local().Format(time.DateTime),
			fmt.Sprintf("(%.1f, %.1f)", rec.Request.CenterX, rec.Request.CenterY),
			rec.Request.Diameter,
			fmt.Sprintf("%.4f", rec.Point.X),
			fmt.Sprintf("%.4f", rec.Point.Y),
			fmt.Sprintf("%.4f", rec.Point.Z),
			rec.Units,
		})
	}
	t.Render()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
