package cli

import (
	"io"
	"strings"
	"text/tabwriter"
)

type table struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer) *table {
	return &table{w: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
}

func (t *table) row(cols ...string) {
	_, _ = io.WriteString(t.w, strings.Join(cols, "\t")+"\n")
}

func (t *table) flush() error {
	return t.w.Flush()
}
