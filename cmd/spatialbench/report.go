package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/spatialsync"
)

// Report summarizes one benchmark run.
type Report struct {
	RunID   string       `yaml:"run_id"`
	Mode    string       `yaml:"mode"`
	Index   string       `yaml:"index"`
	Size    int          `yaml:"size"`
	Elapsed string       `yaml:"elapsed"`
	Comm    CommStats    `yaml:"comm"`
	Ranks   []RankReport `yaml:"ranks"`
}

// CommStats aggregates collective records over all reported ranks.
type CommStats struct {
	Collectives int64 `yaml:"collectives"`
	Bytes       int64 `yaml:"bytes"`
	Errors      int64 `yaml:"errors"`
}

func commStats(m *spatialsync.BasicMetricsCollector) CommStats {
	s := m.GetStats()
	return CommStats{
		Collectives: s.CollectiveCount,
		Bytes:       s.CollectiveBytes,
		Errors:      s.CollectiveErrors,
	}
}

// RankReport is the outcome on one rank.
type RankReport struct {
	Rank     int    `yaml:"rank"`
	Nodes    int    `yaml:"nodes"`
	Owned    int    `yaml:"owned"`
	Total    int    `yaml:"total"`
	Retained int    `yaml:"retained"`
	Shared   int    `yaml:"shared"`
	Found    int    `yaml:"found"`
	Resolve  string `yaml:"resolve"`
	Search   string `yaml:"search"`
}

func writeReport(w io.Writer, format string, r Report) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}

	if _, err := fmt.Fprintf(w, "run %s: %d ranks, mode %s, index %s, %s\n", r.RunID, r.Size, r.Mode, r.Index, r.Elapsed); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "collectives %d, received %d bytes, errors %d\n\n", r.Comm.Collectives, r.Comm.Bytes, r.Comm.Errors); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNODES\tOWNED\tTOTAL\tRETAINED\tSHARED\tFOUND\tRESOLVE\tSEARCH")
	for _, rr := range r.Ranks {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			rr.Rank, rr.Nodes, rr.Owned, rr.Total, rr.Retained, rr.Shared, rr.Found, rr.Resolve, rr.Search)
	}
	return tw.Flush()
}
