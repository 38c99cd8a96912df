package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/clankers-project/clankers/internal/network"
	"github.com/clankers-project/clankers/internal/stats"
	"github.com/clankers-project/clankers/internal/util"
)

// maxFailureRows caps the failure class table.
const maxFailureRows = 5

// Status is everything one status report shows.
type Status struct {
	Destination string
	Clankers    int
	Stats       stats.Snapshot
	Sessions    []network.ConnectionInfo
	Usage       *util.ProcessUsage
}

// RenderStatus writes the fleet summary and the most frequent failure
// classes as tables.
func RenderStatus(w io.Writer, st Status) {
	fmt.Fprintf(w, "\nclankers -> %s (up %s)\n", st.Destination, st.Stats.Uptime.Truncate(time.Second))

	compressed := 0
	for _, s := range st.Sessions {
		if s.Compression {
			compressed++
		}
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Slots", "Connected", "Playing", "Joined", "Failed", "Attempts", "Compressed"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	tw.Append([]string{
		strconv.Itoa(st.Clankers),
		strconv.Itoa(len(st.Sessions)),
		strconv.FormatInt(st.Stats.Playing, 10),
		strconv.FormatInt(st.Stats.Joined, 10),
		strconv.FormatInt(st.Stats.Failed, 10),
		strconv.FormatInt(st.Stats.Connecting, 10),
		strconv.Itoa(compressed),
	})
	tw.Render()

	if len(st.Stats.FailedBy) > 0 {
		fw := tablewriter.NewWriter(w)
		fw.SetHeader([]string{"Error Class", "Count"})
		fw.SetBorder(true)
		fw.SetAutoWrapText(false)
		for i, fc := range st.Stats.FailedBy {
			if i == maxFailureRows {
				break
			}
			class := fc.Class
			if class == "" {
				class = "-"
			}
			fw.Append([]string{class, strconv.FormatInt(fc.Count, 10)})
		}
		fw.Render()
	}

	if last := st.Stats.LastFailure; last != nil {
		fmt.Fprintf(w, "last failure: clanker '%s' at %s: %s\n", last.Name, last.Stage, last.Error)
	}
	if st.Usage != nil {
		fmt.Fprintf(w, "process: %d goroutines, %d MB RSS, %.1f%% CPU, %d fds\n",
			st.Usage.Goroutines, st.Usage.RSSMB, st.Usage.CPUPercent, st.Usage.OpenFDs)
	}
	fmt.Fprintln(w)
}
