// Package report builds the downloadable session bundle: the retained raw
// series and BPM history as CSV plus a plain-text summary of how often each
// cardiac flag triggered, zipped together.
package report

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"

	"github.com/ecg-monitor/backend/internal/ecg"
)

// EventShare is one event's slice of all triggers in the session.
type EventShare struct {
	Name    string  `json:"name"`
	Count   uint64  `json:"count"`
	Percent float64 `json:"percent"`
	Concern string  `json:"concern"` // Normal, Elevated (>20%), High (>40%)
}

// Shares converts trigger counts into percentage shares, most frequent
// first (name order breaks ties so output is stable).
func Shares(counts map[string]uint64) []EventShare {
	var total uint64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		total = 1
	}

	shares := make([]EventShare, 0, len(counts))
	for name, count := range counts {
		if count == 0 {
			continue
		}
		pct := float64(count) / float64(total) * 100
		shares = append(shares, EventShare{
			Name:    name,
			Count:   count,
			Percent: pct,
			Concern: concern(pct),
		})
	}

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Name < shares[j].Name
	})
	return shares
}

func concern(pct float64) string {
	switch {
	case pct > 40:
		return "High"
	case pct > 20:
		return "Elevated"
	default:
		return "Normal"
	}
}

// Build assembles the ZIP bundle from a session snapshot.
func Build(snap ecg.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := writeECGCSV(zw, snap); err != nil {
		return nil, err
	}
	if err := writeBPMCSV(zw, snap); err != nil {
		return nil, err
	}
	if err := writeSummary(zw, snap); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeECGCSV(zw *zip.Writer, snap ecg.Snapshot) error {
	f, err := zw.Create("ecg_data_with_flags.csv")
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "ecg_value", "cardiac_flags"}); err != nil {
		return err
	}
	for i := range snap.Samples {
		flags := ""
		if i < len(snap.Timeline) {
			flags = snap.Timeline[i]
		}
		row := []string{
			formatTS(snap.Timestamps[i]),
			strconv.Itoa(snap.Samples[i]),
			flags,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeBPMCSV(zw *zip.Writer, snap ecg.Snapshot) error {
	f, err := zw.Create("bpm_data.csv")
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "bpm"}); err != nil {
		return err
	}
	for i := range snap.BPMHistory {
		row := []string{
			formatTS(snap.BPMTimestamps[i]),
			strconv.Itoa(snap.BPMHistory[i]),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeSummary(zw *zip.Writer, snap ecg.Snapshot) error {
	f, err := zw.Create("summary.txt")
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintln(f, "ECG Monitoring Summary"); err != nil {
		return err
	}
	fmt.Fprintln(f)

	shares := Shares(snap.EventCounts)
	if len(shares) == 0 {
		_, err := fmt.Fprintln(f, "No cardiac events were flagged during this session.")
		return err
	}

	for _, s := range shares {
		if _, err := fmt.Fprintf(f, "%s: %.1f%% - %s\n", s.Name, s.Percent, s.Concern); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(f,
			"  This flag triggered %d time(s); higher shares suggest more frequent abnormality.\n",
			s.Count); err != nil {
			return err
		}
	}
	return nil
}

func formatTS(t float64) string {
	return strconv.FormatFloat(t, 'f', 3, 64)
}
