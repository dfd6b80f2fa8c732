package response

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tmellor/forge/internal/cliutil/output"
)

// snapshotTable adapts a finished Snapshot into output.TableRenderer so
// RenderDefault can hand it to a Printer instead of formatting status
// lines by hand.
type snapshotTable struct{ snap *Snapshot }

func (t snapshotTable) Headers() []string { return []string{"field", "value"} }

func (t snapshotTable) Rows() [][]string {
	rows := [][]string{
		{"success", fmt.Sprintf("%v", t.snap.Success)},
		{"exitCode", fmt.Sprintf("%d", t.snap.ExitCode)},
	}
	if t.snap.Message != "" {
		rows = append(rows, []string{"message", t.snap.Message})
	}
	if t.snap.Data != nil {
		if b, err := json.Marshal(t.snap.Data); err == nil {
			rows = append(rows, []string{"data", string(b)})
		}
	}
	if t.snap.Error != nil {
		rows = append(rows, []string{"error", t.snap.Error.Msg})
		if t.snap.Error.AdditionalDetails != "" {
			rows = append(rows, []string{"details", t.snap.Error.AdditionalDetails})
		}
	}
	return rows
}

// RenderDefault writes a Snapshot in the default human-oriented format:
// the command's own buffered stdout to w and stderr to errW verbatim, then,
// for a successful snapshot with a message or data, a status table printed
// to errW through output.Printer. A failed snapshot gets an error line and
// its additional details on errW instead of the table.
func RenderDefault(w io.Writer, errW io.Writer, snap *Snapshot) error {
	if snap.Stdout != "" {
		if _, err := io.WriteString(w, snap.Stdout); err != nil {
			return err
		}
	}
	if snap.Stderr != "" {
		if _, err := io.WriteString(errW, snap.Stderr); err != nil {
			return err
		}
	}

	printer := output.NewPrinter(errW, output.FormatTable, false)
	if !snap.Success {
		printer.Error(fmt.Sprintf("error: %s", snap.Error.Msg))
		if snap.Error.AdditionalDetails != "" {
			printer.Println(snap.Error.AdditionalDetails)
		}
		return nil
	}
	if snap.Message == "" && snap.Data == nil {
		return nil
	}
	return printer.Print(snapshotTable{snap: snap})
}

// RenderYAML writes a Snapshot as YAML, for hosts that prefer it to JSON.
func RenderYAML(w io.Writer, snap *Snapshot) error {
	return output.PrintYAML(w, snap)
}
