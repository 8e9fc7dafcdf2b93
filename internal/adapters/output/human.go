package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mikey-austin/mtogo/internal/core"
	"github.com/mikey-austin/mtogo/pkg/spark"
	"github.com/pterm/pterm"
)

// HumanPrinter prints human-readable output to Out, or stdout.
type HumanPrinter struct {
	Out io.Writer
	// Now anchors relative times. Defaults to time.Now.
	Now func() time.Time
}

// Print renders human output.
func (p HumanPrinter) Print(v any) error {
	out := writerOrStdout(p.Out)
	switch data := v.(type) {
	case core.DevicesResult:
		return p.printDevices(out, data)
	case core.ResponseResult:
		return printPayload(out, data.Payload)
	case core.RawResult:
		return printRaw(out, data)
	default:
		_, err := fmt.Fprintln(out, "ok")
		return err
	}
}

func (p HumanPrinter) printDevices(out io.Writer, result core.DevicesResult) error {
	if len(result.Devices) == 0 {
		_, err := fmt.Fprintln(out, "no devices online")
		return err
	}
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	data := pterm.TableData{{"NAME", "DEVICE_ID", "VERSION", "SEEN"}}
	for _, device := range result.Devices {
		seen := ""
		if device.TS > 0 {
			seen = humanize.RelTime(time.Unix(device.TS, 0), now, "ago", "from now")
		}
		data = append(data, []string{device.Name, device.DeviceID, device.Version, seen})
	}
	return renderTable(out, data)
}

func printPayload(out io.Writer, payload spark.Payload) error {
	var err error
	switch data := payload.(type) {
	case spark.Title:
		_, err = fmt.Fprintln(out, data.Title)
	case spark.PlayState:
		state := "playing"
		if data.Paused {
			state = "paused"
		}
		_, err = fmt.Fprintln(out, state)
	case spark.Volume:
		_, err = fmt.Fprintf(out, "vol %d%%\n", int(data.Volume+0.5))
	case spark.VersionInfo:
		_, err = fmt.Fprintln(out, data.Version)
	case spark.QueueSummary:
		_, err = fmt.Fprintf(out, "queued at %d (added at %d, current %d)\n", data.MovedTo, data.From, data.Current)
	case spark.CurrentSong:
		err = printCurrent(out, data)
	case spark.NowPlaying:
		err = printNow(out, data)
	default:
		_, err = fmt.Fprintln(out, "ok")
	}
	return err
}

func printCurrent(out io.Writer, song spark.CurrentSong) error {
	status := "paused"
	if song.Playing {
		status = "playing"
	}
	position := formatDuration(time.Duration(song.Duration))
	if song.PlaybackTime != nil {
		position = formatDuration(time.Duration(*song.PlaybackTime)) + " / " + position
	}
	if song.Progress != nil {
		position += fmt.Sprintf(" (%.0f%%)", *song.Progress)
	}
	line := fmt.Sprintf("#%d  [%s]  %s  %s  vol %d%%", song.Index, status, song.Title, position, int(song.Volume+0.5))
	if _, err := fmt.Fprintln(out, line); err != nil {
		return err
	}
	if len(song.Categories) > 0 {
		if _, err := fmt.Fprintf(out, "categories: %s\n", strings.Join(song.Categories, ", ")); err != nil {
			return err
		}
	}
	if song.Next != nil {
		if _, err := fmt.Fprintf(out, "next: %s\n", *song.Next); err != nil {
			return err
		}
	}
	return nil
}

// printNow lists history oldest first, then the current and upcoming items.
func printNow(out io.Writer, now spark.NowPlaying) error {
	data := pterm.TableData{{"", "TITLE"}}
	for i := len(now.Before) - 1; i >= 0; i-- {
		data = append(data, []string{fmt.Sprintf("-%d", i+1), now.Before[i]})
	}
	data = append(data, []string{">", now.Current})
	for i, title := range now.After {
		data = append(data, []string{fmt.Sprintf("+%d", i+1), title})
	}
	return renderTable(out, data)
}

func printRaw(out io.Writer, result core.RawResult) error {
	payload, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(payload))
	return err
}

func renderTable(out io.Writer, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, table)
	return err
}

func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	if total < 3600 {
		return fmt.Sprintf("%d:%02d", total/60, total%60)
	}
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
