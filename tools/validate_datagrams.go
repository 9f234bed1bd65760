//go:build ignore

package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muurk/lanprobe/internal/protocol"
)

// DatagramRecord holds the fields logging.LogDatagram attaches at debug level.
type DatagramRecord struct {
	Direction string `json:"direction"`
	Peer      string `json:"peer"`
	Length    int    `json:"length"`
	HexDump   string `json:"hex_dump"`
}

// Statistics tracks decode results
type Statistics struct {
	TotalFiles     int
	TotalDatagrams int
	Truncated      int
	DecodeSuccess  int
	DecodeFailure  int
	MessageTypes   map[byte]int
	Components     map[string]int
	Directions     map[string]int
	FailedMessages []FailedMessage
}

// FailedMessage stores information about decode failures
type FailedMessage struct {
	File       string
	LineNumber int
	Peer       string
	HexDump    string
	Error      string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_datagrams <directory-or-file>")
		fmt.Println("Example: LANPROBE_LOG_LEVEL=debug LANPROBE_LOG_FORMAT=json lanprobe respond 2> respond.log")
		fmt.Println("         go run tools/validate_datagrams.go respond.log")
		os.Exit(1)
	}

	path := os.Args[1]
	stats := Statistics{
		MessageTypes: make(map[byte]int),
		Components:   make(map[string]int),
		Directions:   make(map[string]int),
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.log"))
		if err != nil || len(files) == 0 {
			fmt.Printf("No .log files found in %s\n", path)
			os.Exit(1)
		}
	}

	fmt.Printf("=== lanprobe Datagram Validator ===\n")
	fmt.Printf("Files to process: %d\n\n", len(files))

	for _, file := range files {
		processFile(file, &stats)
	}

	printStatistics(&stats)
	if stats.DecodeFailure > 0 {
		os.Exit(2)
	}
}

// fieldsOf extracts the datagram fields from a log line. JSON lines
// (LANPROBE_LOG_FORMAT=json) are decoded whole; console lines carry the
// fields as a JSON object after the message.
func fieldsOf(line string) (DatagramRecord, bool) {
	var rec DatagramRecord
	if strings.HasPrefix(line, "{") {
		var entry struct {
			Msg string `json:"msg"`
			DatagramRecord
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Msg != "Datagram" {
			return rec, false
		}
		rec = entry.DatagramRecord
		return rec, rec.HexDump != ""
	}

	i := strings.Index(line, "\t{")
	if i < 0 || !strings.Contains(line, "\tDatagram\t") {
		return rec, false
	}
	if err := json.Unmarshal([]byte(line[i+1:]), &rec); err != nil {
		return rec, false
	}
	return rec, rec.HexDump != ""
}

func processFile(filename string, stats *Statistics) {
	stats.TotalFiles++

	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		rec, ok := fieldsOf(scanner.Text())
		if !ok {
			continue
		}
		stats.TotalDatagrams++
		stats.Directions[rec.Direction]++

		if strings.HasSuffix(rec.HexDump, "...") {
			stats.Truncated++
			continue
		}

		fail := func(format string, args ...any) {
			stats.DecodeFailure++
			stats.FailedMessages = append(stats.FailedMessages, FailedMessage{
				File:       filename,
				LineNumber: lineNum,
				Peer:       rec.Peer,
				HexDump:    rec.HexDump,
				Error:      fmt.Sprintf(format, args...),
			})
		}

		data, err := hex.DecodeString(rec.HexDump)
		if err != nil {
			fail("hex decode error: %v", err)
			continue
		}

		typ, err := protocol.PeekType(data)
		if err != nil {
			fail("frame error: %v", err)
			continue
		}

		var component protocol.ComponentType
		switch typ {
		case protocol.MsgTypeQuery:
			var q protocol.Query
			err = protocol.Decode(data, &q)
			component = q.ComponentType
		case protocol.MsgTypeAnnouncement:
			var a protocol.Announcement
			err = protocol.Decode(data, &a)
			component = a.ComponentType
		default:
			fail("unknown message type 0x%02x", typ)
			continue
		}
		if err != nil {
			fail("body error: %v", err)
			continue
		}

		stats.DecodeSuccess++
		stats.MessageTypes[typ]++
		stats.Components[component.String()]++
	}
	if err := scanner.Err(); err != nil {
		fmt.Printf("Error scanning %s: %v\n", filename, err)
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func printStatistics(stats *Statistics) {
	fmt.Printf("\n========================================\n")
	fmt.Printf("VALIDATION RESULTS\n")
	fmt.Printf("========================================\n\n")

	fmt.Printf("Files Processed:    %d\n", stats.TotalFiles)
	fmt.Printf("Datagrams Logged:   %d\n", stats.TotalDatagrams)
	fmt.Printf("Truncated Dumps:    %d\n", stats.Truncated)
	fmt.Printf("Decode Success:     %d (%.2f%%)\n", stats.DecodeSuccess, percent(stats.DecodeSuccess, stats.TotalDatagrams))
	fmt.Printf("Decode Failure:     %d (%.2f%%)\n", stats.DecodeFailure, percent(stats.DecodeFailure, stats.TotalDatagrams))

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("DIRECTIONS\n")
	fmt.Printf("----------------------------------------\n")
	for _, dir := range []string{"send", "recv"} {
		fmt.Printf("%-12s %d\n", dir, stats.Directions[dir])
	}

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("MESSAGE TYPE DISTRIBUTION\n")
	fmt.Printf("----------------------------------------\n")
	for _, typ := range []byte{protocol.MsgTypeQuery, protocol.MsgTypeAnnouncement} {
		name := "Query"
		if typ == protocol.MsgTypeAnnouncement {
			name = "Announcement"
		}
		fmt.Printf("Type 0x%02x (%s): %d\n", typ, name, stats.MessageTypes[typ])
	}

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("COMPONENTS\n")
	fmt.Printf("----------------------------------------\n")
	names := make([]string, 0, len(stats.Components))
	for name := range stats.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-12s %d\n", name, stats.Components[name])
	}

	if len(stats.FailedMessages) > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("DECODE FAILURES (%d total)\n", len(stats.FailedMessages))
		fmt.Printf("----------------------------------------\n")

		maxShow := 10
		if len(stats.FailedMessages) > maxShow {
			fmt.Printf("(Showing first %d of %d failures)\n", maxShow, len(stats.FailedMessages))
		}
		for i, failed := range stats.FailedMessages {
			if i >= maxShow {
				break
			}
			fmt.Printf("\nFailure #%d:\n", i+1)
			fmt.Printf("  File: %s (line %d, peer %s)\n", failed.File, failed.LineNumber, failed.Peer)
			fmt.Printf("  Error: %s\n", failed.Error)
			preview := failed.HexDump
			if len(preview) > 80 {
				preview = preview[:80] + "..."
			}
			fmt.Printf("  Payload: %s\n", preview)
		}
	}

	fmt.Printf("\n========================================\n")
	if stats.DecodeFailure == 0 {
		fmt.Printf("SUCCESS: every logged datagram decoded\n")
	} else {
		fmt.Printf("ISSUES FOUND: %d datagrams failed to decode\n", stats.DecodeFailure)
	}
	fmt.Printf("========================================\n")
}
