package ui

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DatagramBox renders a datagram as a hex dump. Used by --verbose.
type DatagramBox struct {
	Title    string
	Data     []byte
	Width    int
	MaxLines int // 0 = unlimited
}

// NewDatagramBox creates a hex dump box for data
func NewDatagramBox(title string, data []byte) *DatagramBox {
	return &DatagramBox{
		Title: title,
		Data:  data,
		Width: GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (d *DatagramBox) SetWidth(width int) *DatagramBox {
	d.Width = width
	return d
}

// SetMaxLines limits the number of dump lines displayed
func (d *DatagramBox) SetMaxLines(max int) *DatagramBox {
	d.MaxLines = max
	return d
}

// Lines returns the dump lines, truncated to MaxLines with a marker line.
func (d *DatagramBox) Lines() []string {
	dump := strings.TrimRight(hex.Dump(d.Data), "\n")
	if dump == "" {
		return []string{"(empty)"}
	}
	lines := strings.Split(dump, "\n")
	if d.MaxLines > 0 && len(lines) > d.MaxLines {
		hidden := len(lines) - d.MaxLines
		lines = append(lines[:d.MaxLines:d.MaxLines], fmt.Sprintf("... %d more lines", hidden))
	}
	return lines
}

// Render returns the styled box
func (d *DatagramBox) Render() string {
	width := clampWidth(d.Width)
	title := DatagramTitleStyle.Render(fmt.Sprintf("%s (%d bytes)", d.Title, len(d.Data)))
	body := DatagramContentStyle.Render(strings.Join(d.Lines(), "\n"))
	return DatagramBoxStyle(width).Render(title + "\n" + body)
}

// String implements fmt.Stringer
func (d *DatagramBox) String() string {
	return d.Render()
}
