package virt

import "os"

// SerialConsole attaches a virtio console to the guest, backed by a pair
// of host file handles. The example launcher wires the process's stdin
// and stdout here so the guest console appears on the terminal.
type SerialConsole struct {
	reader *os.File
	writer *os.File
}

// NewSerialConsole creates a console device. The guest reads its input
// from reader and writes its output to writer.
func NewSerialConsole(reader, writer *os.File) *SerialConsole {
	return &SerialConsole{reader: reader, writer: writer}
}

// Reader returns the file the guest reads input from.
func (c *SerialConsole) Reader() *os.File { return c.reader }

// Writer returns the file the guest writes output to.
func (c *SerialConsole) Writer() *os.File { return c.writer }
