package pcap

import (
	"bufio"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Dumper writes frames to persistent storage
type Dumper interface {
	// Write append one frame, CapturedLength bytes of body
	Write(h PacketHeader, body []byte) error
	// Flush push buffered frames to the underlying storage
	Flush() error
	// Close flush and release the storage
	Close() error
	// Tell the current write offset, counting buffered bytes
	Tell() (int64, error)
}

// WriteFrame write an owned or borrowed frame
func WriteFrame(d Dumper, f Frame) error {
	return d.Write(f.Header(), f.BodyView())
}

// countingWriter counts the bytes that have gone through to w
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}

// PcapDumper a Dumper writing the pcap file format
type PcapDumper struct {
	w        *pcapgo.Writer
	buf      *bufio.Writer
	counter  *countingWriter
	closer   io.Closer
	linkType LinkType
	close    sync.Once
	closed   atomic.Bool
}

// NewDumper write a pcap file header for the link type to w. Closing the
// dumper does not close w. gopacket only writes link types up to 255.
func NewDumper(w io.Writer, lt LinkType, snaplen uint32) (*PcapDumper, error) {
	layer, ok := lt.Layers()
	if !ok {
		return nil, &UnsupportedLinkTypeError{Input: lt.String()}
	}
	counter := &countingWriter{w: w}
	buf := bufio.NewWriter(counter)
	pw := pcapgo.NewWriter(buf)
	if err := pw.WriteFileHeader(snaplen, layer); err != nil {
		return nil, errors.Wrap(err, "unable to write pcap file header")
	}
	log.WithFields(log.Fields{
		"linktype": lt.String(),
		"snaplen":  snaplen,
	}).Debug("opened dumper")
	return &PcapDumper{w: pw, buf: buf, counter: counter, linkType: lt}, nil
}

// CreateDumper create or truncate the file at path and write a pcap file header to it
func CreateDumper(path string, lt LinkType, snaplen uint32) (*PcapDumper, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s", path)
	}
	d, err := NewDumper(f, lt, snaplen)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	d.closer = f
	return d, nil
}

func (d *PcapDumper) LinkType() LinkType {
	return d.linkType
}

// Write append a frame. gopacket refuses frames whose captured length is
// greater than their length.
func (d *PcapDumper) Write(h PacketHeader, body []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if uint64(len(body)) < uint64(h.CapturedLength) {
		return errors.Wrapf(ErrShortBody, "captured length %d, got %d bytes", h.CapturedLength, len(body))
	}
	if err := d.w.WritePacket(h.CaptureInfo(), body[:h.CapturedLength]); err != nil {
		return errors.Wrap(err, "unable to write packet")
	}
	return nil
}

func (d *PcapDumper) Flush() error {
	if d.closed.Load() {
		return ErrClosed
	}
	return errors.Wrap(d.buf.Flush(), "unable to flush dumper")
}

func (d *PcapDumper) Tell() (int64, error) {
	if d.closed.Load() {
		return 0, ErrClosed
	}
	return d.counter.n + int64(d.buf.Buffered()), nil
}

// Close flush buffered frames and close the file if the dumper created it.
// Close is idempotent, and uses sync.Once to ensure it only runs once.
func (d *PcapDumper) Close() error {
	var err error
	d.close.Do(func() {
		d.closed.Store(true)
		err = errors.Wrap(d.buf.Flush(), "unable to flush dumper")
		if d.closer != nil {
			if cerr := d.closer.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "unable to close dumper")
			}
		}
		log.WithFields(log.Fields{
			"linktype": d.linkType.String(),
			"offset":   d.counter.n,
		}).Debug("closed dumper")
	})
	return err
}
