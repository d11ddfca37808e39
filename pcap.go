package pcap

import (
	log "github.com/sirupsen/logrus"
)

// Replay copy the frames of r that m accepts to d, returning how many were
// written. A nil Matcher accepts every frame. Frames are passed through without
// copying, one capture buffer at a time.
func Replay(r *Reader, d Dumper, m *Matcher) (int, error) {
	var count, seen int
	err := r.Each(func(v PacketView) error {
		seen++
		if m != nil {
			ok, err := m.Match(v)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		if err := WriteFrame(d, v); err != nil {
			return err
		}
		count++
		return nil
	})
	log.WithFields(log.Fields{
		"read":    seen,
		"written": count,
	}).Debug("replay finished")
	return count, err
}
