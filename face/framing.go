package face

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/ndn-go/fw/defn"
)

// readFrameStream pulls length-prefixed frames off r until it errors, handing
// each complete frame to onFrame. onFrame returning false stops the loop
// without treating it as an error. onReadErr may suppress a transient read
// error (e.g. ICMP-triggered "connection refused" on a connectionless UDP
// socket) by returning true, matching the retry behavior the source's
// ReadTlvStream gives connectionless transports.
//
// The 4-byte length prefix here stands in for real NDN TLV framing, which is
// out of scope (spec.md §1/§6: Decode/Encode operate on bytes already
// delineated by the wire codec). A production transport would frame on TLV
// Type-Length boundaries instead of this prefix.
func readFrameStream(r io.Reader, onFrame func([]byte) bool, onReadErr func(error) bool) error {
	var lenBuf [4]byte
	buf := make([]byte, 0, defn.FaceIdFirst) // arbitrary starter capacity
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if onReadErr != nil && onReadErr(err) {
				continue
			}
			return err
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if cap(buf) < int(n) {
			buf = make([]byte, n)
		}
		buf = buf[:n]
		if _, err := io.ReadFull(r, buf); err != nil {
			if onReadErr != nil && onReadErr(err) {
				continue
			}
			return err
		}
		if !onFrame(buf) {
			return nil
		}
	}
}

// writeFrame prefixes pkt with its length, the counterpart to readFrameStream.
func writeFrame(w io.Writer, pkt []byte) (int, error) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(pkt)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return 0, err
	}
	return w.Write(pkt)
}
