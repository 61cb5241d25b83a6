package face

import (
	"bytes"
	"encoding/gob"

	"github.com/ndn-go/fw/ndn"
)

// encodeLp and decodeLp stand in for the NDNLP TLV codec, which spec.md §1
// and §6 place outside this system's scope ("Decode/Encode operate on an
// already-parsed representation, not raw octets"). No pack library targets
// NDN's TLV wire format, so this package falls back to gob purely to get a
// byte representation transports can frame and transmit; it is not meant to
// interoperate with any other NDN implementation.
func encodeLp(lp ndn.LpPacket) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(lp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeLp(b []byte) (ndn.LpPacket, error) {
	var lp ndn.LpPacket
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&lp)
	return lp, err
}
