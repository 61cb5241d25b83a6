package mgmt

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/ndn"
)

// The management parameter and response blocks ride inside name components
// and Data content. Their TLV codec is external to this system (spec.md
// §1/§6); gob stands in for it here, the same substitution the face
// package's LP codec makes.

// EncodeControlParameters serializes params into the name component a
// command Interest carries; exported for management clients and tests.
func EncodeControlParameters(params *ndn.ControlParameters) ndn.Component {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(params); err != nil {
		return ""
	}
	return ndn.Component(buf.String())
}

func decodeControlParameters(m fmt.Stringer, component ndn.Component) *ndn.ControlParameters {
	var params ndn.ControlParameters
	if err := gob.NewDecoder(bytes.NewReader([]byte(component))).Decode(&params); err != nil {
		core.Log.Warn(m, "Could not decode ControlParameters", "err", err)
		return nil
	}
	return &params
}

func encodeControlResponse(resp ndn.ControlResponse) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(resp); err != nil {
		return nil
	}
	return buf.Bytes()
}

// DecodeControlResponse parses a response Data's content; exported for
// management clients and tests.
func DecodeControlResponse(content []byte) (ndn.ControlResponse, error) {
	var resp ndn.ControlResponse
	err := gob.NewDecoder(bytes.NewReader(content)).Decode(&resp)
	return resp, err
}

// encodeDataset serializes a status-dataset value for segmentation.
func encodeDataset(v any) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil
	}
	return buf.Bytes()
}

// DecodeDataset parses a reassembled status dataset into out (a pointer).
func DecodeDataset(payload []byte, out any) error {
	return gob.NewDecoder(bytes.NewReader(payload)).Decode(out)
}
