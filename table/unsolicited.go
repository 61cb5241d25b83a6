package table

import "github.com/ndn-go/fw/defn"

// UnsolicitedDataPolicy decides whether Data with no matching PIT entry
// should still be cached.
type UnsolicitedDataPolicy interface {
	Decide(ingress defn.FaceId) bool
}

// DefaultUnsolicitedDataPolicy caches unsolicited Data unless it arrived
// from the content-store-origin marker face, matching the original's
// default ("cache everything except from the content store itself").
type DefaultUnsolicitedDataPolicy struct{}

// Decide implements UnsolicitedDataPolicy.
func (DefaultUnsolicitedDataPolicy) Decide(ingress defn.FaceId) bool {
	return ingress != defn.FaceIdContentStore
}

// DropAllUnsolicitedDataPolicy never caches unsolicited Data.
type DropAllUnsolicitedDataPolicy struct{}

// Decide implements UnsolicitedDataPolicy.
func (DropAllUnsolicitedDataPolicy) Decide(defn.FaceId) bool { return false }
