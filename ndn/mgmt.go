package ndn

// Control response status codes, spec.md §6/§7 ("HTTP-ish").
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusUnauthorized        = 403
	StatusNotFound            = 404
	StatusFaceNotFound        = 410
	StatusUnknownVerb         = 501
	StatusUnsupportedStrategy = 504
)

// ControlParameters is the decoded parameter block carried in a management
// command Interest's name, per spec.md §4.10/§6. The real daemon decodes
// this from a TLV block; that codec is out of scope here (§1), so callers
// construct/parse this struct directly from whatever transport the
// management face uses.
type ControlParameters struct {
	Name     Name
	FaceId   *uint64
	Cost     *uint64
	Strategy *StrategyName
	Origin   *RouteOrigin
	Flags    *RouteFlag
	Capacity *uint64
}

// ControlResponse is the body of the Data reply to a management command.
type ControlResponse struct {
	StatusCode int
	StatusText string
	Body       *ControlParameters
}

// RouteFlag are the bit flags on a RIB route registration.
type RouteFlag uint64

const (
	RouteFlagNone         RouteFlag = 0
	RouteFlagChildInherit RouteFlag = 1 << 0
	RouteFlagCapture      RouteFlag = 1 << 1
)

// IsSet reports whether flag is present in flags.
func (flag RouteFlag) IsSet(flags RouteFlag) bool {
	return flag&flags != 0
}

// RouteOrigin identifies who registered a RIB route.
type RouteOrigin uint64

const (
	RouteOriginApp       RouteOrigin = 0
	RouteOriginAutoreg   RouteOrigin = 64
	RouteOriginClient    RouteOrigin = 65
	RouteOriginAutoconf  RouteOrigin = 66
	RouteOriginNLSR      RouteOrigin = 128
	RouteOriginPrefixAnn RouteOrigin = 129
	RouteOriginStatic    RouteOrigin = 255
)
