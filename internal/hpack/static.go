package hpack

// STATIC_TABLE_SIZE is the number of entries in the RFC 7541 Appendix A
// static table. Dynamic table wire indices start right after it.
const STATIC_TABLE_SIZE = 61

// staticTable holds the Appendix A entries, 1-based like the wire indices.
// Index 0 is unused.
var staticTable = [STATIC_TABLE_SIZE + 1]HeaderField{
	1:  {":authority", ""},
	2:  {":method", "GET"},
	3:  {":method", "POST"},
	4:  {":path", "/"},
	5:  {":path", "/index.html"},
	6:  {":scheme", "http"},
	7:  {":scheme", "https"},
	8:  {":status", "200"},
	9:  {":status", "204"},
	10: {":status", "206"},
	11: {":status", "304"},
	12: {":status", "400"},
	13: {":status", "404"},
	14: {":status", "500"},
	15: {"accept-charset", ""},
	16: {"accept-encoding", "gzip, deflate"},
	17: {"accept-language", ""},
	18: {"accept-ranges", ""},
	19: {"accept", ""},
	20: {"access-control-allow-origin", ""},
	21: {"age", ""},
	22: {"allow", ""},
	23: {"authorization", ""},
	24: {"cache-control", ""},
	25: {"content-disposition", ""},
	26: {"content-encoding", ""},
	27: {"content-language", ""},
	28: {"content-length", ""},
	29: {"content-location", ""},
	30: {"content-range", ""},
	31: {"content-type", ""},
	32: {"cookie", ""},
	33: {"date", ""},
	34: {"etag", ""},
	35: {"expect", ""},
	36: {"expires", ""},
	37: {"from", ""},
	38: {"host", ""},
	39: {"if-match", ""},
	40: {"if-modified-since", ""},
	41: {"if-none-match", ""},
	42: {"if-range", ""},
	43: {"if-unmodified-since", ""},
	44: {"last-modified", ""},
	45: {"link", ""},
	46: {"location", ""},
	47: {"max-forwards", ""},
	48: {"proxy-authenticate", ""},
	49: {"proxy-authorization", ""},
	50: {"range", ""},
	51: {"referer", ""},
	52: {"refresh", ""},
	53: {"retry-after", ""},
	54: {"server", ""},
	55: {"set-cookie", ""},
	56: {"strict-transport-security", ""},
	57: {"transfer-encoding", ""},
	58: {"user-agent", ""},
	59: {"vary", ""},
	60: {"via", ""},
	61: {"www-authenticate", ""},
}

// KnownHeader tags response headers whose name has a static table entry, so
// producers can hand the encoder a name index without a lookup.
type KnownHeader int

const (
	KnownNone KnownHeader = iota
	KnownAcceptRanges
	KnownAccessControlAllowOrigin
	KnownAge
	KnownAllow
	KnownCacheControl
	KnownContentDisposition
	KnownContentEncoding
	KnownContentLanguage
	KnownContentLength
	KnownContentRange
	KnownContentType
	KnownDate
	KnownETag
	KnownExpires
	KnownLastModified
	KnownLink
	KnownLocation
	KnownRetryAfter
	KnownServer
	KnownSetCookie
	KnownStrictTransportSecurity
	KnownVary
	KnownVia
	KnownWWWAuthenticate
)

var knownStaticIndex = [...]int{
	KnownNone:                     0,
	KnownAcceptRanges:             18,
	KnownAccessControlAllowOrigin: 20,
	KnownAge:                      21,
	KnownAllow:                    22,
	KnownCacheControl:             24,
	KnownContentDisposition:       25,
	KnownContentEncoding:          26,
	KnownContentLanguage:          27,
	KnownContentLength:            28,
	KnownContentRange:             30,
	KnownContentType:              31,
	KnownDate:                     33,
	KnownETag:                     34,
	KnownExpires:                  36,
	KnownLastModified:             44,
	KnownLink:                     45,
	KnownLocation:                 46,
	KnownRetryAfter:               53,
	KnownServer:                   54,
	KnownSetCookie:                55,
	KnownStrictTransportSecurity:  56,
	KnownVary:                     59,
	KnownVia:                      60,
	KnownWWWAuthenticate:          61,
}

// StaticIndex returns the static table index of the tagged name, or 0 for
// KnownNone.
func (k KnownHeader) StaticIndex() int {
	return knownStaticIndex[k]
}

var knownByName = func() map[string]KnownHeader {
	byName := make(map[string]KnownHeader, len(knownStaticIndex))
	for known, index := range knownStaticIndex {
		if index != 0 {
			byName[staticTable[index].Name] = KnownHeader(known)
		}
	}
	return byName
}()

func KnownHeaderByName(name string) KnownHeader {
	return knownByName[name]
}

// statusStaticIndex maps the status codes that have a full (name, value)
// static table entry. Other codes go through the literal path with
// statusNameIndex as the name reference.
var statusStaticIndex = map[int]int{
	200: 8,
	204: 9,
	206: 10,
	304: 11,
	400: 12,
	404: 13,
	500: 14,
}

const statusNameIndex = 8
