// Package provider defines vendor-neutral abstractions for cloud CDN
// operations.
//
// Providers wrap a vendor SDK. Transport, request signing, retries and
// timeouts belong to the SDK - providers do not add their own. What the
// provider layer adds is a stable error taxonomy (see errors.go) so callers
// can classify failures without depending on vendor error types.
package provider

// ProviderType identifies a cloud CDN provider.
type ProviderType string

const (
	// ProviderAliyunCDN represents Alibaba Cloud CDN (API version 2018-05-10).
	ProviderAliyunCDN ProviderType = "aliyun-cdn"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}

// ObjectType is the kind of a cache refresh target.
type ObjectType string

const (
	// ObjectFile refreshes individual file URLs.
	ObjectFile ObjectType = "File"

	// ObjectDirectory refreshes everything under a directory prefix.
	ObjectDirectory ObjectType = "Directory"
)

// Valid reports whether t is a known object type.
func (t ObjectType) Valid() bool {
	switch t {
	case ObjectFile, ObjectDirectory:
		return true
	}
	return false
}

// String returns the wire value of the object type.
func (t ObjectType) String() string {
	return string(t)
}
