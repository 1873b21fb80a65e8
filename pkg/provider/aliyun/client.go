package aliyun

import (
	cdn "github.com/alibabacloud-go/cdn-20180510/v5/client"
	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	"github.com/alibabacloud-go/tea/tea"
	util "github.com/alibabacloud-go/tea-utils/v2/service"

	"github.com/3leaps/nimbuscdn/pkg/provider"
)

// CDNClient is the slice of the CDN SDK client the node dispatches through.
//
// *cdn.Client satisfies it; tests substitute a recording fake.
type CDNClient interface {
	RefreshObjectCachesWithOptions(request *cdn.RefreshObjectCachesRequest, runtime *util.RuntimeOptions) (*cdn.RefreshObjectCachesResponse, error)
}

// ClientFactory returns a dispatch-capable client for the given config.
type ClientFactory func(cfg Config) (CDNClient, error)

// Ensure the SDK client implements CDNClient.
var _ CDNClient = (*cdn.Client)(nil)

// NewClient creates an SDK-backed CDN client.
//
// The client is bound to a fixed endpoint, so no region resolution happens.
func NewClient(cfg Config) (CDNClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := cdn.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
		Endpoint:        tea.String(cfg.ResolvedEndpoint()),
	})
	if err != nil {
		return nil, &provider.ProviderError{
			Op:       "NewClient",
			Provider: provider.ProviderAliyunCDN,
			Err:      err,
		}
	}
	return client, nil
}

// DefaultRuntimeOptions returns runtime options that leave the SDK's own
// timeout and retry defaults in place.
func DefaultRuntimeOptions() *util.RuntimeOptions {
	return &util.RuntimeOptions{}
}
