package aliyuncdn

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	cdn "github.com/alibabacloud-go/cdn-20180510/v5/client"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuscdn/pkg/provider"
	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// RefreshParams are the resolved parameters of refreshObjectCaches.
//
// Pointer fields distinguish "not provided" (nil) from a provided zero
// value: Force=false and OwnerID=0 are both forwarded.
type RefreshParams struct {
	// ObjectPath is a newline-delimited list of URLs or directories.
	ObjectPath string

	// ObjectType is File or Directory. Passed through unvalidated.
	ObjectType provider.ObjectType

	Force         *bool
	SecurityToken string
	OwnerID       *int64
}

// additionalFields mirrors the "additionalFields" collection.
type additionalFields struct {
	Force         *bool  `mapstructure:"force"`
	SecurityToken string `mapstructure:"securityToken"`
	OwnerID       *int64 `mapstructure:"ownerId"`
}

// readRefreshParams resolves refreshObjectCaches parameters for item 0.
func readRefreshParams(fn workflow.ExecuteFunctions) (RefreshParams, error) {
	objectPath, err := workflow.StringParameter(fn, "objectPath", 0, nil)
	if err != nil {
		return RefreshParams{}, err
	}

	objectType, err := workflow.StringParameter(fn, "objectType", 0, provider.ObjectFile.String())
	if err != nil {
		return RefreshParams{}, err
	}

	raw, err := fn.GetNodeParameter("additionalFields", 0, map[string]any{})
	if err != nil {
		return RefreshParams{}, err
	}

	var fields additionalFields
	if err := decodeAdditionalFields(raw, &fields); err != nil {
		return RefreshParams{}, err
	}

	return RefreshParams{
		ObjectPath:    objectPath,
		ObjectType:    provider.ObjectType(objectType),
		Force:         fields.Force,
		SecurityToken: fields.SecurityToken,
		OwnerID:       fields.OwnerID,
	}, nil
}

func decodeAdditionalFields(raw any, out *additionalFields) error {
	if raw == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       rejectFractionalInt,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return &workflow.ParameterError{Name: "additionalFields", Err: err}
	}
	return nil
}

// rejectFractionalInt stops weak decoding from truncating 1.9 into 1 for
// integer fields such as ownerId.
func rejectFractionalInt(_ reflect.Type, to reflect.Type, data any) (any, error) {
	for to.Kind() == reflect.Ptr {
		to = to.Elem()
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return data, nil
	}

	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return data, nil
		}
		parsed, err := v.Float64()
		if err != nil {
			return data, nil
		}
		f = parsed
	default:
		return data, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return nil, fmt.Errorf("expected an integer, got %v", data)
	}
	return data, nil
}

// BuildRequest constructs the vendor request. Optional fields are set only
// when provided; an empty SecurityToken counts as not provided.
func BuildRequest(p RefreshParams) *cdn.RefreshObjectCachesRequest {
	req := &cdn.RefreshObjectCachesRequest{
		ObjectPath: tea.String(p.ObjectPath),
		ObjectType: tea.String(p.ObjectType.String()),
	}

	if p.Force != nil {
		req.Force = tea.Bool(*p.Force)
	}

	if p.SecurityToken != "" {
		req.SecurityToken = tea.String(p.SecurityToken)
	}

	if p.OwnerID != nil {
		req.OwnerId = tea.Int64(*p.OwnerID)
	}

	return req
}

func (n *Node) refreshObjectCaches(fn workflow.ExecuteFunctions, cfg aliyun.Config) ([]workflow.ExecutionData, error) {
	params, err := readRefreshParams(fn)
	if err != nil {
		return nil, err
	}

	request := BuildRequest(params)

	client, err := n.newClient(cfg)
	if err != nil {
		return nil, err
	}

	fn.Logger().Debug("Dispatching RefreshObjectCaches",
		zap.String("node", fn.GetNode().Name),
		zap.String("endpoint", cfg.ResolvedEndpoint()),
		zap.String("object_type", params.ObjectType.String()),
		zap.Bool("force_set", params.Force != nil),
		zap.Bool("owner_id_set", params.OwnerID != nil))

	response, err := client.RefreshObjectCachesWithOptions(request, aliyun.DefaultRuntimeOptions())
	if err != nil {
		return nil, err
	}

	body, err := responseBody(response)
	if err != nil {
		return nil, err
	}
	return []workflow.ExecutionData{{JSON: body}}, nil
}

// responseBody converts the vendor response body into a JSON object.
// A missing body becomes an empty object.
func responseBody(response *cdn.RefreshObjectCachesResponse) (map[string]any, error) {
	if response == nil || response.Body == nil {
		return map[string]any{}, nil
	}

	raw, err := json.Marshal(response.Body)
	if err != nil {
		return nil, fmt.Errorf("encode response body: %w", err)
	}

	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return body, nil
}
