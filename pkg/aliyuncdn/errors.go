package aliyuncdn

import (
	"github.com/alibabacloud-go/tea/tea"

	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// operationError rewraps err as an OperationError on node when it carries a
// human-readable message. Errors without one are returned unchanged.
func operationError(node workflow.Node, err error) error {
	msg := errorMessage(err)
	if msg == "" {
		return err
	}
	return workflow.NewOperationError(node, msg, err)
}

// errorMessage returns the human-readable message of err.
//
// Vendor SDK errors expose their message as a field; the formatted Error()
// of an SDK error is a multi-line dump and is not used.
func errorMessage(err error) string {
	if sdkErr, ok := aliyun.SDKError(err); ok {
		return tea.StringValue(sdkErr.Message)
	}
	return err.Error()
}
