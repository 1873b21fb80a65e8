package credentials

import (
	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// AliyunAPI builds aliyunApi credentials from an access key pair.
func AliyunAPI(accessKeyID, accessKeySecret string) workflow.Credentials {
	return workflow.Credentials{
		aliyun.FieldAccessKeyID:     accessKeyID,
		aliyun.FieldAccessKeySecret: accessKeySecret,
	}
}

// StaticAliyun returns a store holding aliyunApi credentials when both
// keys are set, and an empty store otherwise.
func StaticAliyun(accessKeyID, accessKeySecret string) Static {
	if accessKeyID == "" || accessKeySecret == "" {
		return Static{}
	}
	return Static{aliyun.CredentialType: AliyunAPI(accessKeyID, accessKeySecret)}
}
