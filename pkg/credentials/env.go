package credentials

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// Config keys read by Env.
const (
	KeyAliyunAccessKeyID     = "credentials.aliyun_api.access_key_id"
	KeyAliyunAccessKeySecret = "credentials.aliyun_api.access_key_secret"
)

// Env resolves credentials from configuration and environment variables.
//
// Environment variables, in order of precedence:
//   - NIMBUSCDN_ALIYUN_ACCESS_KEY_ID / NIMBUSCDN_ALIYUN_ACCESS_KEY_SECRET
//   - ALIBABA_CLOUD_ACCESS_KEY_ID / ALIBABA_CLOUD_ACCESS_KEY_SECRET
type Env struct {
	v *viper.Viper
}

// NewEnv creates an env store on top of v. A nil v uses a private viper
// instance that only sees the environment.
func NewEnv(v *viper.Viper) *Env {
	if v == nil {
		v = viper.New()
	}
	_ = v.BindEnv(KeyAliyunAccessKeyID, "NIMBUSCDN_ALIYUN_ACCESS_KEY_ID", "ALIBABA_CLOUD_ACCESS_KEY_ID")
	_ = v.BindEnv(KeyAliyunAccessKeySecret, "NIMBUSCDN_ALIYUN_ACCESS_KEY_SECRET", "ALIBABA_CLOUD_ACCESS_KEY_SECRET")
	return &Env{v: v}
}

// Name implements Store.
func (e *Env) Name() string { return "env" }

// Get implements Store.
func (e *Env) Get(_ context.Context, credentialType string) (workflow.Credentials, error) {
	if credentialType != aliyun.CredentialType {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, credentialType)
	}

	id := e.v.GetString(KeyAliyunAccessKeyID)
	secret := e.v.GetString(KeyAliyunAccessKeySecret)
	if id == "" && secret == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, credentialType)
	}
	return AliyunAPI(id, secret), nil
}

var _ Store = (*Env)(nil)
