package cloud

import (
	"encoding/json"

	apierrors "github.com/systmms/apivault/internal/errors"
)

// ParseCredential decodes a provider's JSON credential
func ParseCredential(name ProviderName, raw json.RawMessage) (Credential, error) {
	if len(raw) == 0 {
		return nil, apierrors.InvalidArgument("credential for %s is missing", name)
	}

	switch name {
	case AWS:
		var cred AWSTemporaryCredential
		if err := json.Unmarshal(raw, &cred); err != nil {
			return nil, apierrors.InvalidArgument("aws credential is not valid JSON")
		}
		if cred.Type == "" {
			cred.Type = AWSTemporaryCredentialType
		}
		if cred.Type != AWSTemporaryCredentialType {
			return nil, apierrors.InvalidArgument("unsupported aws credential type %q", cred.Type)
		}
		if cred.AccessKeyID == "" || cred.SecretAccessKey == "" {
			return nil, apierrors.InvalidArgument("aws credential needs accessKeyId and secretAccessKey")
		}
		return cred, nil
	default:
		return nil, apierrors.UnknownProvider(string(name))
	}
}
