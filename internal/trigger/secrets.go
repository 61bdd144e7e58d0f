package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretScheme marks a header value that is read from Secrets Manager.
// "secret://<id>" uses the whole secret string; "secret://<id>#<key>" reads
// one key of a JSON secret.
const SecretScheme = "secret://"

// SecretsAPI is the subset of the Secrets Manager client used by the trigger package.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ResolveSecret fetches a secret reference of the form "<id>" or "<id>#<key>".
func ResolveSecret(ctx context.Context, client SecretsAPI, ref string) (string, error) {
	id, key, _ := strings.Cut(ref, "#")
	if id == "" {
		return "", fmt.Errorf("secret reference %q has no id", ref)
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &id})
	if err != nil {
		return "", fmt.Errorf("GetSecretValue %s: %w", id, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", id)
	}
	if key == "" {
		return *out.SecretString, nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(*out.SecretString), &fields); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", id, err)
	}
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("secret %s has no key %q", id, key)
	}
	return fmt.Sprint(v), nil
}

// resolveSecret expands a header value: secret references go to Secrets
// Manager, everything else through os.ExpandEnv.
func (r *Runner) resolveSecret(ctx context.Context, value string) (string, error) {
	ref, ok := strings.CutPrefix(value, SecretScheme)
	if !ok {
		return os.ExpandEnv(value), nil
	}
	client, err := r.getSecretsClient()
	if err != nil {
		return "", err
	}
	return ResolveSecret(ctx, client, ref)
}
