// Package secrets resolves configuration values that point at AWS SSM
// Parameter Store instead of carrying the secret inline.
//
// A value of the form "ssm:/pasaeventos/prod/mysql-password" is replaced
// with the decrypted parameter; any other value is left as is.
package secrets

import (
	"context"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

const Prefix = "ssm:"

// ParameterGetter is the part of the SSM client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type Resolver struct {
	client ParameterGetter
}

func NewResolver(client ParameterGetter) *Resolver {
	return &Resolver{client: client}
}

// NewSSMResolver builds a resolver on the default AWS credential chain.
func NewSSMResolver(ctx context.Context) (*Resolver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "load AWS config")
	}
	return NewResolver(ssm.NewFromConfig(awsCfg)), nil
}

// Pending reports whether any ref still holds an ssm: reference.
func Pending(refs map[string]*string) bool {
	for _, p := range refs {
		if p != nil && strings.HasPrefix(*p, Prefix) {
			return true
		}
	}
	return false
}

// Resolve replaces every ssm: reference in refs in place. It stops at the
// first failure; keys are visited in sorted order so that failure is
// deterministic. Error messages name the key and parameter, never a value.
func (r *Resolver) Resolve(ctx context.Context, refs map[string]*string) error {
	keys := make([]string, 0, len(refs))
	for k := range refs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		p := refs[key]
		if p == nil || !strings.HasPrefix(*p, Prefix) {
			continue
		}
		name := strings.TrimPrefix(*p, Prefix)
		if name == "" {
			return xerrors.Newf("%s: empty SSM parameter name", key)
		}
		val, err := r.get(ctx, name)
		if err != nil {
			return xerrors.Wrapf(err, "%s", key)
		}
		*p = val
	}
	return nil
}

func (r *Resolver) get(ctx context.Context, name string) (string, error) {
	if r == nil || r.client == nil {
		return "", xerrors.New("SSM client not configured")
	}
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", name)
	}
	return strings.TrimSpace(*out.Parameter.Value), nil
}
