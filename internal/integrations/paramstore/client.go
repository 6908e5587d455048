package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// maxBatch is the GetParameters limit per call.
const maxBatch = 10

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameters(ctx context.Context, in *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// Resolver is the interface config loading depends on.
type Resolver interface {
	Resolve(ctx context.Context, prefix string, keys []string) (map[string]string, error)
}

// Client wraps an AWS SSM API for secret retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// Resolve fetches "<prefix>/<key>" for every key and returns the values that
// exist, keyed by key. Parameters that do not exist are omitted. Values
// stored as {"token":"..."} are unwrapped.
func (c *Client) Resolve(ctx context.Context, prefix string, keys []string) (map[string]string, error) {
	if c.api == nil {
		return nil, errors.New("paramstore: client not initialized")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("paramstore: prefix is required")
	}

	byName := make(map[string]string, len(keys))
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.Trim(strings.TrimSpace(k), "/")
		if k == "" {
			continue
		}
		name := prefix + "/" + k
		byName[name] = k
		names = append(names, name)
	}

	out := make(map[string]string, len(names))
	withDecryption := true
	for start := 0; start < len(names); start += maxBatch {
		end := min(start+maxBatch, len(names))
		res, err := c.api.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          names[start:end],
			WithDecryption: &withDecryption,
		})
		if err != nil {
			return nil, fmt.Errorf("paramstore: get parameters under %q: %w", prefix, err)
		}
		if res == nil {
			continue
		}
		for _, p := range res.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			key, ok := byName[*p.Name]
			if !ok {
				continue
			}
			out[key] = unwrapToken(*p.Value)
		}
	}
	return out, nil
}

type tokenPayload struct {
	Token string `json:"token"`
}

func unwrapToken(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(trimmed), &tp); err != nil || tp.Token == "" {
		return trimmed
	}
	return tp.Token
}
