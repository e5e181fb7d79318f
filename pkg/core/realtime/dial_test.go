package realtime

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/prestolabs/presto/pkg/core"
)

type staticCredential struct {
	token  string
	scopes []string
}

func (c *staticCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	c.scopes = opts.Scopes
	return azcore.AccessToken{Token: c.token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func TestOpenAITarget(t *testing.T) {
	target, header, err := openaiTarget(Endpoint{
		Provider: ProviderOpenAI,
		APIKey:   "sk-test",
		Model:    "gpt-realtime",
	})
	if err != nil {
		t.Fatalf("openaiTarget: %v", err)
	}
	if target != "wss://api.openai.com/v1/realtime?model=gpt-realtime" {
		t.Fatalf("target = %q", target)
	}
	if got := header.Get("Authorization"); got != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", got)
	}
	if got := header.Get("OpenAI-Beta"); got != "realtime=v1" {
		t.Fatalf("OpenAI-Beta = %q", got)
	}
}

func TestOpenAITarget_RequiresKeyAndModel(t *testing.T) {
	if _, _, err := openaiTarget(Endpoint{Provider: ProviderOpenAI, Model: "gpt-realtime"}); err == nil {
		t.Fatal("expected error without API key")
	}
	if _, _, err := openaiTarget(Endpoint{Provider: ProviderOpenAI, APIKey: "sk-test"}); err == nil {
		t.Fatal("expected error without model")
	}
}

func TestAzureTarget_APIKey(t *testing.T) {
	target, header, err := azureTarget(context.Background(), Endpoint{
		Provider:        ProviderAzure,
		APIKey:          "azure-key",
		AzureEndpoint:   "https://demo.openai.azure.com/",
		AzureDeployment: "gpt-realtime",
	})
	if err != nil {
		t.Fatalf("azureTarget: %v", err)
	}
	if !strings.HasPrefix(target, "wss://demo.openai.azure.com/openai/realtime?") {
		t.Fatalf("target = %q", target)
	}
	if !strings.Contains(target, "api-version="+DefaultAzureAPIVersion) {
		t.Fatalf("missing default api-version: %q", target)
	}
	if !strings.Contains(target, "deployment=gpt-realtime") {
		t.Fatalf("missing deployment: %q", target)
	}
	if got := header.Get("api-key"); got != "azure-key" {
		t.Fatalf("api-key = %q", got)
	}
	if got := header.Get("Authorization"); got != "" {
		t.Fatalf("unexpected Authorization header %q", got)
	}
}

func TestAzureTarget_EntraCredential(t *testing.T) {
	cred := &staticCredential{token: "entra-token"}
	_, header, err := azureTarget(context.Background(), Endpoint{
		Provider:        ProviderAzure,
		AzureEndpoint:   "wss://demo.openai.azure.com",
		AzureDeployment: "gpt-realtime",
		Credential:      cred,
	})
	if err != nil {
		t.Fatalf("azureTarget: %v", err)
	}
	if got := header.Get("Authorization"); got != "Bearer entra-token" {
		t.Fatalf("Authorization = %q", got)
	}
	if len(cred.scopes) != 1 || cred.scopes[0] != azureTokenScope {
		t.Fatalf("scopes = %v", cred.scopes)
	}
}

func TestAzureTarget_RequiresAuth(t *testing.T) {
	_, _, err := azureTarget(context.Background(), Endpoint{
		Provider:        ProviderAzure,
		AzureEndpoint:   "https://demo.openai.azure.com",
		AzureDeployment: "gpt-realtime",
	})
	if err == nil {
		t.Fatal("expected error without api key or credential")
	}
	if got := core.TypeOf(err); got != core.ErrAuth {
		t.Fatalf("error type = %s, want %s", got, core.ErrAuth)
	}
}

func TestAzureTarget_MissingEndpointIsConnectionError(t *testing.T) {
	_, _, err := azureTarget(context.Background(), Endpoint{Provider: ProviderAzure, AzureDeployment: "gpt-realtime"})
	if err == nil {
		t.Fatal("expected error without endpoint")
	}
	if got := core.TypeOf(err); got != core.ErrConnection {
		t.Fatalf("error type = %s, want %s", got, core.ErrConnection)
	}
}

func TestDialTarget_UnknownProvider(t *testing.T) {
	if _, _, err := dialTarget(context.Background(), Endpoint{Provider: "anthropic"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
