package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/gorilla/websocket"

	"github.com/prestolabs/presto/pkg/core"
)

// Provider values accepted by Dial.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// DefaultAzureAPIVersion is used when the endpoint does not pin one.
const DefaultAzureAPIVersion = "2025-04-01-preview"

// azureTokenScope is the Entra scope covering Azure AI services.
const azureTokenScope = "https://cognitiveservices.azure.com/.default"

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second

	// maxFrameBytes bounds a single upstream frame.
	maxFrameBytes = 8 << 20
)

// Conn is a live upstream connection. ReadMessage returns the raw frame so
// the caller can tell a malformed event apart from a dead transport.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteEvent(v any) error
	Close() error
}

// Endpoint describes which upstream to connect to and how to authenticate.
type Endpoint struct {
	// Provider selects the dial strategy, ProviderOpenAI or ProviderAzure.
	Provider string

	// APIKey authenticates the connection. Azure sends it as the api-key
	// header; leave it empty there to authenticate with Credential.
	APIKey string

	// Model names the realtime model on the OpenAI endpoint.
	Model string

	AzureEndpoint   string
	AzureDeployment string
	AzureAPIVersion string

	// Credential mints Entra bearer tokens for keyless Azure access.
	Credential azcore.TokenCredential
}

// Dial opens and authenticates a WebSocket to the configured upstream.
// Failures come back classified: a rejected credential is a core.ErrAuth, an
// unreachable or refusing upstream is a core.ErrConnection.
func Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	target, header, err := dialTarget(ctx, ep)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, core.NewAuthError(fmt.Sprintf("%s upstream rejected credentials (status %d)", ep.Provider, resp.StatusCode))
		}
		if resp != nil {
			return nil, core.NewConnectionError(fmt.Sprintf("dial %s upstream (status %d)", ep.Provider, resp.StatusCode), err)
		}
		return nil, core.NewConnectionError(fmt.Sprintf("dial %s upstream", ep.Provider), err)
	}
	ws.SetReadLimit(maxFrameBytes)
	return &wsConn{ws: ws}, nil
}

func dialTarget(ctx context.Context, ep Endpoint) (string, http.Header, error) {
	switch ep.Provider {
	case ProviderOpenAI:
		return openaiTarget(ep)
	case ProviderAzure:
		return azureTarget(ctx, ep)
	default:
		return "", nil, fmt.Errorf("unknown realtime provider %q", ep.Provider)
	}
}

func openaiTarget(ep Endpoint) (string, http.Header, error) {
	if ep.APIKey == "" {
		return "", nil, core.NewAuthError("openai realtime requires an API key")
	}
	if ep.Model == "" {
		return "", nil, core.NewConnectionError("openai realtime requires a model", nil)
	}

	target := "wss://api.openai.com/v1/realtime?model=" + url.QueryEscape(ep.Model)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+ep.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")
	return target, header, nil
}

func azureTarget(ctx context.Context, ep Endpoint) (string, http.Header, error) {
	if ep.AzureEndpoint == "" {
		return "", nil, core.NewConnectionError("azure realtime requires an endpoint", nil)
	}
	if ep.AzureDeployment == "" {
		return "", nil, core.NewConnectionError("azure realtime requires a deployment", nil)
	}

	host := ep.AzureEndpoint
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "wss://")
	host = strings.TrimSuffix(host, "/")

	apiVersion := ep.AzureAPIVersion
	if apiVersion == "" {
		apiVersion = DefaultAzureAPIVersion
	}

	q := url.Values{}
	q.Set("api-version", apiVersion)
	q.Set("deployment", ep.AzureDeployment)
	target := "wss://" + host + "/openai/realtime?" + q.Encode()

	header := http.Header{}
	switch {
	case ep.APIKey != "":
		header.Set("api-key", ep.APIKey)
	case ep.Credential != nil:
		tok, err := ep.Credential.GetToken(ctx, policy.TokenRequestOptions{
			Scopes: []string{azureTokenScope},
		})
		if err != nil {
			return "", nil, core.NewAuthError(fmt.Sprintf("azure entra token: %v", err))
		}
		header.Set("Authorization", "Bearer "+tok.Token)
	default:
		return "", nil, core.NewAuthError("azure realtime requires an api key or a credential")
	}
	return target, header, nil
}

// wsConn adapts a gorilla connection to Conn. Writes are serialized and
// carry a deadline; reads stay single-consumer by contract.
type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) WriteEvent(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
