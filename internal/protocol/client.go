package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tether/internal/api"
	"tether/pkg/logging"

	"github.com/cenkalti/backoff/v5"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// TransportType defines the transport type for MCP connections
type TransportType string

const (
	TransportSSE            TransportType = "sse"
	TransportStreamableHTTP TransportType = "streamable-http"
)

const (
	defaultCallTimeout = 30 * time.Second
	defaultMaxAttempts = 3
)

// rpcClient is the subset of the mcp-go client surface the protocol client
// uses. Narrowed for test fakes.
type rpcClient interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	ListPrompts(ctx context.Context, req mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	ListResources(ctx context.Context, req mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	GetPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	ReadResource(ctx context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)
	Close() error
}

// ChangeHandler is invoked by the notification listener after the capability
// cache has been refreshed because of a server-side change. It runs on the
// listener goroutine; implementations must not block on protocol calls.
type ChangeHandler func(snapshot CapabilitySnapshot)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxAttempts bounds the transport retry budget per call.
func WithMaxAttempts(n uint) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// WithChangeHandler registers the capability-change handler.
func WithChangeHandler(h ChangeHandler) Option {
	return func(c *Client) { c.onChange = h }
}

// WithSampling registers a sampler for server-initiated sampling requests.
// The handler is advertised to the server during the protocol handshake.
func WithSampling(s Sampler, throttle *SamplingThrottle) Option {
	return func(c *Client) {
		c.sampler = s
		c.throttle = throttle
	}
}

// Client speaks the MCP protocol on behalf of one session. It owns the
// session's capability cache and the notification listener that keeps it
// fresh. Create with New, connect with Connect, release with Close.
type Client struct {
	endpoint    string
	transport   TransportType
	timeout     time.Duration
	maxAttempts uint

	client        rpcClient
	notifications chan mcp.JSONRPCNotification
	cache         *capabilityCache
	onChange      ChangeHandler

	sampler  Sampler
	throttle *SamplingThrottle

	txMu sync.Mutex
	tx   *Transaction

	stop    context.CancelFunc
	stopped chan struct{}
}

// New creates a protocol client for the given endpoint. The client is not
// connected until Connect is called.
func New(endpoint string, transportType TransportType, opts ...Option) *Client {
	c := &Client{
		endpoint:      endpoint,
		transport:     transportType,
		timeout:       defaultCallTimeout,
		maxAttempts:   defaultMaxAttempts,
		notifications: make(chan mcp.JSONRPCNotification, 10),
		cache:         &capabilityCache{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the transport, performs the protocol handshake, and
// starts the notification listener. The capability cache stays empty until
// first use (lazy population) or the first change notification.
func (c *Client) Connect(ctx context.Context) error {
	mcpClient, err := c.createAndConnectClient(ctx)
	if err != nil {
		return err
	}
	c.client = mcpClient

	if err := c.initialize(ctx); err != nil {
		mcpClient.Close()
		return fmt.Errorf("initialization failed: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	c.stopped = make(chan struct{})
	go c.listen(listenCtx)

	return nil
}

// createAndConnectClient creates and starts an mcp-go client for the
// configured transport, wiring notifications onto c.notifications.
func (c *Client) createAndConnectClient(ctx context.Context) (*client.Client, error) {
	var (
		trans transport.Interface
		err   error
	)
	switch c.transport {
	case TransportSSE:
		trans, err = transport.NewSSE(c.endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSE transport: %w", err)
		}
	case TransportStreamableHTTP:
		trans, err = transport.NewStreamableHTTP(c.endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create streamable-http transport: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", c.transport)
	}

	var clientOpts []client.ClientOption
	if c.sampler != nil {
		clientOpts = append(clientOpts, client.WithSamplingHandler(newSamplingHandler(c.sampler, c.throttle)))
	}

	mcpClient := client.NewClient(trans, clientOpts...)
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	mcpClient.OnNotification(func(notification mcp.JSONRPCNotification) {
		select {
		case c.notifications <- notification:
		default:
			logging.Warn("Protocol", "Notification channel full, dropping %s", notification.Method)
		}
	})

	return mcpClient, nil
}

// initialize performs the MCP protocol handshake.
func (c *Client) initialize(ctx context.Context) error {
	req := mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "tether",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.client.Initialize(timeoutCtx, req); err != nil {
		return err
	}
	logging.Debug("Protocol", "Initialized MCP session with %s", c.endpoint)
	return nil
}

// listen drains change notifications and refreshes the affected capability
// kind. It is the only writer of the capability cache after connect.
func (c *Client) listen(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case notification := <-c.notifications:
			c.handleNotification(ctx, notification)
		}
	}
}

func (c *Client) handleNotification(ctx context.Context, notification mcp.JSONRPCNotification) {
	var changed bool
	switch notification.Method {
	case "notifications/tools/list_changed":
		changed = c.refreshTools(ctx)
	case "notifications/prompts/list_changed":
		changed = c.refreshPrompts(ctx)
	case "notifications/resources/list_changed":
		changed = c.refreshResources(ctx)
	default:
		logging.Debug("Protocol", "Ignoring notification %s", notification.Method)
		return
	}
	if changed && c.onChange != nil {
		c.onChange(c.cache.snapshot())
	}
}

func (c *Client) refreshTools(ctx context.Context) bool {
	result, err := withRetryImpl(ctx, c, api.MethodToolsList, func(callCtx context.Context) (*mcp.ListToolsResult, error) {
		return c.client.ListTools(callCtx, mcp.ListToolsRequest{})
	})
	if err != nil {
		logging.Error("Protocol", err, "Tool list refresh failed")
		return false
	}
	return c.cache.setTools(result.Tools)
}

func (c *Client) refreshPrompts(ctx context.Context) bool {
	result, err := withRetryImpl(ctx, c, api.MethodPromptsList, func(callCtx context.Context) (*mcp.ListPromptsResult, error) {
		return c.client.ListPrompts(callCtx, mcp.ListPromptsRequest{})
	})
	if err != nil {
		logging.Error("Protocol", err, "Prompt list refresh failed")
		return false
	}
	return c.cache.setPrompts(result.Prompts)
}

func (c *Client) refreshResources(ctx context.Context) bool {
	result, err := withRetryImpl(ctx, c, api.MethodResourcesList, func(callCtx context.Context) (*mcp.ListResourcesResult, error) {
		return c.client.ListResources(callCtx, mcp.ListResourcesRequest{})
	})
	if err != nil {
		logging.Error("Protocol", err, "Resource list refresh failed")
		return false
	}
	return c.cache.setResources(result.Resources)
}

// Snapshot returns the current capability snapshot, populating the cache on
// first use.
func (c *Client) Snapshot(ctx context.Context) (CapabilitySnapshot, error) {
	if !c.cache.isPopulated() {
		if err := c.populate(ctx); err != nil {
			return CapabilitySnapshot{}, err
		}
	}
	return c.cache.snapshot(), nil
}

// populate performs the initial fetch of all three capability kinds. Tools
// are the one kind the turn loop cannot run without; prompt and resource
// listing failures degrade gracefully.
func (c *Client) populate(ctx context.Context) error {
	result, err := withRetryImpl(ctx, c, api.MethodToolsList, func(callCtx context.Context) (*mcp.ListToolsResult, error) {
		return c.client.ListTools(callCtx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return fmt.Errorf("initial tool listing failed for %s: %w", c.endpoint, err)
	}
	c.cache.setTools(result.Tools)
	c.refreshPrompts(ctx)
	c.refreshResources(ctx)
	c.cache.markPopulated()
	return nil
}

// Execute routes a translated protocol request to the matching operation.
// The returned value is one of *mcp.CallToolResult, *mcp.GetPromptResult,
// *mcp.ReadResourceResult, or one of the three list results.
func (c *Client) Execute(ctx context.Context, req api.ProtocolRequest) (any, error) {
	switch req.Method {
	case api.MethodToolsCall:
		return c.CallTool(ctx, req.Name, req.Arguments)
	case api.MethodPromptsGet:
		args := make(map[string]string, len(req.Arguments))
		for k, v := range req.Arguments {
			args[k] = fmt.Sprintf("%v", v)
		}
		return c.GetPrompt(ctx, req.Name, args)
	case api.MethodResourcesRead:
		return c.ReadResource(ctx, req.URI)
	case api.MethodToolsList:
		return c.ListTools(ctx)
	case api.MethodPromptsList:
		return c.ListPrompts(ctx)
	case api.MethodResourcesList:
		return c.ListResources(ctx)
	default:
		return nil, fmt.Errorf("unknown protocol method: %s", req.Method)
	}
}

// CallTool executes a tool and returns the result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	}
	return withRetryImpl(ctx, c, api.MethodToolsCall, func(callCtx context.Context) (*mcp.CallToolResult, error) {
		return c.client.CallTool(callCtx, req)
	})
}

// GetPrompt retrieves a prompt with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	req := mcp.GetPromptRequest{
		Params: struct {
			Name      string            `json:"name"`
			Arguments map[string]string `json:"arguments,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	}
	return withRetryImpl(ctx, c, api.MethodPromptsGet, func(callCtx context.Context) (*mcp.GetPromptResult, error) {
		return c.client.GetPrompt(callCtx, req)
	})
}

// ReadResource reads a resource and returns its contents.
func (c *Client) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	req := mcp.ReadResourceRequest{
		Params: struct {
			URI       string         `json:"uri"`
			Arguments map[string]any `json:"arguments,omitempty"`
		}{
			URI: uri,
		},
	}
	return withRetryImpl(ctx, c, api.MethodResourcesRead, func(callCtx context.Context) (*mcp.ReadResourceResult, error) {
		return c.client.ReadResource(callCtx, req)
	})
}

// ListTools lists all available tools and refreshes the cache.
func (c *Client) ListTools(ctx context.Context) (*mcp.ListToolsResult, error) {
	result, err := withRetryImpl(ctx, c, api.MethodToolsList, func(callCtx context.Context) (*mcp.ListToolsResult, error) {
		return c.client.ListTools(callCtx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}
	c.cache.setTools(result.Tools)
	return result, nil
}

// ListPrompts lists all available prompts and refreshes the cache.
func (c *Client) ListPrompts(ctx context.Context) (*mcp.ListPromptsResult, error) {
	result, err := withRetryImpl(ctx, c, api.MethodPromptsList, func(callCtx context.Context) (*mcp.ListPromptsResult, error) {
		return c.client.ListPrompts(callCtx, mcp.ListPromptsRequest{})
	})
	if err != nil {
		return nil, err
	}
	c.cache.setPrompts(result.Prompts)
	return result, nil
}

// ListResources lists all available resources and refreshes the cache.
func (c *Client) ListResources(ctx context.Context) (*mcp.ListResourcesResult, error) {
	result, err := withRetryImpl(ctx, c, api.MethodResourcesList, func(callCtx context.Context) (*mcp.ListResourcesResult, error) {
		return c.client.ListResources(callCtx, mcp.ListResourcesRequest{})
	})
	if err != nil {
		return nil, err
	}
	c.cache.setResources(result.Resources)
	return result, nil
}

// Close tears the client down: an open transaction is implicitly aborted,
// the notification listener is stopped, and the transport is closed.
func (c *Client) Close() error {
	c.txMu.Lock()
	if c.tx != nil {
		logging.Warn("Protocol", "Transaction left open at teardown, aborting")
		c.tx.discard()
		c.tx = nil
	}
	c.txMu.Unlock()

	if c.stop != nil {
		c.stop()
		<-c.stopped
	}
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// withRetryImpl runs op with the per-call timeout, retrying transport-level
// failures with exponential backoff up to the configured attempt budget. An
// error response the server already delivered is final and is never re-sent.
// Retries stop early when ctx is done; a transport-level failure carries the
// method and attempt count.
func withRetryImpl[T any](ctx context.Context, c *Client, method string, op func(context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		result, err := op(callCtx)
		if err != nil && !isTransportFailure(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	result, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxAttempts),
	)
	if err == nil {
		return result, nil
	}

	var zero T
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return zero, permanent.Unwrap()
	}
	if isTransportFailure(err) {
		return zero, &api.ProtocolTransportError{Method: method, Attempts: int(c.maxAttempts), Err: err}
	}
	return zero, err
}

// isTransportFailure reports whether err happened before the server delivered
// a response. Only these failures may be retried: a delivered JSON-RPC error
// response means the call already executed once.
func isTransportFailure(err error) bool {
	var transportErr *transport.Error
	return errors.As(err, &transportErr) || errors.Is(err, context.DeadlineExceeded)
}
