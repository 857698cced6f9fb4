package mcp

import "encoding/json"

// Method is an MCP method identifier used in JSON-RPC messages.
type Method string

// MCP method names and notifications.
const (
	// Initialization
	InitializeMethod              Method = "initialize"
	InitializedNotificationMethod Method = "notifications/initialized"

	// Tools
	ToolsListMethod                    Method = "tools/list"
	ToolsCallMethod                    Method = "tools/call"
	ToolsListChangedNotificationMethod Method = "notifications/tools/list_changed"

	// Resources
	ResourcesListMethod                    Method = "resources/list"
	ResourcesReadMethod                    Method = "resources/read"
	ResourcesTemplatesListMethod           Method = "resources/templates/list"
	ResourcesSubscribeMethod               Method = "resources/subscribe"
	ResourcesUnsubscribeMethod             Method = "resources/unsubscribe"
	ResourcesListChangedNotificationMethod Method = "notifications/resources/list_changed"
	ResourcesUpdatedNotificationMethod     Method = "notifications/resources/updated"

	// Prompts
	PromptsListMethod                    Method = "prompts/list"
	PromptsGetMethod                     Method = "prompts/get"
	PromptsListChangedNotificationMethod Method = "notifications/prompts/list_changed"

	// Logging
	LoggingSetLevelMethod            Method = "logging/setLevel"
	LoggingMessageNotificationMethod Method = "notifications/message"

	// Sampling
	SamplingCreateMessageMethod Method = "sampling/createMessage"

	// Completion
	CompletionCompleteMethod Method = "completion/complete"

	// Roots
	RootsListMethod                    Method = "roots/list"
	RootsListChangedNotificationMethod Method = "notifications/roots/list_changed"

	// Elicitation
	ElicitationCreateMethod Method = "elicitation/create"

	// Tasks
	TasksGetMethod                Method = "tasks/get"
	TasksResultMethod             Method = "tasks/result"
	TasksListMethod               Method = "tasks/list"
	TasksCancelMethod             Method = "tasks/cancel"
	TasksStatusNotificationMethod Method = "notifications/tasks/status"

	// General
	PingMethod                  Method = "ping"
	CancelledNotificationMethod Method = "notifications/cancelled"
	ProgressNotificationMethod  Method = "notifications/progress"
)

// PaginatedRequest carries a cursor for paginated list requests.
type PaginatedRequest struct {
	Cursor string `json:"cursor,omitzero"`
}

// PaginatedResult carries a cursor for continuing pagination.
type PaginatedResult struct {
	NextCursor string `json:"nextCursor,omitzero"`
}

// ProgressToken is an identifier used to correlate progress updates.
// It may be a string or number.
type ProgressToken any // string | number

// RequestMeta is the _meta object clients may attach to a request.
type RequestMeta struct {
	ProgressToken ProgressToken `json:"progressToken,omitempty"`
	// Task opts the request into durable task tracking.
	Task bool `json:"task,omitzero"`
}

// CancelledNotification informs the peer that a request was canceled.
type CancelledNotification struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason,omitzero"`
}

// ProgressNotificationParams conveys progress of a long-running operation.
type ProgressNotificationParams struct {
	ProgressToken ProgressToken `json:"progressToken"`
	Progress      float64       `json:"progress"`
	Total         float64       `json:"total,omitzero"`
	Message       string        `json:"message,omitzero"`
}

// LoggingMessageNotification carries a server-emitted log record.
type LoggingMessageNotification struct {
	Level  LoggingLevel `json:"level"`
	Logger string       `json:"logger,omitzero"`
	Data   any          `json:"data,omitempty"`
}

// EmptyResult is an intentionally empty result body.
type EmptyResult struct{}

// InitializeRequest starts the MCP initialization handshake.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
}

// InitializeResult returns negotiated capabilities and server info. SessionID
// duplicates the Mcp-Session-Id header for transports without headers.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitzero"`
	SessionID       string             `json:"sessionId,omitzero"`
}

// ListToolsRequest requests the set of available tools.
type ListToolsRequest struct {
	PaginatedRequest
}

// ListToolsResult returns the available tools.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
	PaginatedResult
}

// CallToolRequestReceived is the inbound shape of a tools/call request. The
// arguments are kept raw so handler decoding can enforce per-tool policy.
type CallToolRequestReceived struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Meta      *RequestMeta    `json:"_meta,omitempty"`
}

// CallToolResult is the outcome of a tool invocation.
type CallToolResult struct {
	Content           []ContentBlock `json:"content"`
	StructuredContent any            `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError,omitzero"`
	Meta              map[string]any `json:"_meta,omitempty"`
}

// CallToolTaskResult is returned in place of CallToolResult when the call was
// accepted as a durable task.
type CallToolTaskResult struct {
	TaskID string     `json:"taskId"`
	Status TaskStatus `json:"status"`
}

// ListResourcesRequest requests the set of available resources.
type ListResourcesRequest struct {
	PaginatedRequest
}

// ListResourcesResult returns the available resources.
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
	PaginatedResult
}

// ReadResourceRequest requests the contents of a resource.
type ReadResourceRequest struct {
	URI string `json:"uri"`
}

// ReadResourceResult returns resource contents.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// ListResourceTemplatesRequest requests the set of resource templates.
type ListResourceTemplatesRequest struct {
	PaginatedRequest
}

// ListResourceTemplatesResult returns the resource templates.
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	PaginatedResult
}

// SubscribeRequest subscribes the session to updates of a resource URI.
type SubscribeRequest struct {
	URI string `json:"uri"`
}

// UnsubscribeRequest removes a resource subscription.
type UnsubscribeRequest struct {
	URI string `json:"uri"`
}

// ResourceUpdatedNotification informs the client a resource changed.
type ResourceUpdatedNotification struct {
	URI string `json:"uri"`
}

// ListPromptsRequest requests the set of available prompts.
type ListPromptsRequest struct {
	PaginatedRequest
}

// ListPromptsResult returns the available prompts.
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
	PaginatedResult
}

// GetPromptRequestReceived is the inbound shape of a prompts/get request.
type GetPromptRequestReceived struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// GetPromptResult returns a rendered prompt.
type GetPromptResult struct {
	Description string          `json:"description,omitzero"`
	Messages    []PromptMessage `json:"messages"`
}

// SetLevelRequest adjusts the server's logging threshold for the session.
type SetLevelRequest struct {
	Level LoggingLevel `json:"level"`
}

// CompleteReference identifies the target of a completion request.
type CompleteReference struct {
	Type string `json:"type"` // "ref/resource" | "ref/prompt"
	URI  string `json:"uri,omitzero"`
	Name string `json:"name,omitzero"`
}

// CompleteArgument is the argument being completed.
type CompleteArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompleteRequest asks the server for argument completions.
type CompleteRequest struct {
	Ref      CompleteReference `json:"ref"`
	Argument CompleteArgument  `json:"argument"`
}

// CompleteResult returns completion values.
type CompleteResult struct {
	Completion Completion `json:"completion"`
}

// CreateMessageRequest asks the client to run model sampling.
type CreateMessageRequest struct {
	Messages         []SamplingMessage `json:"messages"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
	SystemPrompt     string            `json:"systemPrompt,omitzero"`
	MaxTokens        int               `json:"maxTokens,omitzero"`
	Temperature      float64           `json:"temperature,omitzero"`
	StopSequences    []string          `json:"stopSequences,omitempty"`
}

// CreateMessageResult is the client's sampling response.
type CreateMessageResult struct {
	Role       Role         `json:"role"`
	Content    ContentBlock `json:"content"`
	Model      string       `json:"model"`
	StopReason string       `json:"stopReason,omitzero"`
}

// ElicitRequest asks the client to collect structured input from the user.
type ElicitRequest struct {
	Message         string             `json:"message"`
	RequestedSchema *ElicitationSchema `json:"requestedSchema,omitempty"`
}

// ElicitResult is the client's elicitation response.
type ElicitResult struct {
	Action  string         `json:"action"` // "accept" | "decline" | "cancel"
	Content map[string]any `json:"content,omitempty"`
}

// ListRootsResult is the client's response to roots/list.
type ListRootsResult struct {
	Roots []Root `json:"roots"`
}

// TaskGetRequest fetches a task by id.
type TaskGetRequest struct {
	ID string `json:"id"`
}

// TaskListRequest lists tasks, optionally paginated.
type TaskListRequest struct {
	PaginatedRequest
}

// TaskListResult returns the tasks for the session.
type TaskListResult struct {
	Tasks []Task `json:"tasks"`
	PaginatedResult
}
