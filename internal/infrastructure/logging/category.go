package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Config          Category = "Config"
	Postgres        Category = "Postgres"
	MongoDB         Category = "MongoDB"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	Fanout          Category = "Fanout"
	WebSocket       Category = "WebSocket"
	Ingestion       Category = "Ingestion"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Storage
	Connect   SubCategory = "Connect"
	Migration SubCategory = "Migration"
	Append    SubCategory = "Append"
	Query     SubCategory = "Query"

	// Delivery
	Dispatch  SubCategory = "Dispatch"
	Publish   SubCategory = "Publish"
	Consume   SubCategory = "Consume"
	Broadcast SubCategory = "Broadcast"

	// Http
	Api         SubCategory = "Api"
	HealthCheck SubCategory = "HealthCheck"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestID    ExtraKey = "RequestId"
	ErrorMessage ExtraKey = "ErrorMessage"
	UserID       ExtraKey = "UserId"
	ActionType   ExtraKey = "ActionType"
	Count        ExtraKey = "Count"
	Topic        ExtraKey = "Topic"
	Sink         ExtraKey = "Sink"
	Driver       ExtraKey = "Driver"
	Database     ExtraKey = "Database"
)
